package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSealOpenRoundtrip(t *testing.T) {
	salt, err := generateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	key := deriveKey("passphrase", salt)

	plaintext := []byte("a-bearer-token")
	blob, err := seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(blob, plaintext) {
		t.Error("sealed blob contains plaintext")
	}

	got, err := open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("roundtrip = %q, want %q", got, plaintext)
	}
}

func TestOpenWrongKeyFails(t *testing.T) {
	salt, _ := generateSalt()
	blob, err := seal(deriveKey("right", salt), []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := open(deriveKey("wrong", salt), blob); err == nil {
		t.Error("expected decrypt failure with wrong key")
	}
}

func TestOpenTruncatedBlob(t *testing.T) {
	salt, _ := generateSalt()
	if _, err := open(deriveKey("k", salt), []byte("short")); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, _ := generateSalt()
	a := deriveKey("secret", salt)
	b := deriveKey("secret", salt)
	if !bytes.Equal(a, b) {
		t.Error("same secret and salt produced different keys")
	}

	other, _ := generateSalt()
	if bytes.Equal(a, deriveKey("secret", other)) {
		t.Error("different salts produced the same key")
	}
}

func TestMachineKeyCreatesAndReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.key")

	first, err := MachineKey(path)
	if err != nil {
		t.Fatalf("first machine key: %v", err)
	}
	if len(first) != 64 { // 32 bytes hex-encoded
		t.Errorf("key length = %d, want 64", len(first))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file mode = %o, want 0600", perm)
	}

	second, err := MachineKey(path)
	if err != nil {
		t.Fatalf("second machine key: %v", err)
	}
	if second != first {
		t.Error("machine key changed between calls")
	}
}
