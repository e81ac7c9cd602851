// Package export writes and reads encrypted snapshots of the lead board.
// The file format is [16-byte salt][12-byte nonce][AES-256-GCM ciphertext]
// over a JSON snapshot, keyed by an Argon2id-derived passphrase key.
package export

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/corvandale/leadctl/internal/model"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// Snapshot is the exported document.
type Snapshot struct {
	ExportedAt time.Time            `json:"exported_at"`
	ExportedBy string               `json:"exported_by,omitempty"`
	Leads      model.LeadsByStatus  `json:"leads"`
	Statistics model.LeadStatistics `json:"statistics"`
}

// AllLeads returns every lead in the snapshot in partition order.
func (s Snapshot) AllLeads() []model.Lead {
	out := make([]model.Lead, 0,
		len(s.Leads.NewLead)+len(s.Leads.LeadSent)+len(s.Leads.DealDone))
	out = append(out, s.Leads.NewLead...)
	out = append(out, s.Leads.LeadSent...)
	out = append(out, s.Leads.DealDone...)
	return out
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

// Write encrypts the snapshot to path.
func Write(path, passphrase string, snap Snapshot) error {
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// Read decrypts a snapshot written by Write.
func Read(path, passphrase string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read export file: %w", err)
	}

	if len(data) < saltSize+nonceSize {
		return Snapshot{}, fmt.Errorf("export file too small")
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	key := deriveKey(passphrase, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decrypt: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
