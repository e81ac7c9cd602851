package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// APIBaseURL is the base path of the backend REST API, without a
	// trailing slash.
	APIBaseURL string
	// StateDir holds the local state database and key file.
	StateDir string
	// RequestTimeout applies to every outgoing API request.
	RequestTimeout time.Duration
	LogLevel       string
	// Passphrase, when set, replaces the generated machine key for
	// sealing tokens at rest.
	Passphrase string
}

// Load reads configuration from the environment, after loading an
// optional .env file from the working directory.
func Load() Config {
	// Missing .env is fine; explicit env vars win either way.
	godotenv.Load()

	return Config{
		APIBaseURL:     readURL("LEADCTL_API_URL", "http://localhost:8000/api"),
		StateDir:       readStateDir(),
		RequestTimeout: readDuration("LEADCTL_TIMEOUT", 10*time.Second),
		LogLevel:       readString("LEADCTL_LOG_LEVEL", "info"),
		Passphrase:     os.Getenv("LEADCTL_PASSPHRASE"),
	}
}

func readString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readURL(key, fallback string) string {
	return strings.TrimRight(readString(key, fallback), "/")
}

func readDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func readStateDir() string {
	if v := os.Getenv("LEADCTL_STATE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".leadctl"
	}
	return filepath.Join(home, ".leadctl")
}
