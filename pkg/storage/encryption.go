package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyDerivationIterations follows the OWASP PBKDF2-SHA256 recommendation.
	keyDerivationIterations = 600000
	saltSize                = 16
	saltFileName            = "nornicflow.salt"
)

// DeriveEncryptionKey turns a password into a 32-byte AES-256 key for Badger.
func DeriveEncryptionKey(password string, salt []byte) ([]byte, error) {
	if password == "" {
		return nil, errors.New("encryption password is empty")
	}
	if len(salt) < saltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes (got %d)", saltSize, len(salt))
	}
	return pbkdf2.Key([]byte(password), salt, keyDerivationIterations, 32, sha256.New), nil
}

// LoadOrCreateSalt returns the salt stored in dataDir, creating it on first use.
// An empty dataDir (in-memory engines) gets a fresh random salt.
func LoadOrCreateSalt(dataDir string) ([]byte, error) {
	if dataDir == "" {
		return newSalt()
	}

	path := filepath.Join(dataDir, saltFileName)
	salt, err := os.ReadFile(path)
	if err == nil {
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt, err = newSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write salt: %w", err)
	}
	return salt, nil
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
