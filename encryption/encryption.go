// Package encryption seals stored preference values with AES-256-GCM.
// Each ciphertext is bound to the preference key it was written under.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// MinKeyLength is the minimum length of the key material, in bytes.
	MinKeyLength = 32
	// EnvKeyName is the environment variable holding the key material.
	EnvKeyName = "PREFER_ENCRYPTION_KEY"
)

var (
	// ErrInvalidKeyLength is returned when the key material is shorter than MinKeyLength.
	ErrInvalidKeyLength = errors.New("encryption key must be at least 32 bytes for AES-256")
	// ErrKeyNotFound is returned when the encryption key environment variable is not set.
	ErrKeyNotFound = errors.New("encryption key not found in environment variable " + EnvKeyName)
	// ErrEncryptionFailed is returned when encryption operation fails.
	ErrEncryptionFailed = errors.New("encryption operation failed")
	// ErrDecryptionFailed is returned when decryption operation fails.
	ErrDecryptionFailed = errors.New("decryption operation failed")
	// ErrInvalidCiphertext is returned when the ciphertext is malformed or too short.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or malformed")
)

// Manager seals and opens values. It is safe for concurrent use.
type Manager struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewManager creates a Manager from the key material in EnvKeyName.
func NewManager() (*Manager, error) {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return nil, ErrKeyNotFound
	}
	return NewManagerWithKey([]byte(keyStr))
}

// NewManagerWithKey creates a Manager from the given key material. The
// AES-256 key is the SHA-256 digest of the material.
func NewManagerWithKey(material []byte) (*Manager, error) {
	if err := checkLength(material); err != nil {
		return nil, err
	}

	key := deriveKey(material)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCM: %v", ErrEncryptionFailed, err)
	}

	return &Manager{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext for the given preference key and returns the
// base64 encoding of nonce followed by ciphertext. Empty input stays empty.
func (m *Manager) Encrypt(key, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(m.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrEncryptionFailed, err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), []byte(key))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt under the same preference key.
func (m *Manager) Decrypt(key, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecryptionFailed, err)
	}

	nonceSize := m.aead.NonceSize()
	if len(sealed) < nonceSize+m.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := m.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// ValidateKey checks the key material in EnvKeyName without building a Manager.
func ValidateKey() error {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return ErrKeyNotFound
	}
	return checkLength([]byte(keyStr))
}

func checkLength(material []byte) error {
	if len(material) < MinKeyLength {
		return fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidKeyLength, len(material), MinKeyLength)
	}
	return nil
}

func deriveKey(material []byte) []byte {
	sum := sha256.Sum256(material)
	return sum[:]
}
