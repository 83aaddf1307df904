package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/CreativeUnicorns/prefer"
)

// Encryptor seals values bound to the key they are stored under.
// *encryption.Manager implements it.
type Encryptor interface {
	Encrypt(key, plaintext string) (string, error)
	Decrypt(key, ciphertext string) (string, error)
}

// EncryptedStore encrypts values before they reach the backend. Keys are
// stored in clear so change reports stay meaningful.
type EncryptedStore struct {
	backend prefer.Store
	enc     Encryptor
}

// NewEncryptedStore wraps backend with enc.
func NewEncryptedStore(backend prefer.Store, enc Encryptor) *EncryptedStore {
	return &EncryptedStore{backend: backend, enc: enc}
}

// Get decrypts the stored value.
func (s *EncryptedStore) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	value, err := s.enc.Decrypt(key, sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return value, nil
}

// Set encrypts and stores value. Each encryption yields a new ciphertext, so
// the current plaintext is compared first to keep unchanged writes silent.
func (s *EncryptedStore) Set(ctx context.Context, key, value string) error {
	old, err := s.Get(ctx, key)
	switch {
	case err == nil && old == value:
		return nil
	case err != nil && !errors.Is(err, prefer.ErrNotFound):
		return err
	}

	sealed, err := s.enc.Encrypt(key, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.backend.Set(ctx, key, sealed)
}

// Contains asks the backend.
func (s *EncryptedStore) Contains(ctx context.Context, key string) (bool, error) {
	return s.backend.Contains(ctx, key)
}

// Delete removes key from the backend.
func (s *EncryptedStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// SetChangeHandler installs h on the backend.
func (s *EncryptedStore) SetChangeHandler(h prefer.ChangeHandler) {
	s.backend.SetChangeHandler(h)
}

// Close closes the backend.
func (s *EncryptedStore) Close() error {
	return s.backend.Close()
}
