package storage

import (
	"context"
	"sync"

	"github.com/CreativeUnicorns/prefer"
)

// MemoryStore implements the prefer.Store interface using an in-memory map.
// This is useful for testing or simple applications where persistence is not required.
type MemoryStore struct {
	notifier

	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// Get retrieves the value stored for key.
// It returns prefer.ErrNotFound if nothing is stored.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", prefer.ErrNotFound
	}
	return value, nil
}

// Set stores value for key and reports the change if the value differs.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	old, existed := s.values[key]
	s.values[key] = value
	s.mu.Unlock()

	if !existed || old != value {
		s.notify(key)
	}
	return nil
}

// Contains reports whether a value is stored for key.
func (s *MemoryStore) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.values[key]
	return ok, nil
}

// Delete removes key. It returns prefer.ErrNotFound if nothing was stored.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	s.mu.Unlock()

	if !existed {
		return prefer.ErrNotFound
	}
	s.notify(key)
	return nil
}

// GetAll returns a copy of every stored key and value.
func (s *MemoryStore) GetAll(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values, nil
}

// Close is a no-op for MemoryStore as there are no external resources to release.
func (s *MemoryStore) Close() error {
	return nil
}
