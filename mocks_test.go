package prefer

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockStore implements the Store interface for testing. Like the real
// backends it only fires the change handler when a value actually changed.
type MockStore struct {
	mu       sync.RWMutex
	data     map[string]string
	handler  ChangeHandler
	closed   bool
	forceErr error // For forcing errors in Get and Set
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]string),
	}
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	_, _ = ctx.Deadline()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", ErrStorageUnavailable
	}
	if m.forceErr != nil {
		return "", m.forceErr
	}

	value, exists := m.data[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	_, _ = ctx.Deadline()
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrStorageUnavailable
	}
	if m.forceErr != nil {
		m.mu.Unlock()
		return m.forceErr
	}

	old, exists := m.data[key]
	m.data[key] = value
	handler := m.handler
	m.mu.Unlock()

	if handler != nil && (!exists || old != value) {
		handler(key)
	}
	return nil
}

func (m *MockStore) Contains(ctx context.Context, key string) (bool, error) {
	_, _ = ctx.Deadline()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrStorageUnavailable
	}
	_, exists := m.data[key]
	return exists, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	_, _ = ctx.Deadline()
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrStorageUnavailable
	}

	_, exists := m.data[key]
	delete(m.data, key)
	handler := m.handler
	m.mu.Unlock()

	if !exists {
		return ErrNotFound
	}
	if handler != nil {
		handler(key)
	}
	return nil
}

func (m *MockStore) SetChangeHandler(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Emit simulates a change reported by the platform, for instance a write by
// another process or a foreign key.
func (m *MockStore) Emit(key string) {
	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()

	if handler != nil {
		handler(key)
	}
}

// HasHandler reports whether a change handler is installed.
func (m *MockStore) HasHandler() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handler != nil
}

// Raw writes directly to the backing map without notifying.
func (m *MockStore) Raw(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, formatMessage("DEBUG", msg, args...))
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, formatMessage("INFO", msg, args...))
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, formatMessage("WARN", msg, args...))
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, formatMessage("ERROR", msg, args...))
}

// Contains reports whether any recorded message contains substr.
func (m *MockLogger) Contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func formatMessage(level, msg string, args ...any) string {
	if len(args) > 0 {
		return fmt.Sprintf("%s: %s %v", level, msg, args)
	}
	return fmt.Sprintf("%s: %s", level, msg)
}
