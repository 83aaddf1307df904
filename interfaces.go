// Package prefer defines interfaces for storage and logging used by Prefer.
package prefer

import (
	"context"
)

// ChangeHandler receives the encoded key of a value that changed in a Store.
type ChangeHandler func(key string)

// Store defines the methods required for a preference storage backend.
// Values are kept as text; Prefer takes care of the typed encoding.
//
// A Store has a single change hook. SetChangeHandler replaces the current
// handler and a nil handler unregisters it. The handler must only be invoked
// when the stored value of a key actually changed or the key was removed.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Contains(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	SetChangeHandler(h ChangeHandler)
	Close() error
}

// Logger defines the methods required for logging within prefer.
// The args should be alternating key-value pairs, similar to slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
