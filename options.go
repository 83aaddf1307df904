// Package prefer defines the configuration of a Prefer instance.
package prefer

import (
	"time"
)

const (
	defaultObserveBuffer   = 16
	defaultDispatchTimeout = 5 * time.Second
)

// Config holds the internal configuration for a Prefer instance.
// It is populated by applying functional Options when a Prefer is created
// with New(). This struct is not intended to be instantiated directly.
type Config struct {
	// logger is the logging interface used by Prefer.
	logger Logger
	// observeBuffer is the channel capacity used by Observe.
	observeBuffer int
	// dispatchTimeout bounds the store read performed for every change event.
	dispatchTimeout time.Duration
}

// Option defines the signature for a functional option that configures a Prefer.
type Option func(*Config)

// WithLogger sets the Logger used by Prefer.
// If not set, NewDefaultLogger() is used.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserveBuffer sets the channel capacity of channels returned by
// Observe. Values that do not fit are dropped with a warning.
func WithObserveBuffer(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.observeBuffer = n
		}
	}
}

// WithDispatchTimeout bounds the store read that fetches the new value of a
// changed pref before its listeners are called.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.dispatchTimeout = d
		}
	}
}
