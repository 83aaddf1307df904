// Package storage provides prefer.Store implementations backed by memory,
// SQLite, PostgreSQL and Redis, plus caching and encrypting decorators.
package storage

import (
	"sync"
	"time"

	"github.com/CreativeUnicorns/prefer"
)

const (
	// DefaultNamespace is used when no namespace is configured.
	DefaultNamespace = "default"
	// DefaultCacheTTL is the lifetime of values cached by CachedStore.
	DefaultCacheTTL = 24 * time.Hour
)

// Option configures a store.
type Option func(*options)

type options struct {
	namespace string
	channel   string
	listen    bool
	logger    prefer.Logger
	cacheTTL  time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		namespace: DefaultNamespace,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = prefer.NewDefaultLogger()
	}
	if o.channel == "" {
		o.channel = "prefer_" + o.namespace
	}
	return o
}

// WithNamespace sets the namespace that separates independent sets of
// preferences sharing one database.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		if namespace != "" {
			o.namespace = namespace
		}
	}
}

// WithChannel overrides the notification channel used by PostgresStore and
// RedisStore. It defaults to "prefer_<namespace>".
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = channel
	}
}

// WithListen makes PostgresStore and RedisStore subscribe to their
// notification channel, so changes made by other processes are reported too.
func WithListen() Option {
	return func(o *options) {
		o.listen = true
	}
}

// WithLogger sets the logger used for background errors.
func WithLogger(l prefer.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithCacheTTL sets the lifetime of values cached by CachedStore.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.cacheTTL = ttl
		}
	}
}

// notifier holds the single change hook of a store.
type notifier struct {
	mu      sync.RWMutex
	handler prefer.ChangeHandler
}

// SetChangeHandler replaces the change hook; nil unregisters it.
func (n *notifier) SetChangeHandler(h prefer.ChangeHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = h
}

func (n *notifier) notify(key string) {
	n.mu.RLock()
	h := n.handler
	n.mu.RUnlock()

	if h != nil {
		h(key)
	}
}
