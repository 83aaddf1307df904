package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CreativeUnicorns/prefer"
	"github.com/CreativeUnicorns/prefer/cache"
)

// CachedStore serves reads from a cache in front of another store. Writes go
// to the backend and invalidate the cached entry; so do change reports from
// the backend, which are then forwarded to this store's handler.
type CachedStore struct {
	notifier

	backend prefer.Store
	cache   cache.Cache
	prefix  string
	ttl     time.Duration
	logger  prefer.Logger

	// gens counts invalidations per key. A fill that raced with one is not cached.
	genMu sync.Mutex
	gens  map[string]uint64
}

// NewCachedStore wraps backend with c and takes over backend's change handler.
func NewCachedStore(backend prefer.Store, c cache.Cache, opts ...Option) *CachedStore {
	o := newOptions(opts)
	s := &CachedStore{
		backend: backend,
		cache:   c,
		prefix:  "pref:" + o.namespace + ":",
		ttl:     o.cacheTTL,
		logger:  o.logger,
		gens:    make(map[string]uint64),
	}
	backend.SetChangeHandler(s.backendChanged)
	return s
}

// Get returns the cached value, falling back to the backend on a miss.
func (s *CachedStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.cache.Get(ctx, s.cacheKey(key))
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, prefer.ErrNotFound) {
		s.logger.Warn("Cache read failed, using backend", "key", key, "error", err)
	}

	gen := s.generation(key)
	value, err = s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	s.fill(ctx, key, value, gen)
	return value, nil
}

// Set writes through to the backend.
func (s *CachedStore) Set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// Contains asks the backend.
func (s *CachedStore) Contains(ctx context.Context, key string) (bool, error) {
	return s.backend.Contains(ctx, key)
}

// Delete removes key from the backend and the cache.
func (s *CachedStore) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// Close closes the cache and the backend.
func (s *CachedStore) Close() error {
	cerr := s.cache.Close()
	if err := s.backend.Close(); err != nil {
		return err
	}
	return cerr
}

func (s *CachedStore) backendChanged(key string) {
	s.invalidate(context.Background(), key)
	s.notify(key)
}

func (s *CachedStore) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

// fill caches value unless key was invalidated since gen was read.
func (s *CachedStore) fill(ctx context.Context, key, value string, gen uint64) {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if s.gens[key] != gen {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(key), value, s.ttl); err != nil {
		s.logger.Warn("Failed to cache pref value", "key", key, "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, key string) {
	s.genMu.Lock()
	s.gens[key]++
	s.genMu.Unlock()

	if err := s.cache.Delete(ctx, s.cacheKey(key)); err != nil {
		s.logger.Warn("Failed to invalidate cached pref", "key", key, "error", err)
	}
}

func (s *CachedStore) cacheKey(key string) string {
	return s.prefix + key
}
