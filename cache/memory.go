package cache

import (
	"context"
	"sync"
	"time"

	"github.com/CreativeUnicorns/prefer"
)

// gcInterval is how often expired items are swept.
var gcInterval = time.Minute

type item struct {
	value      string
	expiration time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.expiration.IsZero() && now.After(it.expiration)
}

// MemoryCache implements the Cache interface using an in-memory store.
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]item
	stop   chan struct{}
	closed bool
}

// NewMemoryCache initializes a new MemoryCache instance.
// It starts a garbage collection goroutine to clean expired items.
func NewMemoryCache() *MemoryCache {
	cache := &MemoryCache{
		items: make(map[string]item),
		stop:  make(chan struct{}),
	}
	go cache.gc()
	return cache
}

// Get retrieves a value from the memory cache by key.
// Missing and expired keys both yield prefer.ErrNotFound.
func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || it.expired(time.Now()) {
		return "", prefer.ErrNotFound
	}
	return it.value, nil
}

// Set stores a value in the memory cache with an optional TTL.
// If TTL is greater than zero, the key will expire after the duration.
func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return prefer.ErrCacheUnavailable
	}

	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}
	c.items[key] = item{value: value, expiration: expiration}
	return nil
}

// Delete removes a key from the memory cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Len returns the number of live items.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, it := range c.items {
		if !it.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the sweeper and clears all items. Calling it twice is safe.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)
	c.items = make(map[string]item)
	return nil
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if it.expired(now) {
			delete(c.items, key)
		}
	}
}

// gc periodically removes expired items until Close is called.
func (c *MemoryCache) gc() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}
