// Package cache provides caches for encoded preference values.
package cache

import (
	"context"
	"time"
)

// Cache defines the methods required for a caching backend.
// Get returns prefer.ErrNotFound on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
