package cache

import (
	"context"
	"testing"
	"time"
)

// TestCacheInterface ensures that MemoryCache and RedisCache implement the Cache interface
func TestCacheInterface(t *testing.T) {
	var _ Cache = NewMemoryCache()
	var _ Cache = &RedisCache{client: NewMockRedisClient()}
}

func TestCache_GetSetDelete(t *testing.T) {
	caches := map[string]func() Cache{
		"memory": func() Cache { return NewMemoryCache() },
		"redis":  func() Cache { return &RedisCache{client: NewMockRedisClient()} },
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := newCache()
			defer func() {
				if err := cache.Close(); err != nil {
					t.Fatalf("Close failed: %v", err)
				}
			}()

			if err := cache.Set(ctx, "Key:IsEnabled", "true", time.Minute); err != nil {
				t.Fatalf("Set failed: %v", err)
			}

			val, err := cache.Get(ctx, "Key:IsEnabled")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if val != "true" {
				t.Errorf("Expected 'true', got '%v'", val)
			}

			if err := cache.Delete(ctx, "Key:IsEnabled"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}

			if _, err := cache.Get(ctx, "Key:IsEnabled"); err == nil {
				t.Errorf("Expected error for deleted key, got none")
			}
		})
	}
}
