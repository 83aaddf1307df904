package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CreativeUnicorns/prefer"
)

// redisClient is the subset of *redis.Client used by RedisStore.
type redisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// redisPubSub is the subset of *redis.PubSub used by RedisStore.
type redisPubSub interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// subscribeFunc opens a subscription to one channel.
type subscribeFunc func(ctx context.Context, channel string) redisPubSub

// RedisStore implements prefer.Store with one Redis hash per namespace.
// Changes are published on the store's channel; with WithListen the store
// reports changes received from that channel instead of its own writes.
type RedisStore struct {
	notifier

	client  redisClient
	hash    string
	channel string
	logger  prefer.Logger

	// mu serializes read-compare-write in Set within this process.
	mu sync.Mutex

	pubsub    redisPubSub
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(addr, password string, db int, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis: failed to connect: %v", prefer.ErrStorageUnavailable, err)
	}

	subscribe := func(ctx context.Context, channel string) redisPubSub {
		return client.Subscribe(ctx, channel)
	}
	return newRedisStore(client, subscribe, opts...)
}

// newRedisStore builds a store on client. subscribe may be nil when the
// store does not listen.
func newRedisStore(client redisClient, subscribe subscribeFunc, opts ...Option) (*RedisStore, error) {
	o := newOptions(opts)
	s := &RedisStore{
		client:  client,
		hash:    "prefer:" + o.namespace,
		channel: o.channel,
		logger:  o.logger,
	}

	if o.listen {
		if subscribe == nil {
			return nil, fmt.Errorf("redis: client %T cannot subscribe", client)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		pubsub := subscribe(ctx, s.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("redis: failed to subscribe to %s: %w", s.channel, err)
		}
		s.pubsub = pubsub
		s.done = make(chan struct{})
		go s.listen(pubsub.Channel())
	}

	return s, nil
}

// Get retrieves the value stored for key or prefer.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", prefer.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value for key and publishes the change if the value differs.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.Get(ctx, key)
	switch {
	case err == nil && old == value:
		return nil
	case err != nil && !errors.Is(err, prefer.ErrNotFound):
		return err
	}

	if err := s.client.HSet(ctx, s.hash, key, value).Err(); err != nil {
		return fmt.Errorf("redis: failed to set %s: %w", key, err)
	}
	return s.changed(ctx, key)
}

// Contains reports whether a value is stored for key.
func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.hash, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key or returns prefer.ErrNotFound.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.HDel(ctx, s.hash, key).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to delete %s: %w", key, err)
	}
	if n == 0 {
		return prefer.ErrNotFound
	}
	return s.changed(ctx, key)
}

// GetAll returns every key and value in the namespace.
func (s *RedisStore) GetAll(ctx context.Context) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get all: %w", err)
	}
	return values, nil
}

// Close unsubscribes and closes the Redis connection.
func (s *RedisStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.pubsub != nil {
			err = s.pubsub.Close()
			<-s.done
		}
		if cerr := s.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (s *RedisStore) changed(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, s.channel, key).Err(); err != nil {
		s.logger.Warn("Failed to publish pref change", "channel", s.channel, "key", key, "error", err)
		s.notify(key)
		return nil
	}
	if s.pubsub == nil {
		s.notify(key)
	}
	return nil
}

func (s *RedisStore) listen(messages <-chan *redis.Message) {
	defer close(s.done)
	for msg := range messages {
		s.notify(msg.Payload)
	}
}
