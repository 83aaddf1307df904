package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreativeUnicorns/prefer"
)

// mockRedisClient keeps hashes in memory and records publishes.
type mockRedisClient struct {
	mu         sync.Mutex
	hashes     map[string]map[string]string
	published  []string
	publishErr error
	failGet    bool
}

func newMockRedisClient() *mockRedisClient {
	return &mockRedisClient{hashes: make(map[string]map[string]string)}
}

func (m *mockRedisClient) HGet(_ context.Context, key, field string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return redis.NewStringResult("", errors.New("connection reset"))
	}
	value, ok := m.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (m *mockRedisClient) HSet(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	var added int64
	for i := 0; i+1 < len(values); i += 2 {
		field := values[i].(string)
		if _, exists := h[field]; !exists {
			added++
		}
		h[field] = values[i+1].(string)
	}
	return redis.NewIntResult(added, nil)
}

func (m *mockRedisClient) HExists(_ context.Context, key, field string) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[key][field]
	return redis.NewBoolResult(ok, nil)
}

func (m *mockRedisClient) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, field := range fields {
		if _, ok := m.hashes[key][field]; ok {
			delete(m.hashes[key], field)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (m *mockRedisClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return redis.NewIntResult(0, m.publishErr)
	}
	m.published = append(m.published, channel+" "+message.(string))
	return redis.NewIntResult(1, nil)
}

func (m *mockRedisClient) Close() error {
	return nil
}

func TestRedisStore(t *testing.T) {
	s, err := newRedisStore(newMockRedisClient(), nil)
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestRedisStore_HashAndChannel(t *testing.T) {
	ctx := context.Background()
	client := newMockRedisClient()
	s, err := newRedisStore(client, nil, WithNamespace("app"))
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "Key:IsEnabled", "true"))
	require.NoError(t, s.Set(ctx, "Key:IsEnabled", "true"))

	assert.Equal(t, "true", client.hashes["prefer:app"]["Key:IsEnabled"])
	assert.Equal(t, []string{"prefer_app Key:IsEnabled"}, client.published)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Key:IsEnabled": "true"}, all)
}

func TestRedisStore_PublishFailureStillNotifies(t *testing.T) {
	client := newMockRedisClient()
	client.publishErr = errors.New("readonly replica")
	s, err := newRedisStore(client, nil)
	require.NoError(t, err)
	changes := record(s)

	require.NoError(t, s.Set(context.Background(), "Key:Ratio", "0.5"))
	assert.Equal(t, []string{"Key:Ratio"}, changes.Keys())
}

func TestRedisStore_GetError(t *testing.T) {
	client := newMockRedisClient()
	client.failGet = true
	s, err := newRedisStore(client, nil)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "Key:Ratio")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, prefer.ErrNotFound)

	assert.Error(t, s.Set(context.Background(), "Key:Ratio", "0.5"))
}

func TestRedisStore_ListenRequiresSubscriber(t *testing.T) {
	_, err := newRedisStore(newMockRedisClient(), nil, WithListen())
	assert.ErrorContains(t, err, "cannot subscribe")
}

// fakePubSub delivers messages pushed by the test.
type fakePubSub struct {
	channel    string
	receiveErr error
	ch         chan *redis.Message
	closeOnce  sync.Once
	closed     chan struct{}
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{ch: make(chan *redis.Message, 4), closed: make(chan struct{})}
}

func (p *fakePubSub) Receive(context.Context) (interface{}, error) {
	return nil, p.receiveErr
}

func (p *fakePubSub) Channel(...redis.ChannelOption) <-chan *redis.Message {
	return p.ch
}

func (p *fakePubSub) Close() error {
	p.closeOnce.Do(func() {
		close(p.ch)
		close(p.closed)
	})
	return nil
}

func (p *fakePubSub) subscribe(_ context.Context, channel string) redisPubSub {
	p.channel = channel
	return p
}

func TestRedisStore_Listen(t *testing.T) {
	client := newMockRedisClient()
	pubsub := newFakePubSub()
	s, err := newRedisStore(client, pubsub.subscribe, WithListen(), WithNamespace("app"))
	require.NoError(t, err)
	assert.Equal(t, "prefer_app", pubsub.channel)

	received := make(chan string, 4)
	s.SetChangeHandler(func(key string) { received <- key })

	// Own writes are published and come back through the subscription.
	require.NoError(t, s.Set(context.Background(), "Key:Ratio", "0.5"))
	assert.Equal(t, []string{"prefer_app Key:Ratio"}, client.published)
	assert.Empty(t, received)

	pubsub.ch <- &redis.Message{Channel: "prefer_app", Payload: "Key:Ratio"}
	select {
	case key := <-received:
		assert.Equal(t, "Key:Ratio", key)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, s.Close())
	select {
	case <-pubsub.closed:
	default:
		t.Fatal("subscription not closed")
	}
	select {
	case <-s.done:
	default:
		t.Fatal("listener still running after Close")
	}
	require.NoError(t, s.Close())
}

func TestRedisStore_ListenSubscribeError(t *testing.T) {
	pubsub := newFakePubSub()
	pubsub.receiveErr = errors.New("NOAUTH")

	_, err := newRedisStore(newMockRedisClient(), pubsub.subscribe, WithListen())
	assert.ErrorContains(t, err, "failed to subscribe")
	select {
	case <-pubsub.closed:
	default:
		t.Fatal("subscription not closed after error")
	}
}
