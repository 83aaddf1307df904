package prefer

import (
	"context"
	"sync"
)

// valueObserver forwards listener calls into a buffered channel until it is
// closed. Values that do not fit in the buffer are dropped.
type valueObserver[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
}

func newValueObserver[T any](size int) *valueObserver[T] {
	return &valueObserver[T]{ch: make(chan T, size)}
}

func (o *valueObserver[T]) send(v T) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return true
	}
	select {
	case o.ch <- v:
		return true
	default:
		return false
	}
}

func (o *valueObserver[T]) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// Observe returns a channel that receives the new value every time this pref
// changes in the store. The listener is removed and the channel closed when
// ctx is done.
func (p *Pref[V]) Observe(ctx context.Context) (<-chan V, error) {
	obs := newValueObserver[V](p.prefer.config.observeBuffer)

	id, err := p.AddListener(func(v V) {
		if !obs.send(v) {
			p.prefer.config.logger.Warn("Observer buffer full, dropping value", "key", p.key.String())
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		// Fails with ErrNotInitialized after Dispose, which already dropped the listener.
		_ = p.RemoveListener(id)
		obs.close()
	}()

	return obs.ch, nil
}

// Observe returns a channel that receives the changed pref every time one of
// the group's prefs changes in the store. The listener is removed and the
// channel closed when ctx is done.
func (g *PrefGroup) Observe(ctx context.Context) (<-chan Preference, error) {
	obs := newValueObserver[Preference](g.prefer.config.observeBuffer)

	id, err := g.AddListener(func(pref Preference) {
		if !obs.send(pref) {
			g.prefer.config.logger.Warn("Observer buffer full, dropping change", "key_type", g.keyType.Name())
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = g.RemoveListener(id)
		obs.close()
	}()

	return obs.ch, nil
}
