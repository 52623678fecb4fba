package locks

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/orders"
)

// Locker hands out exclusive, key-scoped locks with a bounded wait.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// Local is an in-process keyed mutex. Waiters on one key are served in arrival
// order; a waiter that is not served within Wait gets a ConflictError.
type Local struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	return &Local{Wait: wait, slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	t := time.NewTimer(l.Wait)
	defer t.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-t.C:
		l.drop(key, s)
		return nil, orders.Conflict(key, "timed out waiting for lock")
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Held reports the number of keys with an owner or waiter. Used by tests.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func OrderKey(orderID string) string { return "order:" + orderID }
