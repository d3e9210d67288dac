// Package pubsub broadcasts immutable snapshot values to subscribers.
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription receives snapshots on C. Only the latest undelivered value is
// kept: a slow reader skips intermediate snapshots, never blocks the publisher.
type Subscription[T any] struct {
	ID string
	C  <-chan T

	ch     chan T
	closed bool
}

// Broker fans out published values. Values must be treated as read-only by
// every receiver.
type Broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription[T]
	latest      T
	hasLatest   bool
	closed      bool
}

// -----------------------------------------------------------------------------

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subscribers: make(map[string]*Subscription[T])}
}

// -----------------------------------------------------------------------------

// Subscribe registers a new subscriber. The current snapshot, if any, is
// delivered immediately.
func (b *Broker[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, 1)
	sub := &Subscription[T]{ID: uuid.NewString(), C: ch, ch: ch}
	if b.closed {
		sub.closed = true
		close(ch)
		return sub
	}
	if b.hasLatest {
		ch <- b.latest
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// -----------------------------------------------------------------------------

// Unsubscribe closes the subscriber channel. Unknown ids are ignored.
func (b *Broker[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		sub.close()
	}
}

// -----------------------------------------------------------------------------

// Publish replaces the current snapshot and offers it to every subscriber.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.latest = v
	b.hasLatest = true

	for _, sub := range b.subscribers {
		// drop the stale value so the reader sees the newest
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- v:
		default:
		}
	}
}

// -----------------------------------------------------------------------------

// Latest returns the last published value.
func (b *Broker[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.hasLatest
}

// -----------------------------------------------------------------------------

func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// -----------------------------------------------------------------------------

// Close closes all subscriber channels. Further publishes are dropped.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		sub.close()
		delete(b.subscribers, id)
	}
}

// -----------------------------------------------------------------------------

func (s *Subscription[T]) close() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
