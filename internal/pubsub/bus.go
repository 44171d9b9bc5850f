// Package pubsub is an in-process publish/subscribe bus with an explicit
// lifecycle. A command creates one, hands it to producers and consumers, and
// closes it on shutdown.
package pubsub

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when subscribing to a closed bus.
var ErrClosed = errors.New("bus closed")

// Bus fans values out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the value and its drop counter grows.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription[T]
	nextID uint64
	closed bool
}

// Subscription is one consumer of a Bus.
type Subscription[T any] struct {
	id      uint64
	bus     *Bus[T]
	ch      chan T
	dropped atomic.Uint64
	once    sync.Once
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[uint64]*Subscription[T])}
}

// Subscribe registers a consumer with the given channel buffer (minimum 1).
func (b *Bus[T]) Subscribe(buffer int) (*Subscription[T], error) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	sub := &Subscription[T]{id: b.nextID, bus: b, ch: make(chan T, buffer)}
	b.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers v to every subscriber that has room and returns how many
// received it. Publishing on a closed bus is a no-op.
func (b *Bus[T]) Publish(v T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}

	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// Close detaches and closes every subscription. It is idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.closeChannel()
	}
}

// C is the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Dropped reports how many values were missed because the buffer was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe detaches the subscription and closes its channel. It is
// idempotent and safe to call after the bus is closed.
func (s *Subscription[T]) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		s.closeChannel()
	}
}

func (s *Subscription[T]) closeChannel() {
	s.once.Do(func() {
		close(s.ch)
	})
}
