// Package observable provides a latest-value holder that presentation adapters can
// read at any time or subscribe to for change notifications.
package observable

import (
	"context"
	"sync"
)

// Value holds the current value of T and fans out every Set to subscribers.
// Subscribers receive only the most recent value: a slow reader skips
// intermediate values instead of blocking the writer.
type Value[T any] struct {
	mu          sync.RWMutex
	current     T
	subscribers map[chan T]struct{}
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:     initial,
		subscribers: make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.current
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = value

	for ch := range v.subscribers {
		offer(ch, value)
	}
}

// Subscribe returns a channel that immediately yields the current value and then
// every subsequent one. The channel is closed when ctx is done.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()
	v.subscribers[ch] = struct{}{}
	ch <- v.current
	v.mu.Unlock()

	go func() {
		<-ctx.Done()

		v.mu.Lock()
		delete(v.subscribers, ch)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}

// offer replaces any unread value in ch with value. Callers hold the write lock,
// so no other sender races on ch.
func offer[T any](ch chan T, value T) {
	select {
	case <-ch:
	default:
	}

	select {
	case ch <- value:
	default:
	}
}
