package utils

import (
	"sync"
)

// Broadcaster fans out events to any number of subscribers.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	listeners map[chan T]struct{}
	closed    bool
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{listeners: make(map[chan T]struct{})}
}

// Subscribe registers a listener with the given buffer size. After Close the
// returned channel is already closed.
func (b *Broadcaster[T]) Subscribe(buf int) <-chan T {
	ch := make(chan T, buf)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners[ch] = struct{}{}
	return ch
}

func (b *Broadcaster[T]) Unsubscribe(ch <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.listeners {
		if (<-chan T)(c) == ch {
			delete(b.listeners, c)
			close(c)
			return
		}
	}
}

// Publish delivers v to every subscriber. A listener whose buffer is full
// cannot keep up and is closed and dropped instead of blocking the
// publisher. Returns the number of listeners dropped.
func (b *Broadcaster[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for ch := range b.listeners {
		select {
		case ch <- v:
		default:
			delete(b.listeners, ch)
			close(ch)
			dropped++
		}
	}
	return dropped
}

func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
	b.closed = true
}
