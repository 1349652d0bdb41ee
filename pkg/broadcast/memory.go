package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster is an in-process Broadcaster.
// Delivery is non-blocking: a subscriber whose buffer is full misses the message.
type MemoryBroadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[*memorySubscriber[T]]struct{}
	bufferSize  int
	closed      bool
}

// NewMemoryBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*memorySubscriber[T]]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber. It is removed when ctx is done or Close is called.
// Subscribing to a closed broadcaster returns an already closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &memorySubscriber[T]{
		ch:     make(chan Message[T], b.bufferSize),
		parent: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.closeChannel()
		return sub
	}
	b.subscribers[sub] = struct{}{}
	// Assigned under the lock: the callback's Close must take it before reading stop.
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Close() })
	b.mu.Unlock()

	return sub
}

// Broadcast delivers msg to all subscribers without blocking.
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for sub := range b.subscribers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		select {
		case sub.ch <- msg:
		default:
			// slow consumer, drop
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers.
func (b *MemoryBroadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close removes all subscribers and closes their channels. Safe to call twice.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = make(map[*memorySubscriber[T]]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.release()
	}
	return nil
}

func (b *MemoryBroadcaster[T]) remove(sub *memorySubscriber[T]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return false
	}
	delete(b.subscribers, sub)
	return true
}

type memorySubscriber[T any] struct {
	ch     chan Message[T]
	parent *MemoryBroadcaster[T]
	stop   func() bool
	once   sync.Once
}

func (s *memorySubscriber[T]) Receive(ctx context.Context) <-chan Message[T] {
	return s.ch
}

func (s *memorySubscriber[T]) Close() error {
	if s.parent.remove(s) {
		s.release()
	}
	return nil
}

func (s *memorySubscriber[T]) release() {
	if s.stop != nil {
		s.stop()
	}
	s.closeChannel()
}

func (s *memorySubscriber[T]) closeChannel() {
	s.once.Do(func() { close(s.ch) })
}
