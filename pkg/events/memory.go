package events

import (
	"context"
	"sync"
)

// Bus is an in-memory fan-out publisher.
// Slow subscribers drop events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscription]struct{}
	bufferSize  int
	closed      bool
}

type subscription struct {
	mu     sync.Mutex
	ch     chan Event
	types  map[string]struct{}
	closed bool
}

func (s *subscription) wants(t string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

func (s *subscription) send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// NewBus creates a bus with the given per-subscriber buffer (minimum 1).
func NewBus(bufferSize int) *Bus {
	return &Bus{
		subscribers: make(map[*subscription]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe returns a channel receiving events of the given types, or all
// events when none are given. The channel closes when ctx is done or the bus closes.
func (b *Bus) Subscribe(ctx context.Context, types ...string) <-chan Event {
	sub := &subscription{ch: make(chan Event, b.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch
	}
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}
	return sub.ch
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()
	sub.close()
}

// Publish fans event out to matching subscribers.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for sub := range b.subscribers {
		if sub.wants(event.Type) {
			sub.send(event)
		}
	}
	return nil
}

// Close closes every subscription. Further publishes fail with ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.close()
	}
	clear(b.subscribers)
	return nil
}
