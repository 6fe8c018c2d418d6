package events

import (
	"context"
	"sync"
)

// Broker fans change events out to every API instance.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe delivers payloads published on channel until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

type subscription struct {
	ch     chan []byte
	mu     sync.RWMutex
	closed bool
}

func (s *subscription) send(payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- payload:
	default:
		// subscriber is behind, drop
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// MemoryBroker delivers within the current process only.
type MemoryBroker struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subscribers: make(map[string][]*subscription)}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &subscription{ch: make(chan []byte, 100)}

	b.mu.Lock()
	b.subscribers[channel] = append(b.subscribers[channel], sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		subs := b.subscribers[channel]
		for i, s := range subs {
			if s == sub {
				b.subscribers[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subscribers[channel]) == 0 {
			delete(b.subscribers, channel)
		}
		b.mu.Unlock()

		sub.close()
	}()

	return sub.ch, nil
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subscribers[channel]))
	copy(subs, b.subscribers[channel])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.send(payload)
	}
	return nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, subs := range b.subscribers {
		for _, sub := range subs {
			sub.close()
		}
		delete(b.subscribers, channel)
	}
	return nil
}
