package messaging

import (
	"context"
	"sync"
)

type subscription struct {
	pattern string
	ch      chan []byte
}

// MemoryBroker is an in-process Broker for single-instance deployments and tests.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	buffer int
	closed bool
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 100
	}
	return &MemoryBroker{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the payload.
func (b *MemoryBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for s := range b.subs {
		if !MatchTopic(s.pattern, topic) {
			continue
		}
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	s := &subscription{pattern: topic, ch: make(chan []byte, b.buffer)}
	b.subs[s] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
	}()

	return s.ch, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
	return nil
}
