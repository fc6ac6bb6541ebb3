package broker

import (
	"context"
	"sync"
	"time"
)

// InMemoryBroker delivers messages to in-process subscribers. Used by tests
// and by runs without a configured broker address.
type InMemoryBroker struct {
	mu     sync.Mutex
	subs   map[string][]chan Message
	offset map[string]int64
	closed bool
}

// NewInMemoryBroker creates an empty in-memory broker.
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subs:   make(map[string][]chan Message),
		offset: make(map[string]int64),
	}
}

// Publish delivers the message to every current subscriber of the topic.
// Messages published before any subscription are dropped.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    b.offset[topic],
		Timestamp: time.Now().UnixMilli(),
	}
	b.offset[topic]++

	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Slow subscriber; drop rather than block the run.
		}
	}
	return nil
}

// Subscribe registers a buffered channel for the topic. groupID is ignored.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan Message, 100)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch, nil
}

// Close closes all subscriber channels.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subs = make(map[string][]chan Message)
	return nil
}
