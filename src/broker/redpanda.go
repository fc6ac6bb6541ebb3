package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

// RedpandaBroker publishes over a Kafka-compatible cluster using franz-go.
type RedpandaBroker struct {
	client    *kgo.Client
	seeds     []string
	mu        sync.RWMutex
	consumers map[string]*kgo.Client
	closed    bool
}

// NewRedpandaBroker connects a producer to the given seed addresses.
func NewRedpandaBroker(seeds []string) (*RedpandaBroker, error) {
	if len(seeds) == 0 {
		return nil, errors.New("at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &RedpandaBroker{
		client:    client,
		seeds:     seeds,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish produces one record synchronously. Diagnostics volume per run is
// small, so the simpler sync path wins over batching.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts a consumer group member reading the topic from the
// beginning and streams records until ctx is cancelled.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	key := topic + ":" + groupID
	if _, exists := b.consumers[key]; exists {
		return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	b.consumers[key] = consumer

	ch := make(chan Message, 100)
	go consumeLoop(ctx, consumer, ch)
	return ch, nil
}

func consumeLoop(ctx context.Context, consumer *kgo.Client, ch chan<- Message) {
	defer close(ch)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			continue
		}

		fetches.EachRecord(func(record *kgo.Record) {
			msg := Message{
				Topic:     record.Topic,
				Key:       string(record.Key),
				Value:     record.Value,
				Offset:    record.Offset,
				Partition: record.Partition,
				Timestamp: record.Timestamp.UnixMilli(),
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
			}
		})
	}
}

// Close shuts down the producer and every consumer.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[string]*kgo.Client)
	b.client.Close()
	return nil
}
