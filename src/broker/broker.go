// Package broker abstracts the outbound message channel used to publish
// diagnostics and findings to external consumers.
package broker

import "context"

// Topics published by an analysis run.
const (
	TopicDiagnostics = "deforest.diagnostics"
	TopicFindings    = "deforest.findings"
)

// Broker publishes and consumes keyed messages.
type Broker interface {
	// Publish sends a message to a topic. The key selects the partition on
	// Kafka-compatible brokers and is ignored by the in-memory one.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel of messages for a topic. groupID
	// coordinates consumer groups on Kafka-compatible brokers.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts the broker down gracefully.
	Close() error
}

// Message is one consumed record.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}
