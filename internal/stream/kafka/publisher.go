// Package kafka provides a Kafka-based implementation of the stream publisher.
package kafka

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil-go/internal/config"
	"vigil-go/internal/domain"
)

// Publisher implements stream.Publisher using Kafka.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a new Kafka publisher.
func NewPublisher(cfg *config.KafkaConfig) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // key-based partitioning
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: writer,
	}
}

// Publish sends the alert to Kafka, keyed by its matching key so all writes
// for one problem land on the same partition in order.
func (p *Publisher) Publish(ctx context.Context, alert *domain.Alert, outcome string) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to serialize alert: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(partitionKey(alert)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(outcome)},
			{Key: "environment", Value: []byte(alert.Environment)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// partitionKey generates a deterministic key from the correlation scope so
// duplicates and correlations of the same problem share a partition.
func partitionKey(alert *domain.Alert) string {
	input := alert.Environment + ":" + alert.Resource + ":" + alert.Customer
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
