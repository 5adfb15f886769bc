package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// InventoryPublisher emits committed inventory changes keyed by event id, so
// changes to one event stay ordered within a partition.
type InventoryPublisher struct {
	writer MessageWriter
}

func NewInventoryPublisher(writer MessageWriter) *InventoryPublisher {
	return &InventoryPublisher{writer: writer}
}

// NewWriter builds a low-latency writer for topic on brokers. Attempts and
// write timeout are kept short so an unreachable broker fails fast.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           2 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

func (p *InventoryPublisher) PublishInventoryChange(ctx context.Context, change domain.InventoryChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode inventory change: %w", err)
	}
	kind := "reserved"
	if change.Delta > 0 {
		kind = "released"
	}
	msg := kafka.Message{
		Key:   []byte(change.EventID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("inventory." + kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write inventory change: %w", err)
	}
	return nil
}

func (p *InventoryPublisher) Close() error {
	return p.writer.Close()
}
