package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

type stubWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestInventoryPublisher_WritesKeyedMessage(t *testing.T) {
	t.Parallel()

	writer := &stubWriter{}
	pub := NewInventoryPublisher(writer)
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := pub.PublishInventoryChange(context.Background(), domain.InventoryChange{
		EventID:   "event-1",
		Delta:     -3,
		Remaining: 2,
		At:        at,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(writer.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.msgs))
	}

	msg := writer.msgs[0]
	if string(msg.Key) != "event-1" {
		t.Fatalf("expected key event-1, got %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "inventory.reserved" {
		t.Fatalf("unexpected headers: %+v", msg.Headers)
	}

	var got domain.InventoryChange
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Delta != -3 || got.Remaining != 2 || !got.At.Equal(at) {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestInventoryPublisher_ReleaseAndErrors(t *testing.T) {
	t.Parallel()

	writer := &stubWriter{err: errors.New("no brokers")}
	pub := NewInventoryPublisher(writer)

	err := pub.PublishInventoryChange(context.Background(), domain.InventoryChange{EventID: "e", Delta: 2})
	if err == nil {
		t.Fatalf("expected write error")
	}
	if string(writer.msgs[0].Headers[0].Value) != "inventory.released" {
		t.Fatalf("expected released type, got %q", writer.msgs[0].Headers[0].Value)
	}

	if err := pub.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	w := NewWriter([]string{"localhost:9092"}, "inventory")
	if w.Topic != "inventory" || w.Addr.String() != "localhost:9092" {
		t.Fatalf("unexpected writer config: topic=%s addr=%s", w.Topic, w.Addr.String())
	}
	if w.MaxAttempts != 3 || w.WriteTimeout != 2*time.Second {
		t.Fatalf("expected bounded retries, got attempts=%d timeout=%s", w.MaxAttempts, w.WriteTimeout)
	}
}
