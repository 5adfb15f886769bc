package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/clock"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const tracerName = "github.com/iamabdullah-dev/BookingEvents-System/internal/app"

// InventoryPublisher receives committed inventory changes.
type InventoryPublisher interface {
	PublishInventoryChange(ctx context.Context, change domain.InventoryChange) error
}

// InventoryManager answers availability questions and reserves or releases
// tickets through optimistic conditional updates on the event store.
type InventoryManager struct {
	store     EventStore
	clock     clock.Clock
	retry     retryPolicy
	publisher InventoryPublisher
	pubWait   time.Duration
	logger    logrus.FieldLogger
	tracer    trace.Tracer
}

const defaultPublishTimeout = 2 * time.Second

func NewInventoryManager(store EventStore, clk clock.Clock, opts ...InventoryOption) *InventoryManager {
	m := &InventoryManager{
		store:   store,
		clock:   clk,
		retry:   defaultRetryPolicy(),
		pubWait: defaultPublishTimeout,
		logger:  logrus.StandardLogger(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type InventoryOption func(*InventoryManager)

// WithMaxAttempts bounds how many conditional updates a single call may try.
func WithMaxAttempts(n int) InventoryOption {
	return func(m *InventoryManager) {
		if n > 0 {
			m.retry.maxAttempts = n
		}
	}
}

// WithBackoff sets the randomized wait between attempts. Zero disables waiting.
func WithBackoff(initial, max time.Duration) InventoryOption {
	return func(m *InventoryManager) {
		if initial < 0 || max < initial {
			return
		}
		m.retry.initial = initial
		m.retry.max = max
	}
}

func WithPublisher(p InventoryPublisher) InventoryOption {
	return func(m *InventoryManager) {
		m.publisher = p
	}
}

// WithPublishTimeout bounds how long a committed change may wait on the
// publisher before the call returns.
func WithPublishTimeout(d time.Duration) InventoryOption {
	return func(m *InventoryManager) {
		if d > 0 {
			m.pubWait = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) InventoryOption {
	return func(m *InventoryManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// CheckAvailability reports whether tickets could be reserved right now.
// The answer is advisory; only Reserve is authoritative.
func (m *InventoryManager) CheckAvailability(ctx context.Context, eventID string, tickets int) (bool, error) {
	if tickets <= 0 {
		return false, nil
	}
	event, _, err := m.store.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) || errors.Is(err, domain.ErrInvalidID) {
			return false, nil
		}
		return false, err
	}
	return tickets <= event.AvailableTickets, nil
}

// Reserve takes tickets from the event's inventory. It returns
// domain.ErrInsufficientInventory when fewer remain, and domain.ErrContention
// when every attempt lost the race to another writer.
func (m *InventoryManager) Reserve(ctx context.Context, eventID string, tickets int) (domain.Reservation, error) {
	return m.apply(ctx, "inventory.reserve", eventID, tickets, func(e *domain.Event) error {
		if e.AvailableTickets < tickets {
			return domain.ErrInsufficientInventory
		}
		e.AvailableTickets -= tickets
		return nil
	}, -tickets)
}

// Release returns previously reserved tickets to the event's inventory. It
// returns domain.ErrTicketsOutOfRange when the total would exceed
// domain.MaxTickets.
func (m *InventoryManager) Release(ctx context.Context, eventID string, tickets int) (domain.Reservation, error) {
	return m.apply(ctx, "inventory.release", eventID, tickets, func(e *domain.Event) error {
		if tickets > domain.MaxTickets-e.AvailableTickets {
			return domain.ErrTicketsOutOfRange
		}
		e.AvailableTickets += tickets
		return nil
	}, tickets)
}

func (m *InventoryManager) apply(ctx context.Context, spanName, eventID string, tickets int, change func(*domain.Event) error, delta int) (domain.Reservation, error) {
	ctx, span := m.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.Int("inventory.tickets", tickets),
	))
	defer span.End()

	if tickets <= 0 {
		span.SetAttributes(attribute.String("inventory.outcome", "invalid_request"))
		return domain.Reservation{}, domain.ErrInvalidTicketCount
	}

	var updated domain.Event
	attempts, err := m.retry.run(ctx, func(ctx context.Context) error {
		current, version, err := m.store.Get(ctx, eventID)
		if err != nil {
			return err
		}
		// Reject on the snapshot so a doomed request never writes.
		if err := change(&current); err != nil {
			return err
		}
		updated, _, err = m.store.ConditionalUpdate(ctx, eventID, version, func(e *domain.Event) error {
			if err := change(e); err != nil {
				return err
			}
			e.UpdatedAt = m.clock.Now()
			return nil
		})
		return err
	})
	span.SetAttributes(
		attribute.Int("inventory.attempts", attempts),
		attribute.String("inventory.outcome", outcome(err)),
	)
	if err != nil {
		if outcome(err) == "error" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.Reservation{EventID: eventID, Tickets: tickets, Attempts: attempts}, err
	}
	span.SetAttributes(attribute.Int("inventory.remaining", updated.AvailableTickets))
	span.SetStatus(codes.Ok, "inventory updated")

	m.publish(ctx, domain.InventoryChange{
		EventID:   eventID,
		Delta:     delta,
		Remaining: updated.AvailableTickets,
		At:        updated.UpdatedAt,
	})

	return domain.Reservation{
		EventID:   eventID,
		Tickets:   tickets,
		Remaining: updated.AvailableTickets,
		Attempts:  attempts,
	}, nil
}

// publish is best effort: the change is already committed, and the caller
// waits at most pubWait for the publisher.
func (m *InventoryManager) publish(ctx context.Context, change domain.InventoryChange) {
	if m.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.pubWait)
	defer cancel()
	if err := m.publisher.PublishInventoryChange(ctx, change); err != nil {
		m.logger.WithFields(logrus.Fields{
			"event_id":  change.EventID,
			"delta":     change.Delta,
			"remaining": change.Remaining,
		}).WithError(err).Warn("publish inventory change failed")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, domain.ErrTicketsOutOfRange):
		return "invalid_request"
	case errors.Is(err, domain.ErrEventNotFound), errors.Is(err, domain.ErrInvalidID):
		return "not_found"
	case errors.Is(err, domain.ErrContention):
		return "contention"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
