package app

import (
	"context"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

// EventStore persists events and exposes the conditional update the inventory
// protocol depends on.
//
// Get and ConditionalUpdate return domain.ErrEventNotFound for unknown ids.
// ConditionalUpdate applies mutate to a copy of the stored event and commits it
// only while the stored version still equals expected; otherwise it returns
// domain.ErrVersionMismatch and nothing is written. An error from mutate aborts
// the update and is returned unchanged.
type EventStore interface {
	Get(ctx context.Context, id string) (domain.Event, domain.Version, error)
	Insert(ctx context.Context, event domain.Event) (domain.Event, domain.Version, error)
	ConditionalUpdate(ctx context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context) ([]domain.Event, error)
}
