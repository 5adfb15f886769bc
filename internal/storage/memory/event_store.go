package memory

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

type record struct {
	event   domain.Event
	version uint64
	deleted bool
}

// EventStore keeps events in process. Each event sits behind its own atomic
// pointer, so writers to different events never contend and writers to the
// same event race through CompareAndSwap.
type EventStore struct {
	events sync.Map // id -> *atomic.Pointer[record]
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) Get(_ context.Context, id string) (domain.Event, domain.Version, error) {
	rec := s.load(id)
	if rec == nil {
		return domain.Event{}, "", domain.ErrEventNotFound
	}
	return rec.event, versionOf(rec), nil
}

func (s *EventStore) Insert(_ context.Context, event domain.Event) (domain.Event, domain.Version, error) {
	event.ID = uuid.NewString()
	ptr := &atomic.Pointer[record]{}
	rec := &record{event: event, version: 1}
	ptr.Store(rec)
	s.events.Store(event.ID, ptr)
	return event, versionOf(rec), nil
}

func (s *EventStore) ConditionalUpdate(_ context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error) {
	ptr := s.pointer(id)
	if ptr == nil {
		return domain.Event{}, "", domain.ErrEventNotFound
	}
	current := ptr.Load()
	if current == nil || current.deleted {
		return domain.Event{}, "", domain.ErrEventNotFound
	}
	if versionOf(current) != expected {
		return domain.Event{}, "", domain.ErrVersionMismatch
	}

	next := current.event
	if err := mutate(&next); err != nil {
		return domain.Event{}, "", err
	}
	next.ID = id

	updated := &record{event: next, version: current.version + 1}
	if !ptr.CompareAndSwap(current, updated) {
		if latest := ptr.Load(); latest == nil || latest.deleted {
			return domain.Event{}, "", domain.ErrEventNotFound
		}
		return domain.Event{}, "", domain.ErrVersionMismatch
	}
	return next, versionOf(updated), nil
}

func (s *EventStore) Delete(_ context.Context, id string) (bool, error) {
	ptr := s.pointer(id)
	if ptr == nil {
		return false, nil
	}
	for {
		current := ptr.Load()
		if current == nil || current.deleted {
			return false, nil
		}
		tombstone := &record{version: current.version + 1, deleted: true}
		if ptr.CompareAndSwap(current, tombstone) {
			s.events.CompareAndDelete(id, ptr)
			return true, nil
		}
	}
}

func (s *EventStore) List(_ context.Context) ([]domain.Event, error) {
	var out []domain.Event
	s.events.Range(func(_, value any) bool {
		if rec := value.(*atomic.Pointer[record]).Load(); rec != nil && !rec.deleted {
			out = append(out, rec.event)
		}
		return true
	})
	return out, nil
}

func (s *EventStore) pointer(id string) *atomic.Pointer[record] {
	v, ok := s.events.Load(id)
	if !ok {
		return nil
	}
	return v.(*atomic.Pointer[record])
}

func (s *EventStore) load(id string) *record {
	ptr := s.pointer(id)
	if ptr == nil {
		return nil
	}
	rec := ptr.Load()
	if rec == nil || rec.deleted {
		return nil
	}
	return rec
}

func versionOf(rec *record) domain.Version {
	return domain.Version(strconv.FormatUint(rec.version, 10))
}
