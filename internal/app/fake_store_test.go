package app

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

type fakeRecord struct {
	event   domain.Event
	version int
}

// fakeEventStore is a conditional-update store guarded by a mutex. Hooks let
// tests interleave writers between a read and the following update.
type fakeEventStore struct {
	mu      sync.Mutex
	records map[string]*fakeRecord
	nextID  int

	getErr       error
	alwaysStale  bool
	beforeUpdate func()
	getCalls     int
	updateCalls  int
	commits      int
}

func newFakeEventStore(events ...domain.Event) *fakeEventStore {
	s := &fakeEventStore{records: make(map[string]*fakeRecord)}
	for _, e := range events {
		s.records[e.ID] = &fakeRecord{event: e, version: 1}
	}
	return s
}

func (s *fakeEventStore) Get(_ context.Context, id string) (domain.Event, domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return domain.Event{}, "", s.getErr
	}
	rec, ok := s.records[id]
	if !ok {
		return domain.Event{}, "", domain.ErrEventNotFound
	}
	return rec.event, domain.Version(strconv.Itoa(rec.version)), nil
}

func (s *fakeEventStore) Insert(_ context.Context, event domain.Event) (domain.Event, domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	event.ID = fmt.Sprintf("event-%d", s.nextID)
	s.records[event.ID] = &fakeRecord{event: event, version: 1}
	return event, "1", nil
}

func (s *fakeEventStore) ConditionalUpdate(_ context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error) {
	if hook := s.hook(); hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	rec, ok := s.records[id]
	if !ok {
		return domain.Event{}, "", domain.ErrEventNotFound
	}
	if s.alwaysStale || domain.Version(strconv.Itoa(rec.version)) != expected {
		return domain.Event{}, "", domain.ErrVersionMismatch
	}
	next := rec.event
	if err := mutate(&next); err != nil {
		return domain.Event{}, "", err
	}
	next.ID = id
	rec.event = next
	rec.version++
	s.commits++
	return next, domain.Version(strconv.Itoa(rec.version)), nil
}

func (s *fakeEventStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *fakeEventStore) List(_ context.Context) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.event)
	}
	return out, nil
}

func (s *fakeEventStore) hook() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beforeUpdate
}

// bump simulates a concurrent writer committing without changing the event.
func (s *fakeEventStore) bump(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.version++
	}
}

func (s *fakeEventStore) snapshot(id string) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.Event{}, false
	}
	return rec.event, true
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []domain.InventoryChange
	err     error
}

func (p *recordingPublisher) PublishInventoryChange(_ context.Context, change domain.InventoryChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return p.err
}
