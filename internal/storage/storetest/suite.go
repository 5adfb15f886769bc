// Package storetest holds the behaviour every app.EventStore backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/app"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/clock"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

// Factory returns an empty store. It may skip t when the backend is unavailable.
type Factory func(t *testing.T) app.EventStore

// Run exercises store semantics and the inventory protocol against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("insert and get", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("conditional update", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("stale version", func(t *testing.T) { testStaleVersion(t, newStore(t)) })
	t.Run("mutator error aborts", func(t *testing.T) { testMutatorError(t, newStore(t)) })
	t.Run("unknown id", func(t *testing.T) { testUnknownID(t, newStore(t)) })
	t.Run("delete and list", func(t *testing.T) { testDeleteAndList(t, newStore(t)) })
	t.Run("two buyers race for five tickets", func(t *testing.T) { testTwoBuyers(t, newStore(t)) })
	t.Run("no oversell", func(t *testing.T) { testNoOversell(t, newStore(t)) })
}

// SampleEvent returns a fully populated event with second-precision times.
func SampleEvent(tickets int) domain.Event {
	category := "music"
	image := "https://example.com/poster.png"
	at := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	return domain.Event{
		Title:            "Concert",
		Description:      "An evening of live music",
		Location:         "Arena",
		Category:         &category,
		ImageURL:         &image,
		Date:             time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
		Price:            49.5,
		AvailableTickets: tickets,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func testInsertAndGet(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	in := SampleEvent(10)
	in.ID = "ignored"

	created, version, err := store.Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == "" || created.ID == "ignored" {
		t.Fatalf("expected store to assign id, got %q", created.ID)
	}
	if version == "" {
		t.Fatalf("expected version token")
	}

	got, gotVersion, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotVersion != version {
		t.Fatalf("expected version %q, got %q", version, gotVersion)
	}
	assertSameEvent(t, created, got)

	bare := SampleEvent(0)
	bare.Category = nil
	bare.ImageURL = nil
	created, _, err = store.Insert(ctx, bare)
	if err != nil {
		t.Fatalf("insert bare: %v", err)
	}
	got, _, err = store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get bare: %v", err)
	}
	if got.Category != nil || got.ImageURL != nil {
		t.Fatalf("expected optional fields absent, got %v / %v", got.Category, got.ImageURL)
	}
}

func testConditionalUpdate(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	created, version, err := store.Insert(ctx, SampleEvent(10))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	later := created.UpdatedAt.Add(time.Hour)
	updated, next, err := store.ConditionalUpdate(ctx, created.ID, version, func(e *domain.Event) error {
		e.AvailableTickets -= 4
		e.UpdatedAt = later
		e.ID = "hijacked"
		return nil
	})
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if next == version {
		t.Fatalf("expected version to change")
	}
	if updated.ID != created.ID {
		t.Fatalf("expected id to stay %q, got %q", created.ID, updated.ID)
	}

	got, gotVersion, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gotVersion != next {
		t.Fatalf("expected version %q, got %q", next, gotVersion)
	}
	want := created
	want.AvailableTickets = 6
	want.UpdatedAt = later
	assertSameEvent(t, want, got)
}

func testStaleVersion(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	created, stale, err := store.Insert(ctx, SampleEvent(10))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := store.ConditionalUpdate(ctx, created.ID, stale, func(e *domain.Event) error {
		e.AvailableTickets = 9
		return nil
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, _, err = store.ConditionalUpdate(ctx, created.ID, stale, func(e *domain.Event) error {
		e.AvailableTickets = 0
		return nil
	})
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	got, _, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableTickets != 9 {
		t.Fatalf("expected stale write to be rejected, got %d tickets", got.AvailableTickets)
	}
}

func testMutatorError(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	created, version, err := store.Insert(ctx, SampleEvent(3))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, _, err = store.ConditionalUpdate(ctx, created.ID, version, func(e *domain.Event) error {
		e.AvailableTickets = 0
		return domain.ErrInsufficientInventory
	})
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	got, gotVersion, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableTickets != 3 || gotVersion != version {
		t.Fatalf("expected no write, got %d tickets at version %q", got.AvailableTickets, gotVersion)
	}
}

func testUnknownID(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	missing := uuid.NewString()

	if _, _, err := store.Get(ctx, missing); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound from get, got %v", err)
	}
	_, _, err := store.ConditionalUpdate(ctx, missing, "1", func(*domain.Event) error { return nil })
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound from update, got %v", err)
	}
	deleted, err := store.Delete(ctx, missing)
	if err != nil || deleted {
		t.Fatalf("expected delete of unknown id to report false, got %v (%v)", deleted, err)
	}
}

func testDeleteAndList(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	first, _, err := store.Insert(ctx, SampleEvent(1))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, version, err := store.Insert(ctx, SampleEvent(2))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	events, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	deleted, err := store.Delete(ctx, second.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v (%v)", deleted, err)
	}
	if deleted, _ := store.Delete(ctx, second.ID); deleted {
		t.Fatalf("expected repeated delete to report false")
	}
	if _, _, err := store.Get(ctx, second.ID); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected deleted event to be gone, got %v", err)
	}
	if _, _, err := store.ConditionalUpdate(ctx, second.ID, version, func(*domain.Event) error { return nil }); !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected update of deleted event to report not found, got %v", err)
	}

	events, err = store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != first.ID {
		t.Fatalf("expected only %s, got %+v", first.ID, events)
	}
}

func testTwoBuyers(t *testing.T, store app.EventStore) {
	ctx := context.Background()
	created, _, err := store.Insert(ctx, SampleEvent(5))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	mgr := app.NewInventoryManager(store, clock.NewSystem(), app.WithBackoff(time.Millisecond, 10*time.Millisecond))

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := mgr.Reserve(ctx, created.ID, 3)
			results <- err
		}()
	}
	close(start)

	var ok, insufficient int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientInventory):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one insufficient, got %d and %d", ok, insufficient)
	}
	got, _, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableTickets != 2 {
		t.Fatalf("expected 2 remaining, got %d", got.AvailableTickets)
	}
}

func testNoOversell(t *testing.T, store app.EventStore) {
	const (
		initial = 25
		buyers  = 20
	)
	ctx := context.Background()
	created, _, err := store.Insert(ctx, SampleEvent(initial))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	mgr := app.NewInventoryManager(store, clock.NewSystem(),
		app.WithMaxAttempts(30),
		app.WithBackoff(time.Millisecond, 20*time.Millisecond),
	)

	var (
		mu       sync.Mutex
		reserved int
		wg       sync.WaitGroup
	)
	for i := 0; i < buyers; i++ {
		n := i%3 + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Reserve(ctx, created.ID, n)
			switch {
			case err == nil:
				mu.Lock()
				reserved += n
				mu.Unlock()
			case errors.Is(err, domain.ErrInsufficientInventory), errors.Is(err, domain.ErrContention):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AvailableTickets < 0 || reserved > initial {
		t.Fatalf("oversold: %d remaining after reserving %d of %d", got.AvailableTickets, reserved, initial)
	}
	if got.AvailableTickets != initial-reserved {
		t.Fatalf("expected %d remaining, got %d", initial-reserved, got.AvailableTickets)
	}
}

func assertSameEvent(t *testing.T, want, got domain.Event) {
	t.Helper()
	if got.ID != want.ID || got.Title != want.Title || got.Description != want.Description ||
		got.Location != want.Location || got.Price != want.Price || got.AvailableTickets != want.AvailableTickets {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if !got.Date.Equal(want.Date) || !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("expected times %v/%v/%v, got %v/%v/%v",
			want.Date, want.CreatedAt, want.UpdatedAt, got.Date, got.CreatedAt, got.UpdatedAt)
	}
	if !sameOptional(want.Category, got.Category) || !sameOptional(want.ImageURL, got.ImageURL) {
		t.Fatalf("expected optional fields %v/%v, got %v/%v", want.Category, want.ImageURL, got.Category, got.ImageURL)
	}
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
