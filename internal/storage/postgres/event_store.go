package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const eventColumns = `id, title, description, location, category, image_url, date, price, available_tickets, created_at, updated_at, version`

// EventStore persists events in Postgres. The version column backs
// ConditionalUpdate.
type EventStore struct {
	pool *pgxpool.Pool
}

func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Get(ctx context.Context, id string) (domain.Event, domain.Version, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, version, err := scanEvent(conn(ctx, s.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Event{}, "", domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, "", domain.ErrEventNotFound
		}
		return domain.Event{}, "", fmt.Errorf("get event: %w", err)
	}
	return event, version, nil
}

func (s *EventStore) Insert(ctx context.Context, event domain.Event) (domain.Event, domain.Version, error) {
	const stmt = `
INSERT INTO events (title, description, location, category, image_url, date, price, available_tickets, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + eventColumns
	created, version, err := scanEvent(conn(ctx, s.pool).QueryRow(ctx, stmt,
		event.Title,
		event.Description,
		event.Location,
		event.Category,
		event.ImageURL,
		event.Date,
		event.Price,
		event.AvailableTickets,
		event.CreatedAt,
		event.UpdatedAt,
	))
	if err != nil {
		if isOutOfRange(err) {
			return domain.Event{}, "", domain.ErrTicketsOutOfRange
		}
		return domain.Event{}, "", fmt.Errorf("insert event: %w", err)
	}
	return created, version, nil
}

func (s *EventStore) ConditionalUpdate(ctx context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error) {
	var (
		updated domain.Event
		version domain.Version
	)
	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		current, currentVersion, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if currentVersion != expected {
			return domain.ErrVersionMismatch
		}
		expectedNum, err := strconv.ParseInt(string(expected), 10, 64)
		if err != nil {
			return domain.ErrVersionMismatch
		}

		next := current
		if err := mutate(&next); err != nil {
			return err
		}

		const stmt = `
UPDATE events
SET title = $3, description = $4, location = $5, category = $6, image_url = $7,
	date = $8, price = $9, available_tickets = $10, updated_at = $11, version = version + 1
WHERE id = $1 AND version = $2
RETURNING ` + eventColumns
		updated, version, err = scanEvent(conn(ctx, s.pool).QueryRow(ctx, stmt,
			id,
			expectedNum,
			next.Title,
			next.Description,
			next.Location,
			next.Category,
			next.ImageURL,
			next.Date,
			next.Price,
			next.AvailableTickets,
			next.UpdatedAt,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return s.missOrMismatch(ctx, id)
			}
			if isCheckViolation(err) {
				return domain.ErrInsufficientInventory
			}
			if isOutOfRange(err) {
				return domain.ErrTicketsOutOfRange
			}
			return fmt.Errorf("update event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Event{}, "", err
	}
	return updated, version, nil
}

// missOrMismatch explains why a version-guarded update touched no row.
func (s *EventStore) missOrMismatch(ctx context.Context, id string) error {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`
	var exists bool
	if err := conn(ctx, s.pool).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check event exists: %w", err)
	}
	if !exists {
		return domain.ErrEventNotFound
	}
	return domain.ErrVersionMismatch
}

func (s *EventStore) Delete(ctx context.Context, id string) (bool, error) {
	const stmt = `DELETE FROM events WHERE id = $1`
	tag, err := conn(ctx, s.pool).Exec(ctx, stmt, id)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("delete event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *EventStore) List(ctx context.Context) ([]domain.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events ORDER BY created_at ASC, id ASC`
	rows, err := conn(ctx, s.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, _, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

func scanEvent(row pgx.Row) (domain.Event, domain.Version, error) {
	var (
		e       domain.Event
		version int64
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.Category,
		&e.ImageURL,
		&e.Date,
		&e.Price,
		&e.AvailableTickets,
		&e.CreatedAt,
		&e.UpdatedAt,
		&version,
	)
	if err != nil {
		return domain.Event{}, "", err
	}
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, domain.Version(strconv.FormatInt(version, 10)), nil
}
