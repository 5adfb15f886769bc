package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const (
	defaultPrefix = "eventsvc"
	deleteRetries = 16
)

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type storedEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Location         string    `json:"location"`
	Category         *string   `json:"category,omitempty"`
	ImageURL         *string   `json:"imageUrl,omitempty"`
	Date             time.Time `json:"date"`
	Price            float64   `json:"price"`
	AvailableTickets int       `json:"availableTickets"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Version          int64     `json:"version"`
}

func toStored(e domain.Event, version int64) storedEvent {
	return storedEvent{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Category:         e.Category,
		ImageURL:         e.ImageURL,
		Date:             e.Date,
		Price:            e.Price,
		AvailableTickets: e.AvailableTickets,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Version:          version,
	}
}

func (s storedEvent) event() domain.Event {
	return domain.Event{
		ID:               s.ID,
		Title:            s.Title,
		Description:      s.Description,
		Location:         s.Location,
		Category:         s.Category,
		ImageURL:         s.ImageURL,
		Date:             s.Date.UTC(),
		Price:            s.Price,
		AvailableTickets: s.AvailableTickets,
		CreatedAt:        s.CreatedAt.UTC(),
		UpdatedAt:        s.UpdatedAt.UTC(),
	}
}

func (s storedEvent) version() domain.Version {
	return domain.Version(strconv.FormatInt(s.Version, 10))
}

// EventStore keeps each event as a JSON document carrying its version.
// ConditionalUpdate runs under WATCH so a concurrent write aborts the
// transaction.
type EventStore struct {
	client redis.UniversalClient
	prefix string
}

func NewEventStore(client redis.UniversalClient, prefix string) *EventStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &EventStore{client: client, prefix: prefix}
}

func (s *EventStore) key(id string) string {
	return s.prefix + ":event:" + id
}

func (s *EventStore) indexKey() string {
	return s.prefix + ":events"
}

func (s *EventStore) Get(ctx context.Context, id string) (domain.Event, domain.Version, error) {
	stored, err := s.load(ctx, s.client, id)
	if err != nil {
		return domain.Event{}, "", err
	}
	return stored.event(), stored.version(), nil
}

func (s *EventStore) Insert(ctx context.Context, event domain.Event) (domain.Event, domain.Version, error) {
	event.ID = uuid.NewString()
	stored := toStored(event, 1)
	payload, err := json.Marshal(stored)
	if err != nil {
		return domain.Event{}, "", fmt.Errorf("encode event: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(event.ID), payload, 0)
		pipe.SAdd(ctx, s.indexKey(), event.ID)
		return nil
	})
	if err != nil {
		return domain.Event{}, "", fmt.Errorf("insert event: %w", err)
	}
	return stored.event(), stored.version(), nil
}

func (s *EventStore) ConditionalUpdate(ctx context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error) {
	var result storedEvent
	key := s.key(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.version() != expected {
			return domain.ErrVersionMismatch
		}

		next := current.event()
		if err := mutate(&next); err != nil {
			return err
		}
		next.ID = id

		result = toStored(next, current.Version+1)
		payload, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return domain.Event{}, "", domain.ErrVersionMismatch
		}
		return domain.Event{}, "", err
	}
	return result.event(), result.version(), nil
}

func (s *EventStore) Delete(ctx context.Context, id string) (bool, error) {
	key := s.key(id)
	for i := 0; i < deleteRetries; i++ {
		var existed bool
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			existed = n > 0
			if !existed {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, s.indexKey(), id)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("delete event: %w", err)
		}
		return existed, nil
	}
	return false, fmt.Errorf("delete event %s: %w", id, domain.ErrContention)
}

func (s *EventStore) List(ctx context.Context) ([]domain.Event, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list event ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]domain.Event, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var stored storedEvent
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, stored.event())
	}
	return events, nil
}

func (s *EventStore) load(ctx context.Context, c getter, id string) (storedEvent, error) {
	raw, err := c.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storedEvent{}, domain.ErrEventNotFound
		}
		return storedEvent{}, fmt.Errorf("get event: %w", err)
	}
	var stored storedEvent
	if err := json.Unmarshal(raw, &stored); err != nil {
		return storedEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return stored, nil
}
