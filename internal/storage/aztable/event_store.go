package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const partitionKey = "event"

type eventEntity struct {
	aztables.Entity
	Title            string  `json:"Title"`
	Description      string  `json:"Description"`
	Location         string  `json:"Location"`
	Category         *string `json:"Category,omitempty"`
	ImageURL         *string `json:"ImageUrl,omitempty"`
	Date             string  `json:"Date"`
	Price            float64 `json:"Price"`
	PriceType        string  `json:"Price@odata.type"`
	AvailableTickets int     `json:"AvailableTickets"`
	CreatedAt        string  `json:"CreatedAt"`
	UpdatedAt        string  `json:"UpdatedAt"`
}

func toEntity(e domain.Event) eventEntity {
	return eventEntity{
		Entity: aztables.Entity{
			PartitionKey: partitionKey,
			RowKey:       e.ID,
		},
		Title:            e.Title,
		Description:      e.Description,
		Location:         e.Location,
		Category:         e.Category,
		ImageURL:         e.ImageURL,
		Date:             e.Date.UTC().Format(time.RFC3339Nano),
		Price:            e.Price,
		PriceType:        "Edm.Double",
		AvailableTickets: e.AvailableTickets,
		CreatedAt:        e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:        e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromEntity(raw []byte) (domain.Event, error) {
	var ent eventEntity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return domain.Event{}, fmt.Errorf("decode entity: %w", err)
	}
	date, err := time.Parse(time.RFC3339Nano, ent.Date)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode date: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode createdAt: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, ent.UpdatedAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode updatedAt: %w", err)
	}
	return domain.Event{
		ID:               ent.RowKey,
		Title:            ent.Title,
		Description:      ent.Description,
		Location:         ent.Location,
		Category:         ent.Category,
		ImageURL:         ent.ImageURL,
		Date:             date.UTC(),
		Price:            ent.Price,
		AvailableTickets: ent.AvailableTickets,
		CreatedAt:        created.UTC(),
		UpdatedAt:        updated.UTC(),
	}, nil
}

// EventStore keeps events in an Azure table. The entity ETag is the version
// token, and ConditionalUpdate is an If-Match replace.
type EventStore struct {
	table *aztables.Client
}

func NewEventStore(table *aztables.Client) *EventStore {
	return &EventStore{table: table}
}

// Open connects with a storage connection string and creates table if needed.
func Open(ctx context.Context, connStr, table string) (*EventStore, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return nil, fmt.Errorf("table service client: %w", err)
	}
	if _, err := svc.CreateTable(ctx, table, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return NewEventStore(svc.NewClient(table)), nil
}

func (s *EventStore) Get(ctx context.Context, id string) (domain.Event, domain.Version, error) {
	resp, err := s.table.GetEntity(ctx, partitionKey, id, nil)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return domain.Event{}, "", domain.ErrEventNotFound
		}
		return domain.Event{}, "", fmt.Errorf("get event: %w", err)
	}
	event, err := fromEntity(resp.Value)
	if err != nil {
		return domain.Event{}, "", err
	}
	return event, domain.Version(resp.ETag), nil
}

func (s *EventStore) Insert(ctx context.Context, event domain.Event) (domain.Event, domain.Version, error) {
	event.ID = uuid.NewString()
	payload, err := json.Marshal(toEntity(event))
	if err != nil {
		return domain.Event{}, "", fmt.Errorf("encode event: %w", err)
	}
	resp, err := s.table.AddEntity(ctx, payload, nil)
	if err != nil {
		return domain.Event{}, "", fmt.Errorf("insert event: %w", err)
	}
	return event, domain.Version(resp.ETag), nil
}

func (s *EventStore) ConditionalUpdate(ctx context.Context, id string, expected domain.Version, mutate func(*domain.Event) error) (domain.Event, domain.Version, error) {
	current, version, err := s.Get(ctx, id)
	if err != nil {
		return domain.Event{}, "", err
	}
	if version != expected {
		return domain.Event{}, "", domain.ErrVersionMismatch
	}

	next := current
	if err := mutate(&next); err != nil {
		return domain.Event{}, "", err
	}
	next.ID = id

	payload, err := json.Marshal(toEntity(next))
	if err != nil {
		return domain.Event{}, "", fmt.Errorf("encode event: %w", err)
	}
	etag := azcore.ETag(expected)
	resp, err := s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &etag,
		UpdateMode: aztables.UpdateModeReplace,
	})
	if err != nil {
		return domain.Event{}, "", mapWriteError(err)
	}
	return next, domain.Version(resp.ETag), nil
}

func (s *EventStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.table.DeleteEntity(ctx, partitionKey, id, nil); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("delete event: %w", err)
	}
	return true, nil
}

func (s *EventStore) List(ctx context.Context) ([]domain.Event, error) {
	filter := "PartitionKey eq '" + partitionKey + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var events []domain.Event
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, raw := range resp.Entities {
			event, err := fromEntity(raw)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func statusOf(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func mapWriteError(err error) error {
	switch statusOf(err) {
	case http.StatusPreconditionFailed:
		return domain.ErrVersionMismatch
	case http.StatusNotFound:
		return domain.ErrEventNotFound
	default:
		return fmt.Errorf("update event: %w", err)
	}
}
