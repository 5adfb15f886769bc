package app

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/clock"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const (
	msgInvalidDate    = "Invalid date format. Use yyyy-MM-dd'T'HH:mm:ss"
	msgInvalidPrice   = "Invalid price format"
	msgInvalidTickets = "Invalid availableTickets format"
	msgPricePositive  = "Price must be positive"
	msgTicketsNonNeg  = "Available tickets cannot be negative"
)

// EventCatalog orchestrates CRUD on event metadata. Ticket counts are only
// changed by InventoryManager after creation.
type EventCatalog struct {
	store EventStore
	clock clock.Clock
	retry retryPolicy
}

func NewEventCatalog(store EventStore, clk clock.Clock, opts ...CatalogOption) *EventCatalog {
	c := &EventCatalog{
		store: store,
		clock: clk,
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CatalogOption func(*EventCatalog)

// WithUpdateAttempts bounds the retries of a metadata update racing other writers.
func WithUpdateAttempts(n int) CatalogOption {
	return func(c *EventCatalog) {
		if n > 0 {
			c.retry.maxAttempts = n
		}
	}
}

// Create validates in, stamps timestamps and inserts the event.
func (c *EventCatalog) Create(ctx context.Context, in EventInput) (domain.Event, error) {
	fields, err := in.normalize(true)
	if err != nil {
		return domain.Event{}, err
	}

	now := c.clock.Now()
	event := domain.Event{
		Title:            fields.title,
		Description:      fields.description,
		Location:         fields.location,
		Category:         fields.category,
		ImageURL:         fields.imageURL,
		Date:             fields.date,
		Price:            fields.price,
		AvailableTickets: fields.tickets,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, _, err := c.store.Insert(ctx, event)
	if err != nil {
		return domain.Event{}, err
	}
	return created, nil
}

// Update replaces the metadata of an existing event. AvailableTickets in the
// input is ignored.
func (c *EventCatalog) Update(ctx context.Context, id string, in EventInput) (domain.Event, error) {
	fields, err := in.normalize(false)
	if err != nil {
		return domain.Event{}, err
	}

	var updated domain.Event
	_, err = c.retry.run(ctx, func(ctx context.Context) error {
		_, version, err := c.store.Get(ctx, id)
		if err != nil {
			return err
		}
		updated, _, err = c.store.ConditionalUpdate(ctx, id, version, func(e *domain.Event) error {
			e.Title = fields.title
			e.Description = fields.description
			e.Location = fields.location
			e.Category = fields.category
			e.ImageURL = fields.imageURL
			e.Date = fields.date
			e.Price = fields.price
			e.UpdatedAt = c.clock.Now()
			return nil
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidID) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, err
	}
	return updated, nil
}

func (c *EventCatalog) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := c.store.Delete(ctx, id)
	if errors.Is(err, domain.ErrInvalidID) {
		return false, nil
	}
	return deleted, err
}

func (c *EventCatalog) GetByID(ctx context.Context, id string) (domain.Event, error) {
	event, _, err := c.store.Get(ctx, id)
	if errors.Is(err, domain.ErrInvalidID) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return event, err
}

func (c *EventCatalog) GetAll(ctx context.Context) ([]domain.Event, error) {
	return c.store.List(ctx)
}

// ParseDate parses value with layout. It holds no state and is safe for
// concurrent use.
func ParseDate(value, layout string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &domain.FormatError{Field: "date", Message: msgInvalidDate}
	}
	return t, nil
}

// FormatDate is the inverse of ParseDate.
func FormatDate(t time.Time, layout string) string {
	return t.Format(layout)
}

type normalizedInput struct {
	title       string
	description string
	location    string
	category    *string
	imageURL    *string
	date        time.Time
	price       float64
	tickets     int
}

// normalize validates required fields and coerces typed values in the order
// date, price, tickets. The first format error wins.
func (in EventInput) normalize(withTickets bool) (normalizedInput, error) {
	if err := in.validate(withTickets); err != nil {
		return normalizedInput{}, err
	}

	date, err := ParseDate(in.Date, domain.DateLayout)
	if err != nil {
		return normalizedInput{}, err
	}

	price, err := in.Price.Float()
	if err != nil {
		return normalizedInput{}, &domain.FormatError{Field: "price", Message: msgInvalidPrice}
	}
	if price <= 0 {
		return normalizedInput{}, &domain.ValidationError{Fields: map[string]string{"price": msgPricePositive}}
	}

	var tickets int
	if withTickets {
		tickets, err = in.AvailableTickets.Int()
		if err != nil {
			return normalizedInput{}, &domain.FormatError{Field: "availableTickets", Message: msgInvalidTickets}
		}
		if tickets < 0 {
			return normalizedInput{}, &domain.ValidationError{Fields: map[string]string{"availableTickets": msgTicketsNonNeg}}
		}
	}

	return normalizedInput{
		title:       strings.TrimSpace(in.Title),
		description: strings.TrimSpace(in.Description),
		location:    strings.TrimSpace(in.Location),
		category:    optional(in.Category),
		imageURL:    optional(in.ImageURL),
		date:        date,
		price:       price,
		tickets:     tickets,
	}, nil
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Float parses n as a finite decimal.
func (n Number) Float() (float64, error) {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	return f, nil
}

// Int parses n as a 32-bit integer. Integral decimals such as "10.0" are
// accepted within the same range.
func (n Number) Int() (int, error) {
	i, err := strconv.ParseInt(string(n), 10, 32)
	if err == nil {
		return int(i), nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	f, err := n.Float()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, strconv.ErrRange
	}
	return int(f), nil
}
