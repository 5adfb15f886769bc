package domain

import (
	"math"
	"time"
)

// DateLayout is the wire layout for Event.Date.
const DateLayout = "2006-01-02T15:04:05"

// MaxTickets is the largest inventory an event can hold. It matches the
// INTEGER column of the postgres schema.
const MaxTickets = math.MaxInt32

// Event is a bookable occasion together with its remaining ticket inventory.
type Event struct {
	ID               string
	Title            string
	Description      string
	Location         string
	Category         *string
	ImageURL         *string
	Date             time.Time
	Price            float64
	AvailableTickets int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Version is an opaque token that changes on every committed write of a record.
type Version string
