package domain

import "time"

// Reservation is the outcome of a committed inventory change.
type Reservation struct {
	EventID   string
	Tickets   int
	Remaining int
	Attempts  int
}

// InventoryChange is emitted after tickets are reserved (negative Delta) or released.
type InventoryChange struct {
	EventID   string    `json:"eventId"`
	Delta     int       `json:"delta"`
	Remaining int       `json:"remaining"`
	At        time.Time `json:"at"`
}
