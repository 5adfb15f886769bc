package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrVersionMismatch       = errors.New("version mismatch")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrContention            = errors.New("contention: retry budget exhausted")
	ErrInvalidTicketCount    = errors.New("ticket count must be positive")
	ErrInvalidID             = errors.New("invalid id")
	ErrTicketsOutOfRange     = errors.New("ticket count out of range")
)

// ValidationError reports missing or out-of-range fields, keyed by their wire name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// FormatError reports a value that could not be parsed into its expected type.
type FormatError struct {
	Field   string
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}
