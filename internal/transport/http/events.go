package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/app"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
)

const eventsPrefix = "/api/events/"

// EventCatalog is the minimal interface needed for event CRUD endpoints.
type EventCatalog interface {
	Create(ctx context.Context, in app.EventInput) (domain.Event, error)
	Update(ctx context.Context, id string, in app.EventInput) (domain.Event, error)
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (domain.Event, error)
	GetAll(ctx context.Context) ([]domain.Event, error)
}

// Inventory is the minimal interface needed for availability and booking endpoints.
type Inventory interface {
	CheckAvailability(ctx context.Context, eventID string, tickets int) (bool, error)
	Reserve(ctx context.Context, eventID string, tickets int) (domain.Reservation, error)
	Release(ctx context.Context, eventID string, tickets int) (domain.Reservation, error)
}

// HandleEvents serves /api/events: listing and creation.
func HandleEvents(catalog EventCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			events, err := catalog.GetAll(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]eventResponse, 0, len(events))
			for _, event := range events {
				resp = append(resp, toEventResponse(event))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			in, ok := decodeEventInput(w, r)
			if !ok {
				return
			}
			event, err := catalog.Create(r.Context(), in)
			if err != nil {
				writeCatalogError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toEventResponse(event))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleEvent serves /api/events/{id} and its availability, book and release
// sub-resources.
func HandleEvent(catalog EventCatalog, inventory Inventory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, action, ok := parseEventPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch action {
		case "":
			serveEvent(w, r, catalog, id)
		case "availability":
			serveAvailability(w, r, inventory, id)
		case "book":
			serveInventoryChange(w, r, id, inventory.Reserve)
		case "release":
			serveInventoryChange(w, r, id, inventory.Release)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func serveEvent(w http.ResponseWriter, r *http.Request, catalog EventCatalog, id string) {
	switch r.Method {
	case http.MethodGet:
		event, err := catalog.GetByID(r.Context(), id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(event))
	case http.MethodPut:
		in, ok := decodeEventInput(w, r)
		if !ok {
			return
		}
		event, err := catalog.Update(r.Context(), id, in)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(event))
	case http.MethodDelete:
		deleted, err := catalog.Delete(r.Context(), id)
		if err != nil {
			writeCatalogError(w, err)
			return
		}
		if !deleted {
			writeError(w, http.StatusNotFound, codeEventNotFound, domain.ErrEventNotFound.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	}
}

func serveAvailability(w http.ResponseWriter, r *http.Request, inventory Inventory, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	tickets, err := ticketsParam(r)
	if err != nil {
		writeJSON(w, http.StatusOK, availabilityResponse{Available: false})
		return
	}
	available, err := inventory.CheckAvailability(r.Context(), id, tickets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{Available: available})
}

func serveInventoryChange(w http.ResponseWriter, r *http.Request, id string, change func(context.Context, string, int) (domain.Reservation, error)) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}
	tickets, err := ticketsParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bookingResponse{Reason: codeInvalidRequest})
		return
	}

	res, err := change(r.Context(), id, tickets)
	switch {
	case err == nil:
		remaining := res.Remaining
		writeJSON(w, http.StatusOK, bookingResponse{Success: true, Remaining: &remaining})
	case errors.Is(err, domain.ErrInvalidTicketCount), errors.Is(err, domain.ErrTicketsOutOfRange):
		writeJSON(w, http.StatusBadRequest, bookingResponse{Reason: codeInvalidRequest})
	case errors.Is(err, domain.ErrEventNotFound), errors.Is(err, domain.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, bookingResponse{Reason: codeNotFound})
	case errors.Is(err, domain.ErrInsufficientInventory):
		writeJSON(w, http.StatusBadRequest, bookingResponse{Reason: codeInsufficientInventory})
	case errors.Is(err, domain.ErrContention):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusConflict, bookingResponse{Reason: codeContention})
	default:
		writeJSON(w, http.StatusInternalServerError, bookingResponse{Reason: codeInternalError})
	}
}

func writeCatalogError(w http.ResponseWriter, err error) {
	var (
		verr *domain.ValidationError
		ferr *domain.FormatError
	)
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr.Fields)
	case errors.As(err, &ferr):
		writeError(w, http.StatusBadRequest, codeInvalidFormat, ferr.Message)
	case errors.Is(err, domain.ErrEventNotFound), errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusNotFound, codeEventNotFound, domain.ErrEventNotFound.Error())
	case errors.Is(err, domain.ErrTicketsOutOfRange):
		writeError(w, http.StatusBadRequest, codeInvalidFormat, "Invalid availableTickets format")
	case errors.Is(err, domain.ErrContention):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusConflict, codeContention, "event is being modified, try again")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func decodeEventInput(w http.ResponseWriter, r *http.Request) (app.EventInput, bool) {
	var in app.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return app.EventInput{}, false
	}
	return in, true
}

// ticketsParam reads the tickets query value, limited to the 32-bit range of
// an event's inventory.
func ticketsParam(r *http.Request) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("tickets")), 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// parseEventPath splits /api/events/{id}[/{action}].
func parseEventPath(path string) (id, action string, ok bool) {
	if !strings.HasPrefix(path, eventsPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, eventsPrefix), "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", true
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

type eventResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Date             string  `json:"date"`
	Location         string  `json:"location"`
	Price            float64 `json:"price"`
	AvailableTickets int     `json:"availableTickets"`
	ImageURL         *string `json:"imageUrl"`
	Category         *string `json:"category"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Date:             app.FormatDate(e.Date, domain.DateLayout),
		Location:         e.Location,
		Price:            e.Price,
		AvailableTickets: e.AvailableTickets,
		ImageURL:         e.ImageURL,
		Category:         e.Category,
		CreatedAt:        formatStamp(e.CreatedAt),
		UpdatedAt:        formatStamp(e.UpdatedAt),
	}
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return app.FormatDate(t.UTC(), domain.DateLayout)
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

type bookingResponse struct {
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}
