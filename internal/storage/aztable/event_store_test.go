package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"github.com/iamabdullah-dev/BookingEvents-System/internal/app"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/domain"
	"github.com/iamabdullah-dev/BookingEvents-System/internal/storage/storetest"
)

func TestEntityRoundTrip(t *testing.T) {
	t.Parallel()

	in := storetest.SampleEvent(12)
	in.ID = "abc"

	payload, err := json.Marshal(toEntity(in))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(payload), `"Price@odata.type":"Edm.Double"`) {
		t.Fatalf("expected price type annotation, got %s", payload)
	}

	out, err := fromEntity(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != in.ID || out.AvailableTickets != 12 || out.Price != in.Price || !out.Date.Equal(in.Date) {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
	if out.Category == nil || *out.Category != *in.Category {
		t.Fatalf("expected category %q, got %v", *in.Category, out.Category)
	}
}

func TestMapWriteError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusPreconditionFailed, want: domain.ErrVersionMismatch},
		{status: http.StatusNotFound, want: domain.ErrEventNotFound},
	}
	for _, tt := range tests {
		err := mapWriteError(&azcore.ResponseError{StatusCode: tt.status})
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}

	err := mapWriteError(&azcore.ResponseError{StatusCode: http.StatusInternalServerError})
	if errors.Is(err, domain.ErrVersionMismatch) || errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("expected server errors to stay unexpected, got %v", err)
	}
}

// TestEventStore_Conformance runs against Azurite or a real account when
// TEST_AZURE_TABLES_CONNECTION_STRING is set.
func TestEventStore_Conformance(t *testing.T) {
	connStr := os.Getenv("TEST_AZURE_TABLES_CONNECTION_STRING")
	if connStr == "" {
		t.Skip("skipping Azure Table integration tests: TEST_AZURE_TABLES_CONNECTION_STRING not set")
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		t.Fatalf("service client: %v", err)
	}

	storetest.Run(t, func(t *testing.T) app.EventStore {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		name := "events" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		store, err := Open(ctx, connStr, name)
		if err != nil {
			t.Skipf("skipping Azure Table integration tests: %v", err)
		}
		t.Cleanup(func() {
			_, _ = svc.DeleteTable(context.Background(), name, nil)
		})
		return store
	})
}
