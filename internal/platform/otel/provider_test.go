package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		enabled  bool
	}{
		{name: "empty endpoint", endpoint: "", enabled: true},
		{name: "explicitly disabled", endpoint: "http://localhost:4318", enabled: false},
	}
	for _, tt := range tests {
		shutdown, err := Setup(context.Background(), "event-service", tt.endpoint, tt.enabled)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tt.name, err)
		}
		if shutdown == nil {
			t.Fatalf("%s: expected shutdown func", tt.name)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("%s: expected noop shutdown, got %v", tt.name, err)
		}
	}
}

func TestSetup_EnabledRegistersProvider(t *testing.T) {
	shutdown, err := Setup(context.Background(), "event-service", "http://127.0.0.1:4318", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a recording provider to be registered")
	}
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
