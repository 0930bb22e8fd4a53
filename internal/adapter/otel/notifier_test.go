package otel_test

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/codes"

	adapter "github.com/neomorfeo/schoolhub/internal/adapter/otel"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

// --- Mock notifier ---

type mockNotifier struct {
	events []domain.ConversionCompletedEvent
	err    error
}

func (m *mockNotifier) ConversionCompleted(_ context.Context, e domain.ConversionCompletedEvent) error {
	m.events = append(m.events, e)
	return m.err
}

func sampleEvent() domain.ConversionCompletedEvent {
	return domain.ConversionCompletedEvent{
		ConversionID: "c-1",
		AdminID:      "a-1",
		TenantID:     "t-1",
		TenantDomain: "oak-school",
	}
}

// --- Tests ---

func TestTracingNotifier_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := &mockNotifier{}
	notifier := adapter.NewTracingNotifier(inner)

	if err := notifier.ConversionCompleted(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.events) != 1 {
		t.Fatalf("inner got %d events, want 1", len(inner.events))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ConversionNotifier.ConversionCompleted" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ConversionNotifier.ConversionCompleted")
	}

	assertAttribute(t, spans[0], "conversion.id", "c-1")
	assertAttribute(t, spans[0], "tenant.domain", "oak-school")
}

func TestTracingNotifier_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	notifier := adapter.NewTracingNotifier(&mockNotifier{err: fmt.Errorf("queue unavailable")})

	if err := notifier.ConversionCompleted(context.Background(), sampleEvent()); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
}
