package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/schoolhub/internal/adapter/otel"
	"github.com/neomorfeo/schoolhub/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock database admin ---

type mockDatabases struct {
	created map[string]bool
	err     error
}

func newMockDatabases() *mockDatabases {
	return &mockDatabases{created: make(map[string]bool)}
}

func (m *mockDatabases) CreateDatabase(_ context.Context, name string) error {
	if m.err != nil {
		return m.err
	}
	m.created[name] = true
	return nil
}

func (m *mockDatabases) DropDatabase(_ context.Context, name string) error {
	delete(m.created, name)
	return m.err
}

func (m *mockDatabases) MigrateDatabase(_ context.Context, name string) error {
	if !m.created[name] {
		return errors.New("database does not exist")
	}
	return m.err
}

func (m *mockDatabases) Connect(_ context.Context, name string) (domain.TenantDirectory, error) {
	return nil, errors.New("not supported")
}

// --- Tests ---

func TestTracingDatabaseAdmin_CreateDatabase_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockDatabases()
	dbs := adapter.NewTracingDatabaseAdmin(inner)

	if err := dbs.CreateDatabase(context.Background(), "school_oak"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inner.created["school_oak"] {
		t.Error("call was not forwarded")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "TenantDatabaseAdmin.CreateDatabase" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "TenantDatabaseAdmin.CreateDatabase")
	}
	assertAttribute(t, spans[0], "db.namespace", "school_oak")
}

func TestTracingDatabaseAdmin_MigrateDatabase_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	dbs := adapter.NewTracingDatabaseAdmin(newMockDatabases())

	if err := dbs.MigrateDatabase(context.Background(), "school_missing"); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingDatabaseAdmin_EveryOperationTraced(t *testing.T) {
	exporter := setupTestTracer(t)
	dbs := adapter.NewTracingDatabaseAdmin(newMockDatabases())
	ctx := context.Background()

	_ = dbs.CreateDatabase(ctx, "school_a")
	_ = dbs.MigrateDatabase(ctx, "school_a")
	_, _ = dbs.Connect(ctx, "school_a")
	_ = dbs.DropDatabase(ctx, "school_a")

	want := []string{
		"TenantDatabaseAdmin.CreateDatabase",
		"TenantDatabaseAdmin.MigrateDatabase",
		"TenantDatabaseAdmin.Connect",
		"TenantDatabaseAdmin.DropDatabase",
	}
	spans := exporter.GetSpans()
	if len(spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(spans), len(want))
	}
	for i, name := range want {
		if spans[i].Name != name {
			t.Errorf("span %d = %q, want %q", i, spans[i].Name, name)
		}
	}
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
