package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

const tracerName = "github.com/neomorfeo/schoolhub/internal/adapter/otel"

// TracingDatabaseAdmin wraps a domain.TenantDatabaseAdmin with OpenTelemetry
// tracing. Each method creates a span named after the operation and records
// errors.
type TracingDatabaseAdmin struct {
	next   domain.TenantDatabaseAdmin
	tracer trace.Tracer
}

// Compile-time check: TracingDatabaseAdmin implements domain.TenantDatabaseAdmin.
var _ domain.TenantDatabaseAdmin = (*TracingDatabaseAdmin)(nil)

// NewTracingDatabaseAdmin creates a tracing decorator around next.
func NewTracingDatabaseAdmin(next domain.TenantDatabaseAdmin) *TracingDatabaseAdmin {
	return &TracingDatabaseAdmin{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (a *TracingDatabaseAdmin) CreateDatabase(ctx context.Context, name string) error {
	ctx, span := a.start(ctx, "TenantDatabaseAdmin.CreateDatabase", name)
	defer span.End()

	err := a.next.CreateDatabase(ctx, name)
	recordError(span, err)
	return err
}

func (a *TracingDatabaseAdmin) DropDatabase(ctx context.Context, name string) error {
	ctx, span := a.start(ctx, "TenantDatabaseAdmin.DropDatabase", name)
	defer span.End()

	err := a.next.DropDatabase(ctx, name)
	recordError(span, err)
	return err
}

func (a *TracingDatabaseAdmin) MigrateDatabase(ctx context.Context, name string) error {
	ctx, span := a.start(ctx, "TenantDatabaseAdmin.MigrateDatabase", name)
	defer span.End()

	err := a.next.MigrateDatabase(ctx, name)
	recordError(span, err)
	return err
}

func (a *TracingDatabaseAdmin) Connect(ctx context.Context, name string) (domain.TenantDirectory, error) {
	ctx, span := a.start(ctx, "TenantDatabaseAdmin.Connect", name)
	defer span.End()

	dir, err := a.next.Connect(ctx, name)
	recordError(span, err)
	return dir, err
}

func (a *TracingDatabaseAdmin) start(ctx context.Context, op, database string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, op,
		trace.WithAttributes(attribute.String("db.namespace", database)),
	)
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
