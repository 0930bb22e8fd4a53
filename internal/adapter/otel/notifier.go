package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// TracingNotifier wraps a domain.ConversionNotifier with OpenTelemetry tracing.
type TracingNotifier struct {
	next   domain.ConversionNotifier
	tracer trace.Tracer
}

// Compile-time check: TracingNotifier implements domain.ConversionNotifier.
var _ domain.ConversionNotifier = (*TracingNotifier)(nil)

// NewTracingNotifier creates a tracing decorator around the given notifier.
func NewTracingNotifier(next domain.ConversionNotifier) *TracingNotifier {
	return &TracingNotifier{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (n *TracingNotifier) ConversionCompleted(ctx context.Context, event domain.ConversionCompletedEvent) error {
	ctx, span := n.tracer.Start(ctx, "ConversionNotifier.ConversionCompleted",
		trace.WithAttributes(
			attribute.String("conversion.id", event.ConversionID),
			attribute.String("admin.id", event.AdminID),
			attribute.String("tenant.id", event.TenantID),
			attribute.String("tenant.domain", event.TenantDomain),
		),
	)
	defer span.End()

	err := n.next.ConversionCompleted(ctx, event)
	recordError(span, err)
	return err
}
