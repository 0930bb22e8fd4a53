package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Metrics records conversion outcomes as OpenTelemetry instruments.
type Metrics struct {
	conversions metric.Int64Counter
	duration    metric.Float64Histogram
	rollbacks   metric.Int64Counter
	reaped      metric.Int64Counter
}

// Compile-time check: Metrics implements domain.ConversionObserver.
var _ domain.ConversionObserver = (*Metrics)(nil)

// NewMetrics creates the conversion instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	conversions, err := meter.Int64Counter("schoolhub.conversions",
		metric.WithDescription("Finished admin to tenant conversions."),
		metric.WithUnit("{conversion}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversions counter: %w", err)
	}

	duration, err := meter.Float64Histogram("schoolhub.conversion.duration",
		metric.WithDescription("Wall-clock duration of conversions."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversion duration histogram: %w", err)
	}

	rollbacks, err := meter.Int64Counter("schoolhub.rollbacks",
		metric.WithDescription("Conversion rollback attempts."),
		metric.WithUnit("{rollback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rollbacks counter: %w", err)
	}

	reaped, err := meter.Int64Counter("schoolhub.orphans.reaped",
		metric.WithDescription("Orphaned tenants removed by the sweep."),
		metric.WithUnit("{tenant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating orphans counter: %w", err)
	}

	return &Metrics{conversions: conversions, duration: duration, rollbacks: rollbacks, reaped: reaped}, nil
}

func (m *Metrics) ConversionFinished(ctx context.Context, status domain.ConversionStatus, code string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("conversion.status", string(status)),
		attribute.String("error.code", code),
	)
	m.conversions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RollbackFinished(ctx context.Context, ok bool) {
	m.rollbacks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("rollback.ok", ok)))
}

func (m *Metrics) OrphansReaped(ctx context.Context, count int) {
	if count > 0 {
		m.reaped.Add(ctx, int64(count))
	}
}
