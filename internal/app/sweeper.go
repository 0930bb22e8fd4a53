package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// sweepBatch caps the tenants handled by one sweep.
const sweepBatch = 100

// SweepReport summarises one sweep.
type SweepReport struct {
	Scanned int
	Reaped  int
	Failed  int
}

// OrphanSweeper reaps tenants whose conversion never completed: failed
// tenants and tenants stuck in provisioning.
type OrphanSweeper struct {
	tenants  domain.TenantRepository
	dbs      domain.TenantDatabaseAdmin
	clock    domain.Clock
	observer domain.ConversionObserver
	logger   *zap.Logger
}

// NewOrphanSweeper creates a sweeper. A nil observer is allowed.
func NewOrphanSweeper(tenants domain.TenantRepository, dbs domain.TenantDatabaseAdmin, clock domain.Clock, observer domain.ConversionObserver, logger *zap.Logger) *OrphanSweeper {
	if observer == nil {
		observer = nopObserver{}
	}
	return &OrphanSweeper{
		tenants:  tenants,
		dbs:      dbs,
		clock:    clock,
		observer: observer,
		logger:   logger.Named("sweeper"),
	}
}

// Sweep drops the database and deletes the row of every orphaned tenant not
// updated for olderThan. Per-tenant failures are logged and counted.
func (s *OrphanSweeper) Sweep(ctx context.Context, olderThan time.Duration) (SweepReport, error) {
	stale, err := s.tenants.ListStale(ctx, domain.StaleFilter{
		Statuses: []domain.TenantStatus{domain.TenantFailed, domain.TenantProvisioning},
		Before:   s.clock.Now().Add(-olderThan),
		Limit:    sweepBatch,
	})
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Scanned: len(stale)}
	for _, tenant := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.reap(ctx, tenant); err != nil {
			report.Failed++
			s.logger.Warn("reaping orphaned tenant",
				zap.String("tenant_id", tenant.ID),
				zap.String("database", tenant.DatabaseName),
				zap.Error(err),
			)
			continue
		}
		report.Reaped++
	}

	s.observer.OrphansReaped(ctx, report.Reaped)
	if report.Scanned > 0 {
		s.logger.Info("orphan sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("reaped", report.Reaped),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (s *OrphanSweeper) reap(ctx context.Context, tenant domain.Tenant) error {
	if err := s.dbs.DropDatabase(ctx, tenant.DatabaseName); err != nil {
		return err
	}
	if err := s.tenants.Delete(ctx, tenant.ID); err != nil && !errors.Is(err, domain.ErrTenantNotFound) {
		return err
	}
	return nil
}
