package river

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/app"
)

// Sweeper reaps orphaned tenants.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (app.SweepReport, error)
}

// OrphanSweepArgs triggers one orphan sweep.
type OrphanSweepArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (OrphanSweepArgs) Kind() string { return "tenant.orphan_sweep" }

// OrphanSweepWorker runs the orphan sweep.
type OrphanSweepWorker struct {
	river.WorkerDefaults[OrphanSweepArgs]

	sweeper Sweeper
	ttl     time.Duration
	logger  *zap.Logger
}

func (w *OrphanSweepWorker) Work(ctx context.Context, job *river.Job[OrphanSweepArgs]) error {
	report, err := w.sweeper.Sweep(ctx, w.ttl)
	if err != nil {
		return err
	}
	w.logger.Debug("orphan sweep job done",
		zap.Int64("job_id", job.ID),
		zap.Int("reaped", report.Reaped),
		zap.Int("failed", report.Failed),
	)
	return nil
}

func sweepJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return OrphanSweepArgs{}, &river.InsertOpts{
				UniqueOpts: river.UniqueOpts{ByPeriod: interval},
			}
		},
		nil,
	)
}
