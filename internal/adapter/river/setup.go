package river

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Deps configures the workers registered by Setup.
type Deps struct {
	Mailer     domain.Mailer
	AppName    string
	BaseDomain string

	// Sweeper runs every SweepInterval and reaps tenants older than OrphanTTL.
	// A nil Sweeper or a zero interval disables the periodic job.
	Sweeper       Sweeper
	SweepInterval time.Duration
	OrphanTTL     time.Duration

	Logger *zap.Logger
}

// Setup creates a River client with the welcome-mail and orphan-sweep
// workers registered and runs River's internal migrations. The caller must
// call client.Start() to begin processing jobs and client.Stop() for
// graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, deps Deps) (*Client, error) {
	if deps.Mailer == nil {
		return nil, errors.New("river setup: mailer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("jobs")

	driver := riversqlite.New(db)

	// River's own tables (river_job, river_leader, ...) are migrated
	// separately from the central goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &WelcomeMailWorker{
		mailer:     deps.Mailer,
		appName:    deps.AppName,
		baseDomain: deps.BaseDomain,
		logger:     logger,
	})

	var periodic []*river.PeriodicJob
	if deps.Sweeper != nil {
		river.AddWorker(workers, &OrphanSweepWorker{
			sweeper: deps.Sweeper,
			ttl:     deps.OrphanTTL,
			logger:  logger,
		})
		if deps.SweepInterval > 0 {
			periodic = append(periodic, sweepJob(deps.SweepInterval))
		}
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}
