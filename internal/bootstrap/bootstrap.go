// Package bootstrap wires the adapters and application services shared by
// the API server and the admin CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/adapter/fsm"
	"github.com/neomorfeo/schoolhub/internal/adapter/mail"
	"github.com/neomorfeo/schoolhub/internal/adapter/river"
	"github.com/neomorfeo/schoolhub/internal/adapter/sqlite"
	"github.com/neomorfeo/schoolhub/internal/adapter/tenantdb"
	"github.com/neomorfeo/schoolhub/internal/app"
	"github.com/neomorfeo/schoolhub/internal/config"
	"github.com/neomorfeo/schoolhub/internal/domain"
	"github.com/neomorfeo/schoolhub/internal/security"

	telemetry "github.com/neomorfeo/schoolhub/internal/adapter/otel"
)

const meterName = "github.com/neomorfeo/schoolhub"

// App holds the wired services. Close releases every resource it opened.
type App struct {
	Store       *sqlite.Store
	Jobs        *river.Client
	Admins      *app.AdminService
	Conversions *app.ConversionService
	Sweeper     *app.OrphanSweeper

	closers []func() error
}

// New opens the central database, the tenant database backend and the job
// queue, then builds the application services on top of them.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close())
		}
	}()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := telemetry.OpenDB(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	a.Store, err = sqlite.NewFromDB(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("central store: %w", err)
	}

	tenantDBs, err := a.tenantDatabases(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dbs := telemetry.NewTracingDatabaseAdmin(tenantDBs)

	metrics, err := telemetry.NewMetrics(otel.Meter(meterName))
	if err != nil {
		return nil, err
	}

	clock := app.SystemClock{}
	a.Sweeper = app.NewOrphanSweeper(a.Store.Tenants(), dbs, clock, metrics, logger)

	a.Jobs, err = river.Setup(ctx, db, river.Deps{
		Mailer:        newMailer(cfg, logger),
		AppName:       cfg.AppName,
		BaseDomain:    cfg.TenantBaseDomain,
		Sweeper:       a.Sweeper,
		SweepInterval: cfg.OrphanSweepInterval,
		OrphanTTL:     cfg.OrphanTTL,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job queue: %w", err)
	}

	validator := fsm.New()
	locker := app.NewKeyedLocker()

	a.Conversions = app.NewConversionService(app.ConversionDeps{
		Admins:    a.Store.Admins(),
		Tenants:   a.Store.Tenants(),
		Ledger:    a.Store.Ledger(),
		Tx:        a.Store,
		Databases: dbs,
		Validator: validator,
		Notifier:  telemetry.NewTracingNotifier(river.NewNotifier(a.Jobs)),
		Locker:    locker,
		Clock:     clock,
		Observer:  metrics,
		Logger:    logger,
	}, app.WithRestoreStatusOnFailure(cfg.RestoreStatusOnFailure))

	a.Admins = app.NewAdminService(a.Store.Admins(), a.Store, security.BcryptHasher{}, validator, locker, clock, logger)

	return a, nil
}

func (a *App) tenantDatabases(ctx context.Context, cfg config.Config, logger *zap.Logger) (domain.TenantDatabaseAdmin, error) {
	switch cfg.TenantDriver {
	case config.DriverPostgres:
		pg, err := tenantdb.NewPostgresAdmin(ctx, cfg.TenantPostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("tenant databases: %w", err)
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		return pg, nil
	default:
		admin, err := tenantdb.NewSQLiteAdmin(cfg.TenantDataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("tenant databases: %w", err)
		}
		return admin, nil
	}
}

func newMailer(cfg config.Config, logger *zap.Logger) domain.Mailer {
	if cfg.MailBackend == config.MailSendGrid {
		return mail.NewSendGridMailer(mail.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			AppName:   cfg.AppName,
			FromEmail: cfg.MailFrom,
		}, logger)
	}
	return mail.NewLogMailer(logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
