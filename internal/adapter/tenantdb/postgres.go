package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: PostgresAdmin implements domain.TenantDatabaseAdmin.
var _ domain.TenantDatabaseAdmin = (*PostgresAdmin)(nil)

// PostgresAdmin creates one PostgreSQL database per tenant on the server
// reached by its maintenance pool.
type PostgresAdmin struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresAdmin connects to the maintenance database at url.
func NewPostgresAdmin(ctx context.Context, url string, logger *zap.Logger) (*PostgresAdmin, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresAdmin{pool: pool, logger: logger.Named("tenantdb.postgres")}, nil
}

// Close releases the maintenance pool.
func (a *PostgresAdmin) Close() {
	a.pool.Close()
}

// CreateDatabase issues CREATE DATABASE unless the database already exists.
func (a *PostgresAdmin) CreateDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	exists, err := a.exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := a.pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		var pgErr *pgconn.PgError
		// duplicate_database: a concurrent create won the race.
		if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("creating tenant database %q: %w", name, err)
	}

	a.logger.Info("tenant database created", zap.String("database", name))
	return nil
}

// DropDatabase drops the database, terminating open sessions. Missing
// databases are not an error.
func (a *PostgresAdmin) DropDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	if _, err := a.pool.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)"); err != nil {
		return fmt.Errorf("dropping tenant database %q: %w", name, err)
	}

	a.logger.Info("tenant database dropped", zap.String("database", name))
	return nil
}

func (a *PostgresAdmin) MigrateDatabase(ctx context.Context, name string) error {
	db, err := a.openExisting(ctx, name)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate(ctx, db, goose.DialectPostgres, "migrations/postgres")
}

func (a *PostgresAdmin) Connect(ctx context.Context, name string) (domain.TenantDirectory, error) {
	db, err := a.openExisting(ctx, name)
	if err != nil {
		return nil, err
	}

	dir := NewDirectory(db, DialectPostgres)
	if err := dir.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return dir, nil
}

func (a *PostgresAdmin) exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking tenant database %q: %w", name, err)
	}
	return exists, nil
}

// openExisting opens a database/sql handle on the named tenant database
// using the maintenance pool's credentials.
func (a *PostgresAdmin) openExisting(ctx context.Context, name string) (*sql.DB, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	exists, err := a.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}

	cfg := a.pool.Config().ConnConfig.Copy()
	cfg.Database = name
	return stdlib.OpenDB(*cfg), nil
}
