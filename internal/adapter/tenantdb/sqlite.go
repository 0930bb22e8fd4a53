package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

// Compile-time check: SQLiteAdmin implements domain.TenantDatabaseAdmin.
var _ domain.TenantDatabaseAdmin = (*SQLiteAdmin)(nil)

// SQLiteAdmin keeps one SQLite file per tenant under a data directory.
type SQLiteAdmin struct {
	dir    string
	logger *zap.Logger
}

// NewSQLiteAdmin creates the data directory if needed.
func NewSQLiteAdmin(dir string, logger *zap.Logger) (*SQLiteAdmin, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating tenant data dir: %w", err)
	}
	return &SQLiteAdmin{dir: dir, logger: logger.Named("tenantdb.sqlite")}, nil
}

// Path returns the file backing the named tenant database.
func (a *SQLiteAdmin) Path(name string) string {
	return filepath.Join(a.dir, name+".db")
}

// CreateDatabase creates the database file if it does not exist yet.
func (a *SQLiteAdmin) CreateDatabase(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	db, err := a.open(name)
	if err != nil {
		return err
	}
	defer db.Close()

	// Opening is lazy; the first statement materialises the file.
	if _, err := db.ExecContext(ctx, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("creating tenant database %q: %w", name, err)
	}

	a.logger.Info("tenant database ready", zap.String("database", name), zap.String("path", a.Path(name)))
	return nil
}

// DropDatabase removes the database file and its WAL side files. Missing
// files are not an error.
func (a *SQLiteAdmin) DropDatabase(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}

	path := a.Path(name)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dropping tenant database %q: %w", name, err)
		}
	}

	a.logger.Info("tenant database dropped", zap.String("database", name))
	return nil
}

func (a *SQLiteAdmin) MigrateDatabase(ctx context.Context, name string) error {
	db, err := a.openExisting(name)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite")
}

func (a *SQLiteAdmin) Connect(ctx context.Context, name string) (domain.TenantDirectory, error) {
	db, err := a.openExisting(name)
	if err != nil {
		return nil, err
	}

	dir := NewDirectory(db, DialectSQLite)
	if err := dir.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return dir, nil
}

func (a *SQLiteAdmin) openExisting(name string) (*sql.DB, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
		}
		return nil, fmt.Errorf("checking tenant database %q: %w", name, err)
	}
	return a.open(name)
}

func (a *SQLiteAdmin) open(name string) (*sql.DB, error) {
	dsn := "file:" + a.Path(name) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening tenant database %q: %w", name, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
