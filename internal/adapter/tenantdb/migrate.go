package tenantdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// ErrDatabaseNotFound is returned when a tenant database has not been created.
var ErrDatabaseNotFound = errors.New("tenant database not found")

var validName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// checkName rejects identifiers that are not safe as file or database names.
func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid tenant database name %q", name)
	}
	return nil
}

// migrate brings a tenant database to the latest schema. Each call builds
// its own goose provider so concurrent conversions never share state.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("loading tenant migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("running tenant migrations: %w", err)
	}
	return nil
}
