package otel

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/neomorfeo/schoolhub/internal/adapter/sqlite"
)

// OpenDB opens the central SQLite database with OpenTelemetry
// instrumentation. Every statement is traced and the connection pool
// reports stats metrics. The pragmas come from sqlite.DSN.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", sqlite.DSN(path),
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening instrumented database: %w", err)
	}

	// One connection: the central store and River share this handle and
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to central database: %w", err)
	}

	if _, err := otelsql.RegisterDBStatsMetrics(db,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("registering db stats metrics: %w", err)
	}

	return db, nil
}
