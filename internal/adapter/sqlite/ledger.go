package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: ConversionLedger implements domain.ConversionLedger.
var _ domain.ConversionLedger = (*ConversionLedger)(nil)

// ConversionLedger implements domain.ConversionLedger using SQLite.
type ConversionLedger struct {
	db *sql.DB
}

const recordColumns = `id, admin_id, snapshot, tenant_id, tenant_domain, status, error_message,
	created_at, updated_at, completed_at, rolled_back_at`

func (l *ConversionLedger) Create(ctx context.Context, rec domain.ConversionRecord) error {
	if err := rec.Validate(); err != nil {
		return &domain.ValidationError{Err: err}
	}

	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding admin snapshot: %w", err)
	}

	_, err = conn(ctx, l.db).ExecContext(ctx,
		`INSERT INTO conversion_records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AdminID, string(snapshot), rec.TenantID, rec.TenantDomain,
		string(rec.Status), rec.ErrorMessage,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
		formatTimePtr(rec.CompletedAt), formatTimePtr(rec.RolledBackAt),
	)
	if err != nil {
		if isUniqueViolation(err, "conversion_records.admin_id") {
			return &domain.ConversionInProgressError{AdminID: rec.AdminID}
		}
		return fmt.Errorf("inserting conversion record: %w", err)
	}
	return nil
}

func (l *ConversionLedger) Get(ctx context.Context, id string) (domain.ConversionRecord, error) {
	return scanRecord(conn(ctx, l.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM conversion_records WHERE id = ?`, id,
	))
}

func (l *ConversionLedger) UpdateTenantInfo(ctx context.Context, id, tenantID, tenantDomain string, now time.Time) error {
	if strings.TrimSpace(tenantID) == "" {
		return &domain.ValidationError{Err: errors.New("tenant id is required")}
	}
	return l.exec(ctx, "recording tenant info",
		`UPDATE conversion_records SET tenant_id = ?, tenant_domain = ?, updated_at = ? WHERE id = ?`,
		tenantID, tenantDomain, formatTime(now), id,
	)
}

func (l *ConversionLedger) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	ts := formatTime(now)
	return l.exec(ctx, "marking conversion completed",
		`UPDATE conversion_records
		 SET status = 'completed', error_message = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		ts, ts, id,
	)
}

func (l *ConversionLedger) MarkFailed(ctx context.Context, id, message string, now time.Time) error {
	if strings.TrimSpace(message) == "" {
		return &domain.ValidationError{Err: errors.New("failed conversion requires an error message")}
	}
	return l.exec(ctx, "marking conversion failed",
		`UPDATE conversion_records SET status = 'failed', error_message = ?, updated_at = ? WHERE id = ?`,
		message, formatTime(now), id,
	)
}

// MarkRolledBack records a manual rollback. A record can be rolled back once;
// later calls report domain.ErrConversionNotFound.
func (l *ConversionLedger) MarkRolledBack(ctx context.Context, id string, now time.Time) error {
	ts := formatTime(now)
	return l.exec(ctx, "marking conversion rolled back",
		`UPDATE conversion_records
		 SET status = 'failed', error_message = ?, rolled_back_at = ?, updated_at = ?
		 WHERE id = ? AND rolled_back_at IS NULL`,
		domain.RollbackNote, ts, ts, id,
	)
}

func (l *ConversionLedger) LatestFor(ctx context.Context, adminID string) (domain.ConversionRecord, bool, error) {
	rec, err := scanRecord(conn(ctx, l.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM conversion_records
		 WHERE admin_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT 1`, adminID,
	))
	if errors.Is(err, domain.ErrConversionNotFound) {
		return domain.ConversionRecord{}, false, nil
	}
	if err != nil {
		return domain.ConversionRecord{}, false, err
	}
	return rec, true, nil
}

func (l *ConversionLedger) ListFor(ctx context.Context, adminID string) ([]domain.ConversionRecord, error) {
	rows, err := conn(ctx, l.db).QueryContext(ctx,
		`SELECT `+recordColumns+` FROM conversion_records
		 WHERE admin_id = ?
		 ORDER BY created_at DESC, rowid DESC`, adminID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversion records: %w", err)
	}
	defer rows.Close()

	var records []domain.ConversionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (l *ConversionLedger) exec(ctx context.Context, action, query string, args ...any) error {
	result, err := conn(ctx, l.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return expectOne(result, domain.ErrConversionNotFound)
}

func scanRecord(row scanner) (domain.ConversionRecord, error) {
	var rec domain.ConversionRecord
	var snapshot, status, createdAt, updatedAt string
	var tenantID, tenantDomain, errorMessage, completedAt, rolledBackAt sql.NullString

	err := row.Scan(&rec.ID, &rec.AdminID, &snapshot, &tenantID, &tenantDomain, &status,
		&errorMessage, &createdAt, &updatedAt, &completedAt, &rolledBackAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ConversionRecord{}, domain.ErrConversionNotFound
		}
		return domain.ConversionRecord{}, fmt.Errorf("scanning conversion record: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &rec.Snapshot); err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("decoding admin snapshot: %w", err)
	}

	rec.Status = domain.ConversionStatus(status)
	rec.TenantID = stringPtr(tenantID)
	rec.TenantDomain = stringPtr(tenantDomain)
	rec.ErrorMessage = stringPtr(errorMessage)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	rec.CompletedAt = parseTimePtr(completedAt)
	rec.RolledBackAt = parseTimePtr(rolledBackAt)
	return rec, nil
}
