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

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// TenantRepository implements domain.TenantRepository using SQLite.
type TenantRepository struct {
	db *sql.DB
}

const tenantColumns = `id, name, domain, database_name, status, plan, email, phone, address, settings, created_at, updated_at`

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	settings := string(t.Settings)
	if settings == "" {
		settings = "{}"
	}

	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Domain, t.DatabaseName, string(t.Status), t.Plan,
		t.Email, t.Phone, t.Address, settings,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "tenants.") {
			return &domain.DomainConflictError{Domain: t.Domain}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
}

// DomainExists reports whether a tenant already uses domain, ignoring case.
func (r *TenantRepository) DomainExists(ctx context.Context, domainName string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE domain = ?)`, domainName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking tenant domain: %w", err)
	}
	return exists, nil
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status domain.TenantStatus, now time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE tenants SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("updating tenant status: %w", err)
	}
	return expectOne(result, domain.ErrTenantNotFound)
}

func (r *TenantRepository) Delete(ctx context.Context, id string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return expectOne(result, domain.ErrTenantNotFound)
}

// ListStale returns tenants in one of the given statuses last updated before
// filter.Before, oldest first.
func (r *TenantRepository) ListStale(ctx context.Context, filter domain.StaleFilter) ([]domain.Tenant, error) {
	if len(filter.Statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
	args := make([]any, 0, len(filter.Statuses)+2)
	for _, s := range filter.Statuses {
		args = append(args, string(s))
	}
	args = append(args, formatTime(filter.Before))

	query := `SELECT ` + tenantColumns + ` FROM tenants
		WHERE status IN (` + placeholders + `) AND updated_at < ?
		ORDER BY updated_at ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing stale tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func scanTenant(row scanner) (domain.Tenant, error) {
	var t domain.Tenant
	var status, settings, createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.DatabaseName, &status, &t.Plan,
		&t.Email, &t.Phone, &t.Address, &settings, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Status = domain.TenantStatus(status)
	t.Settings = json.RawMessage(settings)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func expectOne(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
