package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: AdminRepository implements domain.AdminRepository.
var _ domain.AdminRepository = (*AdminRepository)(nil)

// AdminRepository implements domain.AdminRepository using SQLite.
type AdminRepository struct {
	db *sql.DB
}

const adminColumns = `id, name, email, password_hash, phone, status, tenant_id, converted_at, created_at, updated_at`

func (r *AdminRepository) Create(ctx context.Context, a domain.Admin) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO admins (`+adminColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.PasswordHash, a.Phone, string(a.Status),
		a.TenantID, formatTimePtr(a.ConvertedAt),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "admins.email") {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("inserting admin: %w", err)
	}
	return nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (domain.Admin, error) {
	return scanAdmin(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = ?`, id,
	))
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (domain.Admin, error) {
	return scanAdmin(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE email = ?`, domain.NormalizeEmail(email),
	))
}

func (r *AdminRepository) Update(ctx context.Context, a domain.Admin) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE admins
		 SET name = ?, email = ?, password_hash = ?, phone = ?, status = ?,
		     tenant_id = ?, converted_at = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.Email, a.PasswordHash, a.Phone, string(a.Status),
		a.TenantID, formatTimePtr(a.ConvertedAt), formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "admins.email") {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("updating admin: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAdminNotFound
	}
	return nil
}

func scanAdmin(row scanner) (domain.Admin, error) {
	var a domain.Admin
	var status, createdAt, updatedAt string
	var tenantID, convertedAt sql.NullString

	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Phone, &status,
		&tenantID, &convertedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Admin{}, domain.ErrAdminNotFound
		}
		return domain.Admin{}, fmt.Errorf("scanning admin: %w", err)
	}

	a.Status = domain.AdminStatus(status)
	a.TenantID = stringPtr(tenantID)
	a.ConvertedAt = parseTimePtr(convertedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}
