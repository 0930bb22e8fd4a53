package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Compile-time check: Directory implements domain.TenantDirectory.
var _ domain.TenantDirectory = (*Directory)(nil)

// Dialect selects placeholder syntax and error decoding for a tenant database.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Directory is the role, permission and user store of one tenant database.
// It owns the *sql.DB it was created with.
type Directory struct {
	db      *sql.DB
	dialect Dialect
}

// NewDirectory wraps an open tenant database handle.
func NewDirectory(db *sql.DB, dialect Dialect) *Directory {
	return &Directory{db: db, dialect: dialect}
}

// Close closes the tenant database handle.
func (d *Directory) Close() error {
	return d.db.Close()
}

func (d *Directory) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging tenant database: %w", err)
	}
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM roles`).Scan(&n); err != nil {
		return fmt.Errorf("tenant schema not ready: %w", err)
	}
	return nil
}

func (d *Directory) EnsureRoles(ctx context.Context, names []string) error {
	return d.ensureNames(ctx, "roles", names)
}

func (d *Directory) EnsurePermissions(ctx context.Context, names []string) error {
	return d.ensureNames(ctx, "permissions", names)
}

func (d *Directory) ensureNames(ctx context.Context, table string, names []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s seed: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := d.rebind(`INSERT INTO ` + table + ` (name) VALUES (?) ON CONFLICT (name) DO NOTHING`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, query, name); err != nil {
			return fmt.Errorf("seeding %s %q: %w", table, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s seed: %w", table, err)
	}
	return nil
}

// GrantAllPermissions links every known permission to role. Existing grants
// are kept.
func (d *Directory) GrantAllPermissions(ctx context.Context, role string) error {
	if _, err := d.roleID(ctx, role); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT r.id, p.id FROM roles r, permissions p WHERE r.name = ?
		 ON CONFLICT (role_id, permission_id) DO NOTHING`), role)
	if err != nil {
		return fmt.Errorf("granting permissions to %q: %w", role, err)
	}
	return nil
}

func (d *Directory) CreateUser(ctx context.Context, u domain.TenantIdentity) (domain.TenantIdentity, error) {
	var verified any
	if u.EmailVerifiedAt != nil {
		verified = u.EmailVerifiedAt.UTC()
	}

	err := d.db.QueryRowContext(ctx, d.rebind(
		`INSERT INTO users (name, email, password_hash, phone, role, is_school_owner,
		                    origin_admin_id, status, email_verified_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING id`),
		u.Name, u.Email, u.PasswordHash, u.Phone, u.Role, u.IsSchoolOwner,
		u.OriginAdminID, u.Status, verified, u.CreatedAt.UTC(),
	).Scan(&u.ID)
	if err != nil {
		if d.isUniqueViolation(err) {
			return domain.TenantIdentity{}, domain.ErrEmailTaken
		}
		return domain.TenantIdentity{}, fmt.Errorf("inserting tenant user: %w", err)
	}
	return u, nil
}

func (d *Directory) FindUserByEmail(ctx context.Context, email string) (domain.TenantIdentity, error) {
	var u domain.TenantIdentity
	var origin sql.NullString
	var verified sql.NullTime

	err := d.db.QueryRowContext(ctx, d.rebind(
		`SELECT id, name, email, password_hash, phone, role, is_school_owner,
		        origin_admin_id, status, email_verified_at, created_at
		 FROM users WHERE lower(email) = lower(?)`), email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsSchoolOwner,
		&origin, &u.Status, &verified, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TenantIdentity{}, domain.ErrUserNotFound
		}
		return domain.TenantIdentity{}, fmt.Errorf("finding tenant user: %w", err)
	}

	u.OriginAdminID = origin.String
	if verified.Valid {
		t := verified.Time
		u.EmailVerifiedAt = &t
	}
	return u, nil
}

func (d *Directory) AssignRole(ctx context.Context, userID int64, role string) error {
	roleID, err := d.roleID(ctx, role)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, d.rebind(
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`), userID, roleID)
	if err != nil {
		return fmt.Errorf("assigning role %q: %w", role, err)
	}
	return nil
}

func (d *Directory) UserRoles(ctx context.Context, userID int64) ([]string, error) {
	return d.names(ctx, `SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? ORDER BY r.name`, userID)
}

func (d *Directory) RolePermissions(ctx context.Context, role string) ([]string, error) {
	return d.names(ctx, `SELECT p.name FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN roles r ON r.id = rp.role_id
		WHERE r.name = ? ORDER BY p.name`, role)
}

func (d *Directory) roleID(ctx context.Context, role string) (int64, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, d.rebind(`SELECT id FROM roles WHERE name = ?`), role).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", domain.ErrRoleNotFound, role)
		}
		return 0, fmt.Errorf("looking up role %q: %w", role, err)
	}
	return id, nil
}

func (d *Directory) names(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("listing names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func (d *Directory) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Directory) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
