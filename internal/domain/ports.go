package domain

import (
	"context"
	"time"
)

// AdminRepository defines the persistence contract for central admins.
type AdminRepository interface {
	Create(ctx context.Context, admin Admin) error
	GetByID(ctx context.Context, id string) (Admin, error)
	GetByEmail(ctx context.Context, email string) (Admin, error)
	Update(ctx context.Context, admin Admin) error
}

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	DomainExists(ctx context.Context, domain string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status TenantStatus, now time.Time) error
	Delete(ctx context.Context, id string) error
	ListStale(ctx context.Context, filter StaleFilter) ([]Tenant, error)
}

// StaleFilter selects tenants stuck in a non-active status.
type StaleFilter struct {
	Statuses []TenantStatus
	Before   time.Time
	Limit    int
}

// ConversionLedger persists conversion records. Records are never deleted.
type ConversionLedger interface {
	Create(ctx context.Context, record ConversionRecord) error
	Get(ctx context.Context, id string) (ConversionRecord, error)
	UpdateTenantInfo(ctx context.Context, id, tenantID, domain string, now time.Time) error
	MarkCompleted(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id, message string, now time.Time) error
	MarkRolledBack(ctx context.Context, id string, now time.Time) error
	LatestFor(ctx context.Context, adminID string) (ConversionRecord, bool, error)
	ListFor(ctx context.Context, adminID string) ([]ConversionRecord, error)
}

// TxRunner runs fn inside one central-database transaction. Repositories
// called with the ctx passed to fn join that transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TenantDatabaseAdmin administers the isolated databases backing tenants.
// Every method addresses the database by name; there is no ambient connection.
type TenantDatabaseAdmin interface {
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	MigrateDatabase(ctx context.Context, name string) error
	Connect(ctx context.Context, name string) (TenantDirectory, error)
}

// TenantDirectory is the typed role, permission and user API of one tenant
// database. Seeding and grants are idempotent.
type TenantDirectory interface {
	Ping(ctx context.Context) error
	EnsureRoles(ctx context.Context, names []string) error
	EnsurePermissions(ctx context.Context, names []string) error
	GrantAllPermissions(ctx context.Context, role string) error
	CreateUser(ctx context.Context, user TenantIdentity) (TenantIdentity, error)
	FindUserByEmail(ctx context.Context, email string) (TenantIdentity, error)
	AssignRole(ctx context.Context, userID int64, role string) error
	UserRoles(ctx context.Context, userID int64) ([]string, error)
	RolePermissions(ctx context.Context, role string) ([]string, error)
	Close() error
}

// ConversionCompletedEvent describes a finished conversion for notification.
type ConversionCompletedEvent struct {
	ConversionID string
	AdminID      string
	AdminName    string
	AdminEmail   string
	TenantID     string
	TenantDomain string
	SchoolName   string
}

// ConversionNotifier announces finished conversions.
type ConversionNotifier interface {
	ConversionCompleted(ctx context.Context, event ConversionCompletedEvent) error
}

// MailMessage is an outbound email.
type MailMessage struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// AdminLocker serialises work on a single admin within a process.
type AdminLocker interface {
	TryLock(adminID string) (unlock func(), ok bool)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// PasswordHasher derives and verifies password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TransitionValidator checks administrative status changes against the
// transition table.
type TransitionValidator interface {
	Validate(ctx context.Context, from, to AdminStatus) error
}

// ConversionObserver receives outcome signals, typically for metrics.
type ConversionObserver interface {
	ConversionFinished(ctx context.Context, status ConversionStatus, code string, elapsed time.Duration)
	RollbackFinished(ctx context.Context, ok bool)
	OrphansReaped(ctx context.Context, count int)
}
