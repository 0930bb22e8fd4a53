package domain

import "time"

// Role names seeded into every tenant database.
const (
	RoleAdmin      = "admin"
	RoleTeacher    = "teacher"
	RoleStudent    = "student"
	RoleParent     = "parent"
	RoleAccountant = "accountant"
	RoleLibrarian  = "librarian"
)

// DefaultRoles lists the roles every tenant starts with.
var DefaultRoles = []string{
	RoleAdmin,
	RoleTeacher,
	RoleStudent,
	RoleParent,
	RoleAccountant,
	RoleLibrarian,
}

// DefaultPermissions is the fixed permission catalogue of a tenant.
var DefaultPermissions = []string{
	"manage-school",
	"manage-users",
	"manage-roles",
	"manage-classes",
	"manage-subjects",
	"manage-students",
	"manage-teachers",
	"manage-parents",
	"manage-attendance",
	"manage-exams",
	"manage-results",
	"manage-fees",
	"manage-payments",
	"manage-expenses",
	"manage-library",
	"manage-books",
	"view-reports",
	"send-notifications",
}

// IdentityStatusActive is the status of a freshly migrated owner user.
const IdentityStatusActive = "active"

// TenantIdentity is the owning user created inside a tenant database from a
// converted admin. PasswordHash is copied verbatim from the admin.
type TenantIdentity struct {
	ID              int64
	OriginAdminID   string
	Name            string
	Email           string
	PasswordHash    string
	Phone           string
	Role            string
	IsSchoolOwner   bool
	Status          string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// NewOwnerIdentity builds the owner user of a tenant from its admin.
func NewOwnerIdentity(admin Admin, now time.Time) TenantIdentity {
	return TenantIdentity{
		OriginAdminID:   admin.ID,
		Name:            admin.Name,
		Email:           admin.Email,
		PasswordHash:    admin.PasswordHash,
		Phone:           admin.Phone,
		Role:            RoleAdmin,
		IsSchoolOwner:   true,
		Status:          IdentityStatusActive,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
	}
}
