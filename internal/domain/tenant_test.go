package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

func TestNewTenant(t *testing.T) {
	now := time.Now().UTC()
	school := domain.SchoolData{Name: " Oak School ", Email: "Oak@X.com"}

	tenant := domain.NewTenant("t-1", school, "oak-school", now)

	if tenant.Status != domain.TenantProvisioning {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.TenantProvisioning)
	}
	if tenant.Name != "Oak School" {
		t.Errorf("Name = %q, want %q", tenant.Name, "Oak School")
	}
	if tenant.DatabaseName != "school_oak_school" {
		t.Errorf("DatabaseName = %q, want %q", tenant.DatabaseName, "school_oak_school")
	}
	if tenant.Plan != domain.DefaultPlan {
		t.Errorf("Plan = %q, want %q", tenant.Plan, domain.DefaultPlan)
	}
	if tenant.Email != "oak@x.com" {
		t.Errorf("Email = %q, want %q", tenant.Email, "oak@x.com")
	}
	if string(tenant.Settings) != "{}" {
		t.Errorf("Settings = %s, want {}", tenant.Settings)
	}

	info := tenant.Info()
	if info.TenantID != "t-1" || info.Domain != "oak-school" || info.Database != "school_oak_school" {
		t.Errorf("Info() = %+v", info)
	}
}

func TestNewOwnerIdentity(t *testing.T) {
	now := time.Now().UTC()
	admin := domain.Admin{ID: "a-1", Name: "A", Email: "a@x.com", PasswordHash: "$2a$10$abc", Phone: "1"}

	id := domain.NewOwnerIdentity(admin, now)

	if id.PasswordHash != admin.PasswordHash {
		t.Errorf("PasswordHash = %q, want %q", id.PasswordHash, admin.PasswordHash)
	}
	if !id.IsSchoolOwner {
		t.Error("IsSchoolOwner should be true")
	}
	if id.Role != domain.RoleAdmin {
		t.Errorf("Role = %q, want %q", id.Role, domain.RoleAdmin)
	}
	if id.OriginAdminID != "a-1" {
		t.Errorf("OriginAdminID = %q, want %q", id.OriginAdminID, "a-1")
	}
	if id.EmailVerifiedAt == nil {
		t.Error("EmailVerifiedAt should be set")
	}
}
