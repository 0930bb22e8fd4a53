package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

func TestNewAdmin(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	admin := domain.NewAdmin("a-1", "  Ada ", " Ada@Example.COM ", "hash", " 555 ", now)

	if admin.Status != domain.AdminPending {
		t.Errorf("Status = %q, want %q", admin.Status, domain.AdminPending)
	}
	if admin.Name != "Ada" {
		t.Errorf("Name = %q, want %q", admin.Name, "Ada")
	}
	if admin.Email != "ada@example.com" {
		t.Errorf("Email = %q, want %q", admin.Email, "ada@example.com")
	}
	if admin.Phone != "555" {
		t.Errorf("Phone = %q, want %q", admin.Phone, "555")
	}
	if admin.TenantID != nil {
		t.Error("TenantID should be nil on new admin")
	}
	if !admin.CreatedAt.Equal(now) || !admin.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", admin.CreatedAt, admin.UpdatedAt, now)
	}
}

func TestAdmin_Eligibility(t *testing.T) {
	base := domain.Admin{ID: "a-1", Name: "A", Email: "a@x.com", Status: domain.AdminActive}

	tests := []struct {
		name     string
		mutate   func(a *domain.Admin)
		eligible bool
	}{
		{"active", func(a *domain.Admin) {}, true},
		{"pending", func(a *domain.Admin) { a.Status = domain.AdminPending }, true},
		{"converted", func(a *domain.Admin) { a.Status = domain.AdminConverted }, false},
		{"setting up", func(a *domain.Admin) { a.Status = domain.AdminSettingUp }, false},
		{"suspended", func(a *domain.Admin) { a.Status = domain.AdminSuspended }, false},
		{"missing email", func(a *domain.Admin) { a.Email = " " }, false},
		{"missing name", func(a *domain.Admin) { a.Name = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			tt.mutate(&a)
			reason := a.Eligibility()
			if got := reason == ""; got != tt.eligible {
				t.Errorf("eligible = %v (reason %q), want %v", got, reason, tt.eligible)
			}
		})
	}
}

func TestAdminStatus_Valid(t *testing.T) {
	for _, s := range []domain.AdminStatus{
		domain.AdminPending, domain.AdminActive, domain.AdminSettingUp,
		domain.AdminConverted, domain.AdminSuspended,
	} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if domain.AdminStatus("deleted").Valid() {
		t.Error(`"deleted" should not be valid`)
	}
}

func TestTransitions_ConvertedIsTerminal(t *testing.T) {
	for _, tr := range domain.Transitions {
		if tr.Src == domain.AdminConverted {
			t.Errorf("converted must have no outgoing transitions, found -> %q", tr.Dst)
		}
		if tr.Src == tr.Dst {
			t.Errorf("self transition %q listed", tr.Src)
		}
	}
}

func TestAdmin_SnapshotOmitsPasswordHash(t *testing.T) {
	tenant := "t-1"
	admin := domain.Admin{ID: "a-1", Name: "A", Email: "a@x.com", PasswordHash: "secret", Status: domain.AdminActive, TenantID: &tenant}
	snap := admin.Snapshot()

	if snap.Status != domain.AdminActive {
		t.Errorf("Status = %q, want %q", snap.Status, domain.AdminActive)
	}
	if snap.TenantID == nil || *snap.TenantID != "t-1" {
		t.Errorf("TenantID = %v, want t-1", snap.TenantID)
	}
}
