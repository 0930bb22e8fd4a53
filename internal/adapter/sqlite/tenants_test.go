package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

func TestTenants_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	mustCreateTenant(t, store, "t-1", "oak-school")

	got, err := store.Tenants().GetByID(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Domain != "oak-school" {
		t.Errorf("Domain = %q, want %q", got.Domain, "oak-school")
	}
	if got.DatabaseName != "school_oak_school" {
		t.Errorf("DatabaseName = %q, want %q", got.DatabaseName, "school_oak_school")
	}
	if got.Status != domain.TenantProvisioning {
		t.Errorf("Status = %q, want %q", got.Status, domain.TenantProvisioning)
	}
	if string(got.Settings) != "{}" {
		t.Errorf("Settings = %s, want {}", got.Settings)
	}
}

func TestTenants_DomainExists_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateTenant(t, store, "t-1", "oak-school")

	for _, d := range []string{"oak-school", "OAK-School"} {
		exists, err := store.Tenants().DomainExists(ctx, d)
		if err != nil {
			t.Fatalf("DomainExists failed: %v", err)
		}
		if !exists {
			t.Errorf("DomainExists(%q) = false, want true", d)
		}
	}

	exists, err := store.Tenants().DomainExists(ctx, "oak-school-1")
	if err != nil {
		t.Fatalf("DomainExists failed: %v", err)
	}
	if exists {
		t.Error("DomainExists(oak-school-1) = true, want false")
	}
}

func TestTenants_DuplicateDomain(t *testing.T) {
	store := newTestStore(t)
	mustCreateTenant(t, store, "t-1", "oak-school")

	dup := domain.NewTenant("t-2", domain.SchoolData{Name: "Oak"}, "Oak-School", baseTime)
	err := store.Tenants().Create(context.Background(), dup)

	var conflict *domain.DomainConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected DomainConflictError, got %v", err)
	}
}

func TestTenants_UpdateStatusAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	mustCreateTenant(t, store, "t-1", "oak-school")

	if err := store.Tenants().UpdateStatus(ctx, "t-1", domain.TenantActive, baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.Tenants().GetByID(ctx, "t-1")
	if got.Status != domain.TenantActive {
		t.Errorf("Status = %q, want %q", got.Status, domain.TenantActive)
	}

	if err := store.Tenants().Delete(ctx, "t-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Tenants().Delete(ctx, "t-1"); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("second Delete = %v, want ErrTenantNotFound", err)
	}
	if err := store.Tenants().UpdateStatus(ctx, "t-1", domain.TenantFailed, baseTime); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("UpdateStatus after delete = %v, want ErrTenantNotFound", err)
	}
}

func TestTenants_ListStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repo := store.Tenants()

	mustCreateTenant(t, store, "old-failed", "old-failed")
	mustCreateTenant(t, store, "old-active", "old-active")
	mustCreateTenant(t, store, "new-failed", "new-failed")

	if err := repo.UpdateStatus(ctx, "old-failed", domain.TenantFailed, baseTime); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, "old-active", domain.TenantActive, baseTime); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateStatus(ctx, "new-failed", domain.TenantFailed, baseTime.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	stale, err := repo.ListStale(ctx, domain.StaleFilter{
		Statuses: []domain.TenantStatus{domain.TenantFailed, domain.TenantProvisioning},
		Before:   baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "old-failed" {
		t.Errorf("ListStale = %+v, want only old-failed", stale)
	}
}
