package app_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

func TestOrphanSweeper_Sweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	create := func(id, domainName string, status domain.TenantStatus, at time.Time) domain.Tenant {
		tenant := domain.NewTenant(id, domain.SchoolData{Name: id, Email: id + "@x.com"}, domainName, at)
		tenant.Status = status
		require.NoError(t, h.store.Tenants().Create(ctx, tenant))
		require.NoError(t, h.tenantDBs.CreateDatabase(ctx, tenant.DatabaseName))
		return tenant
	}

	failed := create("t-failed", "failed-school", domain.TenantFailed, baseTime)
	stuck := create("t-stuck", "stuck-school", domain.TenantProvisioning, baseTime)
	active := create("t-active", "active-school", domain.TenantActive, baseTime)
	recent := create("t-recent", "recent-school", domain.TenantFailed, baseTime.Add(90*time.Minute))

	h.clock.Set(baseTime.Add(2 * time.Hour))
	report, err := h.sweeper.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Reaped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, h.observer.reaped)

	for _, gone := range []domain.Tenant{failed, stuck} {
		_, err := h.store.Tenants().GetByID(ctx, gone.ID)
		assert.ErrorIs(t, err, domain.ErrTenantNotFound, gone.ID)
		_, err = os.Stat(h.tenantDBs.Path(gone.DatabaseName))
		assert.ErrorIs(t, err, os.ErrNotExist, gone.ID)
	}
	for _, kept := range []domain.Tenant{active, recent} {
		_, err := h.store.Tenants().GetByID(ctx, kept.ID)
		assert.NoError(t, err, kept.ID)
		_, err = os.Stat(h.tenantDBs.Path(kept.DatabaseName))
		assert.NoError(t, err, kept.ID)
	}

	report, err = h.sweeper.Sweep(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestOrphanSweeper_ReapsFailedConversion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.dbs.failConnectAt = 2
	admin := h.newAdmin(t, "A", "a@x.com", domain.AdminActive)

	_, err := h.conversions.ConvertAdminToTenant(ctx, admin.ID, oakSchool())
	require.Error(t, err)

	h.clock.Set(baseTime.Add(48 * time.Hour))
	report, err := h.sweeper.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reaped)

	_, err = os.Stat(h.tenantDBs.Path("school_oak_school"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// The ledger keeps its history.
	records := h.records(t, admin.ID)
	require.Len(t, records, 1)
	assert.True(t, records[0].HasTenant())
}
