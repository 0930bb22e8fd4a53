package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// IdentityMigrator creates the owning user of a tenant from its admin.
type IdentityMigrator struct {
	dbs    domain.TenantDatabaseAdmin
	clock  domain.Clock
	logger *zap.Logger
}

// NewIdentityMigrator creates a migrator over the tenant database admin.
func NewIdentityMigrator(dbs domain.TenantDatabaseAdmin, clock domain.Clock, logger *zap.Logger) *IdentityMigrator {
	return &IdentityMigrator{dbs: dbs, clock: clock, logger: logger.Named("identity")}
}

// MigrateAdminDataToTenant copies the admin into the tenant database as its
// school owner with the admin role. The password hash is copied as is.
// A user already created for the same admin by an earlier attempt is reused.
func (m *IdentityMigrator) MigrateAdminDataToTenant(ctx context.Context, admin domain.Admin, info domain.TenantInfo, school domain.SchoolData) (domain.TenantIdentity, error) {
	fail := func(err error) (domain.TenantIdentity, error) {
		return domain.TenantIdentity{}, &domain.MigrationError{TenantID: info.TenantID, Err: err}
	}

	dir, err := m.dbs.Connect(ctx, info.Database)
	if err != nil {
		return fail(fmt.Errorf("connecting to tenant database: %w", err))
	}
	defer dir.Close()

	owner := domain.NewOwnerIdentity(admin, m.clock.Now())

	existing, err := dir.FindUserByEmail(ctx, owner.Email)
	switch {
	case err == nil:
		if existing.OriginAdminID != admin.ID {
			return fail(fmt.Errorf("email %s belongs to another tenant user", owner.Email))
		}
		owner = existing
	case errors.Is(err, domain.ErrUserNotFound):
		owner, err = dir.CreateUser(ctx, owner)
		if err != nil {
			return fail(fmt.Errorf("creating owner user: %w", err))
		}
	default:
		return fail(fmt.Errorf("looking up owner user: %w", err))
	}

	if err := dir.AssignRole(ctx, owner.ID, domain.RoleAdmin); err != nil {
		return fail(fmt.Errorf("assigning admin role: %w", err))
	}
	if err := dir.GrantAllPermissions(ctx, domain.RoleAdmin); err != nil {
		return fail(fmt.Errorf("granting admin permissions: %w", err))
	}

	m.logger.Info("owner identity migrated",
		zap.String("admin_id", admin.ID),
		zap.String("tenant_id", info.TenantID),
		zap.String("school", school.Name),
		zap.Int64("user_id", owner.ID),
	)
	return owner, nil
}
