package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// Provisioning steps reported in domain.ProvisioningError.
const (
	StepAllocateDomain  = "allocate domain"
	StepRegisterTenant  = "register tenant"
	StepRecordTenant    = "record tenant"
	StepCreateDatabase  = "create database"
	StepMigrateDatabase = "migrate database"
	StepSeedDirectory   = "seed roles and permissions"
)

// maxDomainSuffix bounds the collision search of AllocateDomain.
const maxDomainSuffix = 1000

// Provisioner allocates tenants and brings their databases to a usable
// baseline: schema, default roles, permissions and admin grants.
type Provisioner struct {
	tenants domain.TenantRepository
	dbs     domain.TenantDatabaseAdmin
	clock   domain.Clock
	logger  *zap.Logger
}

// NewProvisioner creates a provisioner with the given adapters.
func NewProvisioner(tenants domain.TenantRepository, dbs domain.TenantDatabaseAdmin, clock domain.Clock, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		tenants: tenants,
		dbs:     dbs,
		clock:   clock,
		logger:  logger.Named("provisioner"),
	}
}

// CreateTenantDatabase registers a tenant for school and prepares its
// database. On failure the tenant row, when created, is returned alongside
// the error so the caller can clean up.
func (p *Provisioner) CreateTenantDatabase(ctx context.Context, school domain.SchoolData) (domain.Tenant, error) {
	tenant, err := p.Register(ctx, school)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := p.Prepare(ctx, tenant); err != nil {
		return tenant, err
	}
	return tenant, nil
}

// AllocateDomain derives a free domain from the preferred domain, or the
// school name when none is given. Collisions get a -1, -2, ... suffix.
func (p *Provisioner) AllocateDomain(ctx context.Context, school domain.SchoolData) (string, error) {
	source := strings.TrimSpace(school.PreferredDomain)
	if source == "" {
		source = school.Name
	}

	base := domain.Slugify(source)
	if domain.IsReservedDomain(base) {
		return "", &domain.ProvisioningError{Step: StepAllocateDomain, Err: &domain.ReservedDomainError{Domain: base}}
	}

	for n := 0; n <= maxDomainSuffix; n++ {
		candidate := base
		if n > 0 {
			candidate = domain.WithSuffix(base, n)
		}
		exists, err := p.tenants.DomainExists(ctx, candidate)
		if err != nil {
			return "", &domain.ProvisioningError{Step: StepAllocateDomain, Err: err}
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", &domain.ProvisioningError{
		Step: StepAllocateDomain,
		Err:  fmt.Errorf("no free domain for %q up to suffix %d", base, maxDomainSuffix),
	}
}

// Register allocates a domain and inserts the tenant row in "provisioning".
// A unique-constraint collision at insert time fails without retrying.
func (p *Provisioner) Register(ctx context.Context, school domain.SchoolData) (domain.Tenant, error) {
	domainName, err := p.AllocateDomain(ctx, school)
	if err != nil {
		return domain.Tenant{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, &domain.ProvisioningError{Step: StepRegisterTenant, Err: fmt.Errorf("generating tenant id: %w", err)}
	}

	tenant := domain.NewTenant(id, school, domainName, p.clock.Now())
	if err := p.tenants.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, &domain.ProvisioningError{Step: StepRegisterTenant, Err: err}
	}

	p.logger.Info("tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("domain", tenant.Domain),
		zap.String("database", tenant.DatabaseName),
	)
	return tenant, nil
}

// Prepare creates the tenant database if absent, migrates it and seeds the
// default roles and permissions. Every step is idempotent, so Prepare may be
// re-run against a partially prepared database.
func (p *Provisioner) Prepare(ctx context.Context, tenant domain.Tenant) error {
	if err := p.dbs.CreateDatabase(ctx, tenant.DatabaseName); err != nil {
		return &domain.ProvisioningError{Step: StepCreateDatabase, Err: err}
	}
	if err := p.dbs.MigrateDatabase(ctx, tenant.DatabaseName); err != nil {
		return &domain.ProvisioningError{Step: StepMigrateDatabase, Err: err}
	}
	if err := p.seed(ctx, tenant.DatabaseName); err != nil {
		return &domain.ProvisioningError{Step: StepSeedDirectory, Err: err}
	}

	p.logger.Info("tenant database prepared",
		zap.String("tenant_id", tenant.ID),
		zap.String("database", tenant.DatabaseName),
	)
	return nil
}

func (p *Provisioner) seed(ctx context.Context, database string) (err error) {
	dir, err := p.dbs.Connect(ctx, database)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, dir.Close())
	}()

	if err := dir.EnsureRoles(ctx, domain.DefaultRoles); err != nil {
		return err
	}
	if err := dir.EnsurePermissions(ctx, domain.DefaultPermissions); err != nil {
		return err
	}
	return dir.GrantAllPermissions(ctx, domain.RoleAdmin)
}
