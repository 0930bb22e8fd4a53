package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// compensationTimeout bounds the cleanup of a failed conversion, which runs
// even after the caller's context is done.
const compensationTimeout = 30 * time.Second

// ConversionDeps are the collaborators of ConversionService. Observer and
// Notifier may be nil.
type ConversionDeps struct {
	Admins    domain.AdminRepository
	Tenants   domain.TenantRepository
	Ledger    domain.ConversionLedger
	Tx        domain.TxRunner
	Databases domain.TenantDatabaseAdmin
	Validator domain.TransitionValidator
	Notifier  domain.ConversionNotifier
	Locker    domain.AdminLocker
	Clock     domain.Clock
	Observer  domain.ConversionObserver
	Logger    *zap.Logger
}

// ConversionOption customises a ConversionService.
type ConversionOption func(*ConversionService)

// WithRestoreStatusOnFailure makes failed conversions put the admin back into
// the status captured before the attempt instead of "active".
func WithRestoreStatusOnFailure(restore bool) ConversionOption {
	return func(s *ConversionService) { s.restoreStatus = restore }
}

// ConversionService turns central admins into tenants and owns the
// administrative status rules of admins.
type ConversionService struct {
	admins      domain.AdminRepository
	tenants     domain.TenantRepository
	ledger      domain.ConversionLedger
	tx          domain.TxRunner
	dbs         domain.TenantDatabaseAdmin
	validator   domain.TransitionValidator
	notifier    domain.ConversionNotifier
	locker      domain.AdminLocker
	clock       domain.Clock
	observer    domain.ConversionObserver
	logger      *zap.Logger
	provisioner *Provisioner
	migrator    *IdentityMigrator

	restoreStatus bool
}

// NewConversionService creates a service with the given adapters.
func NewConversionService(deps ConversionDeps, opts ...ConversionOption) *ConversionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewKeyedLocker()
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	s := &ConversionService{
		admins:      deps.Admins,
		tenants:     deps.Tenants,
		ledger:      deps.Ledger,
		tx:          deps.Tx,
		dbs:         deps.Databases,
		validator:   deps.Validator,
		notifier:    deps.Notifier,
		locker:      locker,
		clock:       clock,
		observer:    observer,
		logger:      logger.Named("conversion"),
		provisioner: NewProvisioner(deps.Tenants, deps.Databases, clock, logger),
		migrator:    NewIdentityMigrator(deps.Databases, clock, logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConversionResult is returned by a successful conversion.
type ConversionResult struct {
	Tenant       domain.Tenant
	Identity     domain.TenantIdentity
	ConversionID string
}

// Eligibility reports whether an admin can start a conversion now.
type Eligibility struct {
	Eligible bool
	Reason   string
}

// attempt carries the state of one conversion between saga steps.
type attempt struct {
	admin  domain.Admin
	record domain.ConversionRecord
	tenant *domain.Tenant
}

// ConvertAdminToTenant provisions a tenant for school and moves the admin
// into it as the school owner. Every failure is returned as a
// *domain.ConversionError that unwraps to its cause.
//
// Central changes run as local transactions around the tenant-side steps.
// When a step fails the ledger entry is marked failed, the admin is reset and
// a registered tenant is marked failed. The tenant database is left for
// RollbackConversion or the orphan sweep.
func (s *ConversionService) ConvertAdminToTenant(ctx context.Context, adminID string, school domain.SchoolData) (ConversionResult, error) {
	start := time.Now()

	result, err := s.convert(ctx, adminID, school)
	if err != nil {
		s.observer.ConversionFinished(ctx, domain.ConversionFailed, domain.ErrorCode(err), time.Since(start))
		return ConversionResult{}, err
	}

	s.observer.ConversionFinished(ctx, domain.ConversionCompleted, "", time.Since(start))
	return result, nil
}

func (s *ConversionService) convert(ctx context.Context, adminID string, school domain.SchoolData) (ConversionResult, error) {
	fail := func(conversionID string, err error) (ConversionResult, error) {
		return ConversionResult{}, &domain.ConversionError{AdminID: adminID, ConversionID: conversionID, Err: err}
	}

	if err := validateInput(school); err != nil {
		return fail("", err)
	}

	unlock, ok := s.locker.TryLock(adminID)
	if !ok {
		return fail("", &domain.ConversionInProgressError{AdminID: adminID})
	}
	defer unlock()

	att, err := s.begin(ctx, adminID)
	if err != nil {
		return fail("", err)
	}

	log := s.logger.With(zap.String("admin_id", adminID), zap.String("conversion_id", att.record.ID))
	log.Info("conversion started")

	identity, err := s.provision(ctx, att, school)
	if err == nil {
		err = s.finish(ctx, att)
	}
	if err != nil {
		log.Error("conversion failed", zap.Error(err))
		s.compensate(ctx, att, err)
		return fail(att.record.ID, err)
	}

	log.Info("conversion completed",
		zap.String("tenant_id", att.tenant.ID),
		zap.String("domain", att.tenant.Domain),
	)
	s.notify(ctx, att, school)

	return ConversionResult{Tenant: *att.tenant, Identity: identity, ConversionID: att.record.ID}, nil
}

// begin checks the admin and opens the ledger entry, moving the admin to
// setting_up in the same transaction.
func (s *ConversionService) begin(ctx context.Context, adminID string) (*attempt, error) {
	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("generating conversion id: %w", err)
	}

	att := &attempt{}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.admins.GetByID(ctx, adminID)
		if err != nil {
			return err
		}

		latest, found, err := s.ledger.LatestFor(ctx, adminID)
		if err != nil {
			return err
		}
		if found && latest.Status == domain.ConversionInitiated {
			return &domain.ConversionInProgressError{AdminID: adminID}
		}
		if reason := admin.Eligibility(); reason != "" {
			return &domain.IneligibleAdminError{AdminID: adminID, Reason: reason}
		}

		now := s.clock.Now()
		record := domain.NewConversionRecord(id, admin, now)
		if err := s.ledger.Create(ctx, record); err != nil {
			return err
		}

		admin.Status = domain.AdminSettingUp
		admin.UpdatedAt = now
		if err := s.admins.Update(ctx, admin); err != nil {
			return fmt.Errorf("moving admin to setting_up: %w", err)
		}

		att.admin = admin
		att.record = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return att, nil
}

// provision registers the tenant, records it on the ledger, prepares its
// database and migrates the owner identity.
func (s *ConversionService) provision(ctx context.Context, att *attempt, school domain.SchoolData) (domain.TenantIdentity, error) {
	tenant, err := s.provisioner.Register(ctx, school)
	if err != nil {
		return domain.TenantIdentity{}, err
	}
	att.tenant = &tenant

	if err := s.ledger.UpdateTenantInfo(ctx, att.record.ID, tenant.ID, tenant.Domain, s.clock.Now()); err != nil {
		return domain.TenantIdentity{}, &domain.ProvisioningError{Step: StepRecordTenant, Err: err}
	}

	if err := s.provisioner.Prepare(ctx, tenant); err != nil {
		return domain.TenantIdentity{}, err
	}

	return s.migrator.MigrateAdminDataToTenant(ctx, att.admin, tenant.Info(), school)
}

// finish completes the ledger entry, activates the tenant and converts the
// admin in one transaction.
func (s *ConversionService) finish(ctx context.Context, att *attempt) error {
	now := s.clock.Now()
	tenant := att.tenant

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.admins.GetByID(ctx, att.admin.ID)
		if err != nil {
			return fmt.Errorf("reloading admin: %w", err)
		}
		if admin.Status != domain.AdminSettingUp {
			return fmt.Errorf("admin status changed to %s during conversion", admin.Status)
		}

		if err := s.ledger.MarkCompleted(ctx, att.record.ID, now); err != nil {
			return fmt.Errorf("completing conversion record: %w", err)
		}
		if err := s.tenants.UpdateStatus(ctx, tenant.ID, domain.TenantActive, now); err != nil {
			return fmt.Errorf("activating tenant: %w", err)
		}

		admin.Status = domain.AdminConverted
		admin.TenantID = &tenant.ID
		admin.ConvertedAt = &now
		admin.UpdatedAt = now
		if err := s.admins.Update(ctx, admin); err != nil {
			return fmt.Errorf("converting admin: %w", err)
		}
		att.admin = admin
		return nil
	})
	if err != nil {
		return err
	}

	tenant.Status = domain.TenantActive
	tenant.UpdatedAt = now
	return nil
}

// compensate resets the admin and the tenant, then records the failure. It
// runs detached from ctx cancellation so a timed-out request still leaves
// consistent state. A ledger error does not undo the admin reset.
func (s *ConversionService) compensate(ctx context.Context, att *attempt, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	log := s.logger.With(
		zap.String("admin_id", att.admin.ID),
		zap.String("conversion_id", att.record.ID),
	)

	now := s.clock.Now()
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.admins.GetByID(ctx, att.admin.ID)
		if err != nil {
			return fmt.Errorf("reloading admin: %w", err)
		}
		admin.Status = domain.AdminActive
		if s.restoreStatus {
			admin.Status = att.record.Snapshot.Status
		}
		admin.TenantID = nil
		admin.ConvertedAt = nil
		admin.UpdatedAt = now
		if err := s.admins.Update(ctx, admin); err != nil {
			return fmt.Errorf("resetting admin: %w", err)
		}

		if att.tenant != nil {
			if err := s.tenants.UpdateStatus(ctx, att.tenant.ID, domain.TenantFailed, now); err != nil && !errors.Is(err, domain.ErrTenantNotFound) {
				return fmt.Errorf("marking tenant failed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("compensating failed conversion", zap.Error(err))
	}

	if err := s.ledger.MarkFailed(ctx, att.record.ID, cause.Error(), now); err != nil {
		log.Error("marking conversion failed", zap.Error(err))
	}
}

func (s *ConversionService) notify(ctx context.Context, att *attempt, school domain.SchoolData) {
	if s.notifier == nil {
		return
	}
	event := domain.ConversionCompletedEvent{
		ConversionID: att.record.ID,
		AdminID:      att.admin.ID,
		AdminName:    att.admin.Name,
		AdminEmail:   att.admin.Email,
		TenantID:     att.tenant.ID,
		TenantDomain: att.tenant.Domain,
		SchoolName:   att.tenant.Name,
	}
	if event.SchoolName == "" {
		event.SchoolName = school.Name
	}
	if err := s.notifier.ConversionCompleted(ctx, event); err != nil {
		s.logger.Warn("notifying conversion completed",
			zap.String("admin_id", att.admin.ID),
			zap.String("conversion_id", att.record.ID),
			zap.Error(err),
		)
	}
}

// ValidateConversionRequirements reports whether the admin may be converted.
// An error is returned only when the admin cannot be loaded.
func (s *ConversionService) ValidateConversionRequirements(ctx context.Context, adminID string) (Eligibility, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return Eligibility{}, err
	}

	latest, found, err := s.ledger.LatestFor(ctx, adminID)
	if err != nil {
		return Eligibility{}, err
	}
	if found && latest.Status == domain.ConversionInitiated {
		return Eligibility{Reason: "a conversion is already in progress"}, nil
	}
	if reason := admin.Eligibility(); reason != "" {
		return Eligibility{Reason: reason}, nil
	}
	return Eligibility{Eligible: true}, nil
}

// GetConversionStatus summarises the latest conversion of the admin.
func (s *ConversionService) GetConversionStatus(ctx context.Context, adminID string) (domain.ConversionSummary, error) {
	if _, err := s.admins.GetByID(ctx, adminID); err != nil {
		return domain.ConversionSummary{}, err
	}

	latest, found, err := s.ledger.LatestFor(ctx, adminID)
	if err != nil {
		return domain.ConversionSummary{}, err
	}
	if !found {
		return domain.ConversionSummary{Status: domain.ConversionNotStarted}, nil
	}
	return domain.SummaryOf(latest), nil
}

// ListConversions returns every conversion attempt of the admin, newest first.
func (s *ConversionService) ListConversions(ctx context.Context, adminID string) ([]domain.ConversionRecord, error) {
	if _, err := s.admins.GetByID(ctx, adminID); err != nil {
		return nil, err
	}
	return s.ledger.ListFor(ctx, adminID)
}

// RollbackConversion undoes a finished conversion: it drops the tenant
// database and deletes the tenant. An admin attached to that tenant, or left
// in setting_up, is reset to active; any other admin status is kept. It returns
// false, after logging the reason, when the conversion cannot be rolled back.
func (s *ConversionService) RollbackConversion(ctx context.Context, conversionID string) bool {
	log := s.logger.With(zap.String("conversion_id", conversionID))

	err := s.rollback(ctx, conversionID)
	s.observer.RollbackFinished(ctx, err == nil)
	if err != nil {
		log.Warn("conversion not rolled back", zap.Error(err))
		return false
	}

	log.Info("conversion rolled back")
	return true
}

func (s *ConversionService) rollback(ctx context.Context, conversionID string) error {
	rec, err := s.ledger.Get(ctx, conversionID)
	if err != nil {
		return fmt.Errorf("loading conversion: %w", err)
	}

	unlock, ok := s.locker.TryLock(rec.AdminID)
	if !ok {
		return &domain.ConversionInProgressError{AdminID: rec.AdminID}
	}
	defer unlock()

	// Re-read under the lock.
	rec, err = s.ledger.Get(ctx, conversionID)
	if err != nil {
		return fmt.Errorf("loading conversion: %w", err)
	}
	switch {
	case rec.Status == domain.ConversionInitiated:
		return errors.New("conversion is still in progress")
	case rec.RolledBack():
		return errors.New("conversion is already rolled back")
	}
	if err := s.checkTenantOwnership(ctx, rec); err != nil {
		return err
	}

	var tenant *domain.Tenant
	if rec.HasTenant() {
		t, err := s.tenants.GetByID(ctx, *rec.TenantID)
		switch {
		case err == nil:
			tenant = &t
		case errors.Is(err, domain.ErrTenantNotFound):
		default:
			return fmt.Errorf("loading tenant: %w", err)
		}
	}

	if tenant != nil {
		if err := s.dbs.DropDatabase(ctx, tenant.DatabaseName); err != nil {
			return fmt.Errorf("dropping tenant database: %w", err)
		}
	}

	now := s.clock.Now()
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.admins.GetByID(ctx, rec.AdminID)
		if err != nil {
			return fmt.Errorf("loading admin: %w", err)
		}

		switch {
		case admin.TenantID != nil && rec.HasTenant() && *admin.TenantID == *rec.TenantID,
			admin.TenantID == nil && admin.Status == domain.AdminSettingUp:
			admin.Status = domain.AdminActive
			admin.TenantID = nil
			admin.ConvertedAt = nil
			admin.UpdatedAt = now
			if err := s.admins.Update(ctx, admin); err != nil {
				return fmt.Errorf("resetting admin: %w", err)
			}
		case admin.TenantID != nil:
			s.logger.Info("admin belongs to another tenant, left unchanged",
				zap.String("admin_id", admin.ID),
				zap.String("conversion_id", rec.ID),
			)
		}

		if tenant != nil {
			if err := s.tenants.Delete(ctx, tenant.ID); err != nil && !errors.Is(err, domain.ErrTenantNotFound) {
				return fmt.Errorf("deleting tenant: %w", err)
			}
		}

		if err := s.ledger.MarkRolledBack(ctx, rec.ID, now); err != nil {
			return fmt.Errorf("marking conversion rolled back: %w", err)
		}
		return nil
	})
}

// checkTenantOwnership refuses to roll back a failed conversion whose tenant
// was later attached to the admin through a newer completed conversion.
func (s *ConversionService) checkTenantOwnership(ctx context.Context, rec domain.ConversionRecord) error {
	if rec.Status != domain.ConversionFailed || !rec.HasTenant() {
		return nil
	}
	records, err := s.ledger.ListFor(ctx, rec.AdminID)
	if err != nil {
		return fmt.Errorf("listing conversions: %w", err)
	}
	for _, other := range records {
		if other.ID == rec.ID || other.Status != domain.ConversionCompleted || other.RolledBack() || !other.HasTenant() {
			continue
		}
		if *other.TenantID == *rec.TenantID {
			return fmt.Errorf("tenant %s is owned by conversion %s", *rec.TenantID, other.ID)
		}
	}
	return nil
}

// UpdateAdminStatus applies an administrative status change. Moving to
// converted attaches the tenant of the admin's latest conversion, which must
// have been provisioned. Its database is prepared and the owner identity
// migrated again before the admin is attached, so the admin always owns a
// user in the tenant. A failed ledger entry stays failed; the attachment is
// recorded as a new completed entry.
func (s *ConversionService) UpdateAdminStatus(ctx context.Context, adminID string, to domain.AdminStatus) (domain.Admin, error) {
	unlock, ok := s.locker.TryLock(adminID)
	if !ok {
		return domain.Admin{}, &domain.ConversionInProgressError{AdminID: adminID}
	}
	defer unlock()

	var target *domain.Tenant
	if to == domain.AdminConverted {
		tenant, err := s.prepareAttachment(ctx, adminID, to)
		if err != nil {
			return domain.Admin{}, err
		}
		target = &tenant
	}

	var updated domain.Admin
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		admin, err := s.admins.GetByID(ctx, adminID)
		if err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, admin.Status, to); err != nil {
			return err
		}

		latest, found, err := s.ledger.LatestFor(ctx, adminID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if target != nil {
			if err := s.attach(ctx, admin, latest, found, *target, now); err != nil {
				return err
			}
			admin.TenantID = &target.ID
			admin.ConvertedAt = &now
		} else {
			if admin.Status == domain.AdminSettingUp && found && latest.Status == domain.ConversionInitiated {
				msg := fmt.Sprintf("interrupted by status change to %s", to)
				if err := s.ledger.MarkFailed(ctx, latest.ID, msg, now); err != nil {
					return fmt.Errorf("failing interrupted conversion: %w", err)
				}
			}
			admin.TenantID = nil
			admin.ConvertedAt = nil
		}

		admin.Status = to
		admin.UpdatedAt = now
		if err := s.admins.Update(ctx, admin); err != nil {
			return fmt.Errorf("updating admin: %w", err)
		}
		updated = admin
		return nil
	})
	if err != nil {
		return domain.Admin{}, err
	}

	s.logger.Info("admin status updated", zap.String("admin_id", adminID), zap.String("status", string(to)))
	return updated, nil
}

// prepareAttachment checks the transition, finds the tenant of the latest
// conversion and makes sure its database and owner user exist.
func (s *ConversionService) prepareAttachment(ctx context.Context, adminID string, to domain.AdminStatus) (domain.Tenant, error) {
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if err := s.validator.Validate(ctx, admin.Status, to); err != nil {
		return domain.Tenant{}, err
	}

	latest, found, err := s.ledger.LatestFor(ctx, adminID)
	if err != nil {
		return domain.Tenant{}, err
	}
	tenant, err := s.provisionedTenant(ctx, latest, found, adminID)
	if err != nil {
		return domain.Tenant{}, err
	}

	if err := s.provisioner.Prepare(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}
	school := domain.SchoolData{Name: tenant.Name, Email: tenant.Email, Phone: tenant.Phone, Address: tenant.Address}
	if _, err := s.migrator.MigrateAdminDataToTenant(ctx, admin, tenant.Info(), school); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

// attach completes the ledger side of an administrative conversion and
// activates the tenant. It must run inside the status update transaction.
func (s *ConversionService) attach(ctx context.Context, admin domain.Admin, latest domain.ConversionRecord, found bool, tenant domain.Tenant, now time.Time) error {
	if !found || !latest.HasTenant() || *latest.TenantID != tenant.ID || latest.RolledBack() {
		return &domain.IneligibleAdminError{AdminID: admin.ID, Reason: "latest conversion changed"}
	}

	switch latest.Status {
	case domain.ConversionInitiated:
		if err := s.ledger.MarkCompleted(ctx, latest.ID, now); err != nil {
			return fmt.Errorf("completing conversion record: %w", err)
		}
	case domain.ConversionFailed:
		id, err := generateID()
		if err != nil {
			return fmt.Errorf("generating conversion id: %w", err)
		}
		rec := domain.NewConversionRecord(id, admin, now)
		rec.TenantID = &tenant.ID
		rec.TenantDomain = &tenant.Domain
		rec.Status = domain.ConversionCompleted
		rec.CompletedAt = &now
		if err := s.ledger.Create(ctx, rec); err != nil {
			return fmt.Errorf("recording administrative conversion: %w", err)
		}
	}

	if err := s.tenants.UpdateStatus(ctx, tenant.ID, domain.TenantActive, now); err != nil {
		return fmt.Errorf("activating tenant: %w", err)
	}
	return nil
}

func (s *ConversionService) provisionedTenant(ctx context.Context, latest domain.ConversionRecord, found bool, adminID string) (domain.Tenant, error) {
	noTenant := &domain.IneligibleAdminError{AdminID: adminID, Reason: "no provisioned tenant"}
	if !found || !latest.HasTenant() || latest.RolledBack() {
		return domain.Tenant{}, noTenant
	}

	tenant, err := s.tenants.GetByID(ctx, *latest.TenantID)
	if errors.Is(err, domain.ErrTenantNotFound) {
		return domain.Tenant{}, noTenant
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("loading tenant: %w", err)
	}
	return tenant, nil
}
