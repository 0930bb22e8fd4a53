package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/neomorfeo/schoolhub/internal/domain"
)

// NewAdminInput is the data required to provision a central admin.
type NewAdminInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// AdminService manages central admin accounts.
type AdminService struct {
	admins    domain.AdminRepository
	tx        domain.TxRunner
	hasher    domain.PasswordHasher
	validator domain.TransitionValidator
	locker    domain.AdminLocker
	clock     domain.Clock
	logger    *zap.Logger
}

// NewAdminService creates a service with the given adapters. The locker must
// be the one shared with ConversionService.
func NewAdminService(admins domain.AdminRepository, tx domain.TxRunner, hasher domain.PasswordHasher, validator domain.TransitionValidator, locker domain.AdminLocker, clock domain.Clock, logger *zap.Logger) *AdminService {
	return &AdminService{
		admins:    admins,
		tx:        tx,
		hasher:    hasher,
		validator: validator,
		locker:    locker,
		clock:     clock,
		logger:    logger.Named("admins"),
	}
}

// ProvisionAdmin creates a pending admin.
func (s *AdminService) ProvisionAdmin(ctx context.Context, in NewAdminInput) (domain.Admin, error) {
	if err := validateInput(in); err != nil {
		return domain.Admin{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.Admin{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Admin{}, fmt.Errorf("generating admin id: %w", err)
	}

	admin := domain.NewAdmin(id, in.Name, in.Email, hash, in.Phone, s.clock.Now())
	if err := s.admins.Create(ctx, admin); err != nil {
		return domain.Admin{}, err
	}

	s.logger.Info("admin provisioned", zap.String("admin_id", admin.ID))
	return admin, nil
}

// GetAdmin returns an admin by id.
func (s *AdminService) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	return s.admins.GetByID(ctx, id)
}

// Authenticate verifies the credentials of an admin. The first successful
// login of a pending admin activates it. Unknown emails and wrong passwords
// both fail with domain.ErrInvalidCredentials.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (domain.Admin, error) {
	admin, err := s.admins.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrAdminNotFound) {
		return domain.Admin{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Admin{}, err
	}

	if err := s.hasher.Compare(admin.PasswordHash, password); err != nil {
		return domain.Admin{}, err
	}
	if admin.Status != domain.AdminPending {
		return admin, nil
	}

	unlock, ok := s.locker.TryLock(admin.ID)
	if !ok {
		return admin, nil
	}
	defer unlock()

	var activated domain.Admin
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.admins.GetByID(ctx, admin.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.AdminPending {
			activated = current
			return nil
		}
		if err := s.validator.Validate(ctx, current.Status, domain.AdminActive); err != nil {
			return err
		}
		current.Status = domain.AdminActive
		current.UpdatedAt = s.clock.Now()
		if err := s.admins.Update(ctx, current); err != nil {
			return fmt.Errorf("activating admin: %w", err)
		}
		activated = current
		return nil
	})
	if err != nil {
		return domain.Admin{}, err
	}

	s.logger.Info("admin activated on first login", zap.String("admin_id", admin.ID))
	return activated, nil
}
