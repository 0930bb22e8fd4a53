package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrAdminNotFound      = errors.New("admin not found")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrConversionNotFound = errors.New("conversion not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrRoleNotFound       = errors.New("role not found")
	ErrUserNotFound       = errors.New("tenant user not found")
)

// Machine-readable error codes returned to callers.
const (
	CodeIneligibleAdmin      = "ineligible_admin"
	CodeConversionInProgress = "conversion_in_progress"
	CodeProvisioningFailed   = "provisioning_failed"
	CodeMigrationFailed      = "migration_failed"
	CodeInvalidTransition    = "invalid_transition"
	CodeNotFound             = "not_found"
	CodeInvalidInput         = "invalid_input"
	CodeUnauthorized         = "unauthorized"
	CodeInternal             = "internal"
)

// IneligibleAdminError is returned when an admin does not meet the
// requirements for a conversion.
type IneligibleAdminError struct {
	AdminID string
	Reason  string
}

func (e *IneligibleAdminError) Error() string {
	return fmt.Sprintf("admin %s is not eligible for conversion: %s", e.AdminID, e.Reason)
}

// ConversionInProgressError is returned when another conversion of the same
// admin is already running.
type ConversionInProgressError struct {
	AdminID string
}

func (e *ConversionInProgressError) Error() string {
	return fmt.Sprintf("a conversion is already in progress for admin %s", e.AdminID)
}

// ProvisioningError is returned when the tenant row, database, schema or seed
// data could not be created.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot succeed without changing the input.
func (e *ProvisioningError) Permanent() bool {
	var reserved *ReservedDomainError
	var conflict *DomainConflictError
	return errors.As(e.Err, &reserved) || errors.As(e.Err, &conflict)
}

// MigrationError is returned when the admin identity could not be copied into
// the tenant database.
type MigrationError struct {
	TenantID string
	Err      error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrating identity into tenant %s: %v", e.TenantID, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a status change is not allowed.
type InvalidTransitionError struct {
	From AdminStatus
	To   AdminStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition from %q to %q is not allowed", e.From, e.To)
}

// DomainConflictError is returned when a tenant domain or database name is
// already registered.
type DomainConflictError struct {
	Domain string
}

func (e *DomainConflictError) Error() string {
	return fmt.Sprintf("domain %q is already in use", e.Domain)
}

// ReservedDomainError is returned when a requested domain is kept for platform use.
type ReservedDomainError struct {
	Domain string
}

func (e *ReservedDomainError) Error() string {
	return fmt.Sprintf("domain %q is reserved", e.Domain)
}

// ValidationError wraps caller input that failed validation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConversionError is the single failure signal of a conversion attempt. It
// carries the attempt identifiers and unwraps to the underlying cause.
type ConversionError struct {
	AdminID      string
	ConversionID string
	Err          error
}

func (e *ConversionError) Error() string {
	if e.ConversionID == "" {
		return fmt.Sprintf("converting admin %s: %v", e.AdminID, e.Err)
	}
	return fmt.Sprintf("converting admin %s (conversion %s): %v", e.AdminID, e.ConversionID, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ErrorCode maps an error to its machine-readable code.
func ErrorCode(err error) string {
	var (
		ineligible *IneligibleAdminError
		inProgress *ConversionInProgressError
		provision  *ProvisioningError
		migration  *MigrationError
		transition *InvalidTransitionError
		validation *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ineligible):
		return CodeIneligibleAdmin
	case errors.As(err, &inProgress):
		return CodeConversionInProgress
	case errors.As(err, &provision):
		return CodeProvisioningFailed
	case errors.As(err, &migration):
		return CodeMigrationFailed
	case errors.As(err, &transition):
		return CodeInvalidTransition
	case errors.As(err, &validation), errors.Is(err, ErrEmailTaken):
		return CodeInvalidInput
	case errors.Is(err, ErrAdminNotFound), errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrConversionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return CodeUnauthorized
	}
	return CodeInternal
}
