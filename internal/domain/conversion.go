package domain

import (
	"errors"
	"strings"
	"time"
)

// ConversionStatus is the state of a single conversion attempt.
type ConversionStatus string

const (
	ConversionInitiated ConversionStatus = "initiated"
	ConversionCompleted ConversionStatus = "completed"
	ConversionFailed    ConversionStatus = "failed"

	// ConversionNotStarted is reported by status queries for admins without any attempt.
	// It is never persisted.
	ConversionNotStarted ConversionStatus = "not_started"
)

// RollbackNote is the error message recorded on manually rolled back conversions.
const RollbackNote = "manually rolled back"

// ConversionRecord is the ledger entry of one conversion attempt.
type ConversionRecord struct {
	ID           string
	AdminID      string
	Snapshot     AdminSnapshot
	TenantID     *string
	TenantDomain *string
	Status       ConversionStatus
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	RolledBackAt *time.Time
}

// NewConversionRecord opens a ledger entry in the "initiated" state.
func NewConversionRecord(id string, admin Admin, now time.Time) ConversionRecord {
	return ConversionRecord{
		ID:        id,
		AdminID:   admin.ID,
		Snapshot:  admin.Snapshot(),
		Status:    ConversionInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the field constraints of a ledger entry.
func (r ConversionRecord) Validate() error {
	var errs []error
	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, errors.New("conversion id is required"))
	}
	if strings.TrimSpace(r.AdminID) == "" {
		errs = append(errs, errors.New("admin id is required"))
	}
	switch r.Status {
	case ConversionInitiated, ConversionCompleted:
	case ConversionFailed:
		if r.ErrorMessage == nil || strings.TrimSpace(*r.ErrorMessage) == "" {
			errs = append(errs, errors.New("failed conversion requires an error message"))
		}
	default:
		errs = append(errs, errors.New("unknown conversion status "+string(r.Status)))
	}
	return errors.Join(errs...)
}

// HasTenant reports whether provisioning got far enough to register a tenant.
func (r ConversionRecord) HasTenant() bool {
	return r.TenantID != nil && *r.TenantID != ""
}

// RolledBack reports whether the record was undone by a manual rollback.
func (r ConversionRecord) RolledBack() bool {
	return r.RolledBackAt != nil
}

// ConversionSummary is the status view returned to callers.
type ConversionSummary struct {
	Status       ConversionStatus
	ConversionID string
	TenantDomain string
	ErrorMessage string
	CompletedAt  *time.Time
}

// SummaryOf builds the caller-facing view of a ledger entry.
func SummaryOf(r ConversionRecord) ConversionSummary {
	s := ConversionSummary{
		Status:       r.Status,
		ConversionID: r.ID,
		CompletedAt:  r.CompletedAt,
	}
	if r.TenantDomain != nil {
		s.TenantDomain = *r.TenantDomain
	}
	if r.ErrorMessage != nil {
		s.ErrorMessage = *r.ErrorMessage
	}
	return s
}
