package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TenantStatus represents the lifecycle state of a provisioned school.
type TenantStatus string

const (
	TenantProvisioning TenantStatus = "provisioning"
	TenantActive       TenantStatus = "active"
	TenantFailed       TenantStatus = "failed"
)

// DefaultPlan is assigned when the school data carries no subscription plan.
const DefaultPlan = "basic"

// Tenant is an isolated school instance with its own database and domain.
type Tenant struct {
	ID           string
	Name         string
	Domain       string
	DatabaseName string
	Status       TenantStatus
	Plan         string
	Email        string
	Phone        string
	Address      string
	Settings     json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTenant creates a tenant in the initial "provisioning" state.
func NewTenant(id string, school SchoolData, domain string, now time.Time) Tenant {
	plan := strings.TrimSpace(school.SubscriptionPlan)
	if plan == "" {
		plan = DefaultPlan
	}
	return Tenant{
		ID:           id,
		Name:         strings.TrimSpace(school.Name),
		Domain:       domain,
		DatabaseName: DatabaseNameFor(domain),
		Status:       TenantProvisioning,
		Plan:         plan,
		Email:        NormalizeEmail(school.Email),
		Phone:        strings.TrimSpace(school.Phone),
		Address:      strings.TrimSpace(school.Address),
		Settings:     json.RawMessage(`{}`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Info returns the connection details handed back to callers.
func (t Tenant) Info() TenantInfo {
	return TenantInfo{TenantID: t.ID, Domain: t.Domain, Database: t.DatabaseName}
}

// TenantInfo identifies a provisioned tenant and its backing database.
type TenantInfo struct {
	TenantID string
	Domain   string
	Database string
}

// SchoolData is the caller-supplied description of the school being created.
type SchoolData struct {
	Name             string `json:"school_name" validate:"required,max=255"`
	Email            string `json:"school_email" validate:"required,email"`
	Phone            string `json:"school_phone,omitempty" validate:"omitempty,max=32"`
	Address          string `json:"school_address,omitempty" validate:"omitempty,max=500"`
	SubscriptionPlan string `json:"subscription_plan,omitempty" validate:"omitempty,oneof=basic standard premium"`
	PreferredDomain  string `json:"preferred_domain,omitempty" validate:"omitempty,max=63"`
}
