package domain

import (
	"strings"
	"time"
)

// AdminStatus represents the lifecycle state of a central admin account.
type AdminStatus string

const (
	AdminPending   AdminStatus = "pending"
	AdminActive    AdminStatus = "active"
	AdminSettingUp AdminStatus = "setting_up"
	AdminConverted AdminStatus = "converted"
	AdminSuspended AdminStatus = "suspended"
)

// Valid reports whether s is one of the known admin statuses.
func (s AdminStatus) Valid() bool {
	switch s {
	case AdminPending, AdminActive, AdminSettingUp, AdminConverted, AdminSuspended:
		return true
	}
	return false
}

// Transition defines a valid administrative status change from Src to Dst.
type Transition struct {
	Src AdminStatus
	Dst AdminStatus
}

// Transitions is the administrative status table consumed by the FSM adapter.
// The conversion flow moves admins through setting_up and converted on its own
// and does not consult this table.
var Transitions = []Transition{
	{Src: AdminPending, Dst: AdminActive},
	{Src: AdminPending, Dst: AdminSuspended},
	{Src: AdminActive, Dst: AdminSettingUp},
	{Src: AdminActive, Dst: AdminSuspended},
	{Src: AdminSettingUp, Dst: AdminActive},
	{Src: AdminSettingUp, Dst: AdminConverted},
	{Src: AdminSettingUp, Dst: AdminSuspended},
	{Src: AdminSuspended, Dst: AdminActive},
	{Src: AdminSuspended, Dst: AdminPending},
}

// Admin is a central account representing a prospective school owner.
// Status is converted if and only if TenantID is set.
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	Status       AdminStatus
	TenantID     *string
	ConvertedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAdmin creates an admin in the initial "pending" state.
func NewAdmin(id, name, email, passwordHash, phone string, now time.Time) Admin {
	return Admin{
		ID:           id,
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Phone:        strings.TrimSpace(phone),
		Status:       AdminPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NormalizeEmail lowercases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Eligibility returns an empty string when the admin may start a conversion,
// otherwise the reason it may not.
func (a Admin) Eligibility() string {
	switch {
	case a.Status == AdminConverted:
		return "admin is already converted"
	case a.Status != AdminActive && a.Status != AdminPending:
		return "admin status " + string(a.Status) + " cannot be converted"
	case strings.TrimSpace(a.Email) == "":
		return "admin email is required"
	case strings.TrimSpace(a.Name) == "":
		return "admin name is required"
	}
	return ""
}

// Snapshot captures the admin fields a failed conversion may need to restore.
func (a Admin) Snapshot() AdminSnapshot {
	return AdminSnapshot{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Phone:       a.Phone,
		Status:      a.Status,
		TenantID:    a.TenantID,
		ConvertedAt: a.ConvertedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// AdminSnapshot is the prior admin state stored on a conversion record.
// It never holds the password hash.
type AdminSnapshot struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	Status      AdminStatus `json:"status"`
	TenantID    *string     `json:"tenant_id,omitempty"`
	ConvertedAt *time.Time  `json:"converted_at,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
