package account

import (
	"fmt"
	"time"
)

// Role determines how an account participates in reward distribution.
type Role string

const (
	RoleUser   Role = "user"
	RoleAnchor Role = "anchor"
	RoleAgency Role = "agency"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAnchor, RoleAgency, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Status is the lifecycle state of an account. Accounts are never removed;
// deletion is a status.
type Status string

const (
	StatusActive    Status = "active"
	StatusBanned    Status = "banned"
	StatusSuspended Status = "suspended"
	StatusDeleted   Status = "deleted"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusBanned, StatusSuspended, StatusDeleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Account represents one platform identity.
type Account struct {
	ID          string
	Role        Role
	Status      Status
	DisplayName string
	// AgencyID is the managing agency, empty when unmanaged.
	AgencyID string
	// ReferrerID is the direct referrer, empty when the account was not invited.
	ReferrerID    string
	ReferralLevel int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account can transact.
func (a Account) Active() bool {
	return a.Status == StatusActive
}

// RegisterInput captures the data needed to open an account.
type RegisterInput struct {
	Role        Role
	DisplayName string
	AgencyID    string
	ReferrerID  string
}
