package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// adminScanLimit bounds the admin lookup.
const adminScanLimit = 50

// Service manages the account lifecycle.
type Service struct {
	repo Repository
}

// NewService creates a new account service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register opens a non-admin account. When a referrer is given the referral
// edge is created with the account and never changes afterwards.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	role := input.Role
	if role == "" {
		role = RoleUser
	}
	if _, err := ParseRole(string(role)); err != nil {
		return Account{}, err
	}
	if role == RoleAdmin {
		return Account{}, fmt.Errorf("%w: admin accounts cannot self-register", ErrInvalidRole)
	}
	return s.create(ctx, role, input)
}

// EnsureAdmin returns the oldest admin account, creating one when none exists.
// It is meant for bootstrapping a fresh deployment.
func (s *Service) EnsureAdmin(ctx context.Context, displayName string) (Account, error) {
	admins, err := s.repo.ListByRole(ctx, RoleAdmin, 1)
	if err != nil {
		return Account{}, err
	}
	if len(admins) > 0 {
		return admins[0], nil
	}
	if displayName == "" {
		displayName = "platform"
	}
	return s.create(ctx, RoleAdmin, RegisterInput{DisplayName: displayName})
}

func (s *Service) create(ctx context.Context, role Role, input RegisterInput) (Account, error) {
	acct := Account{
		ID:          uuid.New().String(),
		Role:        role,
		Status:      StatusActive,
		DisplayName: strings.TrimSpace(input.DisplayName),
		CreatedAt:   time.Now().UTC(),
	}
	acct.UpdatedAt = acct.CreatedAt

	if input.ReferrerID != "" {
		referrer, err := s.repo.Get(ctx, input.ReferrerID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Account{}, ErrReferrerNotFound
			}
			return Account{}, err
		}
		acct.ReferrerID = referrer.ID
		acct.ReferralLevel = referrer.ReferralLevel + 1
	}

	if input.AgencyID != "" {
		if err := s.checkAgency(ctx, input.AgencyID); err != nil {
			return Account{}, err
		}
		acct.AgencyID = input.AgencyID
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}
	return acct, nil
}

// Get retrieves an account.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.Get(ctx, id)
}

// Referrer returns the direct referrer of id, or "" when there is none.
func (s *Service) Referrer(ctx context.Context, id string) (string, error) {
	return s.repo.Referrer(ctx, id)
}

// ChangeRole updates an account role on behalf of an admin actor.
func (s *Service) ChangeRole(ctx context.Context, actorID, id string, role Role) (Account, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return Account{}, err
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return Account{}, err
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, id)
}

// SetStatus moves an account between lifecycle states on behalf of an admin actor.
func (s *Service) SetStatus(ctx context.Context, actorID, id string, status Status) (Account, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Account{}, err
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return Account{}, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, id)
}

// AssignAgency sets or clears (agencyID == "") the managing agency of an account.
func (s *Service) AssignAgency(ctx context.Context, actorID, id, agencyID string) (Account, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return Account{}, err
	}
	if agencyID != "" {
		if err := s.checkAgency(ctx, agencyID); err != nil {
			return Account{}, err
		}
	}
	if err := s.repo.UpdateAgency(ctx, id, agencyID); err != nil {
		return Account{}, err
	}
	return s.repo.Get(ctx, id)
}

// Admin resolves the single administrative sink account. A pinned id wins;
// otherwise exactly one active admin must exist.
func (s *Service) Admin(ctx context.Context, pinnedID string) (Account, error) {
	if pinnedID != "" {
		acct, err := s.repo.Get(ctx, pinnedID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Account{}, fmt.Errorf("%w: pinned admin %s does not exist", ErrNoAdmin, pinnedID)
			}
			return Account{}, err
		}
		if acct.Role != RoleAdmin || !acct.Active() {
			return Account{}, fmt.Errorf("%w: pinned account %s is not an active admin", ErrNoAdmin, pinnedID)
		}
		return acct, nil
	}

	admins, err := s.repo.ListByRole(ctx, RoleAdmin, adminScanLimit)
	if err != nil {
		return Account{}, err
	}
	var active []Account
	for _, a := range admins {
		if a.Active() {
			active = append(active, a)
		}
	}
	switch len(active) {
	case 0:
		return Account{}, ErrNoAdmin
	case 1:
		return active[0], nil
	default:
		return Account{}, ErrAmbiguousAdmin
	}
}

func (s *Service) requireAdmin(ctx context.Context, actorID string) error {
	actor, err := s.repo.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if actor.Role != RoleAdmin || !actor.Active() {
		return ErrForbidden
	}
	return nil
}

func (s *Service) checkAgency(ctx context.Context, agencyID string) error {
	agency, err := s.repo.Get(ctx, agencyID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s does not exist", ErrInvalidAgency, agencyID)
		}
		return err
	}
	if agency.Role != RoleAgency {
		return ErrInvalidAgency
	}
	return nil
}
