package account

import "errors"

var (
	ErrNotFound         = errors.New("account not found")
	ErrExists           = errors.New("account exists")
	ErrForbidden        = errors.New("actor is not an active admin")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrReferrerNotFound = errors.New("referrer not found")
	ErrInvalidAgency    = errors.New("agency account must have role agency")

	// ErrNoAdmin means no administrative sink account is configured.
	ErrNoAdmin = errors.New("no admin account")
	// ErrAmbiguousAdmin means several admin accounts exist and none is pinned.
	ErrAmbiguousAdmin = errors.New("multiple admin accounts and none configured")
)
