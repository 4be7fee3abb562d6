package wallet

import "errors"

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrNotSpendable    = errors.New("currency cannot be debited")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is not active")
)
