package reward

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks a split, mint rate or admin sink problem. Nothing
	// was written when it is returned.
	ErrConfiguration = errors.New("reward configuration invalid")
	// ErrDuplicateEvent means a record already exists for the event key and no
	// credits were issued by this call.
	ErrDuplicateEvent = errors.New("reward event already distributed")
	// ErrStoreUnavailable wraps store failures that happened before any credit.
	ErrStoreUnavailable = errors.New("reward store unavailable")
	// ErrPartialDistribution is matched by *PartialDistributionError.
	ErrPartialDistribution = errors.New("reward distribution partially applied")
	ErrEventNotFound       = errors.New("reward event not found")
	ErrInvalidEvent        = errors.New("invalid reward event")
)

// ConfigurationError carries the reason a distribution was refused.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configError(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// FailedLeg is a planned credit that did not land.
type FailedLeg struct {
	Share Share
	Err   error
}

// PartialDistributionError reports which credits landed and which did not.
// Landed credits are not rolled back; Replay finishes the rest.
type PartialDistributionError struct {
	EventKey  string
	Succeeded []Leg
	Failed    []FailedLeg
}

func (e *PartialDistributionError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		parts = append(parts, fmt.Sprintf("%s/%s: %v", f.Share.Role, f.Share.AccountID, f.Err))
	}
	return fmt.Sprintf("%s: event %s: %d of %d credits failed (%s)",
		ErrPartialDistribution, e.EventKey, len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(parts, "; "))
}

func (e *PartialDistributionError) Unwrap() error { return ErrPartialDistribution }
