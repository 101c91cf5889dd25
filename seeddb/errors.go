package seeddb

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleHandle is reported by an enumerator whose tier was reset
	// while it was iterating. A fresh enumerator has to be created to see
	// the new contents of the tier.
	ErrStaleHandle = errors.New("tier was reset, handle is stale")

	// ErrNoLocalSeed is returned when the registry is created without a
	// local identity.
	ErrNoLocalSeed = errors.New("local seed required")

	// ErrNoTierOpener is returned when the registry is created without a
	// way to open its tier stores.
	ErrNoTierOpener = errors.New("tier opener required")
)

// RecoveredFault describes a storage fault that was handled by resetting the
// affected tier. The operation that hit it completes as a no-op or with an
// empty result, the fault itself is never returned from the public API.
type RecoveredFault struct {
	// Tier is the tier that was reset.
	Tier Tier

	// Op names the store operation that failed.
	Op string

	// Err is the fault reported by the store.
	Err error
}

// Error returns a human readable description of the fault.
func (r *RecoveredFault) Error() string {
	return fmt.Sprintf("%v tier reset after %s fault: %v", r.Tier, r.Op,
		r.Err)
}

// Unwrap returns the underlying store fault.
func (r *RecoveredFault) Unwrap() error {
	return r.Err
}
