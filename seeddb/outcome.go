package seeddb

import (
	"errors"

	"github.com/overlaynet/seeddb/tierstore"
)

// storeOutcome classifies the error returned by a tier store call.
type storeOutcome uint8

const (
	// outcomeOK means the call succeeded.
	outcomeOK storeOutcome = iota

	// outcomeAbsent means the record or cursor position doesn't exist.
	// Callers carry on as with an empty result.
	outcomeAbsent

	// outcomeRecovered means the store reported a fault. The tier gets
	// reset and the caller continues with an empty result.
	outcomeRecovered

	// outcomePropagate means the error isn't a storage fault and has to
	// be returned to the caller.
	outcomePropagate
)

// String returns a short name of the outcome.
func (o storeOutcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeAbsent:
		return "absent"
	case outcomeRecovered:
		return "recovered"
	default:
		return "propagate"
	}
}

// classify maps err to the outcome of the store call that returned it.
func classify(err error) storeOutcome {
	switch {
	case err == nil:
		return outcomeOK

	case errors.Is(err, tierstore.ErrRecordNotFound),
		errors.Is(err, tierstore.ErrEndOfTier):

		return outcomeAbsent

	case tierstore.IsFault(err):
		return outcomeRecovered

	default:
		return outcomePropagate
	}
}
