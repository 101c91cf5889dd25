package tierstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when the requested seed is not stored
	// in the tier.
	ErrRecordNotFound = errors.New("seed not found in tier")

	// ErrEndOfTier is returned by a cursor step once there are no more
	// keys in the requested direction.
	ErrEndOfTier = errors.New("no more seeds in tier")

	// ErrCorrupt signals that the tier store failed in a way that cannot
	// be handled by retrying: the backing file is unreadable, holds
	// records of an unexpected shape, or the store is no longer open.
	// Every backend error wraps this error.
	ErrCorrupt = errors.New("tier store corrupt or unavailable")

	// ErrUnknownField is returned when sorting by a field the store was
	// not configured for.
	ErrUnknownField = errors.New("field is not sortable")
)

// corrupt wraps err so that it matches ErrCorrupt.
func corrupt(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCorrupt) {
		return err
	}

	return fmt.Errorf("%w: %s: %v", ErrCorrupt, op, err)
}

// IsFault reports whether err is a storage fault rather than one of the
// expected lookup outcomes.
func IsFault(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
