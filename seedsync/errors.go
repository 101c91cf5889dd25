package seedsync

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTargetURL is returned when a cache is published without the URL
	// it can be fetched back from.
	ErrNoTargetURL = errors.New("URL not given")

	// ErrFetchFailed is matched by verification errors caused by the
	// published cache not being retrievable.
	ErrFetchFailed = errors.New("unable to fetch published cache")

	// ErrCountMismatch is matched by verification errors where the
	// published cache holds a different number of lines.
	ErrCountMismatch = errors.New("published cache has a different " +
		"number of entries")

	// ErrContentMismatch is matched by verification errors where a line
	// of the published cache differs.
	ErrContentMismatch = errors.New("published cache has different " +
		"entries")
)

// VerifyError describes why a published cache doesn't match the local
// export.
type VerifyError struct {
	// Kind is one of ErrFetchFailed, ErrCountMismatch and
	// ErrContentMismatch.
	Kind error

	// URL is where the cache was fetched from.
	URL string

	// Expected is the number of lines exported locally.
	Expected int

	// Actual is the number of lines fetched back.
	Actual int

	// Line is the index of the first differing line for content
	// mismatches.
	Line int

	// Err is the underlying error of a failed fetch.
	Err error
}

// Error returns a diagnostic message.
func (e *VerifyError) Error() string {
	switch e.Kind {
	case ErrFetchFailed:
		return fmt.Sprintf("%v from %s: %v", e.Kind, e.URL, e.Err)

	case ErrContentMismatch:
		return fmt.Sprintf("%v: line %d of %d differs", e.Kind,
			e.Line+1, e.Expected)

	default:
		return fmt.Sprintf("%v: local %d entries, remote %d entries",
			e.Kind, e.Expected, e.Actual)
	}
}

// Is reports whether target is the kind of the error.
func (e *VerifyError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying error of a failed fetch.
func (e *VerifyError) Unwrap() error {
	return e.Err
}
