package seed

import "errors"

var (
	// ErrUnknownEncoding is returned when a seed line does not start with
	// one of the known encoding prefixes.
	ErrUnknownEncoding = errors.New("unknown seed encoding")

	// ErrMalformedSeed is returned when the map text of a seed line cannot
	// be parsed.
	ErrMalformedSeed = errors.New("malformed seed string")

	// ErrMissingHash is returned when a decoded seed carries no hash
	// attribute.
	ErrMissingHash = errors.New("seed has no hash")

	// ErrEmptyIdentity is returned by Load when the identity file exists
	// but holds no seed line.
	ErrEmptyIdentity = errors.New("identity file is empty")
)
