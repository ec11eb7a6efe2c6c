package geometry

import "errors"

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrInvalidGeometry      = errors.New("invalid geometry")
	ErrEmptyCandidateSet    = errors.New("empty candidate set")
	ErrReferenceUnavailable = errors.New("reference unavailable")
)
