package archetype

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoVectors         = errors.New("no vectors to partition")
	ErrInvalidK          = errors.New("invalid cluster count")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrNotNormalized     = errors.New("vector is not a normalized frequency vector")
	ErrZeroVector        = errors.New("zero vector has no direction")
	ErrUnknownVector     = errors.New("unknown vector id")
)
