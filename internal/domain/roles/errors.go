package roles

import "errors"

// Sentinel error kinds for this package.
var (
	ErrEmptyGroup      = errors.New("empty classification group")
	ErrUnrankable      = errors.New("record has no usable ranking value")
	ErrUnknownFeature  = errors.New("unknown ranking feature")
	ErrDuplicateMember = errors.New("duplicate record in classification group")
)
