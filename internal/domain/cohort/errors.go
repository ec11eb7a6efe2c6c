package cohort

import "errors"

// Sentinel error kinds for this package.
var (
	ErrEmptyCohort = errors.New("cohort matches no records")
	ErrUnknownKey  = errors.New("unknown cohort key")
)
