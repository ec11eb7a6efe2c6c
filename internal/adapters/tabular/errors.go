package tabular

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrParseField    = errors.New("cannot parse field")
	ErrLocked        = errors.New("output directory is locked by another run")
	ErrNoInput       = errors.New("no input files")
	ErrInvalidSchema = errors.New("invalid schema")
)
