package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrNotFound = errors.New("no matching records")
)
