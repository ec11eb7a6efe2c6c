package repository

import (
	"errors"
)

// Sentinel error kinds for this package.
var (
	ErrNotFound            = errors.New("episode not found")
	ErrFrozen              = errors.New("store is frozen")
	ErrInvalidRow          = errors.New("invalid frame row")
	ErrNonContiguousFrames = errors.New("frame indices are not contiguous")
	ErrMissingMetadata     = errors.New("episode has no metadata")
	ErrEmptyAgent          = errors.New("agent has no frames")
	ErrInvalidReference    = errors.New("episode reference point is not finite")
)

// Reason maps a rejection error to its exclusion reason.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNonContiguousFrames):
		return "non_contiguous_frames"
	case errors.Is(err, ErrMissingMetadata):
		return "missing_metadata"
	case errors.Is(err, ErrEmptyAgent):
		return "empty_agent"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrInvalidRow):
		return "invalid_row"
	default:
		return "rejected"
	}
}
