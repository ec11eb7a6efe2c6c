package compare

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInsufficientSample = errors.New("insufficient sample")
	ErrMetricContract     = errors.New("metric contract violation")
	ErrZeroVariance       = errors.New("zero variance")
	ErrInvalidTable       = errors.New("invalid contingency table")
	ErrUnknownFeature     = errors.New("unknown feature")
	ErrInvalidHypothesis  = errors.New("invalid hypothesis")
)

// Reason maps an error to the short status code stored on a Result.
func Reason(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrMetricContract):
		return StatusContractViolation
	case errors.Is(err, ErrInsufficientSample):
		return StatusInsufficientSample
	case errors.Is(err, ErrZeroVariance):
		return StatusZeroVariance
	case errors.Is(err, ErrInvalidTable):
		return StatusInvalidTable
	default:
		return StatusFailed
	}
}
