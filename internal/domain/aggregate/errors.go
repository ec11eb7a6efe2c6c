package aggregate

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoFrames             = errors.New("no frames to aggregate")
	ErrAggregationInvariant = errors.New("aggregation invariant violation")
	ErrUnboundedValue       = errors.New("value outside configured bins")
	ErrInvalidBins          = errors.New("invalid bins")
)
