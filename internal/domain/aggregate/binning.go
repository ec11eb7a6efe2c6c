package aggregate

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// Bins assigns a scalar to one of an ordered set of half-open intervals
// (b[i], b[i+1]], closed on the right. Labels[i] names interval i. An optional catch-all label
// absorbs values outside every interval.
type Bins struct {
	boundaries []float64
	labels     []string
	catchAll   string
}

// DefaultBins returns the time-to-event bins in seconds.
func DefaultBins() Bins {
	b, _ := NewBins(
		[]float64{0, 2.0, 2.5, 3.0, 3.5, 15},
		[]string{"quick", "fast", "normal", "slow", "very_slow"},
		"",
	)
	return b
}

// NewBins validates and builds a Bins value. Boundaries must be finite and
// strictly increasing, with exactly one label per interval.
func NewBins(boundaries []float64, labels []string, catchAll string) (Bins, error) {
	if len(boundaries) < 2 {
		return Bins{}, fmt.Errorf("%w: need at least two boundaries, got %d", ErrInvalidBins, len(boundaries))
	}
	if len(labels) != len(boundaries)-1 {
		return Bins{}, fmt.Errorf("%w: %d boundaries need %d labels, got %d",
			ErrInvalidBins, len(boundaries), len(boundaries)-1, len(labels))
	}
	for i, b := range boundaries {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return Bins{}, fmt.Errorf("%w: boundary %d is not finite", ErrInvalidBins, i)
		}
		if i > 0 && b <= boundaries[i-1] {
			return Bins{}, fmt.Errorf("%w: boundaries must be strictly increasing at %d", ErrInvalidBins, i)
		}
	}
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			return Bins{}, fmt.Errorf("%w: empty label", ErrInvalidBins)
		}
		if _, dup := seen[l]; dup {
			return Bins{}, fmt.Errorf("%w: duplicate label %q", ErrInvalidBins, l)
		}
		seen[l] = struct{}{}
	}
	return Bins{
		boundaries: slices.Clone(boundaries),
		labels:     slices.Clone(labels),
		catchAll:   catchAll,
	}, nil
}

// Assign returns the label of the interval containing x.
func (b Bins) Assign(x float64) (string, error) {
	if len(b.boundaries) == 0 {
		return "", fmt.Errorf("%w: no bins configured", ErrInvalidBins)
	}
	if !math.IsNaN(x) {
		// first boundary >= x closes the interval holding x
		i := sort.SearchFloat64s(b.boundaries, x)
		if i > 0 && i < len(b.boundaries) {
			return b.labels[i-1], nil
		}
	}
	if b.catchAll != "" {
		return b.catchAll, nil
	}
	return "", fmt.Errorf("%w: %v outside (%v, %v]", ErrUnboundedValue, x,
		b.boundaries[0], b.boundaries[len(b.boundaries)-1])
}

// Labels returns the interval labels in order, followed by the catch-all
// label when one is declared.
func (b Bins) Labels() []string {
	out := slices.Clone(b.labels)
	if b.catchAll != "" {
		out = append(out, b.catchAll)
	}
	return out
}
