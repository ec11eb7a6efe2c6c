// Package geometry computes per-frame distance, bearing and alignment
// quantities of an agent relative to an explicit reference.
//
// Two distance operations exist and are not interchangeable:
// DistanceToPoint measures against a fixed reference point, while
// DistanceToNearestAgent measures against the closest of a candidate set of
// simultaneous frames. Every call site picks one explicitly.
package geometry

import (
	"fmt"
	"math"

	"github.com/okian/trajan/internal/domain/model"
)

const twoPi = 2 * math.Pi

// Candidate is another agent's frame considered for nearest-agent distance.
type Candidate struct {
	AgentID string
	Frame   model.Frame
}

// Nearest is the result of DistanceToNearestAgent.
type Nearest struct {
	AgentID  string
	Distance float64
}

// DistanceToPoint returns the Euclidean distance from the frame position to p.
func DistanceToPoint(f model.Frame, p model.Point) (float64, error) {
	if err := checkPosition(f); err != nil {
		return 0, err
	}
	if !p.Finite() {
		return 0, fmt.Errorf("%w: reference point (%v, %v)", ErrInvalidGeometry, p.X, p.Y)
	}
	return math.Hypot(f.X-p.X, f.Y-p.Y), nil
}

// DistanceToNearestAgent returns the minimum distance from f to any candidate
// and the id of that candidate. Equal distances resolve to the candidate that
// appears first.
func DistanceToNearestAgent(f model.Frame, candidates []Candidate) (Nearest, error) {
	if len(candidates) == 0 {
		return Nearest{}, fmt.Errorf("%w: frame %d", ErrEmptyCandidateSet, f.Index)
	}
	if err := checkPosition(f); err != nil {
		return Nearest{}, err
	}
	best := Nearest{Distance: math.Inf(1)}
	for _, c := range candidates {
		if err := checkPosition(c.Frame); err != nil {
			return Nearest{}, fmt.Errorf("candidate %s: %w", c.AgentID, err)
		}
		d := math.Hypot(f.X-c.Frame.X, f.Y-c.Frame.Y)
		if d < best.Distance {
			best = Nearest{AgentID: c.AgentID, Distance: d}
		}
	}
	return best, nil
}

// CountWithin returns how many candidates lie within radius of f (inclusive).
func CountWithin(f model.Frame, candidates []Candidate, radius float64) int {
	n := 0
	for _, c := range candidates {
		if math.Hypot(f.X-c.Frame.X, f.Y-c.Frame.Y) <= radius {
			n++
		}
	}
	return n
}

// Bearing returns the direction from the frame position towards p,
// atan2(p.y - y, p.x - x), in [-π, π].
func Bearing(f model.Frame, p model.Point) (float64, error) {
	if err := checkPosition(f); err != nil {
		return 0, err
	}
	if !p.Finite() {
		return 0, fmt.Errorf("%w: reference point (%v, %v)", ErrInvalidGeometry, p.X, p.Y)
	}
	return math.Atan2(p.Y-f.Y, p.X-f.X), nil
}

// NormalizeAngle maps a to [-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	switch {
	case a > math.Pi:
		a -= twoPi
	case a < -math.Pi:
		a += twoPi
	}
	return a
}

// AngularDifference returns the absolute minimal rotation between two angles,
// always in [0, π]. It is symmetric in its arguments.
func AngularDifference(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), twoPi)
	if d > math.Pi {
		d = twoPi - d
	}
	return d
}

// HeadingAlignment is the angular difference between heading and the bearing to p.
func HeadingAlignment(f model.Frame, p model.Point) (float64, error) {
	b, err := Bearing(f, p)
	if err != nil {
		return 0, err
	}
	if !finite(f.Heading) {
		return 0, fmt.Errorf("%w: heading at frame %d", ErrInvalidGeometry, f.Index)
	}
	return AngularDifference(f.Heading, b), nil
}

// OrientationAlignment is the angular difference between body orientation and
// the bearing to p.
func OrientationAlignment(f model.Frame, p model.Point) (float64, error) {
	b, err := Bearing(f, p)
	if err != nil {
		return 0, err
	}
	if !finite(f.Orientation) {
		return 0, fmt.Errorf("%w: orientation at frame %d", ErrInvalidGeometry, f.Index)
	}
	return AngularDifference(f.Orientation, b), nil
}

// BodyAlignment is the angular difference between heading and orientation.
func BodyAlignment(f model.Frame) (float64, error) {
	if !finite(f.Heading) || !finite(f.Orientation) {
		return 0, fmt.Errorf("%w: heading/orientation at frame %d", ErrInvalidGeometry, f.Index)
	}
	return AngularDifference(f.Heading, f.Orientation), nil
}

// StepDistance is the Euclidean distance between two consecutive frames.
func StepDistance(a, b model.Frame) (float64, error) {
	if err := checkPosition(a); err != nil {
		return 0, err
	}
	if err := checkPosition(b); err != nil {
		return 0, err
	}
	return math.Hypot(b.X-a.X, b.Y-a.Y), nil
}

func checkPosition(f model.Frame) error {
	if !finite(f.X) || !finite(f.Y) {
		return fmt.Errorf("%w: position (%v, %v) at frame %d", ErrInvalidGeometry, f.X, f.Y, f.Index)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
