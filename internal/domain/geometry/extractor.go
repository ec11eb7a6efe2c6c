package geometry

import (
	"fmt"
	"math"

	"github.com/okian/trajan/internal/domain/model"
)

// Default extractor configuration constants.
const (
	defaultNearRadius = 3.0
	defaultFarRadius  = 5.0
)

// SameFrame selects the reference agent's frame at the same index as the
// frame being measured.
const SameFrame = -1

type referenceKind int

const (
	referencePoint referenceKind = iota + 1
	referenceAgent
)

// Reference is the explicit target of distance and bearing computations.
// There is no default: the zero value is rejected.
type Reference struct {
	kind       referenceKind
	point      model.Point
	agentID    string
	frameIndex int
}

// PointReference measures against a fixed point, e.g. the landing location.
func PointReference(p model.Point) Reference {
	return Reference{kind: referencePoint, point: p}
}

// AgentReference measures against another agent's position at frameIndex,
// or at the simultaneous frame when frameIndex is SameFrame.
func AgentReference(agentID string, frameIndex int) Reference {
	return Reference{kind: referenceAgent, agentID: agentID, frameIndex: frameIndex}
}

// String describes the reference for logs.
func (r Reference) String() string {
	switch r.kind {
	case referencePoint:
		return fmt.Sprintf("point(%.2f,%.2f)", r.point.X, r.point.Y)
	case referenceAgent:
		if r.frameIndex == SameFrame {
			return "agent(" + r.agentID + "@same)"
		}
		return fmt.Sprintf("agent(%s@%d)", r.agentID, r.frameIndex)
	default:
		return "unset"
	}
}

// PointAt resolves the reference position used for the frame at index.
func (r Reference) PointAt(ep model.Episode, index int) (model.Point, error) {
	switch r.kind {
	case referencePoint:
		return r.point, nil
	case referenceAgent:
		agent, ok := ep.Agent(r.agentID)
		if !ok {
			return model.Point{}, fmt.Errorf("%w: agent %s not in episode %s", ErrReferenceUnavailable, r.agentID, ep.ID)
		}
		at := r.frameIndex
		if at == SameFrame {
			at = index
		}
		f, ok := agent.FrameAt(at)
		if !ok {
			return model.Point{}, fmt.Errorf("%w: agent %s has no frame %d", ErrReferenceUnavailable, r.agentID, at)
		}
		return f.Position(), nil
	default:
		return model.Point{}, fmt.Errorf("%w: reference not set", ErrReferenceUnavailable)
	}
}

// OpponentRule decides whether other is a nearest-agent candidate for self.
type OpponentRule func(self, other model.Agent) bool

// OpposingSide treats agents on a different, non-empty side as candidates.
func OpposingSide(self, other model.Agent) bool {
	return self.ID != other.ID && other.Side != "" && self.Side != "" && other.Side != self.Side
}

// AnyOther treats every other agent as a candidate.
func AnyOther(self, other model.Agent) bool {
	return self.ID != other.ID
}

// ParseOpponentRule resolves "opposing_side" (the default) or "any".
func ParseOpponentRule(name string) (OpponentRule, error) {
	switch name {
	case "", "opposing_side":
		return OpposingSide, nil
	case "any":
		return AnyOther, nil
	}
	return nil, fmt.Errorf("unknown opponent rule %q", name)
}

// CandidatesAt collects the simultaneous frames of every agent in ep that the
// rule accepts for self at the given frame index.
func CandidatesAt(ep model.Episode, self model.Agent, index int, rule OpponentRule) []Candidate {
	var out []Candidate
	for _, other := range ep.Agents {
		if !rule(self, other) {
			continue
		}
		if f, ok := other.FrameAt(index); ok {
			out = append(out, Candidate{AgentID: other.ID, Frame: f})
		}
	}
	return out
}

// FrameFeatures are the derived per-frame quantities of one agent.
type FrameFeatures struct {
	Index                int
	Position             model.Point
	Step                 float64 // distance from the previous frame, 0 on the first
	RefDistance          float64
	Bearing              float64
	HeadingAlignment     float64
	OrientationAlignment float64
	BodyAlignment        float64
	Speed                float64 // copied from the frame
	Acceleration         float64 // copied from the frame
	Nearest              Nearest // NaN distance when separation is disabled
	NearCount            int
	FarCount             int
}

// Extractor derives FrameFeatures for an agent's frame series.
type Extractor struct {
	nearRadius float64
	farRadius  float64
	separation bool
	opponents  OpponentRule
}

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithRadii sets the near and far neighbour-count radii.
func WithRadii(near, far float64) Option {
	return func(e *Extractor) {
		if near > 0 && far >= near {
			e.nearRadius = near
			e.farRadius = far
		}
	}
}

// WithSeparation toggles nearest-agent separation. When enabled, a frame
// without any candidate fails with ErrEmptyCandidateSet.
func WithSeparation(enabled bool) Option {
	return func(e *Extractor) {
		e.separation = enabled
	}
}

// WithOpponentRule sets the candidate rule for nearest-agent distance.
func WithOpponentRule(rule OpponentRule) Option {
	return func(e *Extractor) {
		if rule != nil {
			e.opponents = rule
		}
	}
}

// NewExtractor creates an extractor with configuration options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		nearRadius: defaultNearRadius,
		farRadius:  defaultFarRadius,
		separation: true,
		opponents:  OpposingSide,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Separation reports whether nearest-agent separation is computed.
func (e *Extractor) Separation() bool { return e.separation }

// Extract computes FrameFeatures for every frame of agent against ref.
// Any invalid frame fails the whole series.
func (e *Extractor) Extract(ep model.Episode, agent model.Agent, ref Reference) ([]FrameFeatures, error) {
	out := make([]FrameFeatures, 0, len(agent.Frames))
	for i, f := range agent.Frames {
		ff, err := e.frame(ep, agent, f, ref)
		if err != nil {
			return nil, fmt.Errorf("episode %s agent %s: %w", ep.ID, agent.ID, err)
		}
		if i > 0 {
			if ff.Step, err = StepDistance(agent.Frames[i-1], f); err != nil {
				return nil, fmt.Errorf("episode %s agent %s: %w", ep.ID, agent.ID, err)
			}
		}
		out = append(out, ff)
	}
	return out, nil
}

func (e *Extractor) frame(ep model.Episode, agent model.Agent, f model.Frame, ref Reference) (FrameFeatures, error) {
	if !finite(f.Speed) || !finite(f.Acceleration) {
		return FrameFeatures{}, fmt.Errorf("%w: kinematics at frame %d", ErrInvalidGeometry, f.Index)
	}
	p, err := ref.PointAt(ep, f.Index)
	if err != nil {
		return FrameFeatures{}, err
	}
	dist, err := DistanceToPoint(f, p)
	if err != nil {
		return FrameFeatures{}, err
	}
	bearing, err := Bearing(f, p)
	if err != nil {
		return FrameFeatures{}, err
	}
	heading, err := HeadingAlignment(f, p)
	if err != nil {
		return FrameFeatures{}, err
	}
	orientation, err := OrientationAlignment(f, p)
	if err != nil {
		return FrameFeatures{}, err
	}
	body, err := BodyAlignment(f)
	if err != nil {
		return FrameFeatures{}, err
	}

	ff := FrameFeatures{
		Index:                f.Index,
		Position:             f.Position(),
		RefDistance:          dist,
		Bearing:              bearing,
		HeadingAlignment:     heading,
		OrientationAlignment: orientation,
		BodyAlignment:        body,
		Speed:                f.Speed,
		Acceleration:         f.Acceleration,
		Nearest:              Nearest{Distance: math.NaN()},
	}
	if !e.separation {
		return ff, nil
	}

	candidates := CandidatesAt(ep, agent, f.Index, e.opponents)
	nearest, err := DistanceToNearestAgent(f, candidates)
	if err != nil {
		return FrameFeatures{}, err
	}
	ff.Nearest = nearest
	ff.NearCount = CountWithin(f, candidates, e.nearRadius)
	ff.FarCount = CountWithin(f, candidates, e.farRadius)
	return ff, nil
}
