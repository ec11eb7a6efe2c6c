// Package model contains the domain values passed between pipeline stages.
//
// Values here are constructed once and never mutated afterwards. Stages hand
// them to each other by value; slices and maps are copied at construction.
package model

import (
	"math"
	"slices"
)

// Point is a 2-D position on the field.
type Point struct {
	X float64
	Y float64
}

// Finite reports whether both coordinates are finite.
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Frame is one timestep snapshot of an agent's kinematic state.
// Angles are radians, counter-clockwise from the +x axis.
type Frame struct {
	Index        int // ordinal sequence index within the episode
	X            float64
	Y            float64
	Speed        float64
	Acceleration float64
	Heading      float64 // direction of travel
	Orientation  float64 // body-facing angle
}

// Position returns the frame's position as a Point.
func (f Frame) Position() Point {
	return Point{X: f.X, Y: f.Y}
}

// Agent is one tracked entity within an episode.
type Agent struct {
	ID       string
	Category string // position, e.g. "WR"
	Side     string // team side, e.g. "offense"
	Frames   []Frame
}

// FrameAt returns the frame with the given index.
// Frames are sorted and contiguous, so the lookup is positional.
func (a Agent) FrameAt(index int) (Frame, bool) {
	if len(a.Frames) == 0 {
		return Frame{}, false
	}
	pos := index - a.Frames[0].Index
	if pos < 0 || pos >= len(a.Frames) {
		return Frame{}, false
	}
	return a.Frames[pos], true
}

// First returns the agent's first frame. Agents always carry at least one.
func (a Agent) First() Frame { return a.Frames[0] }

// Last returns the agent's last frame.
func (a Agent) Last() Frame { return a.Frames[len(a.Frames)-1] }

// Outcome is the categorical result of an episode, e.g. "C" for complete.
type Outcome string

// Episode is a bounded collection of agents sharing a fixed reference point
// and outcome.
type Episode struct {
	ID        string
	Reference Point
	Outcome   Outcome
	Tags      map[string]string // extra metadata columns, e.g. coverage type
	Agents    []Agent
}

// Agent returns the agent with the given id.
func (e Episode) Agent(id string) (Agent, bool) {
	for _, a := range e.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return Agent{}, false
}

// LastIndex returns the highest frame index across all agents.
func (e Episode) LastIndex() int {
	last := 0
	for _, a := range e.Agents {
		if n := a.Last().Index; n > last {
			last = n
		}
	}
	return last
}

// Duration returns the time-to-event in seconds: the last frame index times
// the frame interval.
func (e Episode) Duration(interval float64) float64 {
	return float64(e.LastIndex()) * interval
}

// Tag returns a metadata tag value.
func (e Episode) Tag(name string) string {
	return e.Tags[name]
}

// Clone returns a deep copy of the episode.
func (e Episode) Clone() Episode {
	out := e
	out.Tags = cloneTags(e.Tags)
	out.Agents = make([]Agent, len(e.Agents))
	for i, a := range e.Agents {
		a.Frames = slices.Clone(a.Frames)
		out.Agents[i] = a
	}
	return out
}

func cloneTags(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
