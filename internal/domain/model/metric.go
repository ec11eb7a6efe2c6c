package model

import (
	"math"
	"slices"
)

// Operation identifies the extractor operation that produced a value.
// Every metric on a FeatureRecord carries one; comparisons check it.
type Operation string

// Producing operations.
const (
	OpDistanceToPoint        Operation = "distance_to_point"
	OpDistanceToNearestAgent Operation = "distance_to_nearest_agent"
	OpBearing                Operation = "bearing"
	OpHeadingAlignment       Operation = "heading_alignment"
	OpOrientationAlignment   Operation = "orientation_alignment"
	OpBodyAlignment          Operation = "body_alignment"
	OpNeighbourCount         Operation = "neighbour_count"
	OpSpeed                  Operation = "kinematic_speed"
	OpAcceleration           Operation = "kinematic_acceleration"
	OpPathGeometry           Operation = "path_geometry"
	OpEpisodeClock           Operation = "episode_clock"
	OpEpisodeMetadata        Operation = "episode_metadata"
	OpOutcomeCredit          Operation = "outcome_credit"
)

var operations = []Operation{
	OpDistanceToPoint, OpDistanceToNearestAgent, OpBearing, OpHeadingAlignment,
	OpOrientationAlignment, OpBodyAlignment, OpNeighbourCount, OpSpeed,
	OpAcceleration, OpPathGeometry, OpEpisodeClock, OpEpisodeMetadata,
	OpOutcomeCredit,
}

// KnownOperation reports whether op is one of the producing operations.
func KnownOperation(op Operation) bool {
	return slices.Contains(operations, op)
}

// Status marks whether a metric value is usable.
type Status string

// Metric statuses.
const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient" // fewer frames than the statistic needs
	StatusUndefined    Status = "undefined"    // e.g. correlation over a constant series
)

// Metric is one named scalar on a FeatureRecord together with its provenance.
// The zero value is untagged and carries no status.
type Metric struct {
	Value  float64
	Source Operation
	Status Status
}

// Measured builds a usable metric.
func Measured(source Operation, v float64) Metric {
	return Metric{Value: v, Source: source, Status: StatusOK}
}

// Insufficient builds a marker for a statistic that needs more frames.
func Insufficient(source Operation) Metric {
	return Metric{Value: math.NaN(), Source: source, Status: StatusInsufficient}
}

// Undefined builds a marker for a statistic that is mathematically undefined.
func Undefined(source Operation) Metric {
	return Metric{Value: math.NaN(), Source: source, Status: StatusUndefined}
}

// OK reports whether the metric holds a usable value.
func (m Metric) OK() bool { return m.Status == StatusOK }

// Tagged reports whether the metric carries a producing operation.
func (m Metric) Tagged() bool { return m.Source != "" }

// Summary holds the per-quantity reductions of a frame series.
type Summary struct {
	Mean  Metric
	Min   Metric
	Max   Metric
	First Metric
	Last  Metric
}

// Summarize reduces a series produced by source. An empty series yields
// insufficient markers throughout.
func Summarize(source Operation, values []float64) Summary {
	if len(values) == 0 {
		m := Insufficient(source)
		return Summary{Mean: m, Min: m, Max: m, First: m, Last: m}
	}
	lo, hi, sum := values[0], values[0], 0.0
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return Summary{
		Mean:  Measured(source, sum/float64(len(values))),
		Min:   Measured(source, lo),
		Max:   Measured(source, hi),
		First: Measured(source, values[0]),
		Last:  Measured(source, values[len(values)-1]),
	}
}
