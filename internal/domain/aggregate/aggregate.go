// Package aggregate reduces an agent's per-frame feature series within an
// episode into one FeatureRecord.
package aggregate

import (
	"fmt"
	"maps"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
)

// Default aggregation configuration constants.
const (
	defaultFrameInterval = 0.1 // seconds between frames
	defaultGoodAlignment = math.Pi / 4
	efficiencyTolerance  = 1e-9
)

// Aggregator builds FeatureRecords from extracted frame features.
type Aggregator struct {
	interval      float64
	goodAlignment float64
	bins          Bins
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithFrameInterval sets the seconds between consecutive frames.
func WithFrameInterval(seconds float64) Option {
	return func(a *Aggregator) {
		if seconds > 0 {
			a.interval = seconds
		}
	}
}

// WithGoodAlignment sets the heading-alignment threshold in radians counted
// as "good" for heading_alignment.good_share.
func WithGoodAlignment(radians float64) Option {
	return func(a *Aggregator) {
		if radians > 0 && radians <= math.Pi {
			a.goodAlignment = radians
		}
	}
}

// WithBins sets the duration bins.
func WithBins(b Bins) Option {
	return func(a *Aggregator) {
		if len(b.boundaries) > 0 {
			a.bins = b
		}
	}
}

// New creates an Aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		interval:      defaultFrameInterval,
		goodAlignment: defaultGoodAlignment,
		bins:          DefaultBins(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Interval returns the configured frame interval in seconds.
func (a *Aggregator) Interval() float64 { return a.interval }

// Aggregate builds the FeatureRecord of agent in ep from its frame features.
// features must be in frame order, one per frame.
func (a *Aggregator) Aggregate(ep model.Episode, agent model.Agent, features []geometry.FrameFeatures) (model.FeatureRecord, error) {
	n := len(features)
	if n == 0 {
		return model.FeatureRecord{}, fmt.Errorf("%w: episode %s agent %s", ErrNoFrames, ep.ID, agent.ID)
	}

	duration := ep.Duration(a.interval)
	bin, err := a.bins.Assign(duration)
	if err != nil {
		return model.FeatureRecord{}, fmt.Errorf("episode %s duration: %w", ep.ID, err)
	}

	rec := model.FeatureRecord{
		EpisodeID:   ep.ID,
		AgentID:     agent.ID,
		Category:    agent.Category,
		Side:        agent.Side,
		Frames:      n,
		Outcome:     ep.Outcome,
		Tags:        maps.Clone(ep.Tags),
		DurationBin: bin,
		Duration:    model.Measured(model.OpEpisodeClock, duration),
	}

	elapsed := make([]float64, n)
	dist := make([]float64, n)
	bearing := make([]float64, n)
	heading := make([]float64, n)
	orientation := make([]float64, n)
	body := make([]float64, n)
	speed := make([]float64, n)
	accel := make([]float64, n)
	cumulative := make([]float64, n)
	good := 0
	for i, f := range features {
		elapsed[i] = float64(f.Index-features[0].Index) * a.interval
		dist[i] = f.RefDistance
		bearing[i] = f.Bearing
		heading[i] = f.HeadingAlignment
		orientation[i] = f.OrientationAlignment
		body[i] = f.BodyAlignment
		speed[i] = f.Speed
		accel[i] = f.Acceleration
		if f.HeadingAlignment <= a.goodAlignment {
			good++
		}
		if i > 0 {
			cumulative[i] = cumulative[i-1] + f.Step
		}
	}

	rec.RefDistance = model.Summarize(model.OpDistanceToPoint, dist)
	rec.RefDistanceSlope, rec.RefDistanceCorr = fit(model.OpDistanceToPoint, elapsed, dist)
	rec.Bearing = model.Summarize(model.OpBearing, bearing)
	rec.HeadingAlignment = model.Summarize(model.OpHeadingAlignment, heading)
	rec.GoodHeadingShare = model.Measured(model.OpHeadingAlignment, float64(good)/float64(n))
	rec.OrientationAlignment = model.Summarize(model.OpOrientationAlignment, orientation)
	rec.BodyAlignment = model.Measured(model.OpBodyAlignment, floats.Sum(body)/float64(n))
	rec.Speed = model.Summarize(model.OpSpeed, speed)
	rec.SpeedSD = sampleSD(model.OpSpeed, speed)
	rec.Acceleration = model.Summarize(model.OpAcceleration, accel)

	a.separation(&rec, features)

	if err := a.path(&rec, features, elapsed, cumulative); err != nil {
		return model.FeatureRecord{}, fmt.Errorf("episode %s agent %s: %w", ep.ID, agent.ID, err)
	}
	return rec, nil
}

// separation fills the nearest-agent fields when the extractor produced them.
func (a *Aggregator) separation(rec *model.FeatureRecord, features []geometry.FrameFeatures) {
	n := len(features)
	if math.IsNaN(features[0].Nearest.Distance) {
		return
	}
	sep := make([]float64, n)
	for i, f := range features {
		sep[i] = f.Nearest.Distance
	}
	rec.Separation = model.Summarize(model.OpDistanceToNearestAgent, sep)
	if n < 2 {
		rec.SeparationChange = model.Insufficient(model.OpDistanceToNearestAgent)
	} else {
		rec.SeparationChange = model.Measured(model.OpDistanceToNearestAgent, sep[n-1]-sep[0])
	}
	last := features[n-1]
	rec.NearestOpponent = last.Nearest.AgentID
	rec.OpponentsNear = model.Measured(model.OpNeighbourCount, float64(last.NearCount))
	rec.OpponentsFar = model.Measured(model.OpNeighbourCount, float64(last.FarCount))
}

// path fills path length, displacement, efficiency and the path-vs-time fit.
func (a *Aggregator) path(rec *model.FeatureRecord, features []geometry.FrameFeatures, elapsed, cumulative []float64) error {
	n := len(features)
	length := cumulative[n-1]
	first, last := features[0].Position, features[n-1].Position
	displacement := math.Hypot(last.X-first.X, last.Y-first.Y)

	rec.PathLength = model.Measured(model.OpPathGeometry, length)
	rec.Displacement = model.Measured(model.OpPathGeometry, displacement)
	rec.PathSlope, rec.PathCorr = fit(model.OpPathGeometry, elapsed, cumulative)

	eff, err := PathEfficiency(displacement, length, n)
	if err != nil {
		return err
	}
	rec.PathEfficiency = eff
	return nil
}

// PathEfficiency returns displacement / path length over a series of frames.
// It is 1 when the path length is zero and insufficient with fewer than two
// frames. Values above 1 fail with ErrAggregationInvariant.
func PathEfficiency(displacement, length float64, frames int) (model.Metric, error) {
	if frames < 2 {
		return model.Insufficient(model.OpPathGeometry), nil
	}
	if length == 0 {
		return model.Measured(model.OpPathGeometry, 1.0), nil
	}
	eff := displacement / length
	if eff > 1+efficiencyTolerance || eff < 0 || math.IsNaN(eff) {
		return model.Metric{}, fmt.Errorf("%w: path efficiency %v (displacement %v, length %v)",
			ErrAggregationInvariant, eff, displacement, length)
	}
	return model.Measured(model.OpPathGeometry, math.Min(eff, 1)), nil
}

// fit returns the least-squares slope of y on x and the Pearson correlation.
func fit(source model.Operation, x, y []float64) (slope, corr model.Metric) {
	if len(x) < 2 {
		return model.Insufficient(source), model.Insufficient(source)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	slope = model.Measured(source, beta)
	if constant(y) {
		return slope, model.Undefined(source)
	}
	return slope, model.Measured(source, stat.Correlation(x, y, nil))
}

func sampleSD(source model.Operation, v []float64) model.Metric {
	if len(v) < 2 {
		return model.Insufficient(source)
	}
	return model.Measured(source, stat.StdDev(v, nil))
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}
