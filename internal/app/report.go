package service

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/aggregate"
	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/internal/domain/roles"
)

// Exclusion is an agent record left out of the results.
type Exclusion struct {
	EpisodeID string `json:"episode_id" yaml:"episode_id"`
	AgentID   string `json:"agent_id" yaml:"agent_id"`
	Reason    string `json:"reason" yaml:"reason"`
	Detail    string `json:"detail" yaml:"detail"`
}

// Exclusion reasons.
const (
	ReasonInvalidGeometry      = "invalid_geometry"
	ReasonEmptyCandidateSet    = "empty_candidate_set"
	ReasonReferenceUnavailable = "reference_unavailable"
	ReasonNoFrames             = "no_frames"
	ReasonAggregation          = "aggregation_invariant"
	ReasonUnboundedValue       = "unbounded_value"
	ReasonUnrankable           = "unrankable"
	ReasonEpisodeUnavailable   = "episode_unavailable"
	ReasonFailed               = "failed"
)

// ExclusionReason maps a pipeline error to its exclusion reason.
func ExclusionReason(err error) string {
	switch {
	case errors.Is(err, geometry.ErrInvalidGeometry):
		return ReasonInvalidGeometry
	case errors.Is(err, geometry.ErrEmptyCandidateSet):
		return ReasonEmptyCandidateSet
	case errors.Is(err, geometry.ErrReferenceUnavailable):
		return ReasonReferenceUnavailable
	case errors.Is(err, aggregate.ErrNoFrames):
		return ReasonNoFrames
	case errors.Is(err, aggregate.ErrAggregationInvariant):
		return ReasonAggregation
	case errors.Is(err, aggregate.ErrUnboundedValue):
		return ReasonUnboundedValue
	case errors.Is(err, roles.ErrUnrankable):
		return ReasonUnrankable
	case errors.Is(err, repository.ErrNotFound):
		return ReasonEpisodeUnavailable
	default:
		return ReasonFailed
	}
}

// ComparisonCounts tallies hypotheses by outcome.
type ComparisonCounts struct {
	OK     int            `json:"ok" yaml:"ok"`
	Failed int            `json:"failed" yaml:"failed"`
	Status map[string]int `json:"status,omitempty" yaml:"status,omitempty"`
}

// Summary describes one pipeline run.
type Summary struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	DurationMS  int64            `json:"duration_ms" yaml:"duration_ms"`
	Episodes    int              `json:"episodes" yaml:"episodes"`
	Rejected    map[string]int   `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Duplicates  int64            `json:"duplicate_rows" yaml:"duplicate_rows"`
	Records     int              `json:"records" yaml:"records"`
	Classified  int              `json:"classified" yaml:"classified"`
	Targets     int              `json:"targets,omitempty" yaml:"targets,omitempty"`
	Excluded    map[string]int   `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Comparisons ComparisonCounts `json:"comparisons" yaml:"comparisons"`
	Archetypes  int              `json:"archetype_agents,omitempty" yaml:"archetype_agents,omitempty"`
}

// ExcludedTotal returns the number of excluded records.
func (s Summary) ExcludedTotal() int {
	n := 0
	for _, c := range s.Excluded {
		n += c
	}
	return n
}

// Archetypes is the outcome of the optional archetype step.
type Archetypes struct {
	Key        string
	Categories []string
	Vectors    []archetype.Vector
	Result     archetype.Result
}

// Report is everything one run produced.
type Report struct {
	Summary     Summary
	Records     []model.FeatureRecord
	Exclusions  []Exclusion
	Comparisons []compare.Result
	Archetypes  *Archetypes
}

// AddIngest records what the store builder dropped before the run.
func (r *Report) AddIngest(rejections []repository.Rejection, duplicates int64) {
	r.Summary.Duplicates = duplicates
	if len(rejections) == 0 {
		return
	}
	if r.Summary.Rejected == nil {
		r.Summary.Rejected = map[string]int{}
	}
	for _, rej := range rejections {
		r.Summary.Rejected[rej.Reason]++
	}
}

// Find returns the records matching the episode and agent ids. Empty
// arguments match everything.
func (r *Report) Find(episodeID, agentID string) []model.FeatureRecord {
	var out []model.FeatureRecord
	for _, rec := range r.Records {
		if episodeID != "" && rec.EpisodeID != episodeID {
			continue
		}
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func countReasons(exclusions []Exclusion) map[string]int {
	if len(exclusions) == 0 {
		return nil
	}
	out := map[string]int{}
	for _, e := range exclusions {
		out[e.Reason]++
	}
	return out
}

func countComparisons(results []compare.Result) ComparisonCounts {
	c := ComparisonCounts{Status: map[string]int{}}
	for _, r := range results {
		if r.OK() {
			c.OK++
		} else {
			c.Failed++
		}
		c.Status[string(r.Status)]++
	}
	if len(c.Status) == 0 {
		c.Status = nil
	}
	return c
}

// reasons lists map keys in order for logging.
func reasons(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}
