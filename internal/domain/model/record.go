package model

import (
	"maps"
	"slices"
	"strings"
)

// RoleLabel is the rank-based role of a record within its classification group.
type RoleLabel string

// Role labels.
const (
	RoleNone    RoleLabel = ""
	RolePrimary RoleLabel = "PRIMARY"
	RoleHelp    RoleLabel = "HELP"
)

// Credit records whether a classified agent is credited with its episode's
// outcome event, e.g. the defender who made an interception.
type Credit string

// Credit values. Records outside every classification group have none.
const (
	CreditNone Credit = ""
	CreditYes  Credit = "yes"
	CreditNo   Credit = "no"
)

// FeatureRecord is the aggregated feature vector of one agent in one episode.
// Every metric field is tagged with the operation that produced it.
type FeatureRecord struct {
	// Identity
	EpisodeID string
	AgentID   string
	Category  string
	Side      string
	Frames    int

	// Context copied from the episode
	Outcome     Outcome
	Tags        map[string]string
	DurationBin string

	// Set only through WithRole and WithCredit.
	Role     RoleLabel
	Rank     int
	Credited Credit

	RefDistance      Summary // distance_to_point
	RefDistanceSlope Metric  // vs elapsed seconds; negative means closing
	RefDistanceCorr  Metric

	Separation       Summary // distance_to_nearest_agent against the opposing side
	SeparationChange Metric
	NearestOpponent  string // at the last frame
	OpponentsNear    Metric
	OpponentsFar     Metric

	Bearing              Summary
	HeadingAlignment     Summary
	GoodHeadingShare     Metric
	OrientationAlignment Summary
	BodyAlignment        Metric

	Speed        Summary
	SpeedSD      Metric
	Acceleration Summary

	PathLength     Metric
	Displacement   Metric
	PathEfficiency Metric
	PathSlope      Metric // cumulative path length vs elapsed seconds
	PathCorr       Metric

	Duration Metric // episode time-to-event in seconds
}

// WithRole returns a copy of the record carrying the given role and rank.
func (r FeatureRecord) WithRole(role RoleLabel, rank int) FeatureRecord {
	out := r
	out.Tags = maps.Clone(r.Tags)
	out.Role = role
	out.Rank = rank
	return out
}

// WithCredit returns a copy of the record carrying the given credit.
func (r FeatureRecord) WithCredit(c Credit) FeatureRecord {
	out := r
	out.Tags = maps.Clone(r.Tags)
	out.Credited = c
	return out
}

// Tag returns an episode tag copied onto the record.
func (r FeatureRecord) Tag(name string) string {
	return r.Tags[name]
}

// Key returns the record identity "episode/agent".
func (r FeatureRecord) Key() string {
	return r.EpisodeID + "/" + r.AgentID
}

// Lookup resolves a column name such as "distance_to_point.last".
func (r FeatureRecord) Lookup(name string) (Metric, bool) {
	c, ok := columnIndex[name]
	if !ok {
		return Metric{}, false
	}
	return c.get(&r), true
}

// Columns returns the metric column names in export order.
func Columns() []string {
	return slices.Clone(columnNames)
}

// HasColumn reports whether name is a known metric column.
func HasColumn(name string) bool {
	_, ok := columnIndex[name]
	return ok
}

type column struct {
	name string
	get  func(*FeatureRecord) Metric
}

func summaryColumns(prefix Operation, pick func(*FeatureRecord) *Summary, stats ...string) []column {
	out := make([]column, 0, len(stats))
	for _, stat := range stats {
		var get func(*FeatureRecord) Metric
		switch stat {
		case "mean":
			get = func(r *FeatureRecord) Metric { return pick(r).Mean }
		case "min":
			get = func(r *FeatureRecord) Metric { return pick(r).Min }
		case "max":
			get = func(r *FeatureRecord) Metric { return pick(r).Max }
		case "first":
			get = func(r *FeatureRecord) Metric { return pick(r).First }
		case "last":
			get = func(r *FeatureRecord) Metric { return pick(r).Last }
		default:
			panic("model: unknown summary statistic " + stat)
		}
		out = append(out, column{name: string(prefix) + "." + stat, get: get})
	}
	return out
}

var all = []string{"mean", "min", "max", "first", "last"}

var catalog = slices.Concat(
	summaryColumns(OpDistanceToPoint, func(r *FeatureRecord) *Summary { return &r.RefDistance }, all...),
	[]column{
		{"distance_to_point.slope", func(r *FeatureRecord) Metric { return r.RefDistanceSlope }},
		{"distance_to_point.corr", func(r *FeatureRecord) Metric { return r.RefDistanceCorr }},
	},
	summaryColumns(OpDistanceToNearestAgent, func(r *FeatureRecord) *Summary { return &r.Separation }, all...),
	[]column{
		{"distance_to_nearest_agent.change", func(r *FeatureRecord) Metric { return r.SeparationChange }},
		{"neighbour_count.near", func(r *FeatureRecord) Metric { return r.OpponentsNear }},
		{"neighbour_count.far", func(r *FeatureRecord) Metric { return r.OpponentsFar }},
	},
	summaryColumns(OpBearing, func(r *FeatureRecord) *Summary { return &r.Bearing }, "first", "last"),
	summaryColumns(OpHeadingAlignment, func(r *FeatureRecord) *Summary { return &r.HeadingAlignment }, all...),
	[]column{
		{"heading_alignment.good_share", func(r *FeatureRecord) Metric { return r.GoodHeadingShare }},
	},
	summaryColumns(OpOrientationAlignment, func(r *FeatureRecord) *Summary { return &r.OrientationAlignment }, all...),
	[]column{
		{"body_alignment.mean", func(r *FeatureRecord) Metric { return r.BodyAlignment }},
	},
	summaryColumns(OpSpeed, func(r *FeatureRecord) *Summary { return &r.Speed }, all...),
	[]column{
		{"kinematic_speed.sd", func(r *FeatureRecord) Metric { return r.SpeedSD }},
	},
	summaryColumns(OpAcceleration, func(r *FeatureRecord) *Summary { return &r.Acceleration }, all...),
	[]column{
		{"path_geometry.length", func(r *FeatureRecord) Metric { return r.PathLength }},
		{"path_geometry.displacement", func(r *FeatureRecord) Metric { return r.Displacement }},
		{"path_geometry.efficiency", func(r *FeatureRecord) Metric { return r.PathEfficiency }},
		{"path_geometry.slope", func(r *FeatureRecord) Metric { return r.PathSlope }},
		{"path_geometry.corr", func(r *FeatureRecord) Metric { return r.PathCorr }},
		{"episode_clock.duration", func(r *FeatureRecord) Metric { return r.Duration }},
	},
)

var columnNames, columnIndex = func() ([]string, map[string]column) {
	names := make([]string, 0, len(catalog))
	index := make(map[string]column, len(catalog))
	for _, c := range catalog {
		if _, dup := index[c.name]; dup {
			panic("model: duplicate column " + c.name)
		}
		names = append(names, c.name)
		index[c.name] = c
	}
	return names, index
}()

// Categorical resolves a categorical field and the operation it traces to.
// Known names: outcome, category, side, duration_bin, credited and
// tag:<name>. credited is unset outside classification groups.
func (r FeatureRecord) Categorical(name string) (string, Operation, bool) {
	switch name {
	case "outcome":
		return string(r.Outcome), OpEpisodeMetadata, true
	case "category":
		return r.Category, OpEpisodeMetadata, true
	case "side":
		return r.Side, OpEpisodeMetadata, true
	case "duration_bin":
		return r.DurationBin, OpEpisodeClock, true
	case "credited":
		return string(r.Credited), OpOutcomeCredit, r.Credited != CreditNone
	}
	if tag, ok := strings.CutPrefix(name, "tag:"); ok {
		v, found := r.Tags[tag]
		return v, OpEpisodeMetadata, found
	}
	return "", "", false
}

// ColumnOperation returns the operation a metric column traces to.
func ColumnOperation(name string) (Operation, bool) {
	if !HasColumn(name) {
		return "", false
	}
	op, _, _ := strings.Cut(name, ".")
	return Operation(op), true
}
