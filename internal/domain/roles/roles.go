// Package roles ranks the records of a group by one feature and labels the
// first PRIMARY and the rest HELP.
//
// The algorithm does not know which reference the feature was measured
// against. Swapping the ranking feature is the only way to change the
// reference.
package roles

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
)

// DefaultFeature ranks by distance to the reference point at the last frame.
const DefaultFeature = "distance_to_point.last"

// Direction orders the ranking feature.
type Direction int

// Ranking directions.
const (
	Ascending Direction = iota // smallest value is PRIMARY
	Descending
)

// String returns the direction name used in configuration.
func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// ParseDirection parses "ascending" or "descending". The empty string is
// ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("unknown direction %q", s)
}

// Assignment is one ranked member of a group.
type Assignment struct {
	Record model.FeatureRecord // labelled copy
	Rank   int                 // 1-based
	Role   model.RoleLabel
}

type options struct {
	direction Direction
}

// Option configures a classification.
type Option func(*options)

// WithDirection sets the ranking direction.
func WithDirection(d Direction) Option {
	return func(o *options) {
		o.direction = d
	}
}

// Classify sorts group by feature, breaking ties on agent id, and returns
// one assignment per member in rank order. The input records are not
// modified.
func Classify(group []model.FeatureRecord, feature string, opts ...Option) ([]Assignment, error) {
	o := options{direction: Ascending}
	for _, opt := range opts {
		opt(&o)
	}
	if len(group) == 0 {
		return nil, ErrEmptyGroup
	}
	if !model.HasColumn(feature) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	type ranked struct {
		rec   model.FeatureRecord
		value float64
	}
	members := make([]ranked, 0, len(group))
	seen := make(map[string]struct{}, len(group))
	for _, rec := range group {
		if _, dup := seen[rec.Key()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, rec.Key())
		}
		seen[rec.Key()] = struct{}{}
		m, _ := rec.Lookup(feature)
		if !m.OK() {
			return nil, fmt.Errorf("%w: %s %s is %s", ErrUnrankable, rec.Key(), feature, statusOf(m))
		}
		members = append(members, ranked{rec: rec, value: m.Value})
	}

	slices.SortFunc(members, func(a, b ranked) int {
		c := cmp.Compare(a.value, b.value)
		if o.direction == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.rec.AgentID, b.rec.AgentID), cmp.Compare(a.rec.EpisodeID, b.rec.EpisodeID))
	})

	out := make([]Assignment, len(members))
	for i, m := range members {
		role := model.RoleHelp
		if i == 0 {
			role = model.RolePrimary
		}
		out[i] = Assignment{Record: m.rec.WithRole(role, i+1), Rank: i + 1, Role: role}
	}
	return out, nil
}

// Rankable splits group into records with a usable value for feature and
// the rest.
func Rankable(group []model.FeatureRecord, feature string) (usable, dropped []model.FeatureRecord) {
	for _, rec := range group {
		if m, ok := rec.Lookup(feature); ok && m.OK() {
			usable = append(usable, rec)
		} else {
			dropped = append(dropped, rec)
		}
	}
	return usable, dropped
}

// Primary returns the PRIMARY assignment of a classified group.
func Primary(assignments []Assignment) (Assignment, bool) {
	for _, a := range assignments {
		if a.Role == model.RolePrimary {
			return a, true
		}
	}
	return Assignment{}, false
}

// Group is the set of records classified together.
type Group struct {
	Key     string
	Records []model.FeatureRecord
}

// GroupBy splits records into classification groups by episode, or by
// episode and category when byCategory is set. Groups are returned in key
// order and keep the input order of their members.
func GroupBy(records []model.FeatureRecord, byCategory bool) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, rec := range records {
		key := rec.EpisodeID
		if byCategory {
			key += "/" + rec.Category
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Key, b.Key) })
	return groups
}

func statusOf(m model.Metric) string {
	if m.Status == "" {
		return "untagged"
	}
	return string(m.Status)
}
