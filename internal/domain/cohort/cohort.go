// Package cohort groups FeatureRecords by a key function. It computes
// nothing about the records themselves.
package cohort

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
)

// Cohort is a named grouping of records.
type Cohort struct {
	Name    string
	Records []model.FeatureRecord
}

// Len returns the number of records.
func (c Cohort) Len() int { return len(c.Records) }

// KeyFunc maps a record to its cohort name. Returning false leaves the
// record out of every cohort.
type KeyFunc func(model.FeatureRecord) (string, bool)

// Partitioning maps key values to cohorts.
type Partitioning struct {
	key     string
	cohorts map[string][]model.FeatureRecord
	skipped int
}

// Partition groups records by key. Records keep their input order within a
// cohort.
func Partition(records []model.FeatureRecord, name string, key KeyFunc) Partitioning {
	p := Partitioning{key: name, cohorts: make(map[string][]model.FeatureRecord)}
	for _, rec := range records {
		k, ok := key(rec)
		if !ok {
			p.skipped++
			continue
		}
		p.cohorts[k] = append(p.cohorts[k], rec)
	}
	return p
}

// By partitions records by a named key (see Resolve).
func By(records []model.FeatureRecord, name string) (Partitioning, error) {
	key, err := Resolve(name)
	if err != nil {
		return Partitioning{}, err
	}
	return Partition(records, name, key), nil
}

// Key returns the key name the partitioning was built with.
func (p Partitioning) Key() string { return p.key }

// Skipped returns how many records the key function left out.
func (p Partitioning) Skipped() int { return p.skipped }

// Names returns the cohort names in sorted order.
func (p Partitioning) Names() []string {
	return slices.Sorted(maps.Keys(p.cohorts))
}

// Select returns the cohort for value, failing with ErrEmptyCohort when no
// record matched it.
func (p Partitioning) Select(value string) (Cohort, error) {
	recs := p.cohorts[value]
	if len(recs) == 0 {
		return Cohort{}, fmt.Errorf("%w: %s=%q", ErrEmptyCohort, p.key, value)
	}
	return Cohort{Name: value, Records: slices.Clone(recs)}, nil
}

// Cohorts returns every non-empty cohort in name order.
func (p Partitioning) Cohorts() []Cohort {
	out := make([]Cohort, 0, len(p.cohorts))
	for _, name := range p.Names() {
		out = append(out, Cohort{Name: name, Records: slices.Clone(p.cohorts[name])})
	}
	return out
}

// Resolve returns the key function for a named key: role, outcome,
// category, side, duration_bin, credited, episode, agent, archetype or
// tag:<name>.
// Records with an empty value for the key are left out.
func Resolve(name string) (KeyFunc, error) {
	switch name {
	case "role":
		return nonEmpty(func(r model.FeatureRecord) string { return string(r.Role) }), nil
	case "episode":
		return nonEmpty(func(r model.FeatureRecord) string { return r.EpisodeID }), nil
	case "agent":
		return nonEmpty(func(r model.FeatureRecord) string { return r.AgentID }), nil
	case "archetype":
		return nonEmpty(func(r model.FeatureRecord) string { return r.Tag(ArchetypeTag) }), nil
	case "outcome", "category", "side", "duration_bin", "credited":
	default:
		if tag, ok := strings.CutPrefix(name, "tag:"); !ok || tag == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
		}
	}
	return func(r model.FeatureRecord) (string, bool) {
		v, _, ok := r.Categorical(name)
		return v, ok && v != ""
	}, nil
}

// ArchetypeTag is the record tag holding an agent's archetype cluster.
const ArchetypeTag = "archetype"

// Predicate builds a two-way key function from a boolean predicate.
func Predicate(yes, no string, pred func(model.FeatureRecord) bool) KeyFunc {
	return func(r model.FeatureRecord) (string, bool) {
		if pred(r) {
			return yes, true
		}
		return no, true
	}
}

func nonEmpty(f func(model.FeatureRecord) string) KeyFunc {
	return func(r model.FeatureRecord) (string, bool) {
		v := f(r)
		return v, v != ""
	}
}
