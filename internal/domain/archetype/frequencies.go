package archetype

import (
	"fmt"
	"maps"
	"slices"

	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/model"
)

// Frequencies builds one normalized frequency vector per agent from the
// categorical field key (e.g. "tag:route") across that agent's records.
// Agents with fewer than minObservations usable records are left out.
// Categories are returned in sorted order and index every vector.
func Frequencies(records []model.FeatureRecord, key string, minObservations int) ([]Vector, []string, error) {
	counts := map[string]map[string]int{}
	categories := map[string]struct{}{}
	known := false
	for _, rec := range records {
		v, source, ok := rec.Categorical(key)
		if source != "" {
			known = true
		}
		if !ok || v == "" {
			continue
		}
		if counts[rec.AgentID] == nil {
			counts[rec.AgentID] = map[string]int{}
		}
		counts[rec.AgentID][v]++
		categories[v] = struct{}{}
	}
	if len(records) > 0 && !known {
		return nil, nil, fmt.Errorf("unknown categorical field %q", key)
	}

	cats := slices.Sorted(maps.Keys(categories))
	var out []Vector
	for _, agent := range slices.Sorted(maps.Keys(counts)) {
		c := counts[agent]
		total := 0
		for _, n := range c {
			total += n
		}
		if total < max(minObservations, 1) {
			continue
		}
		vals := make([]float64, len(cats))
		for i, cat := range cats {
			vals[i] = float64(c[cat]) / float64(total)
		}
		out = append(out, Vector{ID: agent, Values: vals})
	}
	if len(out) == 0 {
		return nil, cats, ErrNoVectors
	}
	return out, cats, nil
}

// Label returns a copy of records with each agent's cluster stored in the
// archetype tag. Agents outside the result are left unlabelled.
func Label(records []model.FeatureRecord, res Result) []model.FeatureRecord {
	clusters := make(map[string]int, len(res.IDs))
	for i, id := range res.IDs {
		clusters[id] = res.Assignments[i]
	}
	out := make([]model.FeatureRecord, len(records))
	for i, rec := range records {
		rec = rec.WithRole(rec.Role, rec.Rank)
		if c, ok := clusters[rec.AgentID]; ok {
			if rec.Tags == nil {
				rec.Tags = map[string]string{}
			}
			rec.Tags[cohort.ArchetypeTag] = ClusterName(c)
		}
		out[i] = rec
	}
	return out
}

// ClusterName is the tag value of cluster index c.
func ClusterName(c int) string {
	return fmt.Sprintf("cluster_%d", c)
}
