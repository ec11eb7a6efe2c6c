package service

import (
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/model"
)

// Default hypothesis names.
const (
	HypothesisRoleCredit       = "primary_vs_help_credit"
	HypothesisRoleSeparation   = "primary_vs_help_separation"
	HypothesisSeparationVsDist = "separation_vs_reference_distance"
	HypothesisPrimaryClosing   = "primary_separation_first_vs_last"
	HypothesisDurationPath     = "duration_bin_path_efficiency"
)

// DefaultHypotheses returns the comparisons run when none are configured:
// credited rate and final separation of PRIMARY against HELP agents, the
// correlation of separation with reference distance, the paired change in
// PRIMARY separation from the first to the last frame, and path efficiency
// across duration bins. PRIMARY is the baseline of the credited rate, so
// its odds ratio is odds(HELP) / odds(PRIMARY).
func DefaultHypotheses() []compare.Hypothesis {
	separation := compare.Feature{Name: "distance_to_nearest_agent.last", Requires: model.OpDistanceToNearestAgent}
	return []compare.Hypothesis{
		{
			Name:    HypothesisRoleCredit,
			Kind:    compare.KindProportions,
			Key:     "role",
			Cohorts: []string{string(model.RolePrimary), string(model.RoleHelp)},
			Outcome: compare.Outcome{Field: "credited", Success: []string{string(model.CreditYes)}, Requires: model.OpOutcomeCredit},
		},
		{
			Name:        HypothesisRoleSeparation,
			Kind:        compare.KindMeans,
			Key:         "role",
			Cohorts:     []string{string(model.RolePrimary), string(model.RoleHelp)},
			Feature:     separation,
			Alternative: compare.Less,
		},
		{
			Name:    HypothesisSeparationVsDist,
			Kind:    compare.KindCorrelation,
			Key:     "role",
			Cohorts: []string{string(model.RolePrimary)},
			Feature: separation,
			Against: compare.Feature{Name: "distance_to_point.last", Requires: model.OpDistanceToPoint},
		},
		{
			Name:    HypothesisPrimaryClosing,
			Kind:    compare.KindPaired,
			Key:     "role",
			Cohorts: []string{string(model.RolePrimary)},
			Feature: compare.Feature{Name: "distance_to_nearest_agent.first", Requires: model.OpDistanceToNearestAgent},
			Against: separation,
		},
		{
			Name:    HypothesisDurationPath,
			Kind:    compare.KindANOVA,
			Key:     "duration_bin",
			Feature: compare.Feature{Name: "path_geometry.efficiency", Requires: model.OpPathGeometry},
		},
	}
}

// ParseHypotheses converts declared hypotheses, stopping at the first
// invalid one.
func ParseHypotheses(specs []compare.Spec) ([]compare.Hypothesis, error) {
	out := make([]compare.Hypothesis, 0, len(specs))
	for _, s := range specs {
		h, err := s.Hypothesis()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
