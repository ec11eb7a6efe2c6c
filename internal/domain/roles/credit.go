package roles

import (
	"fmt"
	"slices"

	"github.com/okian/trajan/internal/domain/model"
)

// DefaultCreditOutcomes are the episode outcomes credited to one agent.
var DefaultCreditOutcomes = []model.Outcome{"IN"}

// Credit marks the member of group that is credited with the episode's
// outcome event: the one ranked first by feature (ascending, ties on agent
// id) when the episode outcome is one of outcomes. Every other member is
// marked not credited, and so is the whole group when the outcome does not
// count. Members without a usable feature value are never credited. The
// returned copies keep the input order.
func Credit(group []model.FeatureRecord, feature string, outcomes []model.Outcome) ([]model.FeatureRecord, error) {
	if len(group) == 0 {
		return nil, ErrEmptyGroup
	}
	if !model.HasColumn(feature) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}
	out := make([]model.FeatureRecord, len(group))
	for i, rec := range group {
		out[i] = rec.WithCredit(model.CreditNo)
	}
	if !slices.Contains(outcomes, group[0].Outcome) {
		return out, nil
	}
	usable, _ := Rankable(group, feature)
	if len(usable) == 0 {
		return out, nil
	}
	ranked, err := Classify(usable, feature)
	if err != nil {
		return nil, err
	}
	winner := ranked[0].Record.Key()
	for i := range out {
		if out[i].Key() == winner {
			out[i].Credited = model.CreditYes
		}
	}
	return out, nil
}
