package compare

import (
	"fmt"
	"strings"

	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/model"
)

// Hypothesis declares one comparison over a cohort partitioning.
type Hypothesis struct {
	Name string
	Kind Kind
	// Key partitions the records; Cohorts selects the compared values. For
	// two-sample kinds Cohorts[0] is A (or the baseline) and Cohorts[1] is
	// B. Multi-cohort kinds use every cohort of the key when Cohorts is
	// empty. Correlation and paired comparisons use all records when Key is
	// empty.
	Key         string
	Cohorts     []string
	Feature     Feature
	Against     Feature // second feature of a correlation or paired comparison
	Outcome     Outcome // proportions and contingency
	Alternative Alternative
}

// Validate checks the shape of the hypothesis before any record is read.
func (h Hypothesis) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidHypothesis)
	}
	switch h.Kind {
	case KindMeans, KindRanks, KindProportions:
		if h.Key == "" || len(h.Cohorts) != 2 {
			return fmt.Errorf("%w: %s needs a key and exactly two cohorts", ErrInvalidHypothesis, h.Name)
		}
	case KindANOVA, KindVariance, KindContingency:
		if h.Key == "" || len(h.Cohorts) == 1 {
			return fmt.Errorf("%w: %s needs a key and zero or at least two cohorts", ErrInvalidHypothesis, h.Name)
		}
	case KindCorrelation, KindPaired:
		if len(h.Cohorts) > 1 || (len(h.Cohorts) == 1 && h.Key == "") {
			return fmt.Errorf("%w: %s pairs features within at most one cohort", ErrInvalidHypothesis, h.Name)
		}
		if h.Feature.Name == "" {
			return fmt.Errorf("%w: %s has no feature", ErrInvalidHypothesis, h.Name)
		}
		if h.Against.Name == "" {
			return fmt.Errorf("%w: %s has no second feature", ErrInvalidHypothesis, h.Name)
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidHypothesis, h.Name, h.Kind)
	}
	return nil
}

// Run partitions records by the hypothesis key and runs its comparison.
// The returned Result always names the hypothesis; on error its Status
// records why no statistic was reported.
func (c *Comparator) Run(h Hypothesis, records []model.FeatureRecord) (Result, error) {
	fail := func(err error) (Result, error) {
		r := newResult(h.Name, h.Kind, h.Feature.Name)
		r.Alternative = h.Alternative
		r.Cohorts = h.Cohorts
		return r.failed(err), err
	}
	if err := h.Validate(); err != nil {
		return fail(err)
	}

	if h.Key == "" {
		all := cohort.Cohort{Name: "all", Records: records}
		switch h.Kind {
		case KindCorrelation:
			return c.Correlate(h.Name, all, h.Feature, h.Against, h.Alternative)
		case KindPaired:
			return c.Paired(h.Name, all, h.Feature, h.Against, h.Alternative)
		}
	}

	p, err := cohort.By(records, h.Key)
	if err != nil {
		return fail(err)
	}
	selected, err := selectCohorts(p, h.Cohorts)
	if err != nil {
		return fail(err)
	}

	switch h.Kind {
	case KindMeans:
		return c.Means(h.Name, selected[0], selected[1], h.Feature, h.Alternative)
	case KindRanks:
		return c.Ranks(h.Name, selected[0], selected[1], h.Feature, h.Alternative)
	case KindProportions:
		return c.Proportions(h.Name, selected[0], selected[1], h.Outcome, h.Alternative)
	case KindCorrelation:
		return c.Correlate(h.Name, selected[0], h.Feature, h.Against, h.Alternative)
	case KindPaired:
		return c.Paired(h.Name, selected[0], h.Feature, h.Against, h.Alternative)
	case KindANOVA:
		return c.Groups(h.Name, selected, h.Feature)
	case KindVariance:
		return c.Variances(h.Name, selected, h.Feature)
	default:
		return c.Contingency(h.Name, selected, h.Outcome.Field, h.Outcome.Requires)
	}
}

// selectCohorts returns the named cohorts, or every cohort when names is
// empty. An empty cohort surfaces as cohort.ErrEmptyCohort, which counts as
// an insufficient sample.
func selectCohorts(p cohort.Partitioning, names []string) ([]cohort.Cohort, error) {
	if len(names) == 0 {
		all := p.Cohorts()
		if len(all) < 2 {
			return nil, fmt.Errorf("%w: key %s has %d non-empty cohorts", ErrInsufficientSample, p.Key(), len(all))
		}
		return all, nil
	}
	out := make([]cohort.Cohort, 0, len(names))
	for _, name := range names {
		c, err := p.Select(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientSample, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Spec is the declarative form of a Hypothesis as it appears in
// configuration. Requires, when set, names the operation the feature (or,
// without a feature, the outcome) must trace to. Otherwise feature
// requirements default to the operation the column is catalogued under,
// credit outcomes to the credit assignment, duration bins to the episode
// clock and any other outcome to the episode metadata.
type Spec struct {
	Name        string
	Kind        string
	Key         string
	Cohorts     []string
	Feature     string
	Against     string
	Outcome     string
	Success     []string
	Alternative string
	Requires    string
}

// Hypothesis converts the spec and validates the result.
func (s Spec) Hypothesis() (Hypothesis, error) {
	alt, err := ParseAlternative(s.Alternative)
	if err != nil {
		return Hypothesis{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	h := Hypothesis{
		Name:        s.Name,
		Kind:        Kind(strings.ToLower(s.Kind)),
		Key:         s.Key,
		Cohorts:     s.Cohorts,
		Alternative: alt,
	}
	declared := model.Operation(s.Requires)
	if declared != "" && !model.KnownOperation(declared) {
		return Hypothesis{}, fmt.Errorf("%w: %s requires unknown operation %q", ErrInvalidHypothesis, s.Name, s.Requires)
	}
	if h.Feature, err = featureOf(s.Feature, declared); err != nil {
		return Hypothesis{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	if h.Against, err = featureOf(s.Against, ""); err != nil {
		return Hypothesis{}, fmt.Errorf("%s: %w", s.Name, err)
	}
	if s.Outcome != "" {
		requires := declared
		if requires == "" || s.Feature != "" {
			requires = outcomeOperation(s.Outcome)
		}
		h.Outcome = Outcome{Field: s.Outcome, Success: s.Success, Requires: requires}
	}
	if err := h.Validate(); err != nil {
		return Hypothesis{}, err
	}
	return h, nil
}

func featureOf(name string, requires model.Operation) (Feature, error) {
	if name == "" {
		return Feature{}, nil
	}
	op, ok := model.ColumnOperation(name)
	if !ok {
		return Feature{}, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	if requires != "" {
		op = requires
	}
	return Feature{Name: name, Requires: op}, nil
}

func outcomeOperation(field string) model.Operation {
	switch field {
	case "duration_bin":
		return model.OpEpisodeClock
	case "credited":
		return model.OpOutcomeCredit
	}
	return model.OpEpisodeMetadata
}
