package config

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/okian/trajan/internal/adapters/tabular"
	"github.com/okian/trajan/internal/domain/aggregate"
	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/internal/domain/roles"
)

var validate = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // caches struct metadata

// Validate checks field constraints, then the rules spanning fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Schema(); err != nil {
		return fmt.Errorf("%w: ingest: %w", ErrInvalidConfig, err)
	}
	if _, err := c.ExtractorOptions(); err != nil {
		return fmt.Errorf("%w: extract: %w", ErrInvalidConfig, err)
	}
	if _, err := c.DurationBins(); err != nil {
		return fmt.Errorf("%w: bins: %w", ErrInvalidConfig, err)
	}
	if !model.HasColumn(c.Classify.Feature) {
		return fmt.Errorf("%w: classify: unknown feature %q", ErrInvalidConfig, c.Classify.Feature)
	}
	if f := c.Classify.CreditFeature; f != "" && !model.HasColumn(f) {
		return fmt.Errorf("%w: classify: unknown credit feature %q", ErrInvalidConfig, f)
	}
	if _, err := roles.ParseDirection(c.Classify.Direction); err != nil {
		return fmt.Errorf("%w: classify: %w", ErrInvalidConfig, err)
	}
	for _, s := range c.Compare.Specs() {
		if _, err := s.Hypothesis(); err != nil {
			return fmt.Errorf("%w: compare: %w", ErrInvalidConfig, err)
		}
	}
	if c.Archetype.Enabled {
		if _, err := cohort.Resolve(c.Archetype.Key); err != nil {
			return fmt.Errorf("%w: archetype: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Schema builds the ingest column schema.
func (c *Config) Schema() (tabular.Schema, error) {
	in := c.Ingest
	opts := []tabular.SchemaOption{
		tabular.WithEpisodeKeys(in.EpisodeKeys...),
		tabular.WithAngles(tabular.AngleUnit(in.AngleUnit), tabular.AngleConvention(in.AngleConvention)),
	}
	for field, names := range in.Aliases {
		opts = append(opts, tabular.WithAliases(field, names...))
	}
	return tabular.NewSchema(opts...)
}

// ExtractorOptions converts the extract section.
func (c *Config) ExtractorOptions() ([]geometry.Option, error) {
	rule, err := geometry.ParseOpponentRule(c.Extract.Opponents)
	if err != nil {
		return nil, err
	}
	return []geometry.Option{
		geometry.WithOpponentRule(rule),
		geometry.WithSeparation(c.Extract.Separation),
		geometry.WithRadii(c.Extract.NearRadius, c.Extract.FarRadius),
	}, nil
}

// DurationBins builds the duration bins.
func (c *Config) DurationBins() (aggregate.Bins, error) {
	return aggregate.NewBins(c.Bins.Boundaries, c.Bins.Labels, c.Bins.CatchAll)
}

// AggregatorOptions converts the bins and the timing settings.
func (c *Config) AggregatorOptions() ([]aggregate.Option, error) {
	bins, err := c.DurationBins()
	if err != nil {
		return nil, err
	}
	return []aggregate.Option{
		aggregate.WithFrameInterval(c.Ingest.FrameInterval),
		aggregate.WithGoodAlignment(c.Extract.GoodAlignmentDeg * math.Pi / 180),
		aggregate.WithBins(bins),
	}, nil
}

// Outcomes returns the credited outcomes.
func (c Classify) Outcomes() []model.Outcome {
	out := make([]model.Outcome, len(c.CreditOutcomes))
	for i, o := range c.CreditOutcomes {
		out[i] = model.Outcome(o)
	}
	return out
}

// ComparatorOptions converts the compare section.
func (c *Config) ComparatorOptions() []compare.Option {
	return []compare.Option{
		compare.WithAlpha(c.Compare.Alpha),
		compare.WithYates(c.Compare.Yates),
		compare.WithEqualVariance(c.Compare.EqualVariance),
	}
}

// Specs returns the declared hypotheses in order.
func (c Compare) Specs() []compare.Spec {
	out := make([]compare.Spec, len(c.Hypotheses))
	for i, h := range c.Hypotheses {
		out[i] = h.Spec()
	}
	return out
}

// KMeansOptions converts the archetype section.
func (c *Config) KMeansOptions() ([]archetype.Option, error) {
	d, err := archetype.ParseDistance(c.Archetype.Distance)
	if err != nil {
		return nil, err
	}
	return []archetype.Option{
		archetype.WithK(c.Archetype.K),
		archetype.WithSeed(c.Archetype.Seed),
		archetype.WithMaxIterations(c.Archetype.MaxIterations),
		archetype.WithDistance(d),
	}, nil
}
