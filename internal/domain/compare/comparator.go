// Package compare tests hypotheses about cohorts of FeatureRecords.
//
// Every comparison first checks that the requested column traces to the
// operation the caller declared. A mismatched or untagged column fails with
// ErrMetricContract before any statistic is computed.
package compare

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/model"
)

// Default comparator configuration constants.
const (
	defaultAlpha = 0.05
)

// Comparator runs statistical comparisons over cohorts.
type Comparator struct {
	alpha    float64
	yates    bool
	equalVar bool
}

// Option applies a configuration option to the Comparator.
type Option func(*Comparator)

// WithAlpha sets the significance level used for confidence intervals and
// the Significant flag.
func WithAlpha(alpha float64) Option {
	return func(c *Comparator) {
		if alpha > 0 && alpha < 1 {
			c.alpha = alpha
		}
	}
}

// WithYates toggles the continuity correction of 2x2 chi-square tests.
func WithYates(enabled bool) Option {
	return func(c *Comparator) {
		c.yates = enabled
	}
}

// WithEqualVariance switches mean comparisons from Welch to Student t.
func WithEqualVariance(enabled bool) Option {
	return func(c *Comparator) {
		c.equalVar = enabled
	}
}

// New creates a Comparator with configuration options.
func New(opts ...Option) *Comparator {
	c := &Comparator{alpha: defaultAlpha, yates: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Alpha returns the significance level.
func (c *Comparator) Alpha() float64 { return c.alpha }

func (c *Comparator) significant(p float64) bool {
	return !math.IsNaN(p) && p < c.alpha
}

// Means compares the mean of f in a against b with a t-test and reports
// Cohen's d as the effect size, alongside Hedges' g and Glass's delta.
func (c *Comparator) Means(name string, a, b cohort.Cohort, f Feature, alt Alternative) (Result, error) {
	r := newResult(name, KindMeans, f.Name)
	r.Alternative = alt
	r.Cohorts = []string{a.Name, b.Name}
	xa, xb, skipped, err := twoSamples(a, b, f)
	r.Sizes = []int{len(xa), len(xb)}
	r.Skipped = skipped
	if err != nil {
		return r.failed(err), err
	}

	test := Welch
	r.StatName = "welch_t"
	if c.equalVar {
		test = Student
		r.StatName = "student_t"
	}
	t, err := test(xa, xb, alt, c.alpha)
	if err != nil {
		return r.failed(err), err
	}
	eff, err := Effects(xa, xb)
	if err != nil {
		return r.failed(err), err
	}

	r.Means = []float64{t.A.Mean, t.B.Mean}
	r.SDs = []float64{t.A.SD, t.B.SD}
	r.Difference = t.Difference
	r.Statistic = t.T
	r.DF = t.DF
	r.PValue = t.P
	r.Significant = c.significant(t.P)
	r.Effect = eff.CohenD
	r.EffectName = "cohen_d"
	r.Magnitude = eff.Magnitude
	r.HedgesG = eff.HedgesG
	r.GlassDelta = eff.GlassDelta
	return r, nil
}

// Ranks compares a against b with the Mann-Whitney U test and reports the
// rank-biserial correlation as the effect size.
func (c *Comparator) Ranks(name string, a, b cohort.Cohort, f Feature, alt Alternative) (Result, error) {
	r := newResult(name, KindRanks, f.Name)
	r.Alternative = alt
	r.Cohorts = []string{a.Name, b.Name}
	xa, xb, skipped, err := twoSamples(a, b, f)
	r.Sizes = []int{len(xa), len(xb)}
	r.Skipped = skipped
	if err != nil {
		return r.failed(err), err
	}
	u, err := MannWhitney(xa, xb, alt)
	if err != nil {
		return r.failed(err), err
	}
	r.Means = []float64{median(xa), median(xb)}
	r.Difference.Value = r.Means[0] - r.Means[1]
	r.Statistic = u.U
	r.StatName = "mann_whitney_u"
	r.PValue = u.P
	r.Significant = c.significant(u.P)
	r.Effect = u.RankBiserial
	r.EffectName = "rank_biserial"
	r.Magnitude = Interpret(RToD(u.RankBiserial))
	return r, nil
}

// Proportions compares the success rate of o in the baseline cohort with
// the exposed cohort. Odds and risk ratios are exposed over baseline.
func (c *Comparator) Proportions(name string, baseline, exposed cohort.Cohort, o Outcome, alt Alternative) (Result, error) {
	r := newResult(name, KindProportions, o.String())
	r.Alternative = alt
	r.Cohorts = []string{baseline.Name, exposed.Name}
	cb, sb, err := Successes(baseline.Records, o)
	if err != nil {
		return r.failed(err), err
	}
	ce, se, err := Successes(exposed.Records, o)
	if err != nil {
		return r.failed(err), err
	}
	r.Sizes = []int{cb.N, ce.N}
	r.Skipped = sb + se

	p, err := CompareCounts(cb, ce, alt, c.alpha, c.yates)
	if err != nil {
		return r.failed(err), err
	}
	r.Means = []float64{cb.Rate(), ce.Rate()}
	r.Difference = p.Difference
	r.Statistic = p.ChiSquare.Statistic
	r.StatName = "chi_square"
	r.DF = float64(p.ChiSquare.DF)
	r.PValue = p.ChiSquare.P
	if alt != TwoSided {
		// the chi-square test has no direction
		r.Statistic = p.Z
		r.StatName = "z"
		r.DF = math.NaN()
		r.PValue = p.P
	}
	r.Significant = c.significant(r.PValue)
	r.Effect = p.ChiSquare.CramersV
	r.EffectName = "cramers_v"
	r.OddsRatio = p.OddsRatio
	r.RiskRatio = p.RiskRatio
	return r, nil
}

// Correlate reports the Pearson correlation of x and y across coh.
func (c *Comparator) Correlate(name string, coh cohort.Cohort, x, y Feature, alt Alternative) (Result, error) {
	r := newResult(name, KindCorrelation, x.Name+"~"+y.Name)
	r.Alternative = alt
	r.Cohorts = []string{coh.Name}
	xs, ys, skipped, err := Pairs(coh.Records, x, y)
	r.Sizes = []int{len(xs)}
	r.Skipped = skipped
	if err != nil {
		return r.failed(err), err
	}
	p, err := Pearson(xs, ys, alt, c.alpha)
	if err != nil {
		return r.failed(err), err
	}
	r.Statistic = p.T
	r.StatName = "t"
	r.DF = p.DF
	r.PValue = p.P
	r.Significant = c.significant(p.P)
	r.Effect = p.R.Value
	r.EffectName = "pearson_r"
	r.Difference = p.R
	r.Magnitude = Interpret(RToD(p.R.Value))
	return r, nil
}

// Paired compares x with y measured on the same records of coh using the
// paired t-test. Cohen's dz is the effect size, and the normality of the
// differences is reported alongside.
func (c *Comparator) Paired(name string, coh cohort.Cohort, x, y Feature, alt Alternative) (Result, error) {
	r := newResult(name, KindPaired, x.Name+"-"+y.Name)
	r.Alternative = alt
	r.Cohorts = []string{coh.Name}
	xs, ys, skipped, err := Pairs(coh.Records, x, y)
	r.Sizes = []int{len(xs)}
	r.Skipped = skipped
	if err != nil {
		return r.failed(err), err
	}
	t, err := PairedT(xs, ys, alt, c.alpha)
	if err != nil {
		return r.failed(err), err
	}
	r.Means = []float64{t.X.Mean, t.Y.Mean}
	r.SDs = []float64{t.X.SD, t.Y.SD}
	r.Difference = t.Difference
	r.Statistic = t.T
	r.StatName = "paired_t"
	r.DF = t.DF
	r.PValue = t.P
	r.Significant = c.significant(t.P)
	r.Effect = t.DZ
	r.EffectName = "cohen_dz"
	r.Magnitude = Interpret(t.DZ)
	if n, err := Normality(t.Differences); err == nil {
		r.Normality = n.P
	}
	return r, nil
}

// Groups runs a one-way ANOVA of f across cohorts.
func (c *Comparator) Groups(name string, cohorts []cohort.Cohort, f Feature) (Result, error) {
	return c.multi(name, KindANOVA, cohorts, f, ANOVA)
}

// Variances runs Levene's test of f across cohorts.
func (c *Comparator) Variances(name string, cohorts []cohort.Cohort, f Feature) (Result, error) {
	return c.multi(name, KindVariance, cohorts, f, Levene)
}

func (c *Comparator) multi(name string, kind Kind, cohorts []cohort.Cohort, f Feature, test func(...[]float64) (FTest, error)) (Result, error) {
	r := newResult(name, kind, f.Name)
	groups := make([][]float64, len(cohorts))
	for i, coh := range cohorts {
		vals, skipped, err := Values(coh.Records, f)
		if err != nil {
			return r.failed(err), err
		}
		r.Cohorts = append(r.Cohorts, coh.Name)
		r.Sizes = append(r.Sizes, len(vals))
		r.Skipped += skipped
		groups[i] = vals
	}
	ft, err := test(groups...)
	if err != nil {
		return r.failed(err), err
	}
	r.Means = ft.Means
	for _, g := range groups {
		s, _ := Describe(g)
		r.SDs = append(r.SDs, s.SD)
	}
	r.Statistic = ft.F
	r.StatName = "f"
	if kind == KindVariance {
		r.StatName = "levene_w"
	}
	r.DF = ft.DFBetween
	r.DF2 = ft.DFWithin
	r.PValue = ft.P
	r.Significant = c.significant(ft.P)
	if kind == KindANOVA {
		r.Effect = ft.EtaSquared
		r.EffectName = "eta_squared"
	}
	return r, nil
}

// Contingency tests independence between cohort membership and the values
// of a categorical field with an r x c chi-square test.
func (c *Comparator) Contingency(name string, cohorts []cohort.Cohort, field string, requires model.Operation) (Result, error) {
	r := newResult(name, KindContingency, field)
	counts := make([]map[string]int, len(cohorts))
	values := map[string]struct{}{}
	for i, coh := range cohorts {
		counts[i] = map[string]int{}
		n := 0
		for _, rec := range coh.Records {
			v, source, ok := rec.Categorical(field)
			if source == "" && !ok {
				err := fmt.Errorf("%w: %q", ErrUnknownFeature, field)
				return r.failed(err), err
			}
			if err := checkSource(rec, field, source, requires); err != nil {
				return r.failed(err), err
			}
			if !ok || v == "" {
				r.Skipped++
				continue
			}
			counts[i][v]++
			values[v] = struct{}{}
			n++
		}
		r.Cohorts = append(r.Cohorts, coh.Name)
		r.Sizes = append(r.Sizes, n)
	}

	columns := slices.Sorted(maps.Keys(values))
	table := make([][]float64, len(cohorts))
	for i := range cohorts {
		table[i] = make([]float64, len(columns))
		for j, v := range columns {
			table[i][j] = float64(counts[i][v])
		}
	}
	chi, err := ChiSquare(table, c.yates)
	if err != nil {
		return r.failed(err), err
	}
	r.Statistic = chi.Statistic
	r.StatName = "chi_square"
	r.DF = float64(chi.DF)
	r.PValue = chi.P
	r.Significant = c.significant(chi.P)
	r.Effect = chi.CramersV
	r.EffectName = "cramers_v"
	return r, nil
}

func twoSamples(a, b cohort.Cohort, f Feature) (xa, xb []float64, skipped int, err error) {
	xa, sa, err := Values(a.Records, f)
	if err != nil {
		return nil, nil, 0, err
	}
	xb, sb, err := Values(b.Records, f)
	if err != nil {
		return nil, nil, 0, err
	}
	return xa, xb, sa + sb, nil
}
