package compare

import (
	"fmt"
	"math"
	"strings"
)

// Alternative is the direction of the alternative hypothesis, stated for
// the first cohort relative to the second.
type Alternative int

// Alternatives.
const (
	TwoSided Alternative = iota
	Less                 // A < B
	Greater              // A > B
)

// String returns the configuration name of the alternative.
func (a Alternative) String() string {
	switch a {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "two-sided"
	}
}

// ParseAlternative parses "two-sided", "less" or "greater".
func ParseAlternative(s string) (Alternative, error) {
	switch strings.ToLower(s) {
	case "", "two-sided", "two_sided", "both":
		return TwoSided, nil
	case "less":
		return Less, nil
	case "greater":
		return Greater, nil
	}
	return TwoSided, fmt.Errorf("%w: unknown alternative %q", ErrInvalidHypothesis, s)
}

// Kind names the statistical procedure behind a Result.
type Kind string

// Comparison kinds.
const (
	KindMeans       Kind = "means"
	KindRanks       Kind = "ranks"
	KindProportions Kind = "proportions"
	KindCorrelation Kind = "correlation"
	KindPaired      Kind = "paired"
	KindANOVA       Kind = "anova"
	KindVariance    Kind = "variance"
	KindContingency Kind = "contingency"
)

// Magnitude interprets a standardized effect size.
type Magnitude string

// Magnitudes, from Cohen's 0.2/0.5/0.8 thresholds.
const (
	Negligible Magnitude = "negligible"
	Small      Magnitude = "small"
	Medium     Magnitude = "medium"
	Large      Magnitude = "large"
)

// Interpret classifies |d| against the small, medium and large thresholds.
func Interpret(d float64) Magnitude {
	switch ad := math.Abs(d); {
	case math.IsNaN(ad):
		return ""
	case ad < 0.2:
		return Negligible
	case ad < 0.5:
		return Small
	case ad < 0.8:
		return Medium
	default:
		return Large
	}
}

// Status is the outcome of one requested comparison.
type Status string

// Result statuses.
const (
	StatusOK                 Status = "ok"
	StatusInsufficientSample Status = "insufficient_sample"
	StatusContractViolation  Status = "contract_violation"
	StatusZeroVariance       Status = "zero_variance"
	StatusInvalidTable       Status = "invalid_table"
	StatusFailed             Status = "failed"
)

// Interval is a point estimate with a confidence interval.
type Interval struct {
	Value float64
	Lower float64
	Upper float64
}

func noInterval() Interval {
	nan := math.NaN()
	return Interval{Value: nan, Lower: nan, Upper: nan}
}

// Contains reports whether x lies within the interval.
func (i Interval) Contains(x float64) bool {
	return x >= i.Lower && x <= i.Upper
}

// Result is one row of comparison output: one tested hypothesis. Fields
// that do not apply to the kind are NaN or empty.
type Result struct {
	Hypothesis  string
	Kind        Kind
	Feature     string
	Cohorts     []string
	Sizes       []int
	Means       []float64 // per cohort; success rates for proportions
	SDs         []float64
	Skipped     int // records without a usable value
	Difference  Interval
	Statistic   float64
	StatName    string
	DF          float64
	DF2         float64
	PValue      float64
	Alternative Alternative
	Significant bool
	Effect      float64
	EffectName  string
	Magnitude   Magnitude
	HedgesG     float64 // means only
	GlassDelta  float64 // means only; standardized by cohort B
	Normality   float64 // Jarque-Bera p-value of the paired differences
	OddsRatio   Interval
	RiskRatio   Interval
	Status      Status
	Reason      string
}

func newResult(name string, kind Kind, feature string) Result {
	nan := math.NaN()
	return Result{
		Hypothesis: name,
		Kind:       kind,
		Feature:    feature,
		Difference: noInterval(),
		Statistic:  nan,
		DF:         nan,
		DF2:        nan,
		PValue:     nan,
		Effect:     nan,
		HedgesG:    nan,
		GlassDelta: nan,
		Normality:  nan,
		OddsRatio:  noInterval(),
		RiskRatio:  noInterval(),
		Status:     StatusOK,
	}
}

// failed marks r with the status of err.
func (r Result) failed(err error) Result {
	r.Status = Reason(err)
	r.Reason = err.Error()
	return r
}

// OK reports whether the comparison produced a result.
func (r Result) OK() bool { return r.Status == StatusOK }
