package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sample holds the point estimates of one cohort.
type Sample struct {
	N    int
	Mean float64
	SD   float64
}

// Describe returns the size, mean and sample standard deviation of x.
func Describe(x []float64) (Sample, error) {
	if len(x) < 2 {
		return Sample{N: len(x)}, fmt.Errorf("%w: need at least 2 values, got %d", ErrInsufficientSample, len(x))
	}
	mean, variance := stat.MeanVariance(x, nil)
	return Sample{N: len(x), Mean: mean, SD: math.Sqrt(variance)}, nil
}

// TTest is a two-sample t-test of mean(A) - mean(B).
type TTest struct {
	A, B       Sample
	Difference Interval // mean difference with its confidence interval
	T          float64
	DF         float64
	P          float64
}

// Welch runs the unequal-variance two-sample t-test.
func Welch(a, b []float64, alt Alternative, alpha float64) (TTest, error) {
	return tTest(a, b, alt, alpha, false)
}

// Student runs the pooled-variance two-sample t-test.
func Student(a, b []float64, alt Alternative, alpha float64) (TTest, error) {
	return tTest(a, b, alt, alpha, true)
}

func tTest(a, b []float64, alt Alternative, alpha float64, pooled bool) (TTest, error) {
	sa, err := Describe(a)
	if err != nil {
		return TTest{}, fmt.Errorf("cohort A: %w", err)
	}
	sb, err := Describe(b)
	if err != nil {
		return TTest{}, fmt.Errorf("cohort B: %w", err)
	}
	if sa.SD == 0 && sb.SD == 0 {
		return TTest{}, fmt.Errorf("%w: both cohorts are constant", ErrZeroVariance)
	}

	na, nb := float64(sa.N), float64(sb.N)
	va, vb := sa.SD*sa.SD, sb.SD*sb.SD
	var se, df float64
	if pooled {
		sp2 := ((na-1)*va + (nb-1)*vb) / (na + nb - 2)
		se = math.Sqrt(sp2 * (1/na + 1/nb))
		df = na + nb - 2
	} else {
		qa, qb := va/na, vb/nb
		se = math.Sqrt(qa + qb)
		df = (qa + qb) * (qa + qb) / (qa*qa/(na-1) + qb*qb/(nb-1))
	}

	diff := sa.Mean - sb.Mean
	t := diff / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	half := dist.Quantile(1-alpha/2) * se
	return TTest{
		A:          sa,
		B:          sb,
		Difference: Interval{Value: diff, Lower: diff - half, Upper: diff + half},
		T:          t,
		DF:         df,
		P:          tailP(dist.CDF(t), dist.Survival(t), alt),
	}, nil
}

// PairedTest is a t-test of the mean of x - y over matched observations.
type PairedTest struct {
	X, Y        Sample
	Differences []float64
	Difference  Interval // mean difference with its confidence interval
	T           float64
	DF          float64
	P           float64
	DZ          float64 // mean difference over the SD of the differences
}

// PairedT runs the paired-samples t-test. x[i] and y[i] must come from the
// same subject.
func PairedT(x, y []float64, alt Alternative, alpha float64) (PairedTest, error) {
	if len(x) != len(y) {
		return PairedTest{}, fmt.Errorf("%w: %d values paired with %d", ErrInvalidHypothesis, len(x), len(y))
	}
	sx, err := Describe(x)
	if err != nil {
		return PairedTest{}, err
	}
	sy, _ := Describe(y)
	d := make([]float64, len(x))
	for i := range x {
		d[i] = x[i] - y[i]
	}
	sd, _ := Describe(d)
	if sd.SD == 0 {
		return PairedTest{}, fmt.Errorf("%w: paired differences are constant", ErrZeroVariance)
	}

	n := float64(sd.N)
	se := sd.SD / math.Sqrt(n)
	t := sd.Mean / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}
	half := dist.Quantile(1-alpha/2) * se
	return PairedTest{
		X:           sx,
		Y:           sy,
		Differences: d,
		Difference:  Interval{Value: sd.Mean, Lower: sd.Mean - half, Upper: sd.Mean + half},
		T:           t,
		DF:          n - 1,
		P:           tailP(dist.CDF(t), dist.Survival(t), alt),
		DZ:          sd.Mean / sd.SD,
	}, nil
}

// tailP converts the lower and upper tail probabilities of a statistic into
// the p-value of the alternative.
func tailP(lower, upper float64, alt Alternative) float64 {
	switch alt {
	case Less:
		return lower
	case Greater:
		return upper
	default:
		return math.Min(1, 2*math.Min(lower, upper))
	}
}

// EffectSizes are standardized mean differences of A relative to B.
type EffectSizes struct {
	CohenD     float64 // pooled standard deviation
	HedgesG    float64 // small-sample corrected d
	GlassDelta float64 // standard deviation of B; NaN when B is constant
	Magnitude  Magnitude
}

// Effects computes the standardized mean differences of a and b.
func Effects(a, b []float64) (EffectSizes, error) {
	sa, err := Describe(a)
	if err != nil {
		return EffectSizes{}, fmt.Errorf("cohort A: %w", err)
	}
	sb, err := Describe(b)
	if err != nil {
		return EffectSizes{}, fmt.Errorf("cohort B: %w", err)
	}
	na, nb := float64(sa.N), float64(sb.N)
	pooled := math.Sqrt(((na-1)*sa.SD*sa.SD + (nb-1)*sb.SD*sb.SD) / (na + nb - 2))
	if pooled == 0 {
		return EffectSizes{}, fmt.Errorf("%w: pooled standard deviation is zero", ErrZeroVariance)
	}
	diff := sa.Mean - sb.Mean
	d := diff / pooled
	glass := math.NaN()
	if sb.SD > 0 {
		glass = diff / sb.SD
	}
	return EffectSizes{
		CohenD:     d,
		HedgesG:    d * (1 - 3/(4*(na+nb)-9)),
		GlassDelta: glass,
		Magnitude:  Interpret(d),
	}, nil
}

// DToR converts Cohen's d to a point-biserial r.
func DToR(d float64) float64 {
	return d / math.Sqrt(d*d+4)
}

// RToD converts Pearson's r to Cohen's d.
func RToD(r float64) float64 {
	return 2 * r / math.Sqrt(1-r*r)
}
