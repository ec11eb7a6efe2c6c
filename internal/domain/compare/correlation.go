package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Correlation is a Pearson correlation with its significance test.
type Correlation struct {
	R  Interval // Fisher z interval; bounds are NaN below 4 pairs
	N  int
	T  float64
	DF float64
	P  float64
}

// Pearson correlates paired samples x and y. At least three pairs are
// required; a constant series fails with ErrZeroVariance.
func Pearson(x, y []float64, alt Alternative, alpha float64) (Correlation, error) {
	if len(x) != len(y) {
		return Correlation{}, fmt.Errorf("%w: %d x values for %d y values", ErrInvalidHypothesis, len(x), len(y))
	}
	n := len(x)
	if n < 3 {
		return Correlation{}, fmt.Errorf("%w: need at least 3 pairs, got %d", ErrInsufficientSample, n)
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return Correlation{}, fmt.Errorf("%w: a correlated series is constant", ErrZeroVariance)
	}

	r := math.Max(-1, math.Min(1, stat.Correlation(x, y, nil)))
	df := float64(n - 2)
	res := Correlation{R: noInterval(), N: n, DF: df}
	res.R.Value = r

	if math.Abs(r) == 1 {
		res.T = math.Copysign(math.Inf(1), r)
		res.P = tailP(boolP(r > 0), boolP(r < 0), alt)
	} else {
		res.T = r * math.Sqrt(df/(1-r*r))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
		res.P = tailP(dist.CDF(res.T), dist.Survival(res.T), alt)
	}

	if n > 3 && math.Abs(r) < 1 {
		z := math.Atanh(r)
		half := distuv.UnitNormal.Quantile(1-alpha/2) / math.Sqrt(float64(n-3))
		res.R.Lower = math.Tanh(z - half)
		res.R.Upper = math.Tanh(z + half)
	}
	return res, nil
}

// boolP is a degenerate tail probability: 1 when the infinite statistic lies
// inside the tail.
func boolP(onSide bool) float64 {
	if onSide {
		return 1
	}
	return 0
}
