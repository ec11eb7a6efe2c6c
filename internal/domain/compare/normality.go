package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalityTest is the Jarque-Bera test of a sample against the normal
// distribution.
type NormalityTest struct {
	N        int
	Skewness float64
	Kurtosis float64 // excess
	JB       float64
	P        float64
}

// Normality tests x for departure from normality using its sample skewness
// and excess kurtosis. A small P rejects normality.
func Normality(x []float64) (NormalityTest, error) {
	if len(x) < 3 {
		return NormalityTest{N: len(x)}, fmt.Errorf("%w: need at least 3 values, got %d", ErrInsufficientSample, len(x))
	}
	m2 := stat.Moment(2, x, nil)
	if m2 == 0 {
		return NormalityTest{N: len(x)}, fmt.Errorf("%w: sample is constant", ErrZeroVariance)
	}
	skew := stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
	kurt := stat.Moment(4, x, nil)/(m2*m2) - 3
	n := float64(len(x))
	jb := n / 6 * (skew*skew + kurt*kurt/4)
	return NormalityTest{
		N:        len(x),
		Skewness: skew,
		Kurtosis: kurt,
		JB:       jb,
		P:        distuv.ChiSquared{K: 2}.Survival(jb),
	}, nil
}
