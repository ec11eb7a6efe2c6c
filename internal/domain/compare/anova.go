package compare

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// FTest is a one-way analysis of variance across k groups.
type FTest struct {
	Sizes      []int
	Means      []float64
	F          float64
	DFBetween  float64
	DFWithin   float64
	P          float64
	EtaSquared float64
}

// ANOVA runs a one-way analysis of variance on the group means.
func ANOVA(groups ...[]float64) (FTest, error) {
	if len(groups) < 2 {
		return FTest{}, fmt.Errorf("%w: need at least 2 groups, got %d", ErrInsufficientSample, len(groups))
	}
	sizes := make([]int, len(groups))
	means := make([]float64, len(groups))
	total, n := 0.0, 0
	for i, g := range groups {
		if len(g) < 2 {
			return FTest{}, fmt.Errorf("%w: group %d has %d values", ErrInsufficientSample, i, len(g))
		}
		sizes[i] = len(g)
		means[i] = floats.Sum(g) / float64(len(g))
		total += floats.Sum(g)
		n += len(g)
	}
	grand := total / float64(n)

	var ssb, ssw float64
	for i, g := range groups {
		d := means[i] - grand
		ssb += float64(len(g)) * d * d
		for _, v := range g {
			ssw += (v - means[i]) * (v - means[i])
		}
	}
	if ssw == 0 {
		return FTest{}, fmt.Errorf("%w: no variation within groups", ErrZeroVariance)
	}

	dfb := float64(len(groups) - 1)
	dfw := float64(n - len(groups))
	f := (ssb / dfb) / (ssw / dfw)
	return FTest{
		Sizes:      sizes,
		Means:      means,
		F:          f,
		DFBetween:  dfb,
		DFWithin:   dfw,
		P:          distuv.F{D1: dfb, D2: dfw}.Survival(f),
		EtaSquared: ssb / (ssb + ssw),
	}, nil
}

// Levene tests equality of variances across groups using absolute
// deviations from each group median (the Brown-Forsythe variant).
func Levene(groups ...[]float64) (FTest, error) {
	deviations := make([][]float64, len(groups))
	for i, g := range groups {
		m := median(g)
		deviations[i] = make([]float64, len(g))
		for j, v := range g {
			deviations[i][j] = math.Abs(v - m)
		}
	}
	res, err := ANOVA(deviations...)
	if err != nil {
		return FTest{}, fmt.Errorf("levene: %w", err)
	}
	// report the original group means, not the deviation means
	for i, g := range groups {
		res.Means[i] = floats.Sum(g) / float64(len(g))
	}
	return res, nil
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := slices.Clone(x)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
