package compare

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// UTest is a Mann-Whitney U test of A against B using the normal
// approximation with tie and continuity corrections.
type UTest struct {
	NA, NB       int
	U            float64 // U statistic of A
	Z            float64
	P            float64
	RankBiserial float64 // positive when A tends to be larger
}

// MannWhitney runs the two-sample rank-sum test.
func MannWhitney(a, b []float64, alt Alternative) (UTest, error) {
	if len(a) < 2 || len(b) < 2 {
		return UTest{}, fmt.Errorf("%w: need at least 2 values per cohort, got %d and %d",
			ErrInsufficientSample, len(a), len(b))
	}
	type obs struct {
		v     float64
		fromA bool
	}
	all := make([]obs, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, obs{v, true})
	}
	for _, v := range b {
		all = append(all, obs{v, false})
	}
	slices.SortStableFunc(all, func(x, y obs) int { return cmp.Compare(x.v, y.v) })

	n := float64(len(all))
	rankSumA, tieTerm := 0.0, 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		// ranks i+1..j share their average
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if all[k].fromA {
				rankSumA += avg
			}
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}

	na, nb := float64(len(a)), float64(len(b))
	u := rankSumA - na*(na+1)/2
	mu := na * nb / 2
	sigma := math.Sqrt(na * nb / 12 * ((n + 1) - tieTerm/(n*(n-1))))
	if sigma == 0 {
		return UTest{}, fmt.Errorf("%w: all values are tied", ErrZeroVariance)
	}

	var stat float64
	switch alt {
	case Less:
		stat = na*nb - u
	case Greater:
		stat = u
	default:
		stat = math.Max(u, na*nb-u)
	}
	z := (stat - mu - 0.5) / sigma
	p := distuv.UnitNormal.Survival(z)
	if alt == TwoSided {
		p *= 2
	}
	return UTest{
		NA:           len(a),
		NB:           len(b),
		U:            u,
		Z:            z,
		P:            math.Min(1, p),
		RankBiserial: 2*u/(na*nb) - 1,
	}, nil
}
