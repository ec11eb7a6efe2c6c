package compare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// haldane is added to every cell of a 2x2 table that has a zero cell before
// computing ratio estimates.
const haldane = 0.5

// Counts is a binary outcome tally for one cohort.
type Counts struct {
	Successes int
	N         int
}

// Rate returns the success proportion.
func (c Counts) Rate() float64 {
	if c.N == 0 {
		return math.NaN()
	}
	return float64(c.Successes) / float64(c.N)
}

// Failures returns N minus successes.
func (c Counts) Failures() int { return c.N - c.Successes }

// ChiSquareTest is a Pearson chi-square test of independence.
type ChiSquareTest struct {
	Statistic float64
	DF        int
	P         float64
	CramersV  float64
	Corrected bool // Yates continuity correction applied
	Expected  [][]float64
}

// ChiSquare tests independence of the rows and columns of an r x c table of
// observed counts. The Yates correction is applied only when yates is set
// and the table has one degree of freedom. Cramér's V is derived from the
// reported statistic.
func ChiSquare(table [][]float64, yates bool) (ChiSquareTest, error) {
	rows := len(table)
	if rows < 2 {
		return ChiSquareTest{}, fmt.Errorf("%w: need at least 2 rows, got %d", ErrInvalidTable, rows)
	}
	cols := len(table[0])
	if cols < 2 {
		return ChiSquareTest{}, fmt.Errorf("%w: need at least 2 columns, got %d", ErrInvalidTable, cols)
	}
	rowSum := make([]float64, rows)
	colSum := make([]float64, cols)
	for i, row := range table {
		if len(row) != cols {
			return ChiSquareTest{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidTable, i, len(row), cols)
		}
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return ChiSquareTest{}, fmt.Errorf("%w: cell (%d,%d) = %v", ErrInvalidTable, i, j, v)
			}
			colSum[j] += v
		}
		rowSum[i] = floats.Sum(row)
	}
	total := floats.Sum(rowSum)
	if floats.Min(rowSum) == 0 || floats.Min(colSum) == 0 {
		return ChiSquareTest{}, fmt.Errorf("%w: a row or column total is zero", ErrInvalidTable)
	}

	df := (rows - 1) * (cols - 1)
	corrected := yates && df == 1
	expected := make([][]float64, rows)
	chi2 := 0.0
	for i, row := range table {
		expected[i] = make([]float64, cols)
		for j, o := range row {
			e := rowSum[i] * colSum[j] / total
			expected[i][j] = e
			d := math.Abs(o - e)
			if corrected {
				d -= math.Min(0.5, d)
			}
			chi2 += d * d / e
		}
	}

	return ChiSquareTest{
		Statistic: chi2,
		DF:        df,
		P:         distuv.ChiSquared{K: float64(df)}.Survival(chi2),
		CramersV:  math.Sqrt(chi2 / (total * float64(min(rows, cols)-1))),
		Corrected: corrected,
		Expected:  expected,
	}, nil
}

// ProportionTest compares the success rates of a baseline and an exposed
// cohort.
type ProportionTest struct {
	Baseline, Exposed Counts
	ChiSquare         ChiSquareTest
	OddsRatio         Interval // odds(exposed) / odds(baseline)
	RiskRatio         Interval // rate(exposed) / rate(baseline)
	Difference        Interval // rate(baseline) - rate(exposed), Wald interval
	Z                 float64  // pooled two-proportion z of baseline - exposed
	P                 float64  // p-value of Z under the alternative
}

// CompareCounts runs the 2x2 analysis of baseline against exposed at the
// given confidence level 1-alpha. The alternative is stated for the
// baseline rate relative to the exposed rate.
func CompareCounts(baseline, exposed Counts, alt Alternative, alpha float64, yates bool) (ProportionTest, error) {
	for _, c := range []struct {
		name string
		Counts
	}{{"baseline", baseline}, {"exposed", exposed}} {
		if c.N < 2 {
			return ProportionTest{}, fmt.Errorf("%w: %s cohort has %d observations", ErrInsufficientSample, c.name, c.N)
		}
		if c.Successes < 0 || c.Successes > c.N {
			return ProportionTest{}, fmt.Errorf("%w: %s successes %d outside [0, %d]", ErrInvalidTable, c.name, c.Successes, c.N)
		}
	}

	chi, err := ChiSquare([][]float64{
		{float64(baseline.Successes), float64(baseline.Failures())},
		{float64(exposed.Successes), float64(exposed.Failures())},
	}, yates)
	if err != nil {
		return ProportionTest{}, err
	}

	z := distuv.UnitNormal.Quantile(1 - alpha/2)
	pa, pb := baseline.Rate(), exposed.Rate()
	na, nb := float64(baseline.N), float64(exposed.N)
	pooled := float64(baseline.Successes+exposed.Successes) / (na + nb)
	se := math.Sqrt(pooled * (1 - pooled) * (1/na + 1/nb))
	zStat := (pa - pb) / se
	wald := z * math.Sqrt(pa*(1-pa)/na+pb*(1-pb)/nb)

	return ProportionTest{
		Baseline:   baseline,
		Exposed:    exposed,
		ChiSquare:  chi,
		OddsRatio:  oddsRatio(baseline, exposed, z),
		RiskRatio:  riskRatio(baseline, exposed, z),
		Difference: Interval{Value: pa - pb, Lower: pa - pb - wald, Upper: pa - pb + wald},
		Z:          zStat,
		P:          tailP(distuv.UnitNormal.CDF(zStat), distuv.UnitNormal.Survival(zStat), alt),
	}, nil
}

// oddsRatio uses the Woolf log interval.
func oddsRatio(baseline, exposed Counts, z float64) Interval {
	a, b := float64(exposed.Successes), float64(exposed.Failures())
	c, d := float64(baseline.Successes), float64(baseline.Failures())
	if a == 0 || b == 0 || c == 0 || d == 0 {
		a, b, c, d = a+haldane, b+haldane, c+haldane, d+haldane
	}
	or := (a * d) / (b * c)
	se := math.Sqrt(1/a + 1/b + 1/c + 1/d)
	return logInterval(or, se, z)
}

// riskRatio uses the log interval of Katz.
func riskRatio(baseline, exposed Counts, z float64) Interval {
	a, na := float64(exposed.Successes), float64(exposed.N)
	c, nc := float64(baseline.Successes), float64(baseline.N)
	if a == 0 || c == 0 || a == na || c == nc {
		a, c = a+haldane, c+haldane
		na, nc = na+2*haldane, nc+2*haldane
	}
	rr := (a / na) / (c / nc)
	se := math.Sqrt(1/a - 1/na + 1/c - 1/nc)
	return logInterval(rr, se, z)
}

func logInterval(ratio, se, z float64) Interval {
	l := math.Log(ratio)
	return Interval{Value: ratio, Lower: math.Exp(l - z*se), Upper: math.Exp(l + z*se)}
}
