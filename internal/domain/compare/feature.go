package compare

import (
	"fmt"
	"slices"

	"github.com/okian/trajan/internal/domain/model"
)

// Feature names a record column together with the operation it must trace
// to. A comparison never runs on a column whose records carry a different
// or missing source.
type Feature struct {
	Name     string
	Requires model.Operation
}

// String returns the column name.
func (f Feature) String() string { return f.Name }

// Outcome turns a categorical field into a binary success indicator.
type Outcome struct {
	Field    string // outcome, category, side, duration_bin or tag:<name>
	Success  []string
	Requires model.Operation
}

// String describes the outcome for logs and result rows.
func (o Outcome) String() string {
	return fmt.Sprintf("%s in %v", o.Field, o.Success)
}

// Values resolves f on every record after checking the contract of each
// one. Records whose metric is insufficient or undefined are skipped and
// counted. Nothing is computed when any record violates the contract.
func Values(records []model.FeatureRecord, f Feature) (values []float64, skipped int, err error) {
	if !model.HasColumn(f.Name) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownFeature, f.Name)
	}
	if f.Requires == "" {
		return nil, 0, fmt.Errorf("%w: %s declares no required operation", ErrMetricContract, f.Name)
	}
	metrics := make([]model.Metric, len(records))
	for i, rec := range records {
		m, _ := rec.Lookup(f.Name)
		if err := checkSource(rec, f.Name, m.Source, f.Requires); err != nil {
			return nil, 0, err
		}
		metrics[i] = m
	}
	values = make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if !m.OK() {
			skipped++
			continue
		}
		values = append(values, m.Value)
	}
	return values, skipped, nil
}

// Pairs resolves two features on the same records, keeping only records
// where both are usable.
func Pairs(records []model.FeatureRecord, x, y Feature) (xs, ys []float64, skipped int, err error) {
	for _, f := range []Feature{x, y} {
		if _, _, err := Values(records, f); err != nil {
			return nil, nil, 0, err
		}
	}
	for _, rec := range records {
		mx, _ := rec.Lookup(x.Name)
		my, _ := rec.Lookup(y.Name)
		if !mx.OK() || !my.OK() {
			skipped++
			continue
		}
		xs = append(xs, mx.Value)
		ys = append(ys, my.Value)
	}
	return xs, ys, skipped, nil
}

// Successes counts the records whose categorical field is one of the
// outcome's success values. Records without the field are skipped.
func Successes(records []model.FeatureRecord, o Outcome) (Counts, int, error) {
	if o.Requires == "" {
		return Counts{}, 0, fmt.Errorf("%w: %s declares no required operation", ErrMetricContract, o.Field)
	}
	if len(o.Success) == 0 {
		return Counts{}, 0, fmt.Errorf("%w: outcome %s has no success values", ErrInvalidHypothesis, o.Field)
	}
	var c Counts
	skipped := 0
	for _, rec := range records {
		v, source, ok := rec.Categorical(o.Field)
		if source == "" && !ok {
			return Counts{}, 0, fmt.Errorf("%w: %q", ErrUnknownFeature, o.Field)
		}
		if err := checkSource(rec, o.Field, source, o.Requires); err != nil {
			return Counts{}, 0, err
		}
		if !ok || v == "" {
			skipped++
			continue
		}
		c.N++
		if slices.Contains(o.Success, v) {
			c.Successes++
		}
	}
	return c, skipped, nil
}

func checkSource(rec model.FeatureRecord, name string, got, want model.Operation) error {
	if got == "" {
		return fmt.Errorf("%w: %s on %s is untagged, want %s", ErrMetricContract, name, rec.Key(), want)
	}
	if got != want {
		return fmt.Errorf("%w: %s on %s traces to %s, want %s", ErrMetricContract, name, rec.Key(), got, want)
	}
	return nil
}
