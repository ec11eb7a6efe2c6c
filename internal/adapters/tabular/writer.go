package tabular

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/model"
)

// Artifact file names.
const (
	RecordsFile      = "records.csv"
	ComparisonsFile  = "comparisons.csv"
	ArchetypesFile   = "archetypes.csv"
	SimilaritiesFile = "similarities.csv"
	SummaryFile      = "summary.yaml"
	lockFile         = ".trajan.lock"
)

// Writer writes artifacts into one output directory it holds locked.
type Writer struct {
	dir  string
	lock *flock.Flock
}

// OpenWriter creates dir if needed and takes its lock. A directory already
// locked by another run fails with ErrLocked.
func OpenWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &Writer{dir: dir, lock: lock}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Close releases the directory lock.
func (w *Writer) Close() error {
	return w.lock.Unlock()
}

// WriteRecords writes one row per feature record. Metric cells that are
// insufficient or undefined hold those words; metrics that were never
// computed are empty.
func (w *Writer) WriteRecords(records []model.FeatureRecord) (string, error) {
	tagSet := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Tags {
			tagSet[k] = struct{}{}
		}
	}
	tags := slices.Sorted(maps.Keys(tagSet))
	columns := model.Columns()

	head := []string{"episode_id", "agent_id", "category", "side", "frames", "outcome", "duration_bin", "role", "rank", "credited", "nearest_opponent"}
	for _, t := range tags {
		head = append(head, "tag:"+t)
	}
	head = append(head, columns...)

	return w.writeCSV(RecordsFile, head, func(emit func([]string) error) error {
		row := make([]string, 0, len(head))
		for _, r := range records {
			row = append(row[:0],
				r.EpisodeID, r.AgentID, r.Category, r.Side, strconv.Itoa(r.Frames),
				string(r.Outcome), r.DurationBin, string(r.Role), rank(r.Rank), string(r.Credited), r.NearestOpponent)
			for _, t := range tags {
				row = append(row, r.Tags[t])
			}
			for _, c := range columns {
				m, _ := r.Lookup(c)
				row = append(row, MetricCell(m))
			}
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// MetricCell renders a metric for a flat table.
func MetricCell(m model.Metric) string {
	switch {
	case !m.Tagged():
		return ""
	case m.Status == model.StatusInsufficient:
		return string(model.StatusInsufficient)
	case m.Status == model.StatusUndefined:
		return string(model.StatusUndefined)
	}
	return number(m.Value)
}

// WriteComparisons writes one row per tested hypothesis.
func (w *Writer) WriteComparisons(results []compare.Result) (string, error) {
	head := []string{
		"hypothesis", "kind", "feature", "cohorts", "sizes", "means", "sds", "skipped",
		"difference", "difference_lower", "difference_upper",
		"statistic_name", "statistic", "df", "df2", "p_value", "alternative", "significant",
		"effect_name", "effect", "magnitude", "hedges_g", "glass_delta", "normality_p",
		"odds_ratio", "odds_ratio_lower", "odds_ratio_upper",
		"risk_ratio", "risk_ratio_lower", "risk_ratio_upper",
		"status", "reason",
	}
	return w.writeCSV(ComparisonsFile, head, func(emit func([]string) error) error {
		for _, r := range results {
			err := emit([]string{
				r.Hypothesis, string(r.Kind), r.Feature, strings.Join(r.Cohorts, "|"),
				joinInts(r.Sizes), joinFloats(r.Means), joinFloats(r.SDs), strconv.Itoa(r.Skipped),
				number(r.Difference.Value), number(r.Difference.Lower), number(r.Difference.Upper),
				r.StatName, number(r.Statistic), number(r.DF), number(r.DF2), number(r.PValue),
				r.Alternative.String(), strconv.FormatBool(r.Significant),
				r.EffectName, number(r.Effect), string(r.Magnitude),
				number(r.HedgesG), number(r.GlassDelta), number(r.Normality),
				number(r.OddsRatio.Value), number(r.OddsRatio.Lower), number(r.OddsRatio.Upper),
				number(r.RiskRatio.Value), number(r.RiskRatio.Lower), number(r.RiskRatio.Upper),
				string(r.Status), r.Reason,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteArchetypes writes each clustered agent with its cluster and its
// category shares.
func (w *Writer) WriteArchetypes(res archetype.Result, vectors []archetype.Vector, categories []string) (string, error) {
	head := []string{"agent_id", "archetype"}
	for _, c := range categories {
		head = append(head, "share:"+c)
	}
	return w.writeCSV(ArchetypesFile, head, func(emit func([]string) error) error {
		for i, v := range vectors {
			row := []string{v.ID, archetype.ClusterName(res.Assignments[i])}
			for _, x := range v.Values {
				row = append(row, number(x))
			}
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSimilarities writes the n most similar agents of every agent.
func (w *Writer) WriteSimilarities(vectors []archetype.Vector, n int) (string, error) {
	head := []string{"agent_id", "rank", "similar_agent_id", "cosine_similarity"}
	return w.writeCSV(SimilaritiesFile, head, func(emit func([]string) error) error {
		for _, v := range vectors {
			top, err := archetype.MostSimilar(vectors, v.ID, n)
			if err != nil {
				return err
			}
			for i, s := range top {
				if err := emit([]string{v.ID, strconv.Itoa(i + 1), s.ID, number(s.Similarity)}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteSummary writes v as YAML.
func (w *Writer) WriteSummary(v any) (string, error) {
	return w.write(SummaryFile, func(out io.Writer) error {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	})
}

func (w *Writer) writeCSV(name string, head []string, rows func(emit func([]string) error) error) (string, error) {
	return w.write(name, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(head); err != nil {
			return err
		}
		if err := rows(cw.Write); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}

// write renders an artifact into a temp file and renames it into place so
// readers never see a partial file.
func (w *Writer) write(name string, render func(io.Writer) error) (string, error) {
	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, ".tmp-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := render(buf); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := buf.Flush(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	tmp = nil
	return path, nil
}

func number(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func rank(r int) string {
	if r == 0 {
		return ""
	}
	return strconv.Itoa(r)
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "|")
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = number(x)
	}
	return strings.Join(parts, "|")
}
