// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
//   - New() returns a Config holding every default.
//   - Load layers a YAML file and TRAJAN_ environment variables on top.
//   - Validate checks field tags first, then cross-field rules that need the
//     domain packages (bins, hypotheses, cohort keys).
package config

import (
	"runtime"

	"github.com/okian/trajan/internal/domain/compare"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address of the results API, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// WorkerCount sets the number of extraction workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// QueueSize bounds the episode job queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	Ingest    Ingest    `koanf:"ingest"`
	Extract   Extract   `koanf:"extract"`
	Bins      Bins      `koanf:"bins"`
	Classify  Classify  `koanf:"classify"`
	Compare   Compare   `koanf:"compare"`
	Archetype Archetype `koanf:"archetype"`
	Output    Output    `koanf:"output"`
}

// Ingest configures how frame and metadata tables are read.
type Ingest struct {
	// Aliases overrides the header names accepted for a logical column,
	// keyed by column (agent, frame, heading, ...).
	Aliases map[string][]string `koanf:"aliases"`

	// EpisodeKeys are joined with "-" into the episode id when the table has
	// no episode id column.
	EpisodeKeys []string `koanf:"episode_keys" validate:"min=1,dive,required"`

	AngleUnit       string  `koanf:"angle_unit" validate:"oneof=degrees radians"`
	AngleConvention string  `koanf:"angle_convention" validate:"oneof=compass math"`
	FrameInterval   float64 `koanf:"frame_interval" validate:"gt=0"`
	Concurrency     int     `koanf:"concurrency" validate:"gte=1"`
}

// Extract configures the geometric feature extractor.
type Extract struct {
	Opponents  string  `koanf:"opponents" validate:"oneof=opposing_side any"`
	Separation bool    `koanf:"separation"`
	NearRadius float64 `koanf:"near_radius" validate:"gt=0"`
	FarRadius  float64 `koanf:"far_radius" validate:"gtefield=NearRadius"`

	// GoodAlignmentDeg is the heading alignment counted as good, in degrees.
	GoodAlignmentDeg float64 `koanf:"good_alignment_deg" validate:"gt=0,lte=180"`
}

// Bins configures the duration bins.
type Bins struct {
	Boundaries []float64 `koanf:"boundaries" validate:"min=2"`
	Labels     []string  `koanf:"labels" validate:"min=1,dive,required"`
	CatchAll   string    `koanf:"catch_all"`
}

// Classify configures role ranking and target inference.
type Classify struct {
	Feature    string   `koanf:"feature" validate:"required"`
	Direction  string   `koanf:"direction" validate:"oneof=ascending descending asc desc"`
	Side       string   `koanf:"side"`
	Categories []string `koanf:"categories"`
	ByCategory bool     `koanf:"by_category"`

	Target           bool     `koanf:"target"`
	TargetSide       string   `koanf:"target_side"`
	TargetCategories []string `koanf:"target_categories"`

	// CreditFeature picks the agent credited with an episode whose outcome
	// is listed in CreditOutcomes. An empty list turns crediting off.
	CreditFeature  string   `koanf:"credit_feature"`
	CreditOutcomes []string `koanf:"credit_outcomes"`
}

// Compare configures the statistical comparator and the hypotheses it runs.
type Compare struct {
	Alpha         float64 `koanf:"alpha" validate:"gt=0,lt=1"`
	Yates         bool    `koanf:"yates"`
	EqualVariance bool    `koanf:"equal_variance"`

	// Hypotheses replaces the built-in hypotheses when non-empty.
	Hypotheses []Hypothesis `koanf:"hypotheses" validate:"dive"`
}

// Hypothesis is one declared comparison.
type Hypothesis struct {
	Name        string   `koanf:"name" validate:"required"`
	Kind        string   `koanf:"kind" validate:"oneof=means ranks proportions anova variance contingency correlation paired"`
	Key         string   `koanf:"key"`
	Cohorts     []string `koanf:"cohorts"`
	Feature     string   `koanf:"feature"`
	Against     string   `koanf:"against"`
	Outcome     string   `koanf:"outcome"`
	Success     []string `koanf:"success"`
	Alternative string   `koanf:"alternative" validate:"omitempty,oneof=two-sided two_sided less greater"`
	Requires    string   `koanf:"requires"`
}

// Spec converts the declaration for the comparator.
func (h Hypothesis) Spec() compare.Spec {
	return compare.Spec{
		Name:        h.Name,
		Kind:        h.Kind,
		Key:         h.Key,
		Cohorts:     h.Cohorts,
		Feature:     h.Feature,
		Against:     h.Against,
		Outcome:     h.Outcome,
		Success:     h.Success,
		Alternative: h.Alternative,
		Requires:    h.Requires,
	}
}

// Archetype configures the optional archetype step.
type Archetype struct {
	Enabled         bool   `koanf:"enabled"`
	Key             string `koanf:"key" validate:"required_if=Enabled true"`
	K               int    `koanf:"k" validate:"gte=1"`
	Seed            uint64 `koanf:"seed"`
	MaxIterations   int    `koanf:"max_iterations" validate:"gte=1"`
	Distance        string `koanf:"distance" validate:"oneof=euclidean cosine"`
	MinObservations int    `koanf:"min_observations" validate:"gte=1"`
	TargetsOnly     bool   `koanf:"targets_only"`
	TopSimilar      int    `koanf:"top_similar" validate:"gte=0"`
}

// Output configures where artifacts are written.
type Output struct {
	Dir string `koanf:"dir" validate:"required"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		WorkerCount: runtime.NumCPU(),
		QueueSize:   1024,
		Ingest: Ingest{
			EpisodeKeys:     []string{"game_id", "play_id"},
			AngleUnit:       "degrees",
			AngleConvention: "compass",
			FrameInterval:   0.1,
			Concurrency:     4,
		},
		Extract: Extract{
			Opponents:        "opposing_side",
			Separation:       true,
			NearRadius:       3,
			FarRadius:        5,
			GoodAlignmentDeg: 45,
		},
		Bins: Bins{
			Boundaries: []float64{0, 2.0, 2.5, 3.0, 3.5, 15},
			Labels:     []string{"quick", "fast", "normal", "slow", "very_slow"},
		},
		Classify: Classify{
			Feature:          "distance_to_point.last",
			Direction:        "ascending",
			Side:             "defense",
			TargetSide:       "offense",
			TargetCategories: []string{"WR", "TE", "RB", "FB"},
			CreditFeature:    "distance_to_point.last",
			CreditOutcomes:   []string{"IN"},
		},
		Compare: Compare{
			Alpha: 0.05,
			Yates: true,
		},
		Archetype: Archetype{
			Key:             "tag:route_of_targeted_receiver",
			K:               4,
			Seed:            42,
			MaxIterations:   100,
			Distance:        "euclidean",
			MinObservations: 5,
			TargetsOnly:     true,
			TopSimilar:      5,
		},
		Output: Output{
			Dir: "out",
		},
	}
}
