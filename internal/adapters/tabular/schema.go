// Package tabular reads frame and metadata tables from CSV and writes the
// pipeline's flat-table artifacts.
package tabular

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/okian/trajan/internal/domain/geometry"
)

// Logical column names. Each resolves to the first header matching one of
// its aliases.
const (
	FieldEpisode      = "episode"
	FieldAgent        = "agent"
	FieldFrame        = "frame"
	FieldX            = "x"
	FieldY            = "y"
	FieldSpeed        = "speed"
	FieldAcceleration = "acceleration"
	FieldHeading      = "heading"
	FieldOrientation  = "orientation"
	FieldCategory     = "category"
	FieldSide         = "side"
	FieldReferenceX   = "reference_x"
	FieldReferenceY   = "reference_y"
	FieldOutcome      = "outcome"
)

// AngleUnit is the unit of heading and orientation columns.
type AngleUnit string

// Angle units.
const (
	Degrees AngleUnit = "degrees"
	Radians AngleUnit = "radians"
)

// AngleConvention is the zero direction and sense of rotation of angles.
type AngleConvention string

// Angle conventions.
const (
	// Compass angles start at +y and grow clockwise, as in tracking data.
	Compass AngleConvention = "compass"
	// Math angles start at +x and grow counter-clockwise.
	Math AngleConvention = "math"
)

// Schema maps table headers onto logical columns.
type Schema struct {
	aliases     map[string][]string
	episodeKeys []string
	unit        AngleUnit
	convention  AngleConvention
}

// SchemaOption applies a configuration option to a Schema.
type SchemaOption func(*Schema)

// WithAliases replaces the header aliases of a logical column.
func WithAliases(field string, names ...string) SchemaOption {
	return func(s *Schema) {
		if len(names) > 0 {
			s.aliases[field] = normalizeAll(names)
		}
	}
}

// WithEpisodeKeys sets the columns joined with "-" into the episode id when
// no episode id column is present.
func WithEpisodeKeys(columns ...string) SchemaOption {
	return func(s *Schema) {
		if len(columns) > 0 {
			s.episodeKeys = normalizeAll(columns)
		}
	}
}

// WithAngles sets the unit and convention of angle columns.
func WithAngles(unit AngleUnit, convention AngleConvention) SchemaOption {
	return func(s *Schema) {
		if unit != "" {
			s.unit = unit
		}
		if convention != "" {
			s.convention = convention
		}
	}
}

// NewSchema creates a Schema that accepts both plain names and common
// tracking-data names.
func NewSchema(opts ...SchemaOption) (Schema, error) {
	s := Schema{
		aliases: map[string][]string{
			FieldEpisode:      {"episode_id"},
			FieldAgent:        {"agent_id", "nfl_id"},
			FieldFrame:        {"frame", "frame_id"},
			FieldX:            {"x"},
			FieldY:            {"y"},
			FieldSpeed:        {"speed", "s"},
			FieldAcceleration: {"acceleration", "a"},
			FieldHeading:      {"heading", "dir"},
			FieldOrientation:  {"orientation", "o"},
			FieldCategory:     {"category", "position", "player_position"},
			FieldSide:         {"side", "player_side"},
			FieldReferenceX:   {"reference_x", "ball_land_x"},
			FieldReferenceY:   {"reference_y", "ball_land_y"},
			FieldOutcome:      {"outcome", "pass_result"},
		},
		episodeKeys: []string{"game_id", "play_id"},
		unit:        Degrees,
		convention:  Compass,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.unit != Degrees && s.unit != Radians {
		return Schema{}, fmt.Errorf("%w: angle unit %q", ErrInvalidSchema, s.unit)
	}
	if s.convention != Compass && s.convention != Math {
		return Schema{}, fmt.Errorf("%w: angle convention %q", ErrInvalidSchema, s.convention)
	}
	return s, nil
}

// Angle converts a table angle to radians counter-clockwise from +x.
func (s Schema) Angle(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if s.unit == Degrees {
		v = v * math.Pi / 180
	}
	if s.convention == Compass {
		v = math.Pi/2 - v
	}
	return geometry.NormalizeAngle(v)
}

// header indexes the columns of one table.
type header struct {
	index map[string]int
	names []string
}

func newHeader(row []string) header {
	h := header{index: make(map[string]int, len(row)), names: make([]string, len(row))}
	for i, name := range row {
		n := normalize(name)
		h.names[i] = n
		if _, dup := h.index[n]; !dup {
			h.index[n] = i
		}
	}
	return h
}

// column returns the index of the first header matching field's aliases.
func (s Schema) column(h header, field string) (int, bool) {
	for _, alias := range s.aliases[field] {
		if i, ok := h.index[alias]; ok {
			return i, true
		}
	}
	return -1, false
}

func (s Schema) require(h header, field string) (int, error) {
	i, ok := s.column(h, field)
	if !ok {
		return -1, fmt.Errorf("%w: %s (tried %s)", ErrMissingColumn, field, strings.Join(s.aliases[field], ", "))
	}
	return i, nil
}

// episodeColumns resolves the episode id column, or the key columns that
// are joined into one.
func (s Schema) episodeColumns(h header) ([]int, error) {
	if i, ok := s.column(h, FieldEpisode); ok {
		return []int{i}, nil
	}
	cols := make([]int, 0, len(s.episodeKeys))
	for _, k := range s.episodeKeys {
		i, ok := h.index[k]
		if !ok {
			return nil, fmt.Errorf("%w: episode id (tried %s, or keys %s)", ErrMissingColumn,
				strings.Join(s.aliases[FieldEpisode], ", "), strings.Join(s.episodeKeys, "+"))
		}
		cols = append(cols, i)
	}
	return cols, nil
}

func episodeID(row []string, cols []int) string {
	if len(cols) == 1 {
		return strings.TrimSpace(row[cols[0]])
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = strings.TrimSpace(row[c])
	}
	return strings.Join(parts, "-")
}

func normalize(name string) string {
	return strings.ToLower(strings.Trim(name, "\" \t\ufeff"))
}

func normalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normalize(n)
	}
	return slices.Compact(out)
}
