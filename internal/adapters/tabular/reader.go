package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/model"
)

// ctxCheckEvery is how many rows are read between context checks.
const ctxCheckEvery = 1024

// ReadFrames parses a frame table and calls fn for every row in file order.
// Angles are converted to radians counter-clockwise from +x.
func (s Schema) ReadFrames(ctx context.Context, r io.Reader, fn func(repository.FrameRow) error) error {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	first, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read frame header: %w", err)
	}
	h := newHeader(first)

	episode, err := s.episodeColumns(h)
	if err != nil {
		return err
	}
	cols := map[string]int{}
	for _, f := range []string{FieldAgent, FieldFrame, FieldX, FieldY, FieldSpeed, FieldAcceleration, FieldHeading, FieldOrientation} {
		if cols[f], err = s.require(h, f); err != nil {
			return err
		}
	}
	category, _ := s.column(h, FieldCategory)
	side, _ := s.column(h, FieldSide)

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame row: %w", err)
		}

		p := parser{cr: cr, row: row, names: h.names}
		fr := repository.FrameRow{
			EpisodeID: episodeID(row, episode),
			AgentID:   strings.TrimSpace(row[cols[FieldAgent]]),
			Category:  p.text(category),
			Side:      strings.ToLower(p.text(side)),
			Frame: model.Frame{
				Index:        p.integer(cols[FieldFrame]),
				X:            p.float(cols[FieldX]),
				Y:            p.float(cols[FieldY]),
				Speed:        p.float(cols[FieldSpeed]),
				Acceleration: p.float(cols[FieldAcceleration]),
				Heading:      s.Angle(p.float(cols[FieldHeading])),
				Orientation:  s.Angle(p.float(cols[FieldOrientation])),
			},
		}
		if p.err != nil {
			return p.err
		}
		if err := fn(fr); err != nil {
			return err
		}
	}
}

// ReadMetadata parses an episode metadata table and calls fn for every row.
// Columns other than the episode id, reference and outcome become tags.
func (s Schema) ReadMetadata(ctx context.Context, r io.Reader, fn func(repository.Metadata) error) error {
	cr := csv.NewReader(r)
	first, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read metadata header: %w", err)
	}
	h := newHeader(first)

	episode, err := s.episodeColumns(h)
	if err != nil {
		return err
	}
	refX, err := s.require(h, FieldReferenceX)
	if err != nil {
		return err
	}
	refY, err := s.require(h, FieldReferenceY)
	if err != nil {
		return err
	}
	outcome, err := s.require(h, FieldOutcome)
	if err != nil {
		return err
	}
	reserved := map[int]bool{refX: true, refY: true, outcome: true}
	for _, c := range episode {
		reserved[c] = true
	}

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read metadata row: %w", err)
		}

		p := parser{cr: cr, row: row, names: h.names}
		meta := repository.Metadata{
			EpisodeID: episodeID(row, episode),
			Reference: model.Point{X: p.float(refX), Y: p.float(refY)},
			Outcome:   model.Outcome(p.text(outcome)),
			Tags:      map[string]string{},
		}
		if p.err != nil {
			return p.err
		}
		for i, v := range row {
			if reserved[i] {
				continue
			}
			if v = strings.TrimSpace(v); v != "" {
				meta.Tags[h.names[i]] = v
			}
		}
		if err := fn(meta); err != nil {
			return err
		}
	}
}

// parser converts cells of one row and keeps the first error.
type parser struct {
	cr    *csv.Reader
	row   []string
	names []string
	err   error
}

func (p *parser) text(col int) string {
	if col < 0 {
		return ""
	}
	return strings.TrimSpace(p.row[col])
}

// float parses a numeric cell. Empty and NA cells are NaN so that the
// extractor rejects the affected agent instead of reading a zero.
func (p *parser) float(col int) float64 {
	v := p.text(col)
	switch strings.ToLower(v) {
	case "", "na", "nan", "null":
		return math.NaN()
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, err)
		return math.NaN()
	}
	return f
}

func (p *parser) integer(col int) int {
	v := p.text(col)
	i, err := strconv.Atoi(v)
	if err != nil {
		// frame ids sometimes arrive as "12.0"
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != math.Trunc(f) {
			p.fail(col, err)
			return 0
		}
		i = int(f)
	}
	return i
}

func (p *parser) fail(col int, err error) {
	if p.err != nil {
		return
	}
	line, _ := p.cr.FieldPos(col)
	p.err = fmt.Errorf("%w: line %d column %s: %v", ErrParseField, line, p.names[col], err)
}
