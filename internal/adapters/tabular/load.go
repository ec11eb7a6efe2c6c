package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/pkg/logger"
)

// Default loader configuration constants.
const (
	defaultConcurrency = 4
)

// Loader reads frame partitions and metadata into a repository.Builder.
type Loader struct {
	schema      Schema
	concurrency int
	log         logger.Logger
}

// LoaderOption applies a configuration option to the Loader.
type LoaderOption func(*Loader)

// WithSchema sets the column schema.
func WithSchema(s Schema) LoaderOption {
	return func(l *Loader) {
		if s.aliases != nil {
			l.schema = s
		}
	}
}

// WithConcurrency bounds how many partitions are parsed at once.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(log logger.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader with configuration options.
func NewLoader(opts ...LoaderOption) *Loader {
	s, _ := NewSchema()
	l := &Loader{schema: s, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Get().Named("ingest")
	}
	return l
}

// LoadStats summarizes one ingest.
type LoadStats struct {
	Partitions   int
	FrameRows    int
	MetadataRows int
}

// Load reads every frame partition and the metadata table into b. Rows
// reach the builder in partition order, so the first copy of a duplicated
// row is the one kept.
func (l *Loader) Load(ctx context.Context, b *repository.Builder, framePaths []string, metadataPath string) (LoadStats, error) {
	parts, err := l.LoadPartitions(ctx, framePaths)
	if err != nil {
		return LoadStats{}, err
	}
	stats := LoadStats{Partitions: len(parts)}
	for i, rows := range parts {
		for _, r := range rows {
			if err := b.AddFrame(ctx, r); err != nil {
				return stats, fmt.Errorf("%s: %w", framePaths[i], err)
			}
		}
		stats.FrameRows += len(rows)
	}

	f, err := os.Open(metadataPath)
	if err != nil {
		return stats, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	err = l.schema.ReadMetadata(ctx, f, func(m repository.Metadata) error {
		stats.MetadataRows++
		return b.SetMetadata(m)
	})
	if err != nil {
		return stats, fmt.Errorf("%s: %w", metadataPath, err)
	}

	l.log.Info(ctx, "tables loaded",
		logger.Int("partitions", stats.Partitions),
		logger.Int("frame_rows", stats.FrameRows),
		logger.Int("metadata_rows", stats.MetadataRows))
	return stats, nil
}

// LoadPartitions parses frame partitions concurrently. The result holds
// one slice of rows per path, in path order.
func (l *Loader) LoadPartitions(ctx context.Context, paths []string) ([][]repository.FrameRow, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	parts := make([][]repository.FrameRow, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open partition: %w", err)
			}
			defer f.Close()
			var rows []repository.FrameRow
			err = l.schema.ReadFrames(gctx, f, func(r repository.FrameRow) error {
				rows = append(rows, r)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			parts[i] = rows
			l.log.Debug(gctx, "partition parsed", logger.String("path", path), logger.Int("rows", len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// ExpandGlobs resolves file patterns into a sorted list of distinct paths.
func ExpandGlobs(patterns ...string) ([]string, error) {
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoInput, patterns)
	}
	return out, nil
}
