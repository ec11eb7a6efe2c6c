package main

import (
	"context"
	"fmt"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/adapters/tabular"
	service "github.com/okian/trajan/internal/app"
	"github.com/okian/trajan/internal/config"
	"github.com/okian/trajan/internal/domain/aggregate"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/roles"
	"github.com/okian/trajan/pkg/logger"
	"github.com/okian/trajan/pkg/metrics"
)

// input names the tables of one run.
type input struct {
	frames   []string // glob patterns
	metadata string
}

// newService builds the pipeline service from a validated config.
func newService(cfg *config.Config) (*service.Service, error) {
	extract, err := cfg.ExtractorOptions()
	if err != nil {
		return nil, err
	}
	agg, err := cfg.AggregatorOptions()
	if err != nil {
		return nil, err
	}
	dir, err := roles.ParseDirection(cfg.Classify.Direction)
	if err != nil {
		return nil, err
	}

	c := cfg.Classify
	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithExtractor(geometry.NewExtractor(extract...)),
		service.WithAggregator(aggregate.New(agg...)),
		service.WithComparator(compare.New(cfg.ComparatorOptions()...)),
		service.WithClassification(service.Classification{
			Feature:    c.Feature,
			Direction:  dir,
			Side:       c.Side,
			Categories: c.Categories,
			ByCategory: c.ByCategory,
			// Archetypes restricted to targets need the target tag.
			Target:           c.Target || (cfg.Archetype.Enabled && cfg.Archetype.TargetsOnly),
			TargetSide:       c.TargetSide,
			TargetCategories: c.TargetCategories,
			CreditFeature:    c.CreditFeature,
			CreditOutcomes:   c.Outcomes(),
		}),
	}

	if specs := cfg.Compare.Specs(); len(specs) > 0 {
		hs, err := service.ParseHypotheses(specs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithHypotheses(hs...))
	}

	if a := cfg.Archetype; a.Enabled {
		km, err := cfg.KMeansOptions()
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithArchetypes(service.ArchetypeOptions{
			Key:             a.Key,
			MinObservations: a.MinObservations,
			TargetsOnly:     a.TargetsOnly,
			TopSimilar:      a.TopSimilar,
			KMeans:          km,
		}))
	}
	return service.New(opts...), nil
}

// ingest reads the tables into a frozen store.
func ingest(ctx context.Context, cfg *config.Config, in input) (*repository.MemStore, []repository.Rejection, int64, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, nil, 0, err
	}
	paths, err := tabular.ExpandGlobs(in.frames...)
	if err != nil {
		return nil, nil, 0, err
	}

	b := repository.NewBuilder(repository.WithLogger(logger.Named("store")))
	loader := tabular.NewLoader(
		tabular.WithSchema(schema),
		tabular.WithConcurrency(cfg.Ingest.Concurrency),
		tabular.WithLogger(logger.Named("ingest")),
	)
	if _, err := loader.Load(ctx, b, paths, in.metadata); err != nil {
		return nil, nil, 0, fmt.Errorf("ingest: %w", err)
	}
	store, rejected, err := b.Freeze(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	return store, rejected, b.Duplicates(), nil
}

// runPipeline ingests the tables and runs svc over them.
func runPipeline(ctx context.Context, cfg *config.Config, svc *service.Service, in input) (*service.Report, error) {
	store, rejected, duplicates, err := ingest(ctx, cfg, in)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report, err := svc.Run(ctx, store)
	if err != nil {
		return nil, err
	}
	report.AddIngest(rejected, duplicates)
	return report, nil
}

// writeArtifacts writes every table of report into dir and returns the
// paths written.
func writeArtifacts(dir string, report *service.Report, topSimilar int) ([]string, error) {
	w, err := tabular.OpenWriter(dir)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var paths []string
	add := func(path string, err error) error {
		if err != nil {
			metrics.RecordErrorByComponent("output", "write")
			return err
		}
		paths = append(paths, path)
		return nil
	}

	if err := add(w.WriteRecords(report.Records)); err != nil {
		return nil, err
	}
	if err := add(w.WriteComparisons(report.Comparisons)); err != nil {
		return nil, err
	}
	if a := report.Archetypes; a != nil {
		if err := add(w.WriteArchetypes(a.Result, a.Vectors, a.Categories)); err != nil {
			return nil, err
		}
		if topSimilar > 0 {
			if err := add(w.WriteSimilarities(a.Vectors, topSimilar)); err != nil {
				return nil, err
			}
		}
	}
	if err := add(w.WriteSummary(report.Summary)); err != nil {
		return nil, err
	}
	return paths, nil
}
