// Package service runs the trajectory pipeline over a frozen store: it
// extracts and aggregates every episode on a worker pool, classifies roles,
// optionally partitions agents into archetypes and tests the configured
// hypotheses.
package service

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/aggregate"
	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/internal/domain/roles"
	"github.com/okian/trajan/pkg/logger"
	"github.com/okian/trajan/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize = 1024
)

// TargetTag is the record tag holding the inferred target agent of the
// episode.
const TargetTag = "target_agent"

// Classification configures role ranking.
type Classification struct {
	Feature    string
	Direction  roles.Direction
	Side       string   // rank only this side; empty ranks every agent
	Categories []string // eligible categories; empty means all
	ByCategory bool     // one group per episode and category

	Target           bool // infer the episode target and tag its records
	TargetSide       string
	TargetCategories []string

	// CreditFeature picks the group member credited when the episode
	// outcome is one of CreditOutcomes. No outcomes disables crediting.
	CreditFeature  string
	CreditOutcomes []model.Outcome
}

// DefaultClassification ranks defenders by distance to the reference point
// at the last frame, one group per episode, and credits interceptions to
// the closest defender at the last frame.
func DefaultClassification() Classification {
	return Classification{
		Feature:          roles.DefaultFeature,
		Direction:        roles.Ascending,
		Side:             "defense",
		TargetSide:       "offense",
		TargetCategories: roles.DefaultTargetCategories,
		CreditFeature:    roles.DefaultFeature,
		CreditOutcomes:   roles.DefaultCreditOutcomes,
	}
}

// ArchetypeOptions configures the archetype step.
type ArchetypeOptions struct {
	Key             string // categorical field counted per agent, e.g. tag:route
	MinObservations int
	TargetsOnly     bool // count only records of inferred targets
	TopSimilar      int
	KMeans          []archetype.Option
}

// Service runs the pipeline and keeps the last report for the results API.
type Service struct {
	mu sync.RWMutex

	// Components
	extractor  *geometry.Extractor
	aggregator *aggregate.Aggregator
	comparator *compare.Comparator

	// Configuration
	workerCount    int
	queueSize      int
	classification Classification
	hypotheses     []compare.Hypothesis
	archetypes     *ArchetypeOptions

	// State
	running bool
	last    *Report

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the episode job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExtractor sets the feature extractor.
func WithExtractor(e *geometry.Extractor) Option {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithAggregator sets the temporal aggregator.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithComparator sets the statistical comparator.
func WithComparator(c *compare.Comparator) Option {
	return func(s *Service) {
		if c != nil {
			s.comparator = c
		}
	}
}

// WithClassification sets the role ranking configuration.
func WithClassification(c Classification) Option {
	return func(s *Service) {
		if c.Feature == "" {
			c.Feature = roles.DefaultFeature
		}
		if c.CreditFeature == "" {
			c.CreditFeature = roles.DefaultFeature
		}
		s.classification = c
	}
}

// WithHypotheses replaces the default hypotheses. No arguments disables
// comparisons.
func WithHypotheses(hs ...compare.Hypothesis) Option {
	return func(s *Service) {
		s.hypotheses = slices.Clone(hs)
	}
}

// WithArchetypes enables the archetype step.
func WithArchetypes(a ArchetypeOptions) Option {
	return func(s *Service) {
		s.archetypes = &a
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		classification: DefaultClassification(),
		hypotheses:     DefaultHypotheses(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	if s.extractor == nil {
		s.extractor = geometry.NewExtractor()
	}
	if s.aggregator == nil {
		s.aggregator = aggregate.New()
	}
	if s.comparator == nil {
		s.comparator = compare.New()
	}
	return s
}

// Run processes every episode of store and returns the report. The report
// is also kept for LastReport. Per-record failures become exclusions;
// configuration errors and cancellation fail the run.
func (s *Service) Run(ctx context.Context, store repository.Store) (*Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := s.validate(); err != nil {
		return nil, err
	}
	ids := store.EpisodeIDs(ctx)
	if len(ids) == 0 {
		return nil, ErrNoEpisodes
	}

	report := &Report{Summary: Summary{RunID: uuid.NewString(), StartedAt: time.Now().UTC(), Episodes: len(ids)}}
	s.logger.Info(ctx, "pipeline started",
		logger.String("run_id", report.Summary.RunID),
		logger.Int("episodes", len(ids)),
		logger.Int("workers", s.workerCount))

	results, err := s.extract(ctx, store, ids)
	if err != nil {
		return nil, err
	}
	var records []model.FeatureRecord
	for _, r := range results {
		records = append(records, r.records...)
		report.Exclusions = append(report.Exclusions, r.exclusions...)
	}

	if s.classification.Target {
		report.Summary.Targets = s.tagTargets(ctx, records)
	}
	records, dropped, classified, err := s.classify(ctx, records)
	if err != nil {
		return nil, err
	}
	report.Exclusions = append(report.Exclusions, dropped...)
	report.Summary.Classified = classified

	if s.archetypes != nil {
		report.Archetypes, records = s.partition(ctx, records)
		if report.Archetypes != nil {
			report.Summary.Archetypes = len(report.Archetypes.Vectors)
		}
	}

	report.Records = records
	report.Comparisons = s.compare(ctx, records)

	report.Summary.Records = len(records)
	report.Summary.Excluded = countReasons(report.Exclusions)
	report.Summary.Comparisons = countComparisons(report.Comparisons)
	report.Summary.DurationMS = time.Since(report.Summary.StartedAt).Milliseconds()

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.logger.Info(ctx, "pipeline finished",
		logger.String("run_id", report.Summary.RunID),
		logger.Int("records", report.Summary.Records),
		logger.Int("excluded", report.Summary.ExcludedTotal()),
		logger.Any("excluded_reasons", reasons(report.Summary.Excluded)),
		logger.Int("comparisons_ok", report.Summary.Comparisons.OK),
		logger.Int("comparisons_failed", report.Summary.Comparisons.Failed),
		logger.Duration("took", time.Since(report.Summary.StartedAt)))
	return report, nil
}

func (s *Service) validate() error {
	for _, f := range []string{s.classification.Feature, s.classification.CreditFeature} {
		if !model.HasColumn(f) {
			return fmt.Errorf("classification: %w: %q", roles.ErrUnknownFeature, f)
		}
	}
	for _, h := range s.hypotheses {
		if err := h.Validate(); err != nil {
			return err
		}
	}
	if a := s.archetypes; a != nil {
		if _, err := cohort.Resolve(a.Key); err != nil {
			return fmt.Errorf("archetypes: %w", err)
		}
	}
	return nil
}

// LastReport returns the report of the last completed run.
func (s *Service) LastReport() (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, ErrNotRun
	}
	return s.last, nil
}

// Records returns the records of the last run matching both ids.
func (s *Service) Records(_ context.Context, episodeID, agentID string) ([]model.FeatureRecord, error) {
	r, err := s.LastReport()
	if err != nil {
		return nil, err
	}
	return r.Find(episodeID, agentID), nil
}

// Comparisons returns the hypothesis results of the last run.
func (s *Service) Comparisons(_ context.Context) ([]compare.Result, error) {
	r, err := s.LastReport()
	if err != nil {
		return nil, err
	}
	return r.Comparisons, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"running":     s.running,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"hypotheses":  len(s.hypotheses),
		"archetypes":  s.archetypes != nil,
	}
	if s.last != nil {
		sum := s.last.Summary
		stats["runId"] = sum.RunID
		stats["episodes"] = sum.Episodes
		stats["records"] = sum.Records
		stats["excluded"] = sum.ExcludedTotal()
		stats["comparisonsOk"] = sum.Comparisons.OK
		stats["comparisonsFailed"] = sum.Comparisons.Failed
		stats["durationMs"] = sum.DurationMS
	}
	metrics.UpdateWorkerCount(s.workerCount)
	return stats
}
