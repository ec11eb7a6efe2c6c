package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/okian/trajan/internal/adapters/mq/queue"
	"github.com/okian/trajan/internal/adapters/mq/worker"
	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/compare"
	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/internal/domain/roles"
	"github.com/okian/trajan/pkg/logger"
	"github.com/okian/trajan/pkg/metrics"
)

// episodeResult is what one worker produced for one episode.
type episodeResult struct {
	records    []model.FeatureRecord
	exclusions []Exclusion
}

// extract runs one job per episode on the worker pool and returns once
// every job has finished. Results are indexed by the episode's position in
// ids, so the output order does not depend on scheduling.
func (s *Service) extract(ctx context.Context, store repository.Store, ids []string) ([]episodeResult, error) {
	results := make([]episodeResult, len(ids))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	proc := worker.ProcessorFunc(func(ctx context.Context, job queue.Job) error {
		res, err := s.processEpisode(ctx, store, job.EpisodeID)
		results[job.Seq] = res
		return err
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := worker.NewPool(s.workerCount, q, proc, worker.WithPoolLogger(s.logger.Named("workers")))
	pool.Start(runCtx)

	for i, id := range ids {
		if err := q.Put(ctx, queue.Job{EpisodeID: id, Seq: i}); err != nil {
			cancel()
			_ = q.Close()
			return nil, err
		}
	}
	_ = q.Close()

	if err := pool.Wait(ctx); err != nil {
		return nil, err
	}
	// workers also stop on cancellation, leaving results incomplete
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats := pool.Stats()
	s.logger.Debug(ctx, "extraction finished",
		logger.Int("processed", int(stats.Processed)),
		logger.Int("failed", int(stats.Failed)))
	return results, nil
}

// processEpisode extracts and aggregates every agent of one episode against
// its reference point. Agent failures become exclusions.
func (s *Service) processEpisode(ctx context.Context, store repository.Store, id string) (episodeResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordEpisodeLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var res episodeResult
	ep, err := store.Episode(ctx, id)
	if err != nil {
		res.exclusions = append(res.exclusions, s.exclude(ctx, id, "", err))
		return res, err
	}

	ref := geometry.PointReference(ep.Reference)
	for _, agent := range ep.Agents {
		features, err := s.extractor.Extract(ep, agent, ref)
		if err != nil {
			res.exclusions = append(res.exclusions, s.exclude(ctx, ep.ID, agent.ID, err))
			continue
		}
		rec, err := s.aggregator.Aggregate(ep, agent, features)
		if err != nil {
			res.exclusions = append(res.exclusions, s.exclude(ctx, ep.ID, agent.ID, err))
			continue
		}
		res.records = append(res.records, rec)
	}

	metrics.RecordEpisodeProcessed()
	metrics.RecordRecordsEmitted(len(res.records))
	return res, nil
}

func (s *Service) exclude(ctx context.Context, episodeID, agentID string, err error) Exclusion {
	e := Exclusion{EpisodeID: episodeID, AgentID: agentID, Reason: ExclusionReason(err), Detail: err.Error()}
	metrics.RecordRecordExcluded(e.Reason)
	s.logger.Warn(ctx, "record excluded",
		logger.String("episode_id", episodeID),
		logger.String("agent_id", agentID),
		logger.String("reason", e.Reason),
		logger.Error(err))
	return e
}

// tagTargets infers each episode's target and stores its id on every record
// of the episode. It returns the number of episodes with a target.
func (s *Service) tagTargets(ctx context.Context, records []model.FeatureRecord) int {
	targets := make(map[string]string)
	for _, g := range roles.GroupBy(records, false) {
		target, err := roles.IdentifyTarget(g.Records, s.classification.TargetSide, s.classification.TargetCategories)
		if err != nil {
			s.logger.Debug(ctx, "no target inferred", logger.String("episode_id", g.Key), logger.Error(err))
			continue
		}
		targets[g.Key] = target.AgentID
	}
	for i := range records {
		id, ok := targets[records[i].EpisodeID]
		if !ok {
			continue
		}
		if records[i].Tags == nil {
			records[i].Tags = map[string]string{}
		}
		records[i].Tags[TargetTag] = id
	}
	return len(targets)
}

// eligible reports whether rec takes part in role classification.
func (c Classification) eligible(rec model.FeatureRecord) bool {
	if c.Side != "" && !strings.EqualFold(rec.Side, c.Side) {
		return false
	}
	return len(c.Categories) == 0 || slices.Contains(c.Categories, rec.Category)
}

// classify ranks eligible records within their groups and credits the
// group's outcome event. Eligible records without a usable ranking value
// are excluded; ineligible records pass through unlabelled. Input order is
// preserved.
func (s *Service) classify(ctx context.Context, records []model.FeatureRecord) ([]model.FeatureRecord, []Exclusion, int, error) {
	c := s.classification
	var eligible []model.FeatureRecord
	for _, rec := range records {
		if c.eligible(rec) {
			eligible = append(eligible, rec)
		}
	}

	labelled := make(map[string]model.FeatureRecord, len(eligible))
	dropped := make(map[string]bool)
	var exclusions []Exclusion
	for _, g := range roles.GroupBy(eligible, c.ByCategory) {
		usable, unrankable := roles.Rankable(g.Records, c.Feature)
		for _, rec := range unrankable {
			m, _ := rec.Lookup(c.Feature)
			dropped[rec.Key()] = true
			exclusions = append(exclusions, s.exclude(ctx, rec.EpisodeID, rec.AgentID,
				wrapUnrankable(c.Feature, m)))
		}
		if len(usable) == 0 {
			continue
		}
		assignments, err := roles.Classify(usable, c.Feature, roles.WithDirection(c.Direction))
		if err != nil {
			return nil, nil, 0, err
		}
		ranked := make([]model.FeatureRecord, len(assignments))
		for i, a := range assignments {
			ranked[i] = a.Record
		}
		if len(c.CreditOutcomes) > 0 {
			if ranked, err = roles.Credit(ranked, c.CreditFeature, c.CreditOutcomes); err != nil {
				return nil, nil, 0, err
			}
		}
		for _, rec := range ranked {
			labelled[rec.Key()] = rec
		}
	}

	out := make([]model.FeatureRecord, 0, len(records))
	for _, rec := range records {
		if dropped[rec.Key()] {
			continue
		}
		if l, ok := labelled[rec.Key()]; ok {
			rec = l
		}
		out = append(out, rec)
	}
	return out, exclusions, len(labelled), nil
}

// partition builds archetype vectors and clusters them. Failures are logged
// and leave the records unlabelled.
func (s *Service) partition(ctx context.Context, records []model.FeatureRecord) (*Archetypes, []model.FeatureRecord) {
	a := s.archetypes
	source := records
	if a.TargetsOnly {
		source = nil
		for _, rec := range records {
			if rec.Tag(TargetTag) == rec.AgentID {
				source = append(source, rec)
			}
		}
	}

	vectors, categories, err := archetype.Frequencies(source, a.Key, a.MinObservations)
	if err != nil {
		s.logger.Warn(ctx, "archetypes skipped", logger.String("key", a.Key), logger.Error(err))
		return nil, records
	}
	res, err := archetype.New(a.KMeans...).Fit(vectors)
	if err != nil {
		s.logger.Warn(ctx, "archetypes skipped", logger.String("key", a.Key), logger.Int("agents", len(vectors)), logger.Error(err))
		return nil, records
	}
	metrics.RecordKMeansIterations(res.Iterations)
	s.logger.Info(ctx, "archetypes partitioned",
		logger.Int("agents", len(vectors)),
		logger.Int("categories", len(categories)),
		logger.Int("iterations", res.Iterations),
		logger.Bool("converged", res.Converged))
	return &Archetypes{Key: a.Key, Categories: categories, Vectors: vectors, Result: res}, archetype.Label(records, res)
}

// compare runs every hypothesis. Each yields a result, failed or not.
func (s *Service) compare(ctx context.Context, records []model.FeatureRecord) []compare.Result {
	out := make([]compare.Result, 0, len(s.hypotheses))
	for _, h := range s.hypotheses {
		res, err := s.comparator.Run(h, records)
		metrics.RecordComparison(string(h.Kind), string(res.Status))
		if err != nil {
			s.logger.Warn(ctx, "comparison failed",
				logger.String("hypothesis", h.Name),
				logger.String("status", string(res.Status)),
				logger.Error(err))
		}
		out = append(out, res)
	}
	return out
}
