package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/trajan/internal/domain/dedupe"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/pkg/logger"
	"github.com/okian/trajan/pkg/metrics"
)

// FrameRow is one row of the frame table.
type FrameRow struct {
	EpisodeID string
	AgentID   string
	Category  string
	Side      string
	Frame     model.Frame
}

// Metadata is one row of the episode metadata table.
type Metadata struct {
	EpisodeID string
	Reference model.Point
	Outcome   model.Outcome
	Tags      map[string]string
}

// Builder accumulates rows until Freeze. It is safe for concurrent writers.
type Builder struct {
	mu       sync.Mutex
	frozen   bool
	agents   map[string]map[string]*model.Agent // episode -> agent -> frames
	metadata map[string]Metadata
	dedupe   dedupe.Deduper
	log      logger.Logger
}

// NewBuilder creates a Builder with configuration options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		agents:   make(map[string]map[string]*model.Agent),
		metadata: make(map[string]Metadata),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.dedupe == nil {
		b.dedupe = dedupe.NewInMemoryDeduper()
	}
	if b.log == nil {
		b.log = logger.Get().Named("store")
	}
	return b
}

// AddFrame appends a frame row. A row repeating an (episode, agent, frame)
// key already added is dropped and counted; the first copy wins.
func (b *Builder) AddFrame(ctx context.Context, row FrameRow) error {
	if row.EpisodeID == "" || row.AgentID == "" {
		return fmt.Errorf("%w: episode %q agent %q", ErrInvalidRow, row.EpisodeID, row.AgentID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrFrozen
	}
	if b.dedupe.SeenAndRecord(ctx, dedupe.FrameKey(row.EpisodeID, row.AgentID, row.Frame.Index)) {
		metrics.RecordFrameDuplicate()
		return nil
	}

	ep, ok := b.agents[row.EpisodeID]
	if !ok {
		ep = make(map[string]*model.Agent)
		b.agents[row.EpisodeID] = ep
	}
	a, ok := ep[row.AgentID]
	if !ok {
		a = &model.Agent{ID: row.AgentID, Category: row.Category, Side: row.Side}
		ep[row.AgentID] = a
	}
	a.Frames = append(a.Frames, row.Frame)
	return nil
}

// SetMetadata records the metadata of one episode. Later rows for the same
// episode replace earlier ones.
func (b *Builder) SetMetadata(meta Metadata) error {
	if meta.EpisodeID == "" {
		return fmt.Errorf("%w: metadata without episode id", ErrInvalidRow)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return ErrFrozen
	}
	meta.Tags = maps.Clone(meta.Tags)
	b.metadata[meta.EpisodeID] = meta
	return nil
}

// Duplicates returns the number of duplicate frame rows dropped so far.
func (b *Builder) Duplicates() int64 {
	return b.dedupe.Duplicates()
}

// Freeze validates every episode and returns the read-only store. The builder
// refuses writes afterwards.
func (b *Builder) Freeze(ctx context.Context) (*MemStore, []Rejection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, nil, ErrFrozen
	}
	b.frozen = true

	var (
		episodes []model.Episode
		rejected []Rejection
	)
	for _, id := range slices.Sorted(maps.Keys(b.agents)) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		meta, ok := b.metadata[id]
		if !ok {
			rejected = append(rejected, reject(id, fmt.Errorf("%w: %s", ErrMissingMetadata, id)))
			continue
		}
		ep := model.Episode{
			ID:        id,
			Reference: meta.Reference,
			Outcome:   meta.Outcome,
			Tags:      meta.Tags,
		}
		for _, agentID := range slices.Sorted(maps.Keys(b.agents[id])) {
			ep.Agents = append(ep.Agents, *b.agents[id][agentID])
		}
		episodes = append(episodes, ep)
	}
	for _, id := range slices.Sorted(maps.Keys(b.metadata)) {
		if _, ok := b.agents[id]; !ok {
			b.log.Warn(ctx, "metadata without frames ignored", logger.String("episode_id", id))
		}
	}

	store, invalid := NewMemStore(episodes...)
	rejected = append(rejected, invalid...)
	for _, r := range rejected {
		b.log.Warn(ctx, "episode rejected",
			logger.String("episode_id", r.EpisodeID),
			logger.String("reason", r.Reason),
			logger.Error(r.Err))
	}
	b.log.Info(ctx, "store frozen",
		logger.Int("episodes", store.Count(ctx)),
		logger.Int("rejected", len(rejected)),
		logger.Int("duplicate_rows", int(b.dedupe.Duplicates())))
	return store, rejected, nil
}
