// Package repository holds the Trajectory Store: a builder that accepts frame
// rows and episode metadata, and the frozen read-only store it produces.
package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/pkg/metrics"
)

// Store provides read access to validated episodes.
type Store interface {
	// Episode returns a copy of the episode with the given id.
	// Returns ErrNotFound if the id is unknown.
	Episode(ctx context.Context, id string) (model.Episode, error)

	// EpisodeIDs returns every episode id in sorted order.
	EpisodeIDs(ctx context.Context) []string

	// Count returns the number of episodes.
	Count(ctx context.Context) int

	Close() error
}

// Rejection records an episode that failed validation.
type Rejection struct {
	EpisodeID string
	Reason    string
	Err       error
}

// MemStore is an immutable in-memory Store. It is safe for concurrent readers.
type MemStore struct {
	episodes map[string]model.Episode
	ids      []string
}

var _ Store = (*MemStore)(nil)

// NewMemStore validates episodes and stores the valid ones.
// Invalid episodes are returned as rejections.
func NewMemStore(episodes ...model.Episode) (*MemStore, []Rejection) {
	s := &MemStore{episodes: make(map[string]model.Episode, len(episodes))}
	var rejected []Rejection
	for _, ep := range episodes {
		ep = ep.Clone()
		if err := Normalize(&ep); err != nil {
			rejected = append(rejected, reject(ep.ID, err))
			continue
		}
		s.episodes[ep.ID] = ep
	}
	s.ids = slices.Sorted(maps.Keys(s.episodes))
	metrics.UpdateStoreEpisodes(len(s.ids))
	return s, rejected
}

// Episode implements Store.Episode.
func (s *MemStore) Episode(_ context.Context, id string) (model.Episode, error) {
	ep, ok := s.episodes[id]
	if !ok {
		return model.Episode{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ep.Clone(), nil
}

// EpisodeIDs implements Store.EpisodeIDs.
func (s *MemStore) EpisodeIDs(_ context.Context) []string {
	return slices.Clone(s.ids)
}

// Count implements Store.Count.
func (s *MemStore) Count(_ context.Context) int {
	return len(s.ids)
}

// Close implements Store.Close.
func (s *MemStore) Close() error {
	return nil
}

// Normalize sorts agents by id and frames by index, then checks the episode
// invariants: a finite reference, at least one frame per agent and
// contiguous frame indices.
func Normalize(ep *model.Episode) error {
	if !ep.Reference.Finite() {
		return fmt.Errorf("%w: episode %s", ErrInvalidReference, ep.ID)
	}
	if len(ep.Agents) == 0 {
		return fmt.Errorf("%w: episode %s has no agents", ErrEmptyAgent, ep.ID)
	}
	slices.SortFunc(ep.Agents, func(a, b model.Agent) int { return strings.Compare(a.ID, b.ID) })
	for _, a := range ep.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: episode %s has an agent without id", ErrInvalidRow, ep.ID)
		}
		if len(a.Frames) == 0 {
			return fmt.Errorf("%w: episode %s agent %s", ErrEmptyAgent, ep.ID, a.ID)
		}
		slices.SortFunc(a.Frames, func(x, y model.Frame) int { return x.Index - y.Index })
		for i := 1; i < len(a.Frames); i++ {
			if a.Frames[i].Index != a.Frames[i-1].Index+1 {
				return fmt.Errorf("%w: episode %s agent %s jumps from %d to %d",
					ErrNonContiguousFrames, ep.ID, a.ID, a.Frames[i-1].Index, a.Frames[i].Index)
			}
		}
	}
	return nil
}

func reject(id string, err error) Rejection {
	r := Rejection{EpisodeID: id, Reason: Reason(err), Err: err}
	metrics.RecordEpisodeRejected(r.Reason)
	return r
}
