// Package dedupe detects duplicate frame rows across ingest partitions.
package dedupe

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records seen frame keys so that only the first copy of a row is kept.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Size is the number of distinct keys recorded.
	Size() int64
	// Duplicates is the number of SeenAndRecord calls that hit a known key.
	Duplicates() int64
}

// FrameKey is the identity of one frame row.
func FrameKey(episodeID, agentID string, frame int) string {
	var b strings.Builder
	b.Grow(len(episodeID) + len(agentID) + 8)
	b.WriteString(episodeID)
	b.WriteByte('/')
	b.WriteString(agentID)
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(frame))
	return b.String()
}

// inMemoryDeduper implements Deduper with a mutex-guarded set.
type inMemoryDeduper struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	sizeHint   int
	size       atomic.Int64
	duplicates atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.sizeHint)
	return d
}

// SeenAndRecord atomically checks if key was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		d.duplicates.Add(1)
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

// Duplicates returns how many repeated keys were rejected.
func (d *inMemoryDeduper) Duplicates() int64 {
	return d.duplicates.Load()
}
