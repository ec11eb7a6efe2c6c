// Package archetype partitions agents by their categorical-frequency vectors
// with seeded k-means and measures pairwise cosine similarity.
//
// Runs are reproducible: initialization draws from a PCG source seeded by
// configuration, and every tie (candidate selection and nearest-centroid
// assignment) goes to the lowest index.
package archetype

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Default k-means configuration constants.
const (
	defaultK             = 4
	defaultSeed          = 42
	defaultMaxIterations = 100
	normTolerance        = 1e-6
	pcgStream            = 0x9e3779b97f4a7c15
)

// Distance selects the metric used for assignment.
type Distance int

// Distance metrics.
const (
	Euclidean Distance = iota
	Cosine
)

// String returns the configuration name of the metric.
func (d Distance) String() string {
	if d == Cosine {
		return "cosine"
	}
	return "euclidean"
}

// ParseDistance parses "euclidean" or "cosine".
func ParseDistance(s string) (Distance, error) {
	switch strings.ToLower(s) {
	case "", "euclidean":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	}
	return Euclidean, fmt.Errorf("unknown distance %q", s)
}

// Vector is one agent's normalized categorical-frequency vector.
type Vector struct {
	ID     string
	Values []float64
}

// KMeans partitions vectors into K clusters.
type KMeans struct {
	k             int
	seed          uint64
	maxIterations int
	distance      Distance
}

// Option applies a configuration option to KMeans.
type Option func(*KMeans)

// WithK sets the number of clusters.
func WithK(k int) Option {
	return func(m *KMeans) {
		m.k = k
	}
}

// WithSeed sets the initialization seed.
func WithSeed(seed uint64) Option {
	return func(m *KMeans) {
		m.seed = seed
	}
}

// WithMaxIterations bounds the refinement loop.
func WithMaxIterations(n int) Option {
	return func(m *KMeans) {
		if n > 0 {
			m.maxIterations = n
		}
	}
}

// WithDistance sets the assignment metric.
func WithDistance(d Distance) Option {
	return func(m *KMeans) {
		m.distance = d
	}
}

// New creates a KMeans partitioner with configuration options.
func New(opts ...Option) *KMeans {
	m := &KMeans{
		k:             defaultK,
		seed:          defaultSeed,
		maxIterations: defaultMaxIterations,
		distance:      Euclidean,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result is the outcome of one k-means run.
type Result struct {
	IDs         []string    // vector ids in input order
	Assignments []int       // cluster index per input vector
	Centroids   [][]float64 // one per cluster
	Sizes       []int
	Iterations  int
	Converged   bool
	Inertia     float64 // sum of distances to the assigned centroid
}

// Cluster returns the cluster index of the vector with the given id.
func (r Result) Cluster(id string) (int, bool) {
	for i, v := range r.IDs {
		if v == id {
			return r.Assignments[i], true
		}
	}
	return 0, false
}

// Fit partitions vectors. Vectors must share a dimension and each must be
// non-negative and sum to 1.
func (m *KMeans) Fit(vectors []Vector) (Result, error) {
	if err := Validate(vectors); err != nil {
		return Result{}, err
	}
	if m.k < 1 || m.k > len(vectors) {
		return Result{}, fmt.Errorf("%w: k=%d for %d vectors", ErrInvalidK, m.k, len(vectors))
	}

	rng := rand.New(rand.NewPCG(m.seed, m.seed^pcgStream))
	centroids := m.seedCentroids(vectors, rng)
	assign := make([]int, len(vectors))
	for i := range assign {
		assign[i] = -1
	}

	res := Result{IDs: make([]string, len(vectors))}
	for i, v := range vectors {
		res.IDs[i] = v.ID
	}
	for res.Iterations < m.maxIterations {
		res.Iterations++
		changed := false
		for i, v := range vectors {
			c := m.nearest(v.Values, centroids)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			break
		}
		centroids = m.update(vectors, assign, centroids)
	}

	res.Assignments = assign
	res.Centroids = centroids
	res.Sizes = make([]int, m.k)
	for i, c := range assign {
		res.Sizes[c]++
		res.Inertia += m.dist(vectors[i].Values, centroids[c])
	}
	return res, nil
}

// seedCentroids runs k-means++ initialization.
func (m *KMeans) seedCentroids(vectors []Vector, rng *rand.Rand) [][]float64 {
	chosen := make([]bool, len(vectors))
	first := rng.IntN(len(vectors))
	chosen[first] = true
	centroids := [][]float64{clone(vectors[first].Values)}

	weights := make([]float64, len(vectors))
	for len(centroids) < m.k {
		for i, v := range vectors {
			d := m.dist(v.Values, centroids[m.nearest(v.Values, centroids)])
			weights[i] = d * d
		}
		next := -1
		if total := floats.Sum(weights); total > 0 {
			u := rng.Float64() * total
			acc := 0.0
			for i, w := range weights {
				if w == 0 {
					continue
				}
				acc += w
				next = i // last positive weight absorbs rounding at the end
				if acc > u {
					break
				}
			}
		} else {
			// every vector coincides with a centroid
			for i := range chosen {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, clone(vectors[next].Values))
	}
	return centroids
}

// nearest returns the index of the closest centroid, preferring the lowest
// index on ties.
func (m *KMeans) nearest(v []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := m.dist(v, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// update recomputes centroids as member means. Empty clusters keep their
// previous centroid.
func (m *KMeans) update(vectors []Vector, assign []int, prev [][]float64) [][]float64 {
	dim := len(vectors[0].Values)
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		floats.Add(sums[assign[i]], v.Values)
		counts[assign[i]]++
	}
	for i := range sums {
		if counts[i] == 0 {
			sums[i] = clone(prev[i])
			continue
		}
		floats.Scale(1/float64(counts[i]), sums[i])
	}
	return sums
}

func (m *KMeans) dist(a, b []float64) float64 {
	if m.distance == Cosine {
		s, err := CosineSimilarity(a, b)
		if err != nil {
			return 1
		}
		return 1 - s
	}
	return floats.Distance(a, b, 2)
}

// Validate checks that vectors are non-empty, share a dimension and are
// normalized frequency vectors.
func Validate(vectors []Vector) error {
	if len(vectors) == 0 {
		return ErrNoVectors
	}
	dim := len(vectors[0].Values)
	if dim == 0 {
		return fmt.Errorf("%w: %s has no components", ErrDimensionMismatch, vectors[0].ID)
	}
	for _, v := range vectors {
		if len(v.Values) != dim {
			return fmt.Errorf("%w: %s has %d components, want %d", ErrDimensionMismatch, v.ID, len(v.Values), dim)
		}
		for _, x := range v.Values {
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				return fmt.Errorf("%w: %s has component %v", ErrNotNormalized, v.ID, x)
			}
		}
		if s := floats.Sum(v.Values); math.Abs(s-1) > normTolerance {
			return fmt.Errorf("%w: %s sums to %v", ErrNotNormalized, v.ID, s)
		}
	}
	return nil
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
