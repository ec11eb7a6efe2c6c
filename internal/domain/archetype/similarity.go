package archetype

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine of the angle between a and b.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d and %d components", ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}
	return math.Max(-1, math.Min(1, floats.Dot(a, b)/(na*nb))), nil
}

// SimilarityMatrix returns the pairwise cosine similarity of vectors in
// input order.
func SimilarityMatrix(vectors []Vector) ([][]float64, error) {
	out := make([][]float64, len(vectors))
	for i := range vectors {
		out[i] = make([]float64, len(vectors))
	}
	for i := range vectors {
		out[i][i] = 1
		for j := i + 1; j < len(vectors); j++ {
			s, err := CosineSimilarity(vectors[i].Values, vectors[j].Values)
			if err != nil {
				return nil, fmt.Errorf("%s vs %s: %w", vectors[i].ID, vectors[j].ID, err)
			}
			out[i][j], out[j][i] = s, s
		}
	}
	return out, nil
}

// Similar is one neighbour of a vector.
type Similar struct {
	ID         string
	Similarity float64
}

// MostSimilar returns up to n vectors most similar to the one with id,
// highest first, ties in id order.
func MostSimilar(vectors []Vector, id string, n int) ([]Similar, error) {
	idx := slices.IndexFunc(vectors, func(v Vector) bool { return v.ID == id })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVector, id)
	}
	out := make([]Similar, 0, len(vectors)-1)
	for i, v := range vectors {
		if i == idx {
			continue
		}
		s, err := CosineSimilarity(vectors[idx].Values, v.Values)
		if err != nil {
			return nil, fmt.Errorf("%s vs %s: %w", id, v.ID, err)
		}
		out = append(out, Similar{ID: v.ID, Similarity: s})
	}
	slices.SortFunc(out, func(a, b Similar) int {
		return cmp.Or(cmp.Compare(b.Similarity, a.Similarity), cmp.Compare(a.ID, b.ID))
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}
