package archetype_test

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/okian/trajan/internal/domain/archetype"
	"github.com/okian/trajan/internal/domain/cohort"
	"github.com/okian/trajan/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func randomVectors(n, dim int, seed uint64) []archetype.Vector {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]archetype.Vector, n)
	for i := range out {
		vals := make([]float64, dim)
		sum := 0.0
		for j := range vals {
			vals[j] = rng.Float64()
			sum += vals[j]
		}
		for j := range vals {
			vals[j] /= sum
		}
		out[i] = archetype.Vector{ID: fmt.Sprintf("agent-%02d", i), Values: vals}
	}
	return out
}

func TestKMeansDeterminism(t *testing.T) {
	Convey("Given 32 frequency vectors", t, func() {
		vectors := randomVectors(32, 5, 11)

		for _, d := range []archetype.Distance{archetype.Euclidean, archetype.Cosine} {
			Convey("When clustering twice with the same seed using "+d.String(), func() {
				m := archetype.New(archetype.WithK(4), archetype.WithSeed(7), archetype.WithDistance(d))
				first, err := m.Fit(vectors)
				So(err, ShouldBeNil)
				second, err := archetype.New(archetype.WithK(4), archetype.WithSeed(7), archetype.WithDistance(d)).Fit(vectors)
				So(err, ShouldBeNil)

				Convey("Then the assignments and centroids are identical", func() {
					So(second.Assignments, ShouldResemble, first.Assignments)
					So(second.Centroids, ShouldResemble, first.Centroids)
					So(second.Iterations, ShouldEqual, first.Iterations)
				})

				Convey("Then every vector is assigned and sizes add up", func() {
					total := 0
					for _, s := range first.Sizes {
						total += s
					}
					So(total, ShouldEqual, 32)
					So(len(first.Centroids), ShouldEqual, 4)
					for _, a := range first.Assignments {
						So(a, ShouldBeBetweenOrEqual, 0, 3)
					}
				})
			})
		}
	})
}

func TestKMeansRecoversClusters(t *testing.T) {
	Convey("Given three well separated groups", t, func() {
		var vectors []archetype.Vector
		centres := [][]float64{{0.9, 0.05, 0.05}, {0.05, 0.9, 0.05}, {0.05, 0.05, 0.9}}
		for g, c := range centres {
			for i := 0; i < 5; i++ {
				jitter := 0.01 * float64(i)
				v := []float64{c[0] + jitter, c[1], c[2] - jitter}
				vectors = append(vectors, archetype.Vector{ID: fmt.Sprintf("g%d-%d", g, i), Values: v})
			}
		}

		res, err := archetype.New(archetype.WithK(3), archetype.WithSeed(1)).Fit(vectors)

		Convey("Then members of a group share a cluster and groups differ", func() {
			So(err, ShouldBeNil)
			So(res.Converged, ShouldBeTrue)
			seen := map[int]bool{}
			for g := 0; g < 3; g++ {
				c := res.Assignments[g*5]
				for i := 1; i < 5; i++ {
					So(res.Assignments[g*5+i], ShouldEqual, c)
				}
				seen[c] = true
			}
			So(len(seen), ShouldEqual, 3)
			cl, ok := res.Cluster("g1-3")
			So(ok, ShouldBeTrue)
			So(cl, ShouldEqual, res.Assignments[5])
		})
	})
}

func TestKMeansTiesAndEmptyClusters(t *testing.T) {
	Convey("Given duplicate vectors and K equal to the vector count", t, func() {
		vectors := []archetype.Vector{
			{ID: "a1", Values: []float64{1, 0}},
			{ID: "a2", Values: []float64{1, 0}},
			{ID: "b1", Values: []float64{0, 1}},
		}
		for seed := uint64(0); seed < 8; seed++ {
			res, err := archetype.New(archetype.WithK(3), archetype.WithSeed(seed)).Fit(vectors)
			So(err, ShouldBeNil)

			// the duplicates tie between two identical centroids and both take
			// the lower index, leaving the other cluster empty
			So(res.Assignments[0], ShouldEqual, res.Assignments[1])
			empty := -1
			for c, n := range res.Sizes {
				if n == 0 {
					empty = c
				}
			}
			So(empty, ShouldBeGreaterThan, res.Assignments[0])
			So(res.Centroids[empty], ShouldResemble, []float64{1, 0})
		}
	})
}

func TestKMeansValidation(t *testing.T) {
	Convey("Given invalid input", t, func() {
		m := archetype.New(archetype.WithK(2))

		_, err := m.Fit(nil)
		So(errors.Is(err, archetype.ErrNoVectors), ShouldBeTrue)

		_, err = m.Fit([]archetype.Vector{{ID: "a", Values: []float64{1}}, {ID: "b", Values: []float64{0.5, 0.5}}})
		So(errors.Is(err, archetype.ErrDimensionMismatch), ShouldBeTrue)

		_, err = m.Fit([]archetype.Vector{{ID: "a", Values: []float64{0.7, 0.7}}, {ID: "b", Values: []float64{0.5, 0.5}}})
		So(errors.Is(err, archetype.ErrNotNormalized), ShouldBeTrue)

		_, err = m.Fit([]archetype.Vector{{ID: "a", Values: []float64{1.5, -0.5}}, {ID: "b", Values: []float64{0.5, 0.5}}})
		So(errors.Is(err, archetype.ErrNotNormalized), ShouldBeTrue)

		_, err = archetype.New(archetype.WithK(3)).Fit([]archetype.Vector{{ID: "a", Values: []float64{1, 0}}, {ID: "b", Values: []float64{0, 1}}})
		So(errors.Is(err, archetype.ErrInvalidK), ShouldBeTrue)

		_, err = archetype.New(archetype.WithK(0)).Fit([]archetype.Vector{{ID: "a", Values: []float64{1, 0}}})
		So(errors.Is(err, archetype.ErrInvalidK), ShouldBeTrue)
	})

	Convey("Given distance names", t, func() {
		d, err := archetype.ParseDistance("Cosine")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, archetype.Cosine)
		_, err = archetype.ParseDistance("manhattan")
		So(err, ShouldNotBeNil)
	})
}

func TestCosineSimilarity(t *testing.T) {
	Convey("Given pairs of vectors", t, func() {
		s, err := archetype.CosineSimilarity([]float64{1, 0}, []float64{0, 1})
		So(err, ShouldBeNil)
		So(s, ShouldEqual, 0.0)

		s, err = archetype.CosineSimilarity([]float64{0.5, 0.5}, []float64{0.25, 0.25})
		So(err, ShouldBeNil)
		So(s, ShouldAlmostEqual, 1, 1e-12)

		s, err = archetype.CosineSimilarity([]float64{0.6, 0.4}, []float64{0.4, 0.6})
		So(err, ShouldBeNil)
		So(s, ShouldAlmostEqual, 0.48/0.52, 1e-12)

		_, err = archetype.CosineSimilarity([]float64{0, 0}, []float64{1, 0})
		So(errors.Is(err, archetype.ErrZeroVector), ShouldBeTrue)

		_, err = archetype.CosineSimilarity([]float64{1}, []float64{1, 0})
		So(errors.Is(err, archetype.ErrDimensionMismatch), ShouldBeTrue)
	})

	Convey("Given several agents", t, func() {
		vectors := []archetype.Vector{
			{ID: "a", Values: []float64{0.8, 0.2, 0}},
			{ID: "b", Values: []float64{0.7, 0.3, 0}},
			{ID: "c", Values: []float64{0, 0.2, 0.8}},
			{ID: "d", Values: []float64{0.7, 0.3, 0}},
		}

		Convey("Then the matrix is symmetric with a unit diagonal", func() {
			m, err := archetype.SimilarityMatrix(vectors)
			So(err, ShouldBeNil)
			for i := range m {
				So(m[i][i], ShouldEqual, 1.0)
				for j := range m {
					So(m[i][j], ShouldEqual, m[j][i])
				}
			}
		})

		Convey("Then the most similar agents come first with ties in id order", func() {
			top, err := archetype.MostSimilar(vectors, "a", 2)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 2)
			So(top[0].ID, ShouldEqual, "b")
			So(top[1].ID, ShouldEqual, "d")
			So(top[0].Similarity, ShouldAlmostEqual, top[1].Similarity, 1e-15)

			_, err = archetype.MostSimilar(vectors, "zz", 2)
			So(errors.Is(err, archetype.ErrUnknownVector), ShouldBeTrue)
		})
	})
}

func TestFrequencies(t *testing.T) {
	Convey("Given route tags across several episodes", t, func() {
		rec := func(agent, route string) model.FeatureRecord {
			return model.FeatureRecord{AgentID: agent, Tags: map[string]string{"route": route}}
		}
		records := []model.FeatureRecord{
			rec("w1", "GO"), rec("w1", "GO"), rec("w1", "SLANT"), rec("w1", "HITCH"),
			rec("w2", "SLANT"), rec("w2", "SLANT"),
			rec("w3", "GO"),
			rec("w4", ""),
		}

		Convey("When building vectors with a minimum of two observations", func() {
			vectors, cats, err := archetype.Frequencies(records, "tag:route", 2)

			Convey("Then each qualifying agent gets a normalized vector", func() {
				So(err, ShouldBeNil)
				So(cats, ShouldResemble, []string{"GO", "HITCH", "SLANT"})
				So(len(vectors), ShouldEqual, 2)
				So(vectors[0].ID, ShouldEqual, "w1")
				So(vectors[0].Values, ShouldResemble, []float64{0.5, 0.25, 0.25})
				So(vectors[1].Values, ShouldResemble, []float64{0, 0, 1})
				So(archetype.Validate(vectors), ShouldBeNil)
			})

			Convey("Then labelling copies the cluster into the archetype tag", func() {
				res, err := archetype.New(archetype.WithK(2)).Fit(vectors)
				So(err, ShouldBeNil)
				labelled := archetype.Label(records, res)
				So(labelled[0].Tag(cohort.ArchetypeTag), ShouldStartWith, "cluster_")
				So(labelled[6].Tag(cohort.ArchetypeTag), ShouldEqual, "")
				So(records[0].Tag(cohort.ArchetypeTag), ShouldEqual, "")

				p, err := cohort.By(labelled, "archetype")
				So(err, ShouldBeNil)
				So(len(p.Names()), ShouldEqual, 2)
			})
		})

		Convey("When no agent qualifies", func() {
			_, _, err := archetype.Frequencies(records, "tag:route", 10)
			So(errors.Is(err, archetype.ErrNoVectors), ShouldBeTrue)
		})

		Convey("When the field is unknown", func() {
			_, _, err := archetype.Frequencies(records, "colour", 1)
			So(err, ShouldNotBeNil)
		})
	})
}
