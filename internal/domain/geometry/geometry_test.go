package geometry_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/okian/trajan/internal/domain/geometry"
	"github.com/okian/trajan/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAngularDifference(t *testing.T) {
	Convey("Given pairs of angles", t, func() {
		Convey("When both angles are on the same side", func() {
			So(geometry.AngularDifference(0.5, 0.2), ShouldAlmostEqual, 0.3, 1e-12)
		})

		Convey("When the pair straddles the -π/π boundary", func() {
			a := math.Pi - 0.1
			b := -math.Pi + 0.1

			Convey("Then the short way round is returned", func() {
				So(geometry.AngularDifference(a, b), ShouldAlmostEqual, 0.2, 1e-12)
				So(geometry.AngularDifference(b, a), ShouldAlmostEqual, 0.2, 1e-12)
			})
		})

		Convey("When angles differ by full turns", func() {
			So(geometry.AngularDifference(0.25, 0.25+4*math.Pi), ShouldAlmostEqual, 0, 1e-9)
			So(geometry.AngularDifference(-3*math.Pi, 0), ShouldAlmostEqual, math.Pi, 1e-9)
		})

		Convey("When angles are exactly opposite", func() {
			So(geometry.AngularDifference(0, math.Pi), ShouldAlmostEqual, math.Pi, 1e-12)
			So(geometry.AngularDifference(-math.Pi/2, math.Pi/2), ShouldAlmostEqual, math.Pi, 1e-12)
		})

		Convey("For many random pairs the result is in [0, π] and symmetric", func() {
			rng := rand.New(rand.NewPCG(7, 11))
			outOfRange, asymmetric := 0, 0
			for i := 0; i < 10_000; i++ {
				a := (rng.Float64() - 0.5) * 40 * math.Pi
				b := (rng.Float64() - 0.5) * 40 * math.Pi
				d := geometry.AngularDifference(a, b)
				if d < 0 || d > math.Pi {
					outOfRange++
				}
				if d != geometry.AngularDifference(b, a) {
					asymmetric++
				}
			}
			So(outOfRange, ShouldEqual, 0)
			So(asymmetric, ShouldEqual, 0)
		})
	})
}

func TestNormalizeAngle(t *testing.T) {
	Convey("Given angles outside [-π, π]", t, func() {
		So(geometry.NormalizeAngle(3*math.Pi/2), ShouldAlmostEqual, -math.Pi/2, 1e-12)
		So(geometry.NormalizeAngle(-3*math.Pi/2), ShouldAlmostEqual, math.Pi/2, 1e-12)
		So(math.Abs(geometry.NormalizeAngle(5*math.Pi)), ShouldAlmostEqual, math.Pi, 1e-9)
	})
}

func TestDistanceAndBearing(t *testing.T) {
	Convey("Given a frame and a reference point", t, func() {
		f := model.Frame{X: 1, Y: 1}
		ref := model.Point{X: 4, Y: 5}

		Convey("Then the distance is Euclidean", func() {
			d, err := geometry.DistanceToPoint(f, ref)
			So(err, ShouldBeNil)
			So(d, ShouldAlmostEqual, 5.0, 1e-12)
		})

		Convey("Then the bearing points from the frame to the reference", func() {
			b, err := geometry.Bearing(f, ref)
			So(err, ShouldBeNil)
			So(b, ShouldAlmostEqual, math.Atan2(4, 3), 1e-12)

			behind, err := geometry.Bearing(model.Frame{X: 0, Y: 0}, model.Point{X: -1, Y: 0})
			So(err, ShouldBeNil)
			So(behind, ShouldAlmostEqual, math.Pi, 1e-12)
		})

		Convey("Then heading alignment compares heading with the bearing", func() {
			f.Heading = math.Atan2(4, 3)
			h, err := geometry.HeadingAlignment(f, ref)
			So(err, ShouldBeNil)
			So(h, ShouldAlmostEqual, 0, 1e-12)

			f.Orientation = f.Heading + math.Pi
			o, err := geometry.OrientationAlignment(f, ref)
			So(err, ShouldBeNil)
			So(o, ShouldAlmostEqual, math.Pi, 1e-9)
		})
	})

	Convey("Given non-finite coordinates", t, func() {
		_, err := geometry.DistanceToPoint(model.Frame{X: math.NaN(), Y: 0}, model.Point{})
		So(errors.Is(err, geometry.ErrInvalidGeometry), ShouldBeTrue)

		_, err = geometry.DistanceToPoint(model.Frame{}, model.Point{X: math.Inf(1)})
		So(errors.Is(err, geometry.ErrInvalidGeometry), ShouldBeTrue)

		_, err = geometry.HeadingAlignment(model.Frame{Heading: math.NaN()}, model.Point{X: 1})
		So(errors.Is(err, geometry.ErrInvalidGeometry), ShouldBeTrue)
	})
}

func TestDistanceToNearestAgent(t *testing.T) {
	Convey("Given a frame and candidate frames", t, func() {
		f := model.Frame{Index: 4, X: 0, Y: 0}
		candidates := []geometry.Candidate{
			{AgentID: "d1", Frame: model.Frame{Index: 4, X: 6, Y: 8}},
			{AgentID: "d2", Frame: model.Frame{Index: 4, X: 3, Y: 4}},
			{AgentID: "d3", Frame: model.Frame{Index: 4, X: -3, Y: -4}},
		}

		Convey("Then the closest candidate wins and ties keep the first", func() {
			n, err := geometry.DistanceToNearestAgent(f, candidates)
			So(err, ShouldBeNil)
			So(n.AgentID, ShouldEqual, "d2")
			So(n.Distance, ShouldAlmostEqual, 5.0, 1e-12)
		})

		Convey("Then neighbour counts include the radius boundary", func() {
			So(geometry.CountWithin(f, candidates, 5), ShouldEqual, 2)
			So(geometry.CountWithin(f, candidates, 10), ShouldEqual, 3)
			So(geometry.CountWithin(f, candidates, 1), ShouldEqual, 0)
		})

		Convey("When no candidates are supplied", func() {
			_, err := geometry.DistanceToNearestAgent(f, nil)

			Convey("Then it fails with an empty candidate set", func() {
				So(errors.Is(err, geometry.ErrEmptyCandidateSet), ShouldBeTrue)
			})
		})
	})
}

func twoSideEpisode() model.Episode {
	line := func(id, side string, x0, y0, dx, dy float64) model.Agent {
		a := model.Agent{ID: id, Category: "WR", Side: side}
		for i := 1; i <= 3; i++ {
			a.Frames = append(a.Frames, model.Frame{
				Index: i,
				X:     x0 + dx*float64(i-1),
				Y:     y0 + dy*float64(i-1),
				Speed: 5,
			})
		}
		return a
	}
	return model.Episode{
		ID:        "e1",
		Reference: model.Point{X: 20, Y: 0},
		Agents: []model.Agent{
			line("o1", "offense", 0, 0, 1, 0),
			line("d1", "defense", 0, 4, 1, 0),
			line("d2", "defense", 10, 0, 0, 0),
		},
	}
}

func TestExtractor(t *testing.T) {
	Convey("Given a two-sided episode", t, func() {
		ep := twoSideEpisode()
		agent, _ := ep.Agent("o1")

		Convey("When extracting against the landing point", func() {
			ex := geometry.NewExtractor(geometry.WithRadii(3, 5))
			ff, err := ex.Extract(ep, agent, geometry.PointReference(ep.Reference))

			Convey("Then one feature row exists per frame", func() {
				So(err, ShouldBeNil)
				So(len(ff), ShouldEqual, 3)
				So(ff[0].RefDistance, ShouldAlmostEqual, 20, 1e-12)
				So(ff[2].RefDistance, ShouldAlmostEqual, 18, 1e-12)
			})

			Convey("Then separation is measured against the opposing side only", func() {
				So(ff[0].Nearest.AgentID, ShouldEqual, "d1")
				So(ff[0].Nearest.Distance, ShouldAlmostEqual, 4, 1e-12)
				So(ff[0].FarCount, ShouldEqual, 1)
				So(ff[0].NearCount, ShouldEqual, 0)
			})

			Convey("Then kinematics are copied unchanged", func() {
				So(ff[1].Speed, ShouldEqual, 5.0)
			})

			Convey("Then each frame carries the step from its predecessor", func() {
				So(ff[0].Step, ShouldEqual, 0.0)
				So(ff[1].Step, ShouldAlmostEqual, 1, 1e-12)
				So(ff[2].Step, ShouldAlmostEqual, 1, 1e-12)
			})
		})

		Convey("When extracting against another agent at a fixed frame", func() {
			ex := geometry.NewExtractor(geometry.WithSeparation(false))
			ff, err := ex.Extract(ep, agent, geometry.AgentReference("d2", 1))

			Convey("Then distances use that agent's position", func() {
				So(err, ShouldBeNil)
				So(ff[0].RefDistance, ShouldAlmostEqual, 10, 1e-12)
				So(math.IsNaN(ff[0].Nearest.Distance), ShouldBeTrue)
			})
		})

		Convey("When the reference agent is missing", func() {
			ex := geometry.NewExtractor()
			_, err := ex.Extract(ep, agent, geometry.AgentReference("ghost", geometry.SameFrame))

			Convey("Then the reference is unavailable", func() {
				So(errors.Is(err, geometry.ErrReferenceUnavailable), ShouldBeTrue)
			})
		})

		Convey("When the reference is left unset", func() {
			_, err := geometry.NewExtractor().Extract(ep, agent, geometry.Reference{})
			So(errors.Is(err, geometry.ErrReferenceUnavailable), ShouldBeTrue)
		})

		Convey("When no opposing agent exists", func() {
			solo := model.Episode{ID: "solo", Agents: []model.Agent{agent}}
			_, err := geometry.NewExtractor().Extract(solo, agent, geometry.PointReference(model.Point{}))

			Convey("Then extraction fails with an empty candidate set", func() {
				So(errors.Is(err, geometry.ErrEmptyCandidateSet), ShouldBeTrue)
			})
		})

		Convey("When extracting twice from identical input", func() {
			ex := geometry.NewExtractor()
			a, _ := ex.Extract(ep, agent, geometry.PointReference(ep.Reference))
			b, _ := ex.Extract(ep, agent, geometry.PointReference(ep.Reference))

			Convey("Then the outputs are identical", func() {
				So(a, ShouldResemble, b)
			})
		})
	})
}

func TestParseOpponentRule(t *testing.T) {
	Convey("Opponent rules resolve by name", t, func() {
		a := model.Agent{ID: "a", Side: "offense"}
		mate := model.Agent{ID: "b", Side: "offense"}

		rule, err := geometry.ParseOpponentRule("")
		So(err, ShouldBeNil)
		So(rule(a, mate), ShouldBeFalse)

		rule, err = geometry.ParseOpponentRule("any")
		So(err, ShouldBeNil)
		So(rule(a, mate), ShouldBeTrue)
		So(rule(a, a), ShouldBeFalse)

		_, err = geometry.ParseOpponentRule("teammates")
		So(err, ShouldNotBeNil)
	})
}
