package aggregate_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/trajan/internal/domain/aggregate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBinsAssign(t *testing.T) {
	Convey("Given the default duration bins", t, func() {
		bins := aggregate.DefaultBins()

		Convey("Then interior values land in their interval", func() {
			for x, want := range map[float64]string{
				0.1:  "quick",
				1.99: "quick",
				2.2:  "fast",
				2.75: "normal",
				3.1:  "slow",
				14.9: "very_slow",
			} {
				got, err := bins.Assign(x)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then intervals are closed on the right", func() {
			for x, want := range map[float64]string{
				2.0:  "quick",
				2.5:  "fast",
				3.0:  "normal",
				3.5:  "slow",
				15.0: "very_slow",
			} {
				got, err := bins.Assign(x)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("When a value is outside every interval", func() {
			Convey("Then it is unbounded", func() {
				for _, x := range []float64{-0.1, 0, 15.01, 40, math.NaN()} {
					_, err := bins.Assign(x)
					So(errors.Is(err, aggregate.ErrUnboundedValue), ShouldBeTrue)
				}
			})
		})

		Convey("Then labels are listed in order", func() {
			So(bins.Labels(), ShouldResemble, []string{"quick", "fast", "normal", "slow", "very_slow"})
		})
	})

	Convey("Given bins with a catch-all label", t, func() {
		bins, err := aggregate.NewBins([]float64{0, 1}, []string{"short"}, "other")
		So(err, ShouldBeNil)

		Convey("Then out-of-range values fall into the catch-all", func() {
			got, err := bins.Assign(7)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, "other")
			So(bins.Labels(), ShouldResemble, []string{"short", "other"})
		})
	})

	Convey("Given frame-derived durations on the boundaries", t, func() {
		bins := aggregate.DefaultBins()
		for frames, want := range map[int]string{20: "quick", 25: "fast", 150: "very_slow"} {
			got, err := bins.Assign(float64(frames) * 0.1)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}
	})

	Convey("Given an unconfigured Bins value", t, func() {
		_, err := aggregate.Bins{}.Assign(1)
		So(errors.Is(err, aggregate.ErrInvalidBins), ShouldBeTrue)
	})
}

func TestNewBinsValidation(t *testing.T) {
	Convey("Given invalid bin definitions", t, func() {
		cases := []struct {
			name       string
			boundaries []float64
			labels     []string
		}{
			{"single boundary", []float64{1}, nil},
			{"label count mismatch", []float64{0, 1, 2}, []string{"a"}},
			{"not increasing", []float64{0, 2, 2}, []string{"a", "b"}},
			{"infinite boundary", []float64{0, math.Inf(1)}, []string{"a"}},
			{"empty label", []float64{0, 1}, []string{""}},
			{"duplicate label", []float64{0, 1, 2}, []string{"a", "a"}},
		}
		for _, tc := range cases {
			Convey("When the definition has a "+tc.name, func() {
				_, err := aggregate.NewBins(tc.boundaries, tc.labels, "")
				So(errors.Is(err, aggregate.ErrInvalidBins), ShouldBeTrue)
			})
		}
	})
}
