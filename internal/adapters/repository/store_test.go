package repository_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/okian/trajan/internal/adapters/repository"
	"github.com/okian/trajan/internal/domain/model"
	"github.com/okian/trajan/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func row(ep, agent string, index int, x float64) repository.FrameRow {
	return repository.FrameRow{
		EpisodeID: ep, AgentID: agent, Category: "WR", Side: "offense",
		Frame: model.Frame{Index: index, X: x, Y: 1},
	}
}

func TestBuilderFreeze(t *testing.T) {
	Convey("Given a builder fed rows out of order", t, func() {
		ctx := context.Background()
		b := repository.NewBuilder()
		for _, r := range []repository.FrameRow{
			row("e1", "b", 2, 3), row("e1", "b", 1, 2), row("e1", "a", 1, 0),
			row("e1", "b", 1, 99),                      // duplicate row from a second partition
			row("e2", "a", 1, 0), row("e2", "a", 3, 0), // gap
			row("e3", "a", 1, 0), // no metadata
		} {
			So(b.AddFrame(ctx, r), ShouldBeNil)
		}
		for _, id := range []string{"e1", "e2", "e9"} {
			So(b.SetMetadata(repository.Metadata{
				EpisodeID: id, Reference: model.Point{X: 10, Y: 10}, Outcome: "C",
				Tags: map[string]string{"coverage": "zone"},
			}), ShouldBeNil)
		}

		Convey("When freezing", func() {
			store, rejected, err := b.Freeze(ctx)
			So(err, ShouldBeNil)

			Convey("Then valid episodes are sorted and the first duplicate wins", func() {
				So(store.EpisodeIDs(ctx), ShouldResemble, []string{"e1"})
				ep, err := store.Episode(ctx, "e1")
				So(err, ShouldBeNil)
				So(ep.Agents[0].ID, ShouldEqual, "a")
				b1 := ep.Agents[1]
				So(b1.Frames[0].Index, ShouldEqual, 1)
				So(b1.Frames[0].X, ShouldEqual, 2.0)
				So(b1.Frames[1].Index, ShouldEqual, 2)
				So(ep.Tag("coverage"), ShouldEqual, "zone")
				So(b.Duplicates(), ShouldEqual, 1)
			})

			Convey("Then invalid episodes are reported with a reason", func() {
				reasons := map[string]string{}
				for _, r := range rejected {
					reasons[r.EpisodeID] = r.Reason
				}
				So(reasons, ShouldResemble, map[string]string{
					"e2": "non_contiguous_frames",
					"e3": "missing_metadata",
				})
			})

			Convey("Then the builder refuses further writes", func() {
				So(errors.Is(b.AddFrame(ctx, row("e4", "a", 1, 0)), repository.ErrFrozen), ShouldBeTrue)
				So(errors.Is(b.SetMetadata(repository.Metadata{EpisodeID: "e4"}), repository.ErrFrozen), ShouldBeTrue)
				_, _, err := b.Freeze(ctx)
				So(errors.Is(err, repository.ErrFrozen), ShouldBeTrue)
			})

			Convey("Then unknown episodes are not found", func() {
				_, err := store.Episode(ctx, "e2")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then returned episodes are copies", func() {
				ep, _ := store.Episode(ctx, "e1")
				ep.Agents[0].Frames[0].X = 1000
				ep.Tags["coverage"] = "man"
				again, _ := store.Episode(ctx, "e1")
				So(again.Agents[0].Frames[0].X, ShouldEqual, 0.0)
				So(again.Tag("coverage"), ShouldEqual, "zone")
			})
		})
	})

	Convey("Given rows without identity", t, func() {
		b := repository.NewBuilder()
		err := b.AddFrame(context.Background(), repository.FrameRow{AgentID: "a"})
		So(errors.Is(err, repository.ErrInvalidRow), ShouldBeTrue)
		So(errors.Is(b.SetMetadata(repository.Metadata{}), repository.ErrInvalidRow), ShouldBeTrue)
	})

	Convey("Given a cancelled context", t, func() {
		b := repository.NewBuilder()
		So(b.AddFrame(context.Background(), row("e1", "a", 1, 0)), ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := b.Freeze(ctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestBuilderConcurrentWriters(t *testing.T) {
	Convey("Given writers adding disjoint agents concurrently", t, func() {
		ctx := context.Background()
		b := repository.NewBuilder()
		var wg sync.WaitGroup
		for _, agent := range []string{"a", "b", "c", "d"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 1; i <= 50; i++ {
					_ = b.AddFrame(ctx, row("e1", agent, i, float64(i)))
				}
			}()
		}
		wg.Wait()
		So(b.SetMetadata(repository.Metadata{EpisodeID: "e1"}), ShouldBeNil)

		store, rejected, err := b.Freeze(ctx)

		Convey("Then every agent has its full contiguous series", func() {
			So(err, ShouldBeNil)
			So(rejected, ShouldBeEmpty)
			ep, err := store.Episode(ctx, "e1")
			So(err, ShouldBeNil)
			So(len(ep.Agents), ShouldEqual, 4)
			for _, a := range ep.Agents {
				So(len(a.Frames), ShouldEqual, 50)
			}
		})
	})
}

func TestNewMemStore(t *testing.T) {
	Convey("Given hand-built episodes", t, func() {
		good := model.Episode{ID: "ok", Agents: []model.Agent{{ID: "a", Frames: []model.Frame{{Index: 0}}}}}
		empty := model.Episode{ID: "empty", Agents: []model.Agent{{ID: "a"}}}
		noAgents := model.Episode{ID: "none"}
		badRef := model.Episode{ID: "ref", Reference: model.Point{X: math.NaN()}, Agents: good.Agents}

		store, rejected := repository.NewMemStore(good, empty, noAgents, badRef)

		Convey("Then only the valid episode is stored", func() {
			So(store.Count(context.Background()), ShouldEqual, 1)
			So(len(rejected), ShouldEqual, 3)
			So(rejected[0].Reason, ShouldEqual, "empty_agent")
			So(rejected[1].Reason, ShouldEqual, "empty_agent")
			So(rejected[2].Reason, ShouldEqual, "invalid_reference")
			So(store.Close(), ShouldBeNil)
		})
	})
}
