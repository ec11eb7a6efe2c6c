package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/trajan/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithSizeHint(16))

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
			So(d.Duplicates(), ShouldEqual, 0)
		})

		Convey("When the same frame row arrives from two partitions", func() {
			key := dedupe.FrameKey("2022091200-64", "47857", 12)
			first := d.SeenAndRecord(ctx, key)
			second := d.SeenAndRecord(ctx, key)

			Convey("Then only the first copy is new and the repeat is counted", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
				So(d.Duplicates(), ShouldEqual, 1)
			})
		})

		Convey("When keys differ in any component", func() {
			keys := []string{
				dedupe.FrameKey("e1", "a1", 1),
				dedupe.FrameKey("e1", "a1", 2),
				dedupe.FrameKey("e1", "a2", 1),
				dedupe.FrameKey("e2", "a1", 1),
			}
			for _, k := range keys {
				So(d.SeenAndRecord(ctx, k), ShouldBeFalse)
			}

			Convey("Then they are all distinct", func() {
				So(d.Size(), ShouldEqual, 4)
				So(d.Duplicates(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a frame key", t, func() {
		So(dedupe.FrameKey("g1-p1", "a", 7), ShouldEqual, "g1-p1/a/7")
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given goroutines feeding overlapping partitions", t, func() {
		d := dedupe.NewInMemoryDeduper()
		const partitions = 8
		const rows = 200

		var wg sync.WaitGroup
		for p := 0; p < partitions; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < rows; i++ {
					// every partition carries the same rows
					d.SeenAndRecord(context.Background(), fmt.Sprintf("e/a/%d", i))
				}
			}()
		}
		wg.Wait()

		Convey("Then each row is recorded once and the rest are duplicates", func() {
			So(d.Size(), ShouldEqual, rows)
			So(d.Duplicates(), ShouldEqual, (partitions-1)*rows)
		})
	})
}
