package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/vinyl/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, int64(0))

		Convey("When a submission id is new", func() {
			seen := d.SeenAndRecord(ctx, "sub-1")

			Convey("Then it is recorded and reported unseen", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, int64(1))
			})

			Convey("Then a retry of the same id is reported seen", func() {
				So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, int64(1))
			})
		})

		Convey("When an id is unrecorded", func() {
			d.SeenAndRecord(ctx, "sub-1")
			d.Unrecord(ctx, "sub-1")
			d.Unrecord(ctx, "missing")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, int64(0))
				So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
			})
		})

		Convey("When the empty id is used", func() {
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, ""), ShouldBeTrue)
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"sub-1", "sub-2", "sub-3", "sub-4"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("Then the oldest id is evicted first", func() {
			So(d.Size(), ShouldEqual, int64(3))
			So(d.SeenAndRecord(ctx, "sub-2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "sub-3"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "sub-4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "sub-1"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, int64(3))
		})

		Convey("Then unrecording a middle id frees a slot", func() {
			d.Unrecord(ctx, "sub-3")
			So(d.Size(), ShouldEqual, int64(2))
			So(d.SeenAndRecord(ctx, "sub-5"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "sub-2"), ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const n = 1000
		for i := 0; i < n; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("sub-%d", i))
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, int64(n))
			So(d.SeenAndRecord(ctx, "sub-0"), ShouldBeTrue)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given concurrent submissions of overlapping ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		const workers = 10
		const ids = 100

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < ids; i++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("sub-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is admitted exactly once", func() {
			So(fresh, ShouldEqual, ids)
			So(d.Size(), ShouldEqual, int64(ids))
		})
	})
}
