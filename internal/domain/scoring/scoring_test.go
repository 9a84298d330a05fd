package scoring_test

import (
	"math"
	"testing"

	scoring "github.com/okian/vinyl/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifier_Defaults(t *testing.T) {
	Convey("Given a classifier with default thresholds", t, func() {
		c := scoring.NewClassifier()

		Convey("When grading performance", func() {
			cases := []struct {
				ratio float64
				want  scoring.Performance
			}{
				{2.0, scoring.PerformanceExcellent},
				{1.5, scoring.PerformanceExcellent},
				{1.49, scoring.PerformanceGood},
				{1.0, scoring.PerformanceGood},
				{0.99, scoring.PerformanceAverage},
				{0.7, scoring.PerformanceAverage},
				{0.69, scoring.PerformanceNeedsImprovement},
				{0, scoring.PerformanceNeedsImprovement},
			}

			Convey("Then each boundary is inclusive from below", func() {
				for _, tc := range cases {
					So(c.Performance(tc.ratio), ShouldEqual, tc.want)
				}
			})
		})

		Convey("When placing a position", func() {
			So(c.Position(1.1), ShouldEqual, scoring.PositionAbove)
			So(c.Position(1.09), ShouldEqual, scoring.PositionAt)
			So(c.Position(0.9), ShouldEqual, scoring.PositionAt)
			So(c.Position(0.89), ShouldEqual, scoring.PositionBelow)
		})

		Convey("When the ratio is NaN", func() {
			pos, perf := c.Classify(math.NaN())
			So(pos, ShouldEqual, scoring.PositionBelow)
			So(perf, ShouldEqual, scoring.PerformanceNeedsImprovement)
		})
	})
}

func TestClassifier_Options(t *testing.T) {
	Convey("Given custom thresholds", t, func() {
		c := scoring.NewClassifier(
			scoring.WithPerformanceThresholds(3, 2, 1),
			scoring.WithPositionThresholds(2, 1),
		)

		Convey("Then they replace the defaults", func() {
			pos, perf := c.Classify(1.5)
			So(pos, ShouldEqual, scoring.PositionAt)
			So(perf, ShouldEqual, scoring.PerformanceAverage)
		})
	})

	Convey("Given thresholds out of order", t, func() {
		c := scoring.NewClassifier(
			scoring.WithPerformanceThresholds(1, 2, 3),
			scoring.WithPositionThresholds(0.5, 0.9),
		)

		Convey("Then the defaults are kept", func() {
			So(c.Performance(1.5), ShouldEqual, scoring.PerformanceExcellent)
			So(c.Position(1.0), ShouldEqual, scoring.PositionAt)
		})
	})
}

func TestRatio(t *testing.T) {
	Convey("Given a value and an average", t, func() {
		r, ok := scoring.Ratio(12_000_000, 8_000_000)
		So(ok, ShouldBeTrue)
		So(r, ShouldAlmostEqual, 1.5, 1e-9)

		Convey("When the average is not positive", func() {
			_, ok := scoring.Ratio(1, 0)
			So(ok, ShouldBeFalse)
			_, ok = scoring.Ratio(1, math.NaN())
			So(ok, ShouldBeFalse)
		})
	})
}
