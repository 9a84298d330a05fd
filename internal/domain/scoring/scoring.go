// Package scoring turns the ratio between a contributor's value and the
// market average into position and performance labels.
package scoring

// Default ratio thresholds.
const (
	defaultExcellentRatio = 1.5
	defaultGoodRatio      = 1.0
	defaultAverageRatio   = 0.7
	defaultAboveRatio     = 1.1
	defaultAtRatio        = 0.9
)

// Performance grades a ratio against the market.
type Performance string

const (
	PerformanceExcellent        Performance = "excellent"
	PerformanceGood             Performance = "good"
	PerformanceAverage          Performance = "average"
	PerformanceNeedsImprovement Performance = "needs-improvement"
)

// Position places a ratio relative to the market.
type Position string

const (
	PositionAbove Position = "above-market"
	PositionAt    Position = "at-market"
	PositionBelow Position = "below-market"
)

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithPerformanceThresholds sets the lower bounds of the excellent, good and
// average grades. Ignored unless excellent > good > average > 0.
func WithPerformanceThresholds(excellent, good, average float64) Option {
	return func(c *Classifier) {
		if excellent > good && good > average && average > 0 {
			c.excellent, c.good, c.average = excellent, good, average
		}
	}
}

// WithPositionThresholds sets the lower bounds of the above-market and
// at-market positions. Ignored unless above > at > 0.
func WithPositionThresholds(above, at float64) Option {
	return func(c *Classifier) {
		if above > at && at > 0 {
			c.above, c.at = above, at
		}
	}
}

// Classifier maps ratios to labels. It is immutable after construction.
type Classifier struct {
	excellent float64
	good      float64
	average   float64
	above     float64
	at        float64
}

// NewClassifier creates a classifier with configuration options.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		excellent: defaultExcellentRatio,
		good:      defaultGoodRatio,
		average:   defaultAverageRatio,
		above:     defaultAboveRatio,
		at:        defaultAtRatio,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Performance grades ratio. NaN grades as needs-improvement.
func (c *Classifier) Performance(ratio float64) Performance {
	switch {
	case ratio >= c.excellent:
		return PerformanceExcellent
	case ratio >= c.good:
		return PerformanceGood
	case ratio >= c.average:
		return PerformanceAverage
	default:
		return PerformanceNeedsImprovement
	}
}

// Position places ratio relative to the market.
func (c *Classifier) Position(ratio float64) Position {
	switch {
	case ratio >= c.above:
		return PositionAbove
	case ratio >= c.at:
		return PositionAt
	default:
		return PositionBelow
	}
}

// Classify returns both labels for ratio.
func (c *Classifier) Classify(ratio float64) (Position, Performance) {
	return c.Position(ratio), c.Performance(ratio)
}

// Ratio returns value/average. It reports false when the average cannot
// serve as a baseline.
func Ratio(value, average float64) (float64, bool) {
	if !(average > 0) {
		return 0, false
	}
	return value / average, true
}
