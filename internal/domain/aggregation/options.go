package aggregation

import (
	"github.com/okian/vinyl/internal/domain/scoring"
	"github.com/okian/vinyl/pkg/logger"
)

const defaultSampleConcurrency = 4

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClassifier sets the ratio classifier used by CompareAgainstMarket.
func WithClassifier(c *scoring.Classifier) Option {
	return func(s *Store) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithPeriodBreakdown toggles the additional (category, period)
// accumulators. Enabled by default.
func WithPeriodBreakdown(enabled bool) Option {
	return func(s *Store) {
		s.periodBreakdown = enabled
	}
}

// WithRecordRetention keeps every EncryptedRecord after it is folded.
// Records are discarded by default.
func WithRecordRetention(enabled bool) Option {
	return func(s *Store) {
		s.retain = enabled
	}
}

// WithPersister writes every change through p before it is committed.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithSampleConcurrency bounds the number of concurrent AddRecord calls
// made by GenerateSampleRecords.
func WithSampleConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.sampleConcurrency = n
		}
	}
}
