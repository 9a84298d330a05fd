package service

import (
	"github.com/okian/vinyl/internal/adapters/he"
	"github.com/okian/vinyl/internal/adapters/repository"
	"github.com/okian/vinyl/internal/config"
	"github.com/okian/vinyl/internal/domain/scoring"
	"github.com/okian/vinyl/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered submission ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSlotCapacity sets the largest vector a ciphertext accepts.
func WithSlotCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slotCapacity = n
		}
	}
}

// WithPreset selects the CKKS parameter set.
func WithPreset(p he.Preset) Option {
	return func(s *Service) {
		if p != "" {
			s.preset = p
		}
	}
}

// WithStorePath persists state to a SQLite file at path. Without it state
// lives in memory.
func WithStorePath(path string) Option {
	return func(s *Service) {
		s.storePath = path
	}
}

// WithCompressionLevel sets the zstd level of persisted payloads.
func WithCompressionLevel(level int) Option {
	return func(s *Service) {
		s.compressionLevel = level
	}
}

// WithRepository uses repo instead of opening one. The caller keeps
// ownership: Stop does not close it.
func WithRepository(repo repository.Store) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithPeriodBreakdown toggles the per-period accumulators.
func WithPeriodBreakdown(enabled bool) Option {
	return func(s *Service) {
		s.periodBreakdown = enabled
	}
}

// WithRecordRetention keeps every encrypted contribution.
func WithRecordRetention(enabled bool) Option {
	return func(s *Service) {
		s.retainRecords = enabled
	}
}

// WithSampleConcurrency bounds concurrent sample generation.
func WithSampleConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sampleConcurrency = n
		}
	}
}

// WithClassifier sets the market comparison thresholds.
func WithClassifier(c *scoring.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig translates cfg into service options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithSlotCapacity(cfg.SlotCapacity),
		WithPreset(he.Preset(cfg.HEPreset)),
		WithStorePath(cfg.StorePath),
		WithCompressionLevel(cfg.CompressionLevel),
		WithPeriodBreakdown(cfg.PeriodBreakdown),
		WithRecordRetention(cfg.RetainRecords),
		WithSampleConcurrency(cfg.SampleConcurrency),
		WithClassifier(scoring.NewClassifier(
			scoring.WithPerformanceThresholds(cfg.ExcellentRatio, cfg.GoodRatio, cfg.AverageRatio),
			scoring.WithPositionThresholds(cfg.AboveMarketRatio, cfg.AtMarketRatio),
		)),
	}
}
