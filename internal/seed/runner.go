package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/pkg/logger"
)

// ErrVerification is returned when reported averages disagree with the
// plaintext ones.
var ErrVerification = errors.New("averages verification failed")

// Records assembles the records of a run: the sample file (or the built-in
// samples when no file and no random count is given) plus cfg.Random
// generated ones.
func Records(cfg *Config) ([]model.RawRecord, int, error) {
	var recs []model.RawRecord
	switch {
	case cfg.File != "":
		loaded, err := LoadFile(cfg.File)
		if err != nil {
			return nil, 0, err
		}
		recs = loaded
	case cfg.Random == 0:
		recs = DefaultSamples()
	}
	loaded := len(recs)
	return append(recs, Generate(cfg.Random, 0)...), loaded, nil
}

// Run executes a complete seeding run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("seed")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting vinyl seed",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("file", cfg.File),
		logger.Int("random", cfg.Random),
		logger.Int("workers", cfg.Workers),
		logger.Float64("rate", cfg.Rate),
		logger.Bool("verify", cfg.Verify))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Healthy(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	recs, loaded, err := Records(cfg)
	if err != nil {
		return stats, fmt.Errorf("load records: %w", err)
	}
	stats.Loaded = loaded
	stats.Generated = len(recs) - loaded

	verify := cfg.Verify
	if verify {
		before, err := client.Stats(ctx)
		if err != nil {
			return stats, fmt.Errorf("read stats: %w", err)
		}
		if n, _ := before["totalRecords"].(float64); n > 0 {
			log.Warn(ctx, "service already holds records; skipping verification",
				logger.Int("totalRecords", int(n)))
			verify = false
		}
	}

	report, err := SubmitAll(ctx, client, recs, cfg.Workers, NewLimiter(cfg.Rate, cfg.Burst))
	stats.Submitted = report.Submitted
	stats.Created = report.Created
	stats.Duplicates = report.Duplicates
	stats.Failed = report.Failed
	if err != nil {
		return stats, fmt.Errorf("submission aborted: %w", err)
	}

	if cfg.OutputFile != "" {
		if _, err := SaveFile(ctx, cfg.OutputFile, recs); err != nil {
			log.Warn(ctx, "failed to save records to file", logger.Error(err))
		}
	}

	if verify && report.Failed == 0 {
		reported, err := client.Averages(ctx)
		if err != nil {
			return stats, fmt.Errorf("fetch averages: %w", err)
		}
		mismatches := Verify(PlainAverages(recs), reported, cfg.Tolerance)
		stats.Mismatches = len(mismatches)
		for _, m := range mismatches {
			log.Error(ctx, "average mismatch",
				logger.String("category", m.Category),
				logger.Float64("expected", m.Expected),
				logger.Float64("actual", m.Actual),
				logger.Bool("missing", m.Missing))
		}
		if len(mismatches) > 0 {
			finish(ctx, stats)
			return stats, fmt.Errorf("%w: %d categories", ErrVerification, len(mismatches))
		}
		log.Info(ctx, "averages verified", logger.Int("categories", len(reported)))
	}

	finish(ctx, stats)
	return stats, nil
}

func finish(ctx context.Context, stats *Stats) {
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Created+stats.Duplicates) / float64(stats.Submitted) * percent
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Named("seed").Info(ctx, "final statistics",
		logger.Int("loaded", stats.Loaded),
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("recordsPerSecond", perSecond))
}
