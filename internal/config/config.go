// Package config defines service configuration and its layered loading.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/okian/vinyl/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory ingestion queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the remembered submission ids.
	DedupeSize int `koanf:"dedupe_size"`

	// SlotCapacity is the largest vector a ciphertext accepts.
	SlotCapacity int `koanf:"slot_capacity"`
	// HEPreset names the CKKS parameter set: n13 or n14.
	HEPreset string `koanf:"he_preset"`

	// StorePath is the SQLite file. Empty keeps state in memory only.
	StorePath string `koanf:"store_path"`
	// CompressionLevel is the zstd level of stored payloads.
	CompressionLevel int `koanf:"compression_level"`

	PeriodBreakdown bool `koanf:"period_breakdown"`
	RetainRecords   bool `koanf:"retain_records"`

	// SampleFile, when set, is loaded at startup.
	SampleFile        string `koanf:"sample_file"`
	SampleCount       int    `koanf:"sample_count"`
	SampleConcurrency int    `koanf:"sample_concurrency"`

	// Ratio thresholds of the market comparison.
	ExcellentRatio   float64 `koanf:"excellent_ratio"`
	GoodRatio        float64 `koanf:"good_ratio"`
	AverageRatio     float64 `koanf:"average_ratio"`
	AboveMarketRatio float64 `koanf:"above_market_ratio"`
	AtMarketRatio    float64 `koanf:"at_market_ratio"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "json",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		SlotCapacity:      4096,
		HEPreset:          "n13",
		StorePath:         "",
		CompressionLevel:  3,
		PeriodBreakdown:   true,
		RetainRecords:     false,
		SampleCount:       15,
		SampleConcurrency: 4,
		ExcellentRatio:    1.5,
		GoodRatio:         1.0,
		AverageRatio:      0.7,
		AboveMarketRatio:  1.1,
		AtMarketRatio:     0.9,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case !oneOf(c.LogLevel, "debug", "info", "warn", "error"):
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	case !oneOf(c.LogFormat, "json", "text"):
		return invalid("log_format %q is not one of json, text", c.LogFormat)
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.DedupeSize < 0:
		return invalid("dedupe_size must not be negative, got %d", c.DedupeSize)
	case c.SlotCapacity < len(model.TrackedFields):
		return invalid("slot_capacity must hold at least %d values, got %d", len(model.TrackedFields), c.SlotCapacity)
	case !oneOf(c.HEPreset, "n13", "n14"):
		return invalid("he_preset %q is not one of n13, n14", c.HEPreset)
	case c.CompressionLevel < 1 || c.CompressionLevel > 19:
		return invalid("compression_level must be within 1..19, got %d", c.CompressionLevel)
	case c.SampleCount < 0:
		return invalid("sample_count must not be negative, got %d", c.SampleCount)
	case c.SampleConcurrency < 1:
		return invalid("sample_concurrency must be positive, got %d", c.SampleConcurrency)
	case !(c.ExcellentRatio > c.GoodRatio && c.GoodRatio > c.AverageRatio && c.AverageRatio > 0):
		return invalid("performance ratios must satisfy excellent > good > average > 0")
	case !(c.AboveMarketRatio > c.AtMarketRatio && c.AtMarketRatio > 0):
		return invalid("market ratios must satisfy above > at > 0")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
