package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vinyl/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.SlotCapacity, convey.ShouldEqual, 4096)
			convey.So(cfg.HEPreset, convey.ShouldEqual, "n13")
			convey.So(cfg.PeriodBreakdown, convey.ShouldBeTrue)
			convey.So(cfg.RetainRecords, convey.ShouldBeFalse)
			convey.So(cfg.SampleCount, convey.ShouldEqual, 15)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a valid config", t, func() {
		cfg := config.New(context.Background())

		cases := map[string]func(*config.Config){
			"empty addr":            func(c *config.Config) { c.Addr = "" },
			"unknown log level":     func(c *config.Config) { c.LogLevel = "loud" },
			"unknown log format":    func(c *config.Config) { c.LogFormat = "xml" },
			"zero queue":            func(c *config.Config) { c.QueueSize = 0 },
			"zero workers":          func(c *config.Config) { c.WorkerCount = 0 },
			"negative dedupe":       func(c *config.Config) { c.DedupeSize = -1 },
			"tiny slot capacity":    func(c *config.Config) { c.SlotCapacity = 4 },
			"unknown preset":        func(c *config.Config) { c.HEPreset = "n15" },
			"compression too high":  func(c *config.Config) { c.CompressionLevel = 22 },
			"negative sample count": func(c *config.Config) { c.SampleCount = -3 },
			"zero concurrency":      func(c *config.Config) { c.SampleConcurrency = 0 },
			"unordered performance": func(c *config.Config) { c.GoodRatio = 2 },
			"unordered market":      func(c *config.Config) { c.AtMarketRatio = 1.2 },
		}
		for name, mutate := range cases {
			convey.Convey("It rejects "+name, func() {
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
