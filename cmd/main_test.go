package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/vinyl/internal/adapters/http/api"
	"github.com/okian/vinyl/internal/adapters/http/swagger"
	service "github.com/okian/vinyl/internal/app"
	"github.com/okian/vinyl/internal/config"
	"github.com/okian/vinyl/internal/seed"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			_ = os.Setenv("VINYL_ADDR", ":8080")
			_ = os.Setenv("VINYL_QUEUE_SIZE", "1000")
			_ = os.Setenv("VINYL_WORKER_COUNT", "4")
			defer func() {
				_ = os.Unsetenv("VINYL_ADDR")
				_ = os.Unsetenv("VINYL_QUEUE_SIZE")
				_ = os.Unsetenv("VINYL_WORKER_COUNT")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(service.New(service.FromConfig(cfg)...), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the configured preset is unknown", func() {
			_ = os.Setenv("VINYL_HE_PRESET", "n99")
			defer func() { _ = os.Unsetenv("VINYL_HE_PRESET") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

func TestRouteWiring(t *testing.T) {
	convey.Convey("Given the routes of a service that is not started", t, func() {
		ctx := context.Background()
		svc := service.New()
		mux := http.NewServeMux()
		swagger.Register(ctx, mux)
		api.NewServer(svc, svc).Register(ctx, mux)

		serve := func(method, path string) int {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
			return rec.Code
		}

		convey.Convey("Then health reports unavailable", func() {
			convey.So(serve(http.MethodGet, "/healthz"), convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("And the documentation and metrics are served", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/metrics"), convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/stats"), convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And queries are unavailable", func() {
			convey.So(serve(http.MethodGet, "/averages"), convey.ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestSeedSamples(t *testing.T) {
	convey.Convey("Given a started in-memory service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(16))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		cfg := config.New(ctx)
		cfg.SampleCount = 3
		path, err := seed.SaveFile(ctx, filepath.Join(t.TempDir(), "samples.json"), seed.DefaultSamples())
		convey.So(err, convey.ShouldBeNil)
		cfg.SampleFile = path

		convey.Convey("Then the file and random samples are added", func() {
			convey.So(seedSamples(ctx, cfg, svc), convey.ShouldBeNil)
			report, err := svc.Privacy(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(report.TotalRecords, convey.ShouldEqual, 5)

			convey.Convey("And a second call leaves the populated store alone", func() {
				convey.So(seedSamples(ctx, cfg, svc), convey.ShouldBeNil)
				report, err := svc.Privacy(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(report.TotalRecords, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("Then a missing sample file is reported", func() {
			cfg.SampleFile = filepath.Join(t.TempDir(), "missing.json")
			convey.So(seedSamples(ctx, cfg, svc), convey.ShouldNotBeNil)
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then an update does not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("And the updater returns when its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			convey.So(ctx.Err(), convey.ShouldNotBeNil)
		})
	})
}
