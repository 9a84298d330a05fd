package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/vinyl/internal/seed"
	"github.com/okian/vinyl/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL   = flag.String("url", seed.DefaultBaseURL, "Base URL of the service")
		file      = flag.String("file", "", "Sample file (.json, .yaml or .yml)")
		random    = flag.Int("random", 0, "Number of random records to generate in addition")
		workers   = flag.Int("workers", seed.DefaultWorkers, "Number of concurrent submitters")
		perSecond = flag.Float64("rate", seed.DefaultRate, "Submissions per second, 0 for unlimited")
		burst     = flag.Int("burst", seed.DefaultBurst, "Rate limiter burst")
		timeout   = flag.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		verify    = flag.Bool("verify", true, "Compare GET /averages with plaintext averages")
		tolerance = flag.Float64("tolerance", seed.DefaultTolerance, "Relative tolerance for verification")
		output    = flag.String("output", "", "Save the submitted records to this file")
		logFile   = flag.String("log", "", "Also write logs to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return 0
	}

	closer, err := seed.SetupLogging(*logFile, *logFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := &seed.Config{
		BaseURL:    *baseURL,
		File:       *file,
		Random:     *random,
		Workers:    *workers,
		Rate:       *perSecond,
		Burst:      *burst,
		Timeout:    *timeout,
		Tolerance:  *tolerance,
		OutputFile: *output,
		Verify:     *verify,
	}
	if _, err := seed.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "seed failed", logger.Error(err))
		return 1
	}
	return 0
}
