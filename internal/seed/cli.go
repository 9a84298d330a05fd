package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/vinyl/pkg/logger"
)

// SetupLogging initializes the global logger. When logFile is set, output
// goes to stdout and the file.
func SetupLogging(logFile, format string) (io.Closer, error) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = io.NopCloser(nil)
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission) //nolint:gosec // operator supplied
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}
	if err := logger.Init(logger.WithOutput(out), logger.WithFormat(format)); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return closer, nil
}

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Vinyl Seed Tool
===============

Submits sample records to a running vinyl service and checks the decrypted
category averages against plaintext ones.

Usage:
  go run ./cmd/seed [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -file string
        Sample file (.json, .yaml or .yml); the built-in samples when empty
  -random int
        Number of random records to generate in addition
  -workers int
        Number of concurrent submitters (default 4)
  -rate float
        Submissions per second, 0 for unlimited (default 50)
  -burst int
        Rate limiter burst (default 10)
  -timeout duration
        HTTP request timeout (default 30s)
  -verify
        Compare GET /averages with plaintext averages (default true)
  -tolerance float
        Relative tolerance for verification (default 0.01)
  -output string
        Save the submitted records to this file
  -log string
        Also write logs to this file
  -log-format string
        text or json (default "text")
  -help
        Show this help message

Examples:
  # Seed the two built-in sample artists
  go run ./cmd/seed

  # Load a file and add 500 random records at 200/s
  go run ./cmd/seed -file samples.yaml -random 500 -rate 200
`)
}
