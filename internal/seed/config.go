// Package seed loads, generates and submits sample records, then checks the
// service's decrypted averages against plaintext ones.
package seed

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL    string        // Base URL of the service
	File       string        // Sample file to load; empty means built-in samples
	Random     int           // Number of random records to add to the loaded ones
	Workers    int           // Number of concurrent submitters
	Rate       float64       // Submissions per second; 0 disables the limit
	Burst      int           // Limiter burst
	Timeout    time.Duration // HTTP request timeout
	Tolerance  float64       // Relative tolerance when verifying averages
	OutputFile string        // Where to save the submitted records, if set
	Verify     bool          // Compare GET /averages with plaintext averages
}

// Stats holds run statistics.
type Stats struct {
	Loaded     int
	Generated  int
	Submitted  int
	Created    int
	Duplicates int
	Failed     int
	Mismatches int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// Outcome is the result of one submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)
