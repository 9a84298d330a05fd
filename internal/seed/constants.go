package seed

import "time"

// Defaults applied by the seed command.
const (
	DefaultBaseURL   = "http://localhost:9080"
	DefaultWorkers   = 4
	DefaultRate      = 50.0
	DefaultBurst     = 10
	DefaultTimeout   = 30 * time.Second
	DefaultTolerance = 0.01
)

const (
	filePermission = 0o600
	dirPermission  = 0o750
	percent        = 100
)
