package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure. The message names the
	// offending key.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrLoadConfig wraps failures reading the YAML file or the VINYL_*
	// environment.
	ErrLoadConfig = errors.New("load config failed")
)
