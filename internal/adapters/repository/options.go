package repository

import "github.com/okian/vinyl/pkg/logger"

const defaultCompressionLevel = 3

type options struct {
	level  int
	logger logger.Logger
}

// Option configures a Store.
type Option func(*options)

// WithCompressionLevel sets the zstd level (1-19) of stored payloads.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		if level >= 1 && level <= 19 {
			o.level = level
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{level: defaultCompressionLevel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Named("repository")
	}
	return o
}
