package worker

import (
	"github.com/okian/vinyl/pkg/logger"
)

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName labels the worker in logs. Pool workers are named by index.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger replaces the worker logger. A nil logger is ignored.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l == nil {
			return
		}
		w.logger = l
	}
}
