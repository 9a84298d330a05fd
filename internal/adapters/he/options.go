package he

import (
	"context"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/okian/vinyl/pkg/logger"
)

// KeyStore persists key material between restarts. LoadKeys returns nil
// bytes and a nil error when nothing has been stored yet.
type KeyStore interface {
	LoadKeys(ctx context.Context) ([]byte, error)
	SaveKeys(ctx context.Context, payload []byte) error
}

// Bootstrapper refreshes the noise budget of a ciphertext. Implementations
// need not be safe for concurrent use; the Context serializes calls.
type Bootstrapper interface {
	Bootstrap(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error)
}

// Option applies a configuration option to the Context.
type Option func(*Context)

// WithPreset selects the CKKS parameter set.
func WithPreset(p Preset) Option {
	return func(c *Context) {
		if p != "" {
			c.preset = p
		}
	}
}

// WithKeyStore loads keys from, and saves generated keys to, ks.
func WithKeyStore(ks KeyStore) Option {
	return func(c *Context) {
		c.keyStore = ks
	}
}

// WithBootstrapper installs the noise refresh used when a ciphertext runs
// out of levels.
func WithBootstrapper(b Bootstrapper) Option {
	return func(c *Context) {
		c.bootstrapper = b
	}
}

// WithLogger sets a custom logger for the context.
func WithLogger(l logger.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}
