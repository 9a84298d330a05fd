// Package he wraps CKKS approximate homomorphic encryption behind a small,
// concurrency-safe API: a Context holds the parameters and keys, and every
// arithmetic operation returns a new Ciphertext.
package he

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// Context is an initialized CKKS context. It is safe for concurrent use.
type Context struct {
	preset       Preset
	keyStore     KeyStore
	bootstrapper Bootstrapper
	logger       logger.Logger

	params       ckks.Parameters
	slotCapacity int
	keys         keySet
	evk          *rlwe.MemEvaluationKeySet
	fingerprint  string

	// wireSizes maps each valid serialized ciphertext length to its level.
	wireSizes map[int]int

	// lattigo encoders and evaluators carry scratch buffers; each goroutine
	// borrows its own set from the pool.
	tools sync.Pool

	refreshMu sync.Mutex
}

type toolkit struct {
	ecd  *ckks.Encoder
	enc  *rlwe.Encryptor
	dec  *rlwe.Decryptor
	eval *ckks.Evaluator
}

// Initialize builds a CKKS context that can hold vectors of up to
// slotCapacity values. Keys are restored from the configured KeyStore when
// present, otherwise generated and saved to it.
func Initialize(ctx context.Context, slotCapacity int, opts ...Option) (*Context, error) {
	start := time.Now()
	c := &Context{preset: DefaultPreset}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("he")
	}

	lit, err := parametersLiteral(c.preset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextFailure, err)
	}
	if c.params, err = ckks.NewParametersFromLiteral(lit); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrContextFailure, err)
	}
	if slotCapacity <= 0 || slotCapacity > c.params.MaxSlots() {
		return nil, fmt.Errorf("%w: slot capacity %d outside 1..%d", ErrContextFailure, slotCapacity, c.params.MaxSlots())
	}
	c.slotCapacity = slotCapacity
	c.wireSizes = wireSizes(c.params)

	keys, restored, err := loadOrGenerate(ctx, c.keyStore, c.params, c.preset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextFailure, err)
	}
	c.keys = keys
	c.evk = rlwe.NewMemEvaluationKeySet(keys.rlk)
	if c.fingerprint, err = fingerprint(keys.pk); err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %v", ErrContextFailure, err)
	}

	c.tools.New = func() any {
		return &toolkit{
			ecd:  ckks.NewEncoder(c.params),
			enc:  rlwe.NewEncryptor(c.params, c.keys.pk),
			dec:  rlwe.NewDecryptor(c.params, c.keys.sk),
			eval: ckks.NewEvaluator(c.params, c.evk),
		}
	}

	elapsed := time.Since(start)
	metrics.UpdateHESetupDuration(elapsed)
	c.logger.Info(ctx, "homomorphic context ready",
		logger.String("preset", string(c.preset)),
		logger.Int("log_n", c.params.LogN()),
		logger.Int("max_slots", c.params.MaxSlots()),
		logger.Int("max_level", c.params.MaxLevel()),
		logger.Bool("keys_restored", restored),
		logger.String("fingerprint", c.fingerprint),
		logger.Duration("elapsed", elapsed))
	return c, nil
}

// wireSizes computes the serialized length of a degree-one ciphertext at
// every level. Lengths are fixed per level, so any other payload is damaged.
func wireSizes(params ckks.Parameters) map[int]int {
	sizes := make(map[int]int, params.MaxLevel()+1)
	for lvl := 0; lvl <= params.MaxLevel(); lvl++ {
		sizes[rlwe.NewCiphertext(params, 1, lvl).BinarySize()] = lvl
	}
	return sizes
}

// SlotCapacity is the maximum vector length accepted by Encrypt.
func (c *Context) SlotCapacity() int { return c.slotCapacity }

// MaxLevel is the level of a freshly encrypted ciphertext.
func (c *Context) MaxLevel() int { return c.params.MaxLevel() }

// Preset reports the parameter set in use.
func (c *Context) Preset() Preset { return c.preset }

// Fingerprint identifies the public key. Ciphertexts produced under one
// fingerprint cannot be combined with those of another.
func (c *Context) Fingerprint() string { return c.fingerprint }

func (c *Context) acquire() *toolkit {
	return c.tools.Get().(*toolkit)
}

func (c *Context) release(t *toolkit) {
	c.tools.Put(t)
}
