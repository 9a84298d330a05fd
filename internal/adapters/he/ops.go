package he

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"

	"github.com/okian/vinyl/pkg/metrics"
)

// Ciphertext is an encrypted vector of reals. Values are immutable; every
// operation returns a new Ciphertext.
type Ciphertext struct {
	ct *rlwe.Ciphertext
}

// Level is the number of rescalings the ciphertext can still absorb.
func (c *Ciphertext) Level() int { return c.ct.Level() }

// Scale is the current CKKS scaling factor.
func (c *Ciphertext) Scale() float64 { return c.ct.Scale.Float64() }

// maxExactInt bounds scalars multiplied without consuming a level.
const maxExactInt = 1 << 53

func alive(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return nil
}

// run borrows a toolkit, checks the deadline on both sides of fn and records
// the latency of the operation.
func run[T any](ctx context.Context, c *Context, op string, fn func(t *toolkit) (T, error)) (T, error) {
	var zero T
	if err := alive(ctx, op); err != nil {
		metrics.RecordHEError(op)
		return zero, err
	}

	start := time.Now()
	t := c.acquire()
	out, err := fn(t)
	c.release(t)
	if err != nil {
		metrics.RecordHEError(op)
		return zero, err
	}
	if err := alive(ctx, op); err != nil {
		metrics.RecordHEError(op)
		return zero, err
	}
	metrics.RecordHEOperation(op, float64(time.Since(start).Microseconds())/1000)
	return out, nil
}

func valid(op string, cts ...*Ciphertext) error {
	for _, c := range cts {
		if c == nil || c.ct == nil {
			return fmt.Errorf("%w: %s: nil operand", ErrInvalidCiphertext, op)
		}
	}
	return nil
}

// Encrypt packs vec into a fresh ciphertext, zero-padding the unused slots.
func (c *Context) Encrypt(ctx context.Context, vec []float64) (*Ciphertext, error) {
	if len(vec) > c.slotCapacity {
		metrics.RecordHEError("encrypt")
		return nil, fmt.Errorf("%w: %d values, capacity %d", ErrCapacityExceeded, len(vec), c.slotCapacity)
	}
	return run(ctx, c, "encrypt", func(t *toolkit) (*Ciphertext, error) {
		values := make([]float64, c.params.MaxSlots())
		copy(values, vec)
		pt := ckks.NewPlaintext(c.params, c.params.MaxLevel())
		if err := t.ecd.Encode(values, pt); err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		ct, err := t.enc.EncryptNew(pt)
		if err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
		return &Ciphertext{ct: ct}, nil
	})
}

// Decrypt returns the real parts of the first count slots.
func (c *Context) Decrypt(ctx context.Context, ct *Ciphertext, count int) ([]float64, error) {
	if err := valid("decrypt", ct); err != nil {
		return nil, err
	}
	if count < 0 || count > c.slotCapacity {
		return nil, fmt.Errorf("%w: %d values requested, capacity %d", ErrCapacityExceeded, count, c.slotCapacity)
	}
	return run(ctx, c, "decrypt", func(t *toolkit) ([]float64, error) {
		pt := t.dec.DecryptNew(ct.ct)
		values := make([]float64, c.params.MaxSlots())
		if err := t.ecd.Decode(pt, values); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return values[:count:count], nil
	})
}

// Add returns a + b slot-wise.
func (c *Context) Add(ctx context.Context, a, b *Ciphertext) (*Ciphertext, error) {
	if err := valid("add", a, b); err != nil {
		return nil, err
	}
	return run(ctx, c, "add", func(t *toolkit) (*Ciphertext, error) {
		out, err := t.eval.AddNew(a.ct, b.ct)
		if err != nil {
			return nil, fmt.Errorf("add: %w", err)
		}
		return &Ciphertext{ct: out}, nil
	})
}

// AddConstant returns a + k in every slot.
func (c *Context) AddConstant(ctx context.Context, a *Ciphertext, k float64) (*Ciphertext, error) {
	if err := valid("add_constant", a); err != nil {
		return nil, err
	}
	return run(ctx, c, "add_constant", func(t *toolkit) (*Ciphertext, error) {
		out, err := t.eval.AddNew(a.ct, k)
		if err != nil {
			return nil, fmt.Errorf("add constant: %w", err)
		}
		return &Ciphertext{ct: out}, nil
	})
}

// Multiply returns a * b slot-wise, relinearized and rescaled.
func (c *Context) Multiply(ctx context.Context, a, b *Ciphertext) (*Ciphertext, error) {
	if err := valid("multiply", a, b); err != nil {
		return nil, err
	}
	return run(ctx, c, "multiply", func(t *toolkit) (*Ciphertext, error) {
		x, err := c.ensureLevel(a.ct)
		if err != nil {
			return nil, err
		}
		y, err := c.ensureLevel(b.ct)
		if err != nil {
			return nil, err
		}
		out, err := t.eval.MulRelinNew(x, y)
		if err != nil {
			return nil, fmt.Errorf("multiply: %w", err)
		}
		if err := t.eval.Rescale(out, out); err != nil {
			return nil, fmt.Errorf("rescale: %w", err)
		}
		return &Ciphertext{ct: out}, nil
	})
}

// MultiplyConstant returns a * k in every slot. Integral constants keep the
// level; any other constant consumes one.
func (c *Context) MultiplyConstant(ctx context.Context, a *Ciphertext, k float64) (*Ciphertext, error) {
	if err := valid("multiply_constant", a); err != nil {
		return nil, err
	}
	return run(ctx, c, "multiply_constant", func(t *toolkit) (*Ciphertext, error) {
		return c.mulConst(t, a.ct, k)
	})
}

func (c *Context) mulConst(t *toolkit, in *rlwe.Ciphertext, k float64) (*Ciphertext, error) {
	if k == math.Trunc(k) && math.Abs(k) < maxExactInt {
		out, err := t.eval.MulNew(in, int64(k))
		if err != nil {
			return nil, fmt.Errorf("multiply constant: %w", err)
		}
		return &Ciphertext{ct: out}, nil
	}

	x, err := c.ensureLevel(in)
	if err != nil {
		return nil, err
	}
	out, err := t.eval.MulNew(x, k)
	if err != nil {
		return nil, fmt.Errorf("multiply constant: %w", err)
	}
	if err := t.eval.Rescale(out, out); err != nil {
		return nil, fmt.Errorf("rescale: %w", err)
	}
	return &Ciphertext{ct: out}, nil
}

// Sum folds list with Add from left to right.
func (c *Context) Sum(ctx context.Context, list []*Ciphertext) (*Ciphertext, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: sum", ErrEmptyInput)
	}
	if err := valid("sum", list...); err != nil {
		return nil, err
	}
	return run(ctx, c, "sum", func(t *toolkit) (*Ciphertext, error) {
		return c.fold(t, list)
	})
}

func (c *Context) fold(t *toolkit, list []*Ciphertext) (*Ciphertext, error) {
	acc := list[0].ct.CopyNew()
	for _, next := range list[1:] {
		var err error
		if acc, err = t.eval.AddNew(acc, next.ct); err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
	}
	return &Ciphertext{ct: acc}, nil
}

// Average is Sum(list) multiplied by 1/len(list).
func (c *Context) Average(ctx context.Context, list []*Ciphertext) (*Ciphertext, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: average", ErrEmptyInput)
	}
	if err := valid("average", list...); err != nil {
		return nil, err
	}
	return run(ctx, c, "average", func(t *toolkit) (*Ciphertext, error) {
		sum, err := c.fold(t, list)
		if err != nil {
			return nil, err
		}
		return c.mulConst(t, sum.ct, 1/float64(len(list)))
	})
}

// ensureLevel returns ct unchanged while it can absorb a rescale, otherwise
// a refreshed copy from the bootstrapper.
func (c *Context) ensureLevel(ct *rlwe.Ciphertext) (*rlwe.Ciphertext, error) {
	if ct.Level() >= 1 {
		return ct, nil
	}
	if c.bootstrapper == nil {
		return nil, fmt.Errorf("%w: level %d", ErrNoiseBudgetExhausted, ct.Level())
	}

	c.refreshMu.Lock()
	out, err := c.bootstrapper.Bootstrap(ct)
	c.refreshMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: bootstrap: %v", ErrNoiseBudgetExhausted, err)
	}
	if out == nil || out.Level() < 1 {
		return nil, fmt.Errorf("%w: bootstrap returned no usable level", ErrNoiseBudgetExhausted)
	}
	metrics.RecordHERefresh()
	return out, nil
}

// MarshalCiphertext serializes ct in lattigo's binary format.
func (c *Context) MarshalCiphertext(ct *Ciphertext) ([]byte, error) {
	if err := valid("marshal", ct); err != nil {
		return nil, err
	}
	data, err := ct.ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", ErrInvalidCiphertext, err)
	}
	return data, nil
}

// UnmarshalCiphertext restores a ciphertext produced by MarshalCiphertext
// under the same parameters.
func (c *Context) UnmarshalCiphertext(data []byte) (out *Ciphertext, err error) {
	// lattigo sizes its buffers from the payload and panics on garbage.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: unmarshal: %v", ErrInvalidCiphertext, r)
		}
	}()

	// lattigo trusts the length prefixes inside the payload; a truncated or
	// damaged one can exhaust the stack before any error surfaces.
	lvl, ok := c.wireSizes[len(data)]
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes is not a ciphertext under these parameters", ErrInvalidCiphertext, len(data))
	}
	if err := c.checkLayout(data, lvl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrInvalidCiphertext, err)
	}
	if ct.MetaData == nil || len(ct.Value) != 2 || ct.Level() != lvl || ct.Value[0].N() != c.params.N() {
		return nil, fmt.Errorf("%w: parameters do not match context", ErrInvalidCiphertext)
	}
	return &Ciphertext{ct: ct}, nil
}

// checkLayout verifies the length prefixes of a serialized degree-one
// ciphertext at level lvl: metadata flag, then two polynomials of lvl+1
// rows of N coefficients each.
func (c *Context) checkLayout(data []byte, lvl int) error {
	if len(data) == 0 || data[0] != 1 {
		return fmt.Errorf("metadata missing")
	}
	off := 1 + rlwe.MetaData{}.BinarySize()
	expect := func(what string, want int) error {
		if off+8 > len(data) {
			return fmt.Errorf("%s: payload ends at %d", what, off)
		}
		got := binary.LittleEndian.Uint64(data[off:])
		off += 8
		if got != uint64(want) {
			return fmt.Errorf("%s: got %d, want %d", what, got, want)
		}
		return nil
	}

	if err := expect("polynomials", 2); err != nil {
		return err
	}
	for range 2 {
		if err := expect("rows", lvl+1); err != nil {
			return err
		}
		for range lvl + 1 {
			if err := expect("coefficients", c.params.N()); err != nil {
				return err
			}
			off += c.params.N() * 8
		}
	}
	if off != len(data) {
		return fmt.Errorf("layout covers %d of %d bytes", off, len(data))
	}
	return nil
}
