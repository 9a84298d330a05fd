// Package dedupe tracks submission ids so a retried upload is folded into
// the aggregates at most once.
package dedupe

import (
	"context"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 50_000

// Deduper records seen submission ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded, and records it
	// if not. The check and the insert are atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a submission which failed after being
	// recorded can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps ids in insertion order and evicts the oldest once
// maxSize is reached. Lookups do not refresh an id's position.
type inMemoryDeduper struct {
	maxSize int
	seen    *lru.Cache[string, struct{}]
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	size := d.maxSize
	if size <= 0 {
		size = math.MaxInt32
	}
	// lru.New only fails on a non-positive size.
	d.seen, _ = lru.New[string, struct{}](size)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.seen.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Remove(id)
}

func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.Len())
}
