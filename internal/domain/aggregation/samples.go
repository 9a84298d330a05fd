package aggregation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// RandomRecord draws a valid record: every numeric field uniform within its
// declared range, category and period uniform over their label sets.
func RandomRecord(r *rand.Rand) model.RawRecord {
	rec := model.RawRecord{
		ArtistID: "artist-" + uuid.NewString(),
		Category: string(model.Categories[r.IntN(len(model.Categories))]),
		Period:   string(model.Periods[r.IntN(len(model.Periods))]),
	}
	for _, f := range model.TrackedFields {
		rg, _ := encoder.RangeOf(f)
		rec.Set(f, rg.Min+r.Float64()*(rg.Max-rg.Min))
	}
	return rec
}

// GenerateSampleRecords synthesizes n random records and adds each through
// AddRecord. It returns how many were added; on error the remaining records
// are abandoned.
func (s *Store) GenerateSampleRecords(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // sample data, not secrets
	recs := make([]model.RawRecord, n)
	for i := range recs {
		recs[i] = RandomRecord(r)
	}

	var added atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sampleConcurrency)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			if err := s.AddRecord(gctx, rec); err != nil {
				return fmt.Errorf("sample for %s: %w", rec.ArtistID, err)
			}
			added.Add(1)
			return nil
		})
	}
	err := g.Wait()

	count := int(added.Load())
	metrics.RecordSamplesGenerated(count)
	s.logger.Info(ctx, "sample records generated",
		logger.Int("requested", n),
		logger.Int("added", count))
	return count, err
}
