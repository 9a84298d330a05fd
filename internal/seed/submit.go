package seed

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/pkg/logger"
)

// Sink accepts one record under an idempotency id. Both the HTTP Client and
// the in-process service satisfy it.
type Sink interface {
	Submit(ctx context.Context, id string, rec model.RawRecord) (duplicate bool, err error)
}

// Report counts submission outcomes.
type Report struct {
	Submitted  int
	Created    int
	Duplicates int
	Failed     int
}

// namespace scopes seed submission ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/okian/vinyl/seed"))

// SubmissionID derives a stable id from a record and its position, so that
// re-running a seed against the same service is a no-op.
func SubmissionID(index int, rec model.RawRecord) string { //nolint:gocritic // hugeParam
	data, _ := json.Marshal(rec)
	return uuid.NewSHA1(namespace, append([]byte(strconv.Itoa(index)+":"), data...)).String()
}

// SubmitAll sends recs to sink with up to workers concurrent calls. A nil
// limiter means no rate limit. Individual failures are counted, not
// returned; only context cancellation aborts the run.
func SubmitAll(ctx context.Context, sink Sink, recs []model.RawRecord, workers int, limiter *rate.Limiter) (Report, error) {
	if workers < 1 {
		workers = 1
	}
	log := logger.Named("seed")

	var created, duplicates, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range recs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}
			rec := recs[i]
			dup, err := sink.Submit(gctx, SubmissionID(i, rec), rec)
			switch {
			case err != nil:
				failed.Add(1)
				log.Warn(gctx, "submission failed",
					logger.Int("index", i),
					logger.String("artist_id", rec.ArtistID),
					logger.Error(err))
			case dup:
				duplicates.Add(1)
			default:
				created.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report := Report{
		Created:    int(created.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
	}
	report.Submitted = report.Created + report.Duplicates + report.Failed
	log.Info(ctx, "submission completed",
		logger.Int("submitted", report.Submitted),
		logger.Int("created", report.Created),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("failed", report.Failed))
	return report, err
}

// NewLimiter returns a limiter for perSecond submissions, or nil when
// perSecond is not positive.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
