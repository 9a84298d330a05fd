// Package service wires the encrypted aggregation store to persistence,
// ingestion workers and idempotency tracking, and implements the
// dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/vinyl/internal/adapters/he"
	"github.com/okian/vinyl/internal/adapters/mq/queue"
	"github.com/okian/vinyl/internal/adapters/mq/worker"
	"github.com/okian/vinyl/internal/adapters/repository"
	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/internal/domain/dedupe"
	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/scoring"
	"github.com/okian/vinyl/internal/domain/types"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// Service owns the lifecycle of every component.
type Service struct {
	mu sync.RWMutex

	hctx     *he.Context
	store    *aggregation.Store
	repo     repository.Store
	ownsRepo bool
	deduper  dedupe.Deduper
	queue    queue.Queue
	pool     *worker.Pool

	workerCount       int
	queueSize         int
	dedupeSize        int
	slotCapacity      int
	preset            he.Preset
	storePath         string
	compressionLevel  int
	periodBreakdown   bool
	retainRecords     bool
	sampleConcurrency int
	classifier        *scoring.Classifier

	started   bool
	stopping  bool
	startedAt time.Time
	logger    logger.Logger
}

// New constructs a Service. Nothing is initialized until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU(),
		queueSize:         10_000,
		dedupeSize:        50_000,
		slotCapacity:      4096,
		preset:            he.DefaultPreset,
		compressionLevel:  3,
		periodBreakdown:   true,
		sampleConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the cryptosystem, restores persisted state and starts
// the workers. A failure leaves the service stopped.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.logger.Info(ctx, "starting aggregation service...")

	repo, owned, err := s.openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && owned {
			_ = repo.Close()
		}
	}()

	hctx, err := he.Initialize(ctx, s.slotCapacity,
		he.WithPreset(s.preset),
		he.WithKeyStore(repo))
	if err != nil {
		return err
	}

	storeOpts := []aggregation.Option{
		aggregation.WithPersister(repo),
		aggregation.WithPeriodBreakdown(s.periodBreakdown),
		aggregation.WithRecordRetention(s.retainRecords),
		aggregation.WithSampleConcurrency(s.sampleConcurrency),
	}
	if s.classifier != nil {
		storeOpts = append(storeOpts, aggregation.WithClassifier(s.classifier))
	}
	store := aggregation.New(hctx, encoder.New(), storeOpts...)

	snap, err := repo.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load persisted state: %w", err)
	}
	if err := store.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restore persisted state: %w", err)
	}

	s.hctx, s.store, s.repo, s.ownsRepo = hctx, store, repo, owned
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q
	s.pool = worker.NewPool(s.workerCount, q, s)
	s.pool.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "aggregation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("preset", string(s.preset)),
		logger.Bool("persistent", s.storePath != "" || !owned),
		logger.String("key_fingerprint", hctx.Fingerprint()))
	return nil
}

func (s *Service) openRepository(ctx context.Context) (repository.Store, bool, error) {
	if s.repo != nil {
		return s.repo, false, nil
	}
	opts := []repository.Option{repository.WithCompressionLevel(s.compressionLevel)}
	if s.storePath == "" {
		repo, err := repository.NewMemoryStore(opts...)
		return repo, true, err
	}
	repo, err := repository.OpenSQLite(ctx, s.storePath, opts...)
	if err != nil {
		return nil, false, fmt.Errorf("open store: %w", err)
	}
	return repo, true, nil
}

// Stop drains the queue and releases the store. Submissions still queued
// when ctx expires are lost.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	pool := s.pool
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping aggregation service...")
	var errs []error
	// Workers still read the store while draining, so the lock is not held.
	if err := pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsRepo {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		s.repo = nil
	}
	s.started, s.stopping = false, false
	s.logger.Info(ctx, "aggregation service stopped")
	return errors.Join(errs...)
}

func (s *Service) aggregates() (*aggregation.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// Submit folds rec synchronously. A non-empty id makes the call idempotent:
// a repeated id reports duplicate and changes nothing.
func (s *Service) Submit(ctx context.Context, id string, rec model.RawRecord) (duplicate bool, err error) {
	store, err := s.aggregates()
	if err != nil {
		return false, err
	}
	if id != "" && s.SeenAndRecord(ctx, id) {
		return true, nil
	}
	if err := store.AddRecord(ctx, rec); err != nil {
		if id != "" {
			s.Unrecord(ctx, id)
		}
		return false, err
	}
	return false, nil
}

// Enqueue validates rec and queues it for the workers. It returns
// queue.ErrFull under backpressure.
func (s *Service) Enqueue(ctx context.Context, id string, rec model.RawRecord) (duplicate bool, err error) {
	if _, err := s.aggregates(); err != nil {
		return false, err
	}
	if err := encoder.Validate(rec); err != nil {
		metrics.RecordRecordRejected("validation")
		return false, err
	}
	if id != "" && s.SeenAndRecord(ctx, id) {
		return true, nil
	}
	if err := s.queue.Enqueue(ctx, model.Submission{ID: id, Record: rec, ReceivedAt: time.Now()}); err != nil {
		if id != "" {
			s.Unrecord(ctx, id)
		}
		return false, err
	}
	return false, nil
}

// Ingest folds a queued submission. A failed submission's id is forgotten
// so the client may retry it.
func (s *Service) Ingest(ctx context.Context, sub model.Submission) error { //nolint:gocritic // hugeParam: matches worker.Ingester
	store, err := s.aggregates()
	if err != nil {
		return err
	}
	if err := store.AddRecord(ctx, sub.Record); err != nil {
		if sub.ID != "" {
			s.Unrecord(ctx, sub.ID)
		}
		return err
	}
	return nil
}

// SeenAndRecord atomically checks and records a submission id.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordDuplicate()
	}
	return seen
}

// Unrecord forgets a submission id.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered submission ids.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Averages returns every populated category's average revenue, highest
// first.
func (s *Service) Averages(ctx context.Context) ([]types.CategoryAverage, error) {
	store, err := s.aggregates()
	if err != nil {
		return nil, err
	}
	avgs, err := store.AllCategoryAverages(ctx)
	if err != nil {
		return nil, err
	}
	return types.RankAverages(avgs), nil
}

// Profile returns the per-field averages of category (and period).
func (s *Service) Profile(ctx context.Context, category, period string) (model.Profile, error) {
	store, err := s.aggregates()
	if err != nil {
		return model.Profile{}, err
	}
	return store.CategoryProfile(ctx, category, period)
}

// Compare positions value against the market average.
func (s *Service) Compare(ctx context.Context, value float64, category, period string) (model.ComparisonResult, error) {
	store, err := s.aggregates()
	if err != nil {
		return model.ComparisonResult{}, err
	}
	return store.CompareAgainstMarket(ctx, value, category, period)
}

// Privacy returns the cleartext metadata summary.
func (s *Service) Privacy(ctx context.Context) (model.PrivacyReport, error) {
	store, err := s.aggregates()
	if err != nil {
		return model.PrivacyReport{}, err
	}
	return store.PrivacyReport(ctx), nil
}

// GenerateSamples folds n random records.
func (s *Service) GenerateSamples(ctx context.Context, n int) (int, error) {
	store, err := s.aggregates()
	if err != nil {
		return 0, err
	}
	return store.GenerateSampleRecords(ctx, n)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"slotCapacity": s.slotCapacity,
		"preset":       string(s.preset),
		"persistent":   s.storePath != "",
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	report := s.store.PrivacyReport(ctx)
	stats["uptimeSeconds"] = int(time.Since(s.startedAt).Seconds())
	stats["queueLength"] = s.queue.Len(ctx)
	stats["processed"] = s.pool.Processed()
	stats["failed"] = s.pool.Failed()
	stats["totalRecords"] = report.TotalRecords
	stats["totalArtists"] = report.TotalArtists
	stats["rememberedIds"] = s.deduper.Size()
	stats["keyFingerprint"] = s.hctx.Fingerprint()
	return stats
}
