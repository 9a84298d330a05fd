// Package aggregation folds encrypted contributions into per-category
// running sums and answers statistical queries by decrypting aggregates
// only. Individual contributions are never decrypted.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vinyl/internal/adapters/he"
	"github.com/okian/vinyl/internal/domain/encoder"
	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/scoring"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// revenueScale maps revenue onto its contribution slot. Revenue is scaled
// directly rather than through the encoder's range table.
const revenueScale = 1e8

// Cryptosystem is the part of the homomorphic context the store needs.
type Cryptosystem interface {
	Encrypt(ctx context.Context, vec []float64) (*he.Ciphertext, error)
	Decrypt(ctx context.Context, ct *he.Ciphertext, count int) ([]float64, error)
	Add(ctx context.Context, a, b *he.Ciphertext) (*he.Ciphertext, error)
	MarshalCiphertext(ct *he.Ciphertext) ([]byte, error)
	UnmarshalCiphertext(data []byte) (*he.Ciphertext, error)
	Fingerprint() string
}

// EncryptedRecord is one folded contribution: a packed ciphertext in
// model.TrackedFields slot order plus its cleartext metadata.
type EncryptedRecord struct {
	ID           string
	Contribution *he.Ciphertext
	Present      model.FieldSet
	Metadata     model.Metadata
}

// cell is one accumulator. A cell with count zero is absent: it exists in
// the arena only because a fold targeting it is in flight or failed.
type cell struct {
	mu       sync.Mutex
	key      string
	category string
	period   string
	sum      *he.Ciphertext
	count    int
	present  []int
}

func newCell(key, category, period string) *cell {
	return &cell{key: key, category: category, period: period, present: make([]int, len(model.TrackedFields))}
}

func cellKey(category, period string) string {
	if period == "" {
		return category
	}
	return category + "|" + period
}

// Store owns the accumulators and the metadata table.
type Store struct {
	he                Cryptosystem
	encoder           *encoder.Encoder
	classifier        *scoring.Classifier
	persister         Persister
	logger            logger.Logger
	periodBreakdown   bool
	retain            bool
	sampleConcurrency int

	cellsMu sync.RWMutex
	cells   map[string]*cell
	active  atomic.Int64

	artistMu    sync.Mutex
	artistLocks map[string]*artistLock

	metaMu         sync.RWMutex
	contributors   map[string]*Contributor
	totalRecords   int
	categoryCounts map[string]int
	periodCounts   map[string]int
	records        []EncryptedRecord
}

// New creates a Store over the given cryptosystem and encoder.
func New(hctx Cryptosystem, enc *encoder.Encoder, opts ...Option) *Store {
	s := &Store{
		he:                hctx,
		encoder:           enc,
		periodBreakdown:   true,
		sampleConcurrency: defaultSampleConcurrency,
		artistLocks:       make(map[string]*artistLock),
		cells:             make(map[string]*cell),
		contributors:      make(map[string]*Contributor),
		categoryCounts:    make(map[string]int),
		periodCounts:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.encoder == nil {
		s.encoder = encoder.New()
	}
	if s.classifier == nil {
		s.classifier = scoring.NewClassifier()
	}
	if s.logger == nil {
		s.logger = logger.Named("aggregation")
	}
	return s
}

// contribution lays out enc in model.TrackedFields slot order.
func contribution(rec model.RawRecord, enc encoder.Encoded) []float64 {
	vec := make([]float64, len(model.TrackedFields))
	for i, f := range model.TrackedFields {
		vec[i] = enc.Normalized(f)
	}
	vec[model.FieldIndex(model.FieldRevenue)] = *rec.Revenue / revenueScale
	return vec
}

// touched returns the sorted keys of the accumulators a record folds into.
func (s *Store) touched(category, period string) []string {
	keys := []string{cellKey(category, "")}
	if s.periodBreakdown {
		keys = append(keys, cellKey(category, period))
	}
	sort.Strings(keys)
	return keys
}

// cellsFor returns the cells for keys, creating missing ones.
func (s *Store) cellsFor(keys []string, category, period string) []*cell {
	out := make([]*cell, len(keys))
	s.cellsMu.RLock()
	missing := false
	for i, k := range keys {
		out[i] = s.cells[k]
		missing = missing || out[i] == nil
	}
	s.cellsMu.RUnlock()
	if !missing {
		return out
	}

	s.cellsMu.Lock()
	defer s.cellsMu.Unlock()
	for i, k := range keys {
		c, ok := s.cells[k]
		if !ok {
			p := ""
			if k != category {
				p = period
			}
			c = newCell(k, category, p)
			s.cells[k] = c
		}
		out[i] = c
	}
	return out
}

func (s *Store) lookup(key string) *cell {
	s.cellsMu.RLock()
	defer s.cellsMu.RUnlock()
	return s.cells[key]
}

// AddRecord validates, encrypts and folds raw into its accumulators. On any
// failure no accumulator and no metadata is changed.
func (s *Store) AddRecord(ctx context.Context, raw model.RawRecord) error {
	start := time.Now()
	if err := encoder.Validate(raw); err != nil {
		metrics.RecordRecordRejected("validation")
		return err
	}

	enc := s.encoder.Encode(raw)
	ct, err := s.he.Encrypt(ctx, contribution(raw, enc))
	if err != nil {
		metrics.RecordRecordRejected("encrypt")
		return fmt.Errorf("encrypt contribution: %w", err)
	}
	rec := EncryptedRecord{ID: uuid.NewString(), Contribution: ct, Present: enc.Present, Metadata: enc.Metadata}

	keys := s.touched(raw.Category, raw.Period)
	cells := s.cellsFor(keys, raw.Category, raw.Period)
	for _, c := range cells {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	sums := make([]*he.Ciphertext, len(cells))
	for i, c := range cells {
		if c.sum == nil {
			sums[i] = ct
			continue
		}
		if sums[i], err = s.he.Add(ctx, c.sum, ct); err != nil {
			metrics.RecordRecordRejected("fold")
			return fmt.Errorf("fold into %s: %w", c.key, err)
		}
	}

	// Records of one artist serialize here so that each persisted
	// contributor row extends the previous one. Other artists proceed.
	defer s.lockArtist(rec.Metadata.ArtistID)()

	s.metaMu.RLock()
	contributor := s.nextContributor(rec.Metadata)
	s.metaMu.RUnlock()

	if s.persister != nil {
		if err := s.persist(ctx, cells, sums, rec, contributor); err != nil {
			metrics.RecordRecordRejected("persist")
			s.logger.Warn(ctx, "record not persisted, aggregates unchanged",
				logger.String("artist_id", rec.Metadata.ArtistID),
				logger.Error(err))
			return err
		}
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	for i, c := range cells {
		if c.count == 0 {
			s.active.Add(1)
		}
		c.sum = sums[i]
		c.count++
		for j, f := range model.TrackedFields {
			if rec.Present.Has(f) {
				c.present[j]++
			}
		}
	}
	s.commitMetadata(contributor, rec)

	metrics.RecordRecordAdded()
	metrics.UpdateContributors(len(s.contributors))
	metrics.UpdateAccumulators(int(s.active.Load()))
	s.logger.Debug(ctx, "record folded",
		logger.String("record_id", rec.ID),
		logger.String("category", raw.Category),
		logger.String("period", raw.Period),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

// nextContributor returns a copy of the artist's entry with md appended.
// Caller holds metaMu and the artist lock.
func (s *Store) nextContributor(md model.Metadata) Contributor {
	next := Contributor{ArtistID: md.ArtistID}
	if cur, ok := s.contributors[md.ArtistID]; ok {
		next.Uploads = make([]model.Metadata, 0, len(cur.Uploads)+1)
		next.Uploads = append(next.Uploads, cur.Uploads...)
	}
	next.Uploads = append(next.Uploads, md)
	return next
}

// commitMetadata installs contributor and counts rec. Caller holds metaMu.
func (s *Store) commitMetadata(contributor Contributor, rec EncryptedRecord) {
	s.contributors[contributor.ArtistID] = &contributor
	s.totalRecords++
	s.categoryCounts[rec.Metadata.Category]++
	s.periodCounts[rec.Metadata.Period]++
	if s.retain {
		s.records = append(s.records, rec)
	}
}

func (s *Store) persist(ctx context.Context, cells []*cell, sums []*he.Ciphertext, rec EncryptedRecord, contributor Contributor) error {
	change := Change{Fingerprint: s.he.Fingerprint(), Contributor: contributor}
	for i, c := range cells {
		state, err := s.cellState(c, sums[i], c.count+1, rec.Present)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		change.Cells = append(change.Cells, state)
	}
	if s.retain {
		data, err := s.he.MarshalCiphertext(rec.Contribution)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		change.Record = &RecordState{ID: rec.ID, Contribution: data, Present: rec.Present, Metadata: rec.Metadata}
	}

	if err := s.persister.SaveCells(ctx, change); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// cellState serializes c as it will be once sum and the fields in extra are
// committed. Caller holds c.mu.
func (s *Store) cellState(c *cell, sum *he.Ciphertext, count int, extra model.FieldSet) (CellState, error) {
	data, err := s.he.MarshalCiphertext(sum)
	if err != nil {
		return CellState{}, err
	}
	present := make(map[model.Field]int, len(model.TrackedFields))
	for j, f := range model.TrackedFields {
		n := c.present[j]
		if extra.Has(f) {
			n++
		}
		if n > 0 {
			present[f] = n
		}
	}
	return CellState{Key: c.key, Category: c.category, Period: c.period, Sum: data, Count: count, Present: present}, nil
}

// artistLock serializes the records of one artist. Entries live only while
// some record of the artist holds or waits for them.
type artistLock struct {
	mu   sync.Mutex
	refs int
}

// lockArtist locks artistID and returns the matching unlock.
func (s *Store) lockArtist(artistID string) func() {
	s.artistMu.Lock()
	l, ok := s.artistLocks[artistID]
	if !ok {
		l = &artistLock{}
		s.artistLocks[artistID] = l
	}
	l.refs++
	s.artistMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.artistMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.artistLocks, artistID)
		}
		s.artistMu.Unlock()
	}
}

// read returns an immutable view of the cell under key.
func (s *Store) read(key string) (sum *he.Ciphertext, count int, present []int) {
	c := s.lookup(key)
	if c == nil {
		return nil, 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum, c.count, append([]int(nil), c.present...)
}

// Records returns the retained EncryptedRecords. Empty unless retention is
// enabled.
func (s *Store) Records(_ context.Context) []EncryptedRecord {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return append([]EncryptedRecord(nil), s.records...)
}

// IsValidation reports whether err rejects the input rather than signalling
// a system failure.
func IsValidation(err error) bool {
	return errors.Is(err, model.ErrValidation) || errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrUnknownPeriod)
}
