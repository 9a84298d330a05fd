package aggregation

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

// Snapshot exports the full state. Cells are read one at a time, so the
// result is consistent per accumulator rather than across the store.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Fingerprint: s.he.Fingerprint()}

	s.cellsMu.RLock()
	keys := make([]string, 0, len(s.cells))
	for k := range s.cells {
		keys = append(keys, k)
	}
	s.cellsMu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		c := s.lookup(k)
		c.mu.Lock()
		if c.count == 0 {
			c.mu.Unlock()
			continue
		}
		state, err := s.cellState(c, c.sum, c.count, 0)
		c.mu.Unlock()
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot %s: %w", k, err)
		}
		snap.Cells = append(snap.Cells, state)
	}

	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	ids := make([]string, 0, len(s.contributors))
	for id := range s.contributors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c := s.contributors[id]
		snap.Contributors = append(snap.Contributors, Contributor{
			ArtistID: c.ArtistID,
			Uploads:  append([]model.Metadata(nil), c.Uploads...),
		})
	}
	for _, r := range s.records {
		data, err := s.he.MarshalCiphertext(r.Contribution)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot record %s: %w", r.ID, err)
		}
		snap.Records = append(snap.Records, RecordState{ID: r.ID, Contribution: data, Present: r.Present, Metadata: r.Metadata})
	}
	return snap, nil
}

// Restore replaces the store's state with snap. It must run before the
// store accepts records. A non-empty snapshot taken under other keys is
// rejected with ErrKeyMismatch.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	if snap.Empty() {
		return nil
	}
	if snap.Fingerprint != s.he.Fingerprint() {
		return fmt.Errorf("%w: stored %q, current %q", ErrKeyMismatch, snap.Fingerprint, s.he.Fingerprint())
	}

	cells := make(map[string]*cell, len(snap.Cells))
	for _, st := range snap.Cells {
		sum, err := s.he.UnmarshalCiphertext(st.Sum)
		if err != nil {
			return fmt.Errorf("restore %s: %w", st.Key, err)
		}
		c := newCell(st.Key, st.Category, st.Period)
		c.sum = sum
		c.count = st.Count
		for f, n := range st.Present {
			if i := model.FieldIndex(f); i >= 0 {
				c.present[i] = n
			}
		}
		cells[st.Key] = c
	}

	records := make([]EncryptedRecord, 0, len(snap.Records))
	for _, st := range snap.Records {
		ct, err := s.he.UnmarshalCiphertext(st.Contribution)
		if err != nil {
			return fmt.Errorf("restore record %s: %w", st.ID, err)
		}
		records = append(records, EncryptedRecord{ID: st.ID, Contribution: ct, Present: st.Present, Metadata: st.Metadata})
	}

	s.cellsMu.Lock()
	s.cells = cells
	s.active.Store(int64(len(cells)))
	s.cellsMu.Unlock()

	s.metaMu.Lock()
	s.contributors = make(map[string]*Contributor, len(snap.Contributors))
	s.categoryCounts = make(map[string]int)
	s.periodCounts = make(map[string]int)
	s.totalRecords = 0
	for _, c := range snap.Contributors {
		c := c
		s.contributors[c.ArtistID] = &c
		for _, md := range c.Uploads {
			s.totalRecords++
			s.categoryCounts[md.Category]++
			s.periodCounts[md.Period]++
		}
	}
	s.records = records
	contributors := len(s.contributors)
	total := s.totalRecords
	s.metaMu.Unlock()

	metrics.UpdateAccumulators(len(cells))
	metrics.UpdateContributors(contributors)
	s.logger.Info(ctx, "aggregation state restored",
		logger.Int("accumulators", len(cells)),
		logger.Int("contributors", contributors),
		logger.Int("records", total),
		logger.Int("retained", len(records)))
	return nil
}
