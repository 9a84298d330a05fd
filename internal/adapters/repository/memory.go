package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/pkg/metrics"
)

// MemoryStore keeps encoded payloads in maps. It backs a process that runs
// without a store path and stands in for SQLiteStore in tests.
type MemoryStore struct {
	mu           sync.RWMutex
	codec        *codec
	closed       bool
	fingerprint  string
	keys         []byte
	accumulators map[string][]byte
	contributors map[string][]byte
	records      [][]byte
	recordIndex  map[string]int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) (*MemoryStore, error) {
	o := buildOptions(opts)
	c, err := newCodec(o.level)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{
		codec:        c,
		accumulators: make(map[string][]byte),
		contributors: make(map[string][]byte),
		recordIndex:  make(map[string]int),
	}, nil
}

// SaveCells encodes every part of change before touching the maps, so a
// failed encoding leaves the store unchanged.
func (m *MemoryStore) SaveCells(ctx context.Context, change aggregation.Change) (err error) {
	if m.isClosed() {
		return ErrClosed
	}
	start := time.Now()
	defer func() { observe("save_cells", start, err) }()

	cells := make(map[string][]byte, len(change.Cells))
	for _, cell := range change.Cells {
		if cells[cell.Key], err = m.codec.marshal(cell); err != nil {
			return err
		}
	}
	contributor, err := m.codec.marshal(change.Contributor)
	if err != nil {
		return err
	}
	var record []byte
	if change.Record != nil {
		if record, err = m.codec.marshal(change.Record); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	size := len(contributor) + len(record)
	for k, v := range cells {
		m.accumulators[k] = v
		size += len(v)
	}
	m.contributors[change.Contributor.ArtistID] = contributor
	if record != nil {
		if i, ok := m.recordIndex[change.Record.ID]; ok {
			m.records[i] = record
		} else {
			m.recordIndex[change.Record.ID] = len(m.records)
			m.records = append(m.records, record)
		}
	}
	m.fingerprint = change.Fingerprint
	metrics.RecordPersistPayload(size)
	return nil
}

// LoadSnapshot decodes everything stored.
func (m *MemoryStore) LoadSnapshot(_ context.Context) (aggregation.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return aggregation.Snapshot{}, ErrClosed
	}

	snap := aggregation.Snapshot{Fingerprint: m.fingerprint}
	for _, k := range sortedKeys(m.accumulators) {
		var cell aggregation.CellState
		if err := m.codec.unmarshal(m.accumulators[k], &cell); err != nil {
			return aggregation.Snapshot{}, err
		}
		snap.Cells = append(snap.Cells, cell)
	}
	for _, k := range sortedKeys(m.contributors) {
		var c aggregation.Contributor
		if err := m.codec.unmarshal(m.contributors[k], &c); err != nil {
			return aggregation.Snapshot{}, err
		}
		snap.Contributors = append(snap.Contributors, c)
	}
	for _, p := range m.records {
		var r aggregation.RecordState
		if err := m.codec.unmarshal(p, &r); err != nil {
			return aggregation.Snapshot{}, err
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, nil
}

// LoadKeys returns a copy of the stored key bundle, or nil.
func (m *MemoryStore) LoadKeys(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.keys == nil {
		return nil, nil
	}
	return m.codec.decompress(m.keys)
}

// SaveKeys replaces the stored key bundle.
func (m *MemoryStore) SaveKeys(_ context.Context, payload []byte) error {
	if m.isClosed() {
		return ErrClosed
	}
	data := m.codec.compress(payload)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.keys = data
	return nil
}

// Close drops the stored state.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.accumulators, m.contributors, m.records, m.keys = nil, nil, nil, nil
	return nil
}

func (m *MemoryStore) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
