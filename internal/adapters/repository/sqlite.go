package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // driver

	"github.com/okian/vinyl/internal/domain/aggregation"
	"github.com/okian/vinyl/pkg/logger"
	"github.com/okian/vinyl/pkg/metrics"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accumulators (key TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS contributors (artist_id TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS records (id TEXT PRIMARY KEY, seq INTEGER NOT NULL, payload BLOB NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS keys (name TEXT PRIMARY KEY, payload BLOB NOT NULL)`,
}

// SQLiteStore persists state in a single SQLite file. Every payload is
// zstd-compressed JSON, except the key bundle which is compressed as is.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	codec  *codec
	logger logger.Logger
	closed atomic.Bool
	seq    atomic.Int64
}

// OpenSQLite opens or creates the database at path and ensures its schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range append([]string{`PRAGMA busy_timeout = 5000`}, schema...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	c, err := newCodec(o.level)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, path: path, codec: c, logger: o.logger}
	var maxSeq sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(seq) FROM records`).Scan(&maxSeq); err != nil {
		_ = s.close()
		return nil, fmt.Errorf("read record sequence: %w", err)
	}
	s.seq.Store(maxSeq.Int64)

	s.logger.Info(ctx, "sqlite store opened", logger.String("path", path))
	return s, nil
}

// SaveCells writes change in one transaction.
func (s *SQLiteStore) SaveCells(ctx context.Context, change aggregation.Change) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer func() { observe("save_cells", start, err) }()

	type row struct {
		stmt    string
		args    []any
		payload []byte
	}
	rows := make([]row, 0, len(change.Cells)+3)
	for _, cell := range change.Cells {
		payload, err := s.codec.marshal(cell)
		if err != nil {
			return fmt.Errorf("encode accumulator %s: %w", cell.Key, err)
		}
		rows = append(rows, row{
			stmt: `INSERT INTO accumulators (key, payload) VALUES (?, ?)
			       ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
			args: []any{cell.Key, payload}, payload: payload,
		})
	}
	payload, err := s.codec.marshal(change.Contributor)
	if err != nil {
		return fmt.Errorf("encode contributor: %w", err)
	}
	rows = append(rows, row{
		stmt: `INSERT INTO contributors (artist_id, payload) VALUES (?, ?)
		       ON CONFLICT(artist_id) DO UPDATE SET payload = excluded.payload`,
		args: []any{change.Contributor.ArtistID, payload}, payload: payload,
	})
	if change.Record != nil {
		payload, err := s.codec.marshal(change.Record)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		rows = append(rows, row{
			stmt: `INSERT INTO records (id, seq, payload) VALUES (?, ?, ?)
			       ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
			args: []any{change.Record.ID, s.seq.Add(1), payload}, payload: payload,
		})
	}
	fp := s.codec.compress([]byte(change.Fingerprint))
	rows = append(rows, row{
		stmt: `INSERT INTO keys (name, payload) VALUES (?, ?)
		       ON CONFLICT(name) DO UPDATE SET payload = excluded.payload`,
		args: []any{fingerprintName, fp},
	})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	size := 0
	for _, r := range rows {
		if _, err = tx.ExecContext(ctx, r.stmt, r.args...); err != nil {
			return fmt.Errorf("upsert: %w", err)
		}
		size += len(r.payload)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordPersistPayload(size)
	return nil
}

// LoadSnapshot reads the whole database.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (snap aggregation.Snapshot, err error) {
	if s.closed.Load() {
		return aggregation.Snapshot{}, ErrClosed
	}
	start := time.Now()
	defer func() { observe("load_snapshot", start, err) }()

	fp, err := s.loadKey(ctx, fingerprintName)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return aggregation.Snapshot{}, err
	default:
		snap.Fingerprint = string(fp)
	}

	if err := s.scan(ctx, `SELECT payload FROM accumulators ORDER BY key`, func(p []byte) error {
		var cell aggregation.CellState
		if err := s.codec.unmarshal(p, &cell); err != nil {
			return err
		}
		snap.Cells = append(snap.Cells, cell)
		return nil
	}); err != nil {
		return aggregation.Snapshot{}, fmt.Errorf("load accumulators: %w", err)
	}
	if err := s.scan(ctx, `SELECT payload FROM contributors ORDER BY artist_id`, func(p []byte) error {
		var c aggregation.Contributor
		if err := s.codec.unmarshal(p, &c); err != nil {
			return err
		}
		snap.Contributors = append(snap.Contributors, c)
		return nil
	}); err != nil {
		return aggregation.Snapshot{}, fmt.Errorf("load contributors: %w", err)
	}
	if err := s.scan(ctx, `SELECT payload FROM records ORDER BY seq`, func(p []byte) error {
		var r aggregation.RecordState
		if err := s.codec.unmarshal(p, &r); err != nil {
			return err
		}
		snap.Records = append(snap.Records, r)
		return nil
	}); err != nil {
		return aggregation.Snapshot{}, fmt.Errorf("load records: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) scan(ctx context.Context, query string, fn func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		if err := fn(payload); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadKeys returns the stored key bundle, or nil when there is none.
func (s *SQLiteStore) LoadKeys(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	data, err := s.loadKey(ctx, keyBundleName)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// SaveKeys replaces the stored key bundle.
func (s *SQLiteStore) SaveKeys(ctx context.Context, payload []byte) (err error) {
	if s.closed.Load() {
		return ErrClosed
	}
	start := time.Now()
	defer func() { observe("save_keys", start, err) }()

	data := s.codec.compress(payload)
	if _, err = s.db.ExecContext(ctx,
		`INSERT INTO keys (name, payload) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload`,
		keyBundleName, data); err != nil {
		return fmt.Errorf("save keys: %w", err)
	}
	metrics.RecordPersistPayload(len(data))
	return nil
}

func (s *SQLiteStore) loadKey(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM keys WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return s.codec.decompress(data)
}

// Close releases the database. Calls after the first are no-ops.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.close()
}

func (s *SQLiteStore) close() error {
	s.codec.close()
	return s.db.Close()
}

func observe(op string, start time.Time, err error) {
	metrics.RecordPersistLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordPersistError(op)
		return
	}
	metrics.RecordPersistSuccess(time.Now())
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }
