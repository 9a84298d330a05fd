// Package repository persists aggregation state and key material so that
// aggregation resumes across restarts.
package repository

import (
	"context"

	"github.com/okian/vinyl/internal/adapters/he"
	"github.com/okian/vinyl/internal/domain/aggregation"
)

// Row names in the keys table.
const (
	keyBundleName   = "he"
	fingerprintName = "fingerprint"
)

// Store persists accumulators, contributors, retained records and keys.
// It satisfies aggregation.Persister and he.KeyStore.
type Store interface {
	// SaveCells upserts the touched accumulators, the contributor row and
	// the optional record in one transaction.
	SaveCells(ctx context.Context, change aggregation.Change) error

	// LoadSnapshot returns everything stored, or an empty snapshot.
	LoadSnapshot(ctx context.Context) (aggregation.Snapshot, error)

	// LoadKeys returns the key bundle, or nil when none is stored.
	LoadKeys(ctx context.Context) ([]byte, error)
	SaveKeys(ctx context.Context, payload []byte) error

	Close() error
}

var (
	_ Store       = (*SQLiteStore)(nil)
	_ Store       = (*MemoryStore)(nil)
	_ he.KeyStore = (*SQLiteStore)(nil)
	_ he.KeyStore = (*MemoryStore)(nil)
)
