// Package knowledge implements the pattern knowledge base that the tree
// builder reads from.
//
// Three backends satisfy the Store contract:
//   - SQLiteStore: the imported CAPEC catalog with FTS5 search (default)
//   - DirStore: the one-file-per-pattern CSV layout (capec_<id>.csv)
//   - MemoryStore: map-backed, for tests and embedding callers
//
// All backends return ErrNotFound for unknown identifiers.
package knowledge

import (
	"context"
	"errors"
	"sync"

	"github.com/HendryAvila/adtree/internal/capec"
)

// ErrNotFound is returned when no record exists for an identifier.
var ErrNotFound = errors.New("pattern not found")

// Store is the read contract the synthesis engine depends on.
type Store interface {
	GetRecord(ctx context.Context, id string) (*capec.Record, error)
}

// ─── MemoryStore ─────────────────────────────────────────────────────────────

// MemoryStore keeps records in a map. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]capec.Record
}

// NewMemoryStore creates a MemoryStore preloaded with records.
func NewMemoryStore(records ...capec.Record) *MemoryStore {
	m := &MemoryStore{records: make(map[string]capec.Record, len(records))}
	for _, r := range records {
		m.Put(r)
	}
	return m
}

// Put inserts or replaces a record.
func (m *MemoryStore) Put(r capec.Record) {
	r.ID = capec.NormalizeID(r.ID)
	m.mu.Lock()
	m.records[r.ID] = r
	m.mu.Unlock()
}

// GetRecord returns a copy of the record so callers cannot mutate the store.
func (m *MemoryStore) GetRecord(_ context.Context, id string) (*capec.Record, error) {
	m.mu.RLock()
	r, ok := m.records[capec.NormalizeID(id)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}
