// Package memory implements metadata.Store with in-memory storage.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

// MemoryStore implements metadata.Store backed by in-memory maps.
//
// This implementation is suitable for:
//   - Testing and development environments
//   - Ephemeral trees where persistence is not required
//
// Thread Safety:
// All access is protected by a single read-write mutex, making the store safe
// for concurrent use. Write transactions are fully serialized by the mutex,
// which trivially satisfies the serializability requirement of the Store
// contract.
//
// Transaction Model:
// Update transactions operate on a deep copy of the item map. The copy is
// swapped in only when the transaction function returns nil, so a failed
// transaction leaves the store byte-for-byte unchanged, the same rollback
// guarantee the SQLite store gets from the database.
type MemoryStore struct {
	mu              sync.RWMutex
	items           map[metadata.ItemID]*metadata.Item
	caseInsensitive bool
}

// Options configures store behavior.
type Options struct {
	// CaseInsensitive makes sibling-name comparison case-insensitive,
	// matching the COLLATE NOCASE policy of the SQLite store.
	CaseInsensitive bool
}

// NewMemoryStore creates an empty in-memory metadata store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		items:           make(map[metadata.ItemID]*metadata.Item),
		caseInsensitive: opts.CaseInsensitive,
	}
}

var errReadOnlyTx = errors.New("mutation attempted in read-only transaction")

// View runs fn against a read-only snapshot of the store.
func (s *MemoryStore) View(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tx := &memTx{items: s.items, caseInsensitive: s.caseInsensitive, readOnly: true}
	return fn(tx)
}

// Update runs fn against a private copy of the store and commits the copy on
// success.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[metadata.ItemID]*metadata.Item, len(s.items))
	for id, item := range s.items {
		working[id] = item.Clone()
	}

	tx := &memTx{items: working, caseInsensitive: s.caseInsensitive}
	if err := fn(tx); err != nil {
		return err
	}

	s.items = working
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
