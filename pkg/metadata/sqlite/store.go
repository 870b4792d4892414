// Package sqlite implements metadata.Store on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

// SQLiteStore implements metadata.Store using a SQLite database.
//
// This is the production metadata store. It is suitable for:
//   - Deployments requiring persistence across restarts
//   - Single-node setups where an embedded relational store is enough
//   - Enforcing the sibling-name uniqueness constraint at the store level
//
// Consistency Model:
// Update transactions open with an immediate write lock (txlock=immediate in
// the DSN), so writers are fully serialized: the collision check, the cycle
// check, and the commit of a tree mutation can never interleave with another
// writer. The unique index on (parent, name) is the backstop for racing
// creates: the loser of the race gets a CollisionError even if both passed
// the application-level check.
//
// Schema:
// A single items table holds the tagged entity (kind discriminates file vs
// folder), with a self-referencing parent_id and ON DELETE CASCADE so
// deleting a folder row removes the whole subtree. The uniqueness constraint
// is an expression index over (COALESCE(parent_id, ''), name) because SQLite
// treats NULLs as distinct in plain unique indexes and root-level siblings
// must collide too.
type SQLiteStore struct {
	db *sql.DB
}

// Options configures store behavior at open time.
type Options struct {
	// CaseInsensitive makes sibling-name comparison (and the uniqueness
	// constraint) case-insensitive. The policy is baked into the schema via
	// COLLATE NOCASE, so it must be chosen before first use and kept stable.
	CaseInsensitive bool
}

// Open opens (creating if necessary) a SQLite-backed metadata store at path.
//
// The DSN enables foreign keys (for the delete cascade), WAL journaling, a
// busy timeout, and immediate transaction locking.
func Open(path string, opts Options) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(opts); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// init creates the schema.
func (s *SQLiteStore) init(opts Options) error {
	collate := ""
	if opts.CaseInsensitive {
		collate = " COLLATE NOCASE"
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS items (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL%s,
		kind       TEXT NOT NULL,
		parent_id  TEXT NULL REFERENCES items(id) ON DELETE CASCADE,
		path       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ux_items_parent_name
		ON items (COALESCE(parent_id, ''), name);
	CREATE INDEX IF NOT EXISTS idx_items_parent ON items (parent_id);
	CREATE INDEX IF NOT EXISTS idx_items_path ON items (path);
	`, collate)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// View runs fn in a read-only transaction scope.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx metadata.Tx) error) error {
	return s.run(ctx, fn, false)
}

// Update runs fn in a serializable write transaction. Any error from fn rolls
// the transaction back, leaving the store unchanged.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx metadata.Tx) error) error {
	return s.run(ctx, fn, true)
}

func (s *SQLiteStore) run(ctx context.Context, fn func(tx metadata.Tx) error, writable bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	sqlTx := &sqliteTx{tx: tx, ctx: ctx}

	if err := fn(sqlTx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if !writable {
		// Nothing to persist; release the snapshot.
		return tx.Rollback()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
