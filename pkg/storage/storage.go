// Package storage defines the abstract filesystem capability consumed by the
// tree engine and the reconciler.
package storage

import (
	"context"
	"errors"
)

// EntryKind discriminates directory entries.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// Entry describes one directory entry.
type Entry struct {
	Name string
	Kind EntryKind
}

// ErrNotFound is returned when a path does not exist in the backend.
var ErrNotFound = errors.New("storage entry not found")

// Storage abstracts the byte-storage side of the tree: local disk in
// production, memory for tests, S3 for object storage deployments.
//
// Paths are relative to the backend's root and use the platform separator;
// the empty path addresses the root itself. Operations are not transactional:
// the tree engine's ordering and compensation rules are the sole consistency
// mechanism between storage and metadata.
//
// All operations respect context cancellation. Implementations must be safe
// for concurrent use by multiple goroutines.
type Storage interface {
	// CreateDir creates a directory (and any missing parents) at path.
	CreateDir(ctx context.Context, path string) error

	// WriteFile writes data to the file at path, creating or truncating it.
	WriteFile(ctx context.Context, path string, data []byte) error

	// RenameEntry renames an entry within its directory.
	RenameEntry(ctx context.Context, oldPath, newPath string) error

	// MoveEntry moves an entry to a new location, possibly across
	// directories.
	MoveEntry(ctx context.Context, oldPath, newPath string) error

	// DeleteEntry removes the entry at path. Deleting a non-empty directory
	// requires recursive=true.
	DeleteEntry(ctx context.Context, path string, recursive bool) error

	// PathExists reports whether an entry exists at path.
	PathExists(ctx context.Context, path string) (bool, error)

	// ListDirEntries returns the direct entries of the directory at path.
	ListDirEntries(ctx context.Context, path string) ([]Entry, error)
}
