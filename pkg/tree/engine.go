package tree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fileshelf/fileshelf/internal/logger"
	"github.com/fileshelf/fileshelf/pkg/metadata"
	"github.com/fileshelf/fileshelf/pkg/storage"
)

// DefaultOpTimeout bounds individual storage side effects. A storage call
// that has not returned by then is treated as failed (StorageError).
const DefaultOpTimeout = 10 * time.Second

// Options configures an Engine.
type Options struct {
	// OpTimeout bounds each storage side effect (0 means DefaultOpTimeout).
	OpTimeout time.Duration

	// MaxDepth bounds ancestor-chain walks (0 means DefaultMaxDepth).
	MaxDepth int
}

// Engine implements the tree mutation operations, each atomic with respect to
// both the metadata store and the storage backend.
//
// Ordering principle:
//   - rename/move/delete are storage-first, metadata-second: the storage side
//     effect is attempted before the metadata commit because storage
//     operations are harder to undo than a database transaction. When the
//     storage step fails, the transaction rolls back with no metadata change.
//   - create is metadata-first, storage-second: the row insert happens inside
//     the transaction before the storage write, and a storage failure rolls
//     the insert back. An orphan storage entry left by a crash between the
//     two steps is cheaper to clean up (reconciler) than a metadata row
//     pointing at nothing.
//
// True two-phase commit across store and storage is not attempted; a crash
// between the storage step and the commit is an accepted failure window
// closed by the Reconciler.
type Engine struct {
	store     metadata.Store
	backend   storage.Storage
	resolver  *Resolver
	opTimeout time.Duration
}

// NewEngine creates a mutation engine over the given store and storage
// backend.
func NewEngine(store metadata.Store, backend storage.Storage, opts Options) *Engine {
	timeout := opts.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}

	return &Engine{
		store:     store,
		backend:   backend,
		resolver:  NewResolver(opts.MaxDepth),
		opTimeout: timeout,
	}
}

// Resolver exposes the engine's path resolver (shared with the Reconciler).
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// Create validates and creates a new item under parentID, materializing it in
// storage: a directory for folders, a file written with content for files.
//
// Files require a folder parent (never nil) and a name with an extension.
// Returns CollisionError if a sibling already holds the name,
// InvalidParentError for a missing/wrong-kind parent, StorageError if the
// storage step fails (the inserted row is rolled back).
func (e *Engine) Create(ctx context.Context, parentID *metadata.ItemID, name string, kind metadata.Kind, content []byte) (*metadata.Item, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid item kind %q", kind)
	}
	if kind == metadata.KindFile && !hasExtension(name) {
		return nil, fmt.Errorf("file name %q must include an extension", name)
	}

	var created *metadata.Item

	err := e.store.Update(ctx, func(tx metadata.Tx) error {
		parentPath := ""
		if parentID != nil {
			parent, err := tx.Get(*parentID)
			if err != nil {
				return err
			}
			if !parent.IsFolder() {
				return &metadata.InvalidParentError{Reason: "parent must be a folder"}
			}
			parentPath = parent.Path
		} else if kind == metadata.KindFile {
			return &metadata.InvalidParentError{Reason: "files must have a folder as their parent"}
		}

		if err := CheckUnique(tx, parentID, name, nil); err != nil {
			return err
		}

		now := time.Now().UTC()
		item := &metadata.Item{
			ID:        metadata.NewItemID(),
			Name:      name,
			Kind:      kind,
			ParentID:  cloneID(parentID),
			Path:      childPath(parentPath, name),
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Insert(item); err != nil {
			return err
		}

		// Storage second: a failure here rolls the insert back.
		if kind == metadata.KindFolder {
			if err := e.storageCall(ctx, "createDir", func(opCtx context.Context) error {
				return e.backend.CreateDir(opCtx, item.Path)
			}); err != nil {
				return err
			}
		} else {
			if err := e.storageCall(ctx, "writeFile", func(opCtx context.Context) error {
				return e.backend.WriteFile(opCtx, item.Path, content)
			}); err != nil {
				return err
			}
		}

		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("created %s %q at %q", created.Kind, created.Name, created.Path)
	return created, nil
}

// Rename changes an item's name within its current parent, renaming the
// storage entry first and cascading the path update to every descendant.
//
// For files, the old extension is preserved when newName has none. Returns
// CollisionError if a sibling holds the new name, StorageError if the storage
// rename fails (metadata is untouched).
func (e *Engine) Rename(ctx context.Context, id metadata.ItemID, newName string) (*metadata.Item, error) {
	if err := validateName(newName); err != nil {
		return nil, err
	}

	var renamed *metadata.Item

	err := e.store.Update(ctx, func(tx metadata.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}

		name := newName
		if item.IsFile() {
			if filepath.Ext(name) == "" {
				name += filepath.Ext(item.Name)
			}
			if !hasExtension(name) {
				return fmt.Errorf("file name %q must include an extension", name)
			}
		}

		if name == item.Name {
			renamed = item
			return nil
		}

		if err := CheckUnique(tx, item.ParentID, name, &id); err != nil {
			return err
		}

		parentPath := ""
		if item.ParentID != nil {
			parent, err := tx.Get(*item.ParentID)
			if err != nil {
				return err
			}
			parentPath = parent.Path
		}

		oldPath := item.Path
		newPath := childPath(parentPath, name)

		// Storage first: a failure leaves the metadata untouched.
		if err := e.storageCall(ctx, "renameEntry", func(opCtx context.Context) error {
			return e.backend.RenameEntry(opCtx, oldPath, newPath)
		}); err != nil {
			return err
		}

		if item.IsFolder() {
			if _, err := tx.RewritePathPrefix(oldPath, newPath); err != nil {
				return err
			}
		}

		item.Name = name
		item.Path = newPath
		item.UpdatedAt = time.Now().UTC()
		if err := tx.Update(item); err != nil {
			return err
		}

		renamed = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("renamed item %s to %q", id, renamed.Name)
	return renamed, nil
}

// Move reparents an item under newParentID (nil moves a folder to the root),
// moving the storage entry first and cascading the path update to every
// descendant.
//
// Returns InvalidParentError when the target is not a folder or a file is
// moved to the root, CycleError when the target is the item itself or one of
// its descendants, CollisionError when the target folder already has a child
// with the item's name, StorageError when the storage move fails (metadata is
// untouched).
func (e *Engine) Move(ctx context.Context, id metadata.ItemID, newParentID *metadata.ItemID) (*metadata.Item, error) {
	var moved *metadata.Item

	err := e.store.Update(ctx, func(tx metadata.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}

		newParentPath := ""
		if newParentID == nil {
			if item.IsFile() {
				return &metadata.InvalidParentError{Reason: "files must have a folder as their parent"}
			}
		} else {
			if *newParentID == id {
				return &metadata.CycleError{ItemID: id}
			}

			newParent, err := tx.Get(*newParentID)
			if err != nil {
				return err
			}
			if !newParent.IsFolder() {
				return &metadata.InvalidParentError{Reason: "target parent must be a folder"}
			}
			newParentPath = newParent.Path

			// Cycle check: walk upward from the target parent; finding the
			// item on that chain means the target is its descendant.
			ancestry, err := e.resolver.Ancestry(tx, *newParentID)
			if err != nil {
				return err
			}
			for _, ancestorID := range ancestry {
				if ancestorID == id {
					return &metadata.CycleError{ItemID: id}
				}
			}
		}

		if sameScope(item.ParentID, newParentID) {
			moved = item
			return nil
		}

		if err := CheckUnique(tx, newParentID, item.Name, &id); err != nil {
			return err
		}

		oldPath := item.Path
		newPath := childPath(newParentPath, item.Name)

		// Storage first: a failure leaves the metadata untouched.
		if err := e.storageCall(ctx, "moveEntry", func(opCtx context.Context) error {
			return e.backend.MoveEntry(opCtx, oldPath, newPath)
		}); err != nil {
			return err
		}

		if item.IsFolder() {
			if _, err := tx.RewritePathPrefix(oldPath, newPath); err != nil {
				return err
			}
		}

		item.ParentID = cloneID(newParentID)
		item.Path = newPath
		item.UpdatedAt = time.Now().UTC()
		if err := tx.Update(item); err != nil {
			return err
		}

		moved = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("moved item %s to %q", id, moved.Path)
	return moved, nil
}

// Delete removes an item and, for folders, the whole subtree from both
// storage and metadata. The storage entry is removed first; a failure there
// (permission denied, timeout) fails the whole operation with StorageError
// and no metadata change. Partial deletion of the metadata subtree cannot
// occur: descendant rows go with the root row through the ownership cascade
// in one transaction.
func (e *Engine) Delete(ctx context.Context, id metadata.ItemID) error {
	err := e.store.Update(ctx, func(tx metadata.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}

		if err := e.storageCall(ctx, "deleteEntry", func(opCtx context.Context) error {
			return e.backend.DeleteEntry(opCtx, item.Path, item.IsFolder())
		}); err != nil {
			return err
		}

		return tx.Delete(id)
	})
	if err != nil {
		return err
	}

	logger.Debug("deleted item %s", id)
	return nil
}

// ListChildren returns the direct children of parentID filtered, ordered,
// and paginated per opts. A nil parentID lists root-level items. The parent
// must exist and be a folder.
func (e *Engine) ListChildren(ctx context.Context, parentID *metadata.ItemID, opts metadata.ListOptions) ([]*metadata.Item, error) {
	var items []*metadata.Item

	err := e.store.View(ctx, func(tx metadata.Tx) error {
		if parentID != nil {
			parent, err := tx.Get(*parentID)
			if err != nil {
				return err
			}
			if !parent.IsFolder() {
				return &metadata.InvalidParentError{Reason: "parent must be a folder"}
			}
		}

		var err error
		items, err = tx.List(parentID, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// storageCall runs one storage side effect under the operation timeout and
// wraps any failure (including timeout expiry) as a StorageError.
func (e *Engine) storageCall(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	if err := fn(opCtx); err != nil {
		logger.Warn("storage %s failed: %v", op, err)
		return &metadata.StorageError{Op: op, Err: err}
	}
	return nil
}

// validateName rejects names that cannot be a single path segment. A name
// holding a separator would materialize as nested storage entries backed by a
// single metadata row, a divergence the reconciler could never close.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("item name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("item name %q must not contain a path separator", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("item name %q is reserved", name)
	}
	return nil
}

// hasExtension reports whether name carries a non-empty extension. A bare
// trailing dot ("a.") does not count.
func hasExtension(name string) bool {
	return len(filepath.Ext(name)) > 1
}

func cloneID(id *metadata.ItemID) *metadata.ItemID {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}

func sameScope(a, b *metadata.ItemID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
