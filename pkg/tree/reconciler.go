package tree

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fileshelf/fileshelf/internal/logger"
	"github.com/fileshelf/fileshelf/pkg/metadata"
	"github.com/fileshelf/fileshelf/pkg/storage"
)

// Mode selects the reconciler behavior for discrepancies.
type Mode string

const (
	// ModeReport collects discrepancies without mutating anything.
	ModeReport Mode = "report"

	// ModeAdopt additionally creates metadata rows for untracked storage
	// entries. Root-level files are never adopted (files must have a folder
	// parent) and stay in the report.
	ModeAdopt Mode = "adopt"

	// ModePrune additionally deletes metadata rows whose storage entry is
	// missing.
	ModePrune Mode = "prune"
)

// Valid reports whether m is a known reconcile mode.
func (m Mode) Valid() bool {
	return m == ModeReport || m == ModeAdopt || m == ModePrune
}

// OrphanedEntry is a storage entry with no corresponding metadata item.
type OrphanedEntry struct {
	Path string
	Kind storage.EntryKind
}

// MissingItem is a metadata item whose storage entry is gone. Only subtree
// roots are reported; descendants of a missing folder are implied.
type MissingItem struct {
	ItemID metadata.ItemID
	Path   string
}

// PathMismatch is an item whose storage entry exists but disagrees with the
// metadata: wrong kind, or a stored path that no longer matches the resolved
// ancestor chain.
type PathMismatch struct {
	ItemID metadata.ItemID
	Path   string
	Reason string
}

// Report is the outcome of a reconcile pass. Discrepancies are surfaced as
// data, never as errors.
type Report struct {
	Orphaned   []OrphanedEntry
	Missing    []MissingItem
	Mismatched []PathMismatch

	// Adopted and Pruned count the repairs applied (non-zero only in the
	// corresponding modes).
	Adopted int
	Pruned  int
}

// Clean reports whether the pass found no discrepancies.
func (r *Report) Clean() bool {
	return len(r.Orphaned) == 0 && len(r.Missing) == 0 && len(r.Mismatched) == 0
}

// Reconciler walks the storage tree and the metadata tree in parallel and
// reports (optionally repairs) divergence between them.
type Reconciler struct {
	store    metadata.Store
	backend  storage.Storage
	resolver *Resolver
}

// NewReconciler creates a reconciler over the given store and storage
// backend.
func NewReconciler(store metadata.Store, backend storage.Storage, resolver *Resolver) *Reconciler {
	if resolver == nil {
		resolver = NewResolver(0)
	}
	return &Reconciler{store: store, backend: backend, resolver: resolver}
}

// Reconcile walks both trees breadth-first from the root and returns a
// divergence report. ModeReport runs in a read-only transaction and never
// mutates state; ModeAdopt and ModePrune apply their repairs inside a single
// write transaction, so a failed pass repairs nothing.
func (r *Reconciler) Reconcile(ctx context.Context, mode Mode) (*Report, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid reconcile mode %q", mode)
	}

	report := &Report{}
	walk := func(tx metadata.Tx) error {
		return r.walk(ctx, tx, mode, report)
	}

	var err error
	if mode == ModeReport {
		err = r.store.View(ctx, walk)
	} else {
		err = r.store.Update(ctx, walk)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("reconcile (%s): %d orphaned, %d missing, %d mismatched, %d adopted, %d pruned",
		mode, len(report.Orphaned), len(report.Missing), len(report.Mismatched),
		report.Adopted, report.Pruned)
	return report, nil
}

// frame is one BFS level: a folder present on both sides.
type frame struct {
	parentID *metadata.ItemID
	dirPath  string
}

func (r *Reconciler) walk(ctx context.Context, tx metadata.Tx, mode Mode, report *Report) error {
	queue := []frame{{parentID: nil, dirPath: ""}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := queue[0]
		queue = queue[1:]

		items, err := tx.Children(current.parentID)
		if err != nil {
			return err
		}

		entries, err := r.backend.ListDirEntries(ctx, current.dirPath)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to list storage entries at %q: %w", current.dirPath, err)
		}

		byName := make(map[string]storage.Entry, len(entries))
		for _, entry := range entries {
			byName[entry.Name] = entry
		}

		// Metadata side: every item must have a storage entry of the right
		// kind at its resolved path.
		for _, item := range items {
			expected := childPath(current.dirPath, item.Name)

			if item.Path != expected {
				report.Mismatched = append(report.Mismatched, PathMismatch{
					ItemID: item.ID,
					Path:   item.Path,
					Reason: fmt.Sprintf("stored path %q differs from resolved path %q", item.Path, expected),
				})
			}

			entry, found := byName[item.Name]
			if !found {
				report.Missing = append(report.Missing, MissingItem{ItemID: item.ID, Path: expected})
				if mode == ModePrune {
					if err := tx.Delete(item.ID); err != nil {
						return err
					}
					report.Pruned++
				}
				continue
			}
			delete(byName, item.Name)

			if kindsConflict(item.Kind, entry.Kind) {
				report.Mismatched = append(report.Mismatched, PathMismatch{
					ItemID: item.ID,
					Path:   expected,
					Reason: fmt.Sprintf("metadata kind %q but storage entry is %q", item.Kind, entry.Kind),
				})
				continue
			}

			if item.IsFolder() {
				id := item.ID
				queue = append(queue, frame{parentID: &id, dirPath: expected})
			}
		}

		// Storage side: every remaining entry is untracked.
		for _, entry := range entries {
			if _, still := byName[entry.Name]; !still {
				continue
			}

			path := childPath(current.dirPath, entry.Name)
			report.Orphaned = append(report.Orphaned, OrphanedEntry{Path: path, Kind: entry.Kind})

			if mode != ModeAdopt {
				continue
			}

			// Files cannot live at the root; such orphans stay reported.
			if entry.Kind == storage.EntryFile && current.parentID == nil {
				continue
			}

			adopted, err := r.adopt(tx, current.parentID, entry.Name, entry.Kind, path)
			if err != nil {
				return err
			}
			report.Adopted++

			if adopted.IsFolder() {
				id := adopted.ID
				queue = append(queue, frame{parentID: &id, dirPath: path})
			}
		}
	}

	return nil
}

// adopt creates a metadata row for an untracked storage entry.
func (r *Reconciler) adopt(tx metadata.Tx, parentID *metadata.ItemID, name string, kind storage.EntryKind, path string) (*metadata.Item, error) {
	itemKind := metadata.KindFile
	if kind == storage.EntryDir {
		itemKind = metadata.KindFolder
	}

	now := time.Now().UTC()
	item := &metadata.Item{
		ID:        metadata.NewItemID(),
		Name:      name,
		Kind:      itemKind,
		ParentID:  cloneID(parentID),
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := tx.Insert(item); err != nil {
		return nil, err
	}

	logger.Debug("adopted %s %q", itemKind, path)
	return item, nil
}

func kindsConflict(itemKind metadata.Kind, entryKind storage.EntryKind) bool {
	if itemKind == metadata.KindFolder {
		return entryKind != storage.EntryDir
	}
	return entryKind != storage.EntryFile
}
