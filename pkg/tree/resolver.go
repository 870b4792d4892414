// Package tree implements the hierarchy-consistency engine: path resolution,
// sibling-name collision enforcement, the atomic mutation operations spanning
// the metadata store and the storage backend, and the reconciler that detects
// divergence between the two.
package tree

import (
	"path/filepath"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

// DefaultMaxDepth bounds ancestor-chain walks. A chain longer than this is
// treated as a cycle, which guards against corrupted parent references.
const DefaultMaxDepth = 255

// Resolver computes storage paths from the ownership chain of an item. It is
// a pure function over the metadata within the supplied transaction: no side
// effects, no caching.
type Resolver struct {
	maxDepth int
}

// NewResolver creates a resolver with the given depth bound (0 means
// DefaultMaxDepth).
func NewResolver(maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{maxDepth: maxDepth}
}

// Resolve walks from item to the root and joins the names root-to-leaf with
// the platform separator. The result is relative to the storage root, e.g.
// "docs/reports/q3.pdf".
//
// Returns CycleError if the walk exceeds the depth bound.
func (r *Resolver) Resolve(tx metadata.Tx, item *metadata.Item) (string, error) {
	names := []string{item.Name}

	current := item
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= r.maxDepth {
			return "", &metadata.CycleError{ItemID: item.ID}
		}

		parent, err := tx.Get(*current.ParentID)
		if err != nil {
			return "", err
		}

		names = append(names, parent.Name)
		current = parent
	}

	// names were collected leaf-to-root
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	return filepath.Join(names...), nil
}

// Ancestry returns the IDs on the chain from id (inclusive) up to its root,
// bounded by the resolver depth.
func (r *Resolver) Ancestry(tx metadata.Tx, id metadata.ItemID) ([]metadata.ItemID, error) {
	chain := []metadata.ItemID{id}

	current, err := tx.Get(id)
	if err != nil {
		return nil, err
	}

	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= r.maxDepth {
			return nil, &metadata.CycleError{ItemID: id}
		}

		parent, err := tx.Get(*current.ParentID)
		if err != nil {
			return nil, err
		}

		chain = append(chain, parent.ID)
		current = parent
	}

	return chain, nil
}

// childPath joins a parent path with a child name. The empty parent path
// denotes the storage root.
func childPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + string(filepath.Separator) + name
}
