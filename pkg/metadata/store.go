package metadata

import "context"

// Store is the metadata persistence contract for the item tree.
//
// All access happens inside a transaction scope obtained through View or
// Update. Update transactions are serializable with respect to each other:
// the collision check, the cycle check, the storage side effect, and the
// commit/rollback decision of a tree mutation all execute inside a single
// Update scope, so two racing mutations cannot interleave their
// check-then-act sequences.
//
// Implementations must additionally enforce sibling-name uniqueness at the
// store level (a uniqueness constraint on (parent, name)), not merely rely on
// the application-level check: with the constraint, two concurrent creates of
// the same name under the same parent resolve to exactly one success and one
// CollisionError.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a writable serializable transaction. If fn returns an
	// error the transaction is rolled back and the store is left byte-for-byte
	// unchanged; otherwise it is committed.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error
}

// Tx exposes item CRUD within a transaction scope.
//
// Methods return the domain errors declared in errors.go: Get returns
// NotFoundError for unknown IDs, Insert and Update return CollisionError when
// the (parent, name) constraint is violated.
type Tx interface {
	// Get returns the item with the given ID.
	Get(id ItemID) (*Item, error)

	// Insert adds a new item.
	Insert(item *Item) error

	// Update persists changes to an existing item (name, parent, path,
	// timestamps).
	Update(item *Item) error

	// Delete removes the item and, through the ownership cascade, all of its
	// descendants.
	Delete(id ItemID) error

	// ChildByName returns the direct child of parentID with the given name,
	// or nil if none exists. A nil parentID addresses the root scope.
	// Matching follows the store's name collation (exact by default).
	ChildByName(parentID *ItemID, name string) (*Item, error)

	// Children returns all direct children of parentID ordered by name.
	Children(parentID *ItemID) ([]*Item, error)

	// List returns direct children of parentID filtered, ordered, and
	// paginated per opts.
	List(parentID *ItemID, opts ListOptions) ([]*Item, error)

	// RewritePathPrefix replaces oldPrefix with newPrefix in the Path of
	// every item whose path is oldPrefix or starts with oldPrefix followed by
	// a separator. Returns the number of rewritten rows. Used for the
	// cascading path update after a folder rename or move.
	RewritePathPrefix(oldPrefix, newPrefix string) (int, error)
}
