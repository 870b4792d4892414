package metadata

import "fmt"

// Domain errors shared by the metadata stores and the tree engine.
//
// These are business errors (name taken, item missing, would create a cycle)
// as opposed to infrastructure errors (disk failure, SQL error). Callers
// discriminate with errors.As; the transport layer sitting above the core is
// responsible for translating them into user-facing responses.

// CollisionError indicates a sibling with the same name already exists under
// the same parent.
type CollisionError struct {
	// ExistingID is the item currently holding the name.
	ExistingID ItemID
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("name already exists in parent folder (item %s)", e.ExistingID)
}

// CycleError indicates an operation that would make an item its own ancestor,
// or an ancestor walk that exceeded the configured depth bound.
type CycleError struct {
	ItemID ItemID
}

func (e *CycleError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("operation would create a cycle involving item %s", e.ItemID)
	}
	return "ancestor chain exceeds maximum depth"
}

// InvalidParentError indicates a parent of the wrong kind, or a nil parent
// where one is required (files cannot live at the root).
type InvalidParentError struct {
	Reason string
}

func (e *InvalidParentError) Error() string {
	return "invalid parent: " + e.Reason
}

// NotFoundError indicates the referenced item does not exist.
type NotFoundError struct {
	ItemID ItemID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// StorageError indicates a storage backend side effect failed or timed out.
// The metadata store is unchanged when a mutation returns it.
type StorageError struct {
	// Op names the failed storage operation (e.g. "createDir", "renameEntry").
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
