package tree

import "github.com/fileshelf/fileshelf/pkg/metadata"

// CheckUnique enforces sibling-name uniqueness within a parent scope.
//
// It must be called inside the same transaction as the mutation it protects;
// on its own, a check-then-insert sequence is racy. The store-level
// uniqueness constraint on (parent, name) is the backstop: if two concurrent
// creates pass this check, exactly one insert succeeds and the other gets a
// CollisionError from the constraint.
//
// excludeID, when non-nil, skips the item being renamed or moved so it does
// not collide with itself. Name matching follows the store's collation
// (exact by default, case-insensitive when configured).
func CheckUnique(tx metadata.Tx, parentID *metadata.ItemID, name string, excludeID *metadata.ItemID) error {
	existing, err := tx.ChildByName(parentID, name)
	if err != nil {
		return err
	}

	if existing == nil {
		return nil
	}
	if excludeID != nil && existing.ID == *excludeID {
		return nil
	}

	return &metadata.CollisionError{ExistingID: existing.ID}
}
