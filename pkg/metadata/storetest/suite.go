// Package storetest provides a reusable contract test suite for
// metadata.Store implementations. It tests the interface contract, not
// implementation details, so the same suite runs against the sqlite and the
// memory store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

// StoreTestSuite runs the complete Store contract test suite.
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test, ensuring isolation.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Items", suite.runItemTests)
	t.Run("Collision", suite.runCollisionTests)
	t.Run("Hierarchy", suite.runHierarchyTests)
	t.Run("List", suite.runListTests)
	t.Run("Rollback", suite.runRollbackTests)
}

// newTestItem builds an item for suite tests. path defaults to the join of
// the parent path and the name when left empty by the caller.
func newTestItem(name string, kind metadata.Kind, parentID *metadata.ItemID, path string) *metadata.Item {
	now := time.Now().UTC().Truncate(time.Millisecond)
	if path == "" {
		path = name
	}
	return &metadata.Item{
		ID:        metadata.NewItemID(),
		Name:      name,
		Kind:      kind,
		ParentID:  parentID,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// insert adds an item in its own transaction, failing the test on error.
func insert(t *testing.T, store metadata.Store, item *metadata.Item) {
	t.Helper()
	err := store.Update(context.Background(), func(tx metadata.Tx) error {
		return tx.Insert(item)
	})
	if err != nil {
		t.Fatalf("failed to insert %q: %v", item.Name, err)
	}
}
