package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

func (suite *StoreTestSuite) runCollisionTests(t *testing.T) {
	t.Run("InsertDuplicateSibling", suite.testInsertDuplicateSibling)
	t.Run("UpdateIntoCollision", suite.testUpdateIntoCollision)
	t.Run("SameNameDifferentParents", suite.testSameNameDifferentParents)
}

func (suite *StoreTestSuite) testInsertDuplicateSibling(t *testing.T) {
	store := suite.NewStore(t)

	folder := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, folder)

	first := newTestItem("a.txt", metadata.KindFile, &folder.ID, "docs/a.txt")
	insert(t, store, first)

	duplicate := newTestItem("a.txt", metadata.KindFile, &folder.ID, "docs/a.txt")
	err := store.Update(context.Background(), func(tx metadata.Tx) error {
		return tx.Insert(duplicate)
	})

	var collision *metadata.CollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, first.ID, collision.ExistingID)
}

func (suite *StoreTestSuite) testUpdateIntoCollision(t *testing.T) {
	store := suite.NewStore(t)

	first := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, first)
	second := newTestItem("images", metadata.KindFolder, nil, "")
	insert(t, store, second)

	err := store.Update(context.Background(), func(tx metadata.Tx) error {
		second.Name = "docs"
		second.Path = "docs"
		return tx.Update(second)
	})

	var collision *metadata.CollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, first.ID, collision.ExistingID)
}

func (suite *StoreTestSuite) testSameNameDifferentParents(t *testing.T) {
	store := suite.NewStore(t)

	docs := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, docs)
	images := newTestItem("images", metadata.KindFolder, nil, "")
	insert(t, store, images)

	// The same name is fine under different parents.
	insert(t, store, newTestItem("a.txt", metadata.KindFile, &docs.ID, "docs/a.txt"))
	insert(t, store, newTestItem("a.txt", metadata.KindFile, &images.ID, "images/a.txt"))
}

func (suite *StoreTestSuite) runHierarchyTests(t *testing.T) {
	t.Run("ChildByName", suite.testChildByName)
	t.Run("ChildrenOrderedByName", suite.testChildrenOrderedByName)
	t.Run("DeleteCascadesToDescendants", suite.testDeleteCascades)
	t.Run("RewritePathPrefix", suite.testRewritePathPrefix)
}

func (suite *StoreTestSuite) testChildByName(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	docs := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, docs)
	file := newTestItem("a.txt", metadata.KindFile, &docs.ID, "docs/a.txt")
	insert(t, store, file)

	err := store.View(ctx, func(tx metadata.Tx) error {
		got, err := tx.ChildByName(&docs.ID, "a.txt")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, file.ID, got.ID)

		none, err := tx.ChildByName(&docs.ID, "b.txt")
		require.NoError(t, err)
		require.Nil(t, none)

		root, err := tx.ChildByName(nil, "docs")
		require.NoError(t, err)
		require.NotNil(t, root)
		require.Equal(t, docs.ID, root.ID)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testChildrenOrderedByName(t *testing.T) {
	store := suite.NewStore(t)

	docs := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, docs)
	for _, name := range []string{"charlie.txt", "alpha.txt", "bravo.txt"} {
		insert(t, store, newTestItem(name, metadata.KindFile, &docs.ID, "docs/"+name))
	}

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		children, err := tx.Children(&docs.ID)
		require.NoError(t, err)
		require.Len(t, children, 3)
		require.Equal(t, "alpha.txt", children[0].Name)
		require.Equal(t, "bravo.txt", children[1].Name)
		require.Equal(t, "charlie.txt", children[2].Name)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testDeleteCascades(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	docs := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, docs)
	sub := newTestItem("sub", metadata.KindFolder, &docs.ID, "docs/sub")
	insert(t, store, sub)
	file := newTestItem("deep.txt", metadata.KindFile, &sub.ID, "docs/sub/deep.txt")
	insert(t, store, file)
	other := newTestItem("images", metadata.KindFolder, nil, "")
	insert(t, store, other)

	err := store.Update(ctx, func(tx metadata.Tx) error {
		return tx.Delete(docs.ID)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx metadata.Tx) error {
		for _, id := range []metadata.ItemID{docs.ID, sub.ID, file.ID} {
			_, err := tx.Get(id)
			var notFound *metadata.NotFoundError
			require.ErrorAs(t, err, &notFound)
		}

		// Unrelated subtree survives.
		_, err := tx.Get(other.ID)
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testRewritePathPrefix(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	docs := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, docs)
	sub := newTestItem("sub", metadata.KindFolder, &docs.ID, "docs/sub")
	insert(t, store, sub)
	deep := newTestItem("deep.txt", metadata.KindFile, &sub.ID, "docs/sub/deep.txt")
	insert(t, store, deep)

	// Prefix boundary: "docson" must not be rewritten when "docs" is.
	docson := newTestItem("docson", metadata.KindFolder, nil, "")
	insert(t, store, docson)

	// Case boundary: under the default exact-match policy "Docs" is a distinct
	// sibling and its subtree must survive a rewrite of "docs" untouched.
	docsUpper := newTestItem("Docs", metadata.KindFolder, nil, "")
	insert(t, store, docsUpper)
	upperFile := newTestItem("a.txt", metadata.KindFile, &docsUpper.ID, "Docs/a.txt")
	insert(t, store, upperFile)

	err := store.Update(ctx, func(tx metadata.Tx) error {
		rewritten, err := tx.RewritePathPrefix("docs", "papers")
		require.NoError(t, err)
		require.Equal(t, 3, rewritten)
		return nil
	})
	require.NoError(t, err)

	expected := map[metadata.ItemID]string{
		docs.ID:      "papers",
		sub.ID:       "papers/sub",
		deep.ID:      "papers/sub/deep.txt",
		docson.ID:    "docson",
		docsUpper.ID: "Docs",
		upperFile.ID: "Docs/a.txt",
	}

	err = store.View(ctx, func(tx metadata.Tx) error {
		for id, path := range expected {
			got, err := tx.Get(id)
			require.NoError(t, err)
			require.Equal(t, path, got.Path)
		}
		return nil
	})
	require.NoError(t, err)
}
