package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

func (suite *StoreTestSuite) runListTests(t *testing.T) {
	t.Run("DefaultOrderAndLimit", suite.testListDefaultOrderAndLimit)
	t.Run("Search", suite.testListSearch)
	t.Run("OrderDescending", suite.testListOrderDescending)
	t.Run("OrderByCreatedAt", suite.testListOrderByCreatedAt)
	t.Run("Pagination", suite.testListPagination)
	t.Run("InvalidOrderField", suite.testListInvalidOrderField)
}

// seedListFolder creates a folder with count files named file-00 … and
// returns it.
func seedListFolder(t *testing.T, store metadata.Store, count int) *metadata.Item {
	t.Helper()

	folder := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, folder)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("file-%02d.txt", i)
		item := newTestItem(name, metadata.KindFile, &folder.ID, "docs/"+name)
		// Spread creation times so created_at ordering is deterministic.
		item.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		item.UpdatedAt = item.CreatedAt
		insert(t, store, item)
	}

	return folder
}

func (suite *StoreTestSuite) testListDefaultOrderAndLimit(t *testing.T) {
	store := suite.NewStore(t)
	folder := seedListFolder(t, store, 12)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		items, err := tx.List(&folder.ID, metadata.ListOptions{})
		require.NoError(t, err)

		// Default page size caps the result.
		require.Len(t, items, metadata.DefaultListLimit)
		require.Equal(t, "file-00.txt", items[0].Name)
		require.Equal(t, "file-09.txt", items[len(items)-1].Name)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testListSearch(t *testing.T) {
	store := suite.NewStore(t)

	folder := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, folder)
	for _, name := range []string{"Report-Q3.pdf", "report-q4.pdf", "summary.txt"} {
		insert(t, store, newTestItem(name, metadata.KindFile, &folder.ID, "docs/"+name))
	}

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		// Substring search is case-insensitive.
		items, err := tx.List(&folder.ID, metadata.ListOptions{Search: "REPORT"})
		require.NoError(t, err)
		require.Len(t, items, 2)

		items, err = tx.List(&folder.ID, metadata.ListOptions{Search: "q4"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		require.Equal(t, "report-q4.pdf", items[0].Name)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testListOrderDescending(t *testing.T) {
	store := suite.NewStore(t)
	folder := seedListFolder(t, store, 3)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		items, err := tx.List(&folder.ID, metadata.ListOptions{OrderBy: "-name"})
		require.NoError(t, err)
		require.Len(t, items, 3)
		require.Equal(t, "file-02.txt", items[0].Name)
		require.Equal(t, "file-00.txt", items[2].Name)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testListOrderByCreatedAt(t *testing.T) {
	store := suite.NewStore(t)
	folder := seedListFolder(t, store, 3)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		items, err := tx.List(&folder.ID, metadata.ListOptions{OrderBy: "-created_at"})
		require.NoError(t, err)
		require.Len(t, items, 3)
		// Newest first.
		require.Equal(t, "file-02.txt", items[0].Name)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testListPagination(t *testing.T) {
	store := suite.NewStore(t)
	folder := seedListFolder(t, store, 5)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		items, err := tx.List(&folder.ID, metadata.ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, items, 2)
		require.Equal(t, "file-02.txt", items[0].Name)
		require.Equal(t, "file-03.txt", items[1].Name)

		// Offset past the end yields an empty page.
		items, err = tx.List(&folder.ID, metadata.ListOptions{Limit: 2, Offset: 10})
		require.NoError(t, err)
		require.Empty(t, items)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testListInvalidOrderField(t *testing.T) {
	store := suite.NewStore(t)
	folder := seedListFolder(t, store, 1)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		_, err := tx.List(&folder.ID, metadata.ListOptions{OrderBy: "kind; DROP TABLE items"})
		require.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}
