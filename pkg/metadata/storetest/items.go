package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/metadata"
)

func (suite *StoreTestSuite) runItemTests(t *testing.T) {
	t.Run("InsertAndGet", suite.testInsertAndGet)
	t.Run("GetNotFound", suite.testGetNotFound)
	t.Run("UpdateRename", suite.testUpdateRename)
	t.Run("UpdateNotFound", suite.testUpdateNotFound)
	t.Run("DeleteNotFound", suite.testDeleteNotFound)
}

func (suite *StoreTestSuite) testInsertAndGet(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	folder := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, folder)

	file := newTestItem("a.txt", metadata.KindFile, &folder.ID, "docs/a.txt")
	insert(t, store, file)

	err := store.View(ctx, func(tx metadata.Tx) error {
		got, err := tx.Get(file.ID)
		require.NoError(t, err)
		require.Equal(t, file.ID, got.ID)
		require.Equal(t, "a.txt", got.Name)
		require.Equal(t, metadata.KindFile, got.Kind)
		require.NotNil(t, got.ParentID)
		require.Equal(t, folder.ID, *got.ParentID)
		require.Equal(t, "docs/a.txt", got.Path)
		require.WithinDuration(t, file.CreatedAt, got.CreatedAt, time.Second)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.View(context.Background(), func(tx metadata.Tx) error {
		_, err := tx.Get(metadata.NewItemID())
		return err
	})

	var notFound *metadata.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func (suite *StoreTestSuite) testUpdateRename(t *testing.T) {
	store := suite.NewStore(t)
	ctx := context.Background()

	folder := newTestItem("docs", metadata.KindFolder, nil, "")
	insert(t, store, folder)

	err := store.Update(ctx, func(tx metadata.Tx) error {
		folder.Name = "documents"
		folder.Path = "documents"
		folder.UpdatedAt = time.Now().UTC()
		return tx.Update(folder)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx metadata.Tx) error {
		got, err := tx.Get(folder.ID)
		require.NoError(t, err)
		require.Equal(t, "documents", got.Name)
		require.Equal(t, "documents", got.Path)
		return nil
	})
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testUpdateNotFound(t *testing.T) {
	store := suite.NewStore(t)

	ghost := newTestItem("ghost", metadata.KindFolder, nil, "")
	err := store.Update(context.Background(), func(tx metadata.Tx) error {
		return tx.Update(ghost)
	})

	var notFound *metadata.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.Update(context.Background(), func(tx metadata.Tx) error {
		return tx.Delete(metadata.NewItemID())
	})

	var notFound *metadata.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func (suite *StoreTestSuite) runRollbackTests(t *testing.T) {
	t.Run("FailedUpdateLeavesStoreUnchanged", func(t *testing.T) {
		store := suite.NewStore(t)
		ctx := context.Background()

		folder := newTestItem("docs", metadata.KindFolder, nil, "")
		insert(t, store, folder)

		boom := errors.New("boom")
		err := store.Update(ctx, func(tx metadata.Tx) error {
			extra := newTestItem("extra", metadata.KindFolder, nil, "")
			if err := tx.Insert(extra); err != nil {
				return err
			}
			folder.Name = "changed"
			folder.Path = "changed"
			if err := tx.Update(folder); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		// Neither the insert nor the update survived the rollback.
		err = store.View(ctx, func(tx metadata.Tx) error {
			got, err := tx.Get(folder.ID)
			require.NoError(t, err)
			require.Equal(t, "docs", got.Name)

			extra, err := tx.ChildByName(nil, "extra")
			require.NoError(t, err)
			require.Nil(t, extra)
			return nil
		})
		require.NoError(t, err)
	})
}
