package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/metadata"
	metamem "github.com/fileshelf/fileshelf/pkg/metadata/memory"
	"github.com/fileshelf/fileshelf/pkg/storage"
	stormem "github.com/fileshelf/fileshelf/pkg/storage/memory"
)

func newTestEngine(t *testing.T) (*Engine, *metamem.MemoryStore, *stormem.MemoryStorage) {
	t.Helper()

	store := metamem.NewMemoryStore(metamem.Options{})
	backend := stormem.NewMemoryStorage()
	engine := NewEngine(store, backend, Options{})

	return engine, store, backend
}

// getItem loads an item outside any engine operation, for assertions.
func getItem(t *testing.T, store metadata.Store, id metadata.ItemID) *metadata.Item {
	t.Helper()

	var item *metadata.Item
	err := store.View(context.Background(), func(tx metadata.Tx) error {
		var err error
		item, err = tx.Get(id)
		return err
	})
	require.NoError(t, err)
	return item
}

func resolveItem(t *testing.T, engine *Engine, store metadata.Store, id metadata.ItemID) string {
	t.Helper()

	var path string
	err := store.View(context.Background(), func(tx metadata.Tx) error {
		item, err := tx.Get(id)
		if err != nil {
			return err
		}
		path, err = engine.Resolver().Resolve(tx, item)
		return err
	})
	require.NoError(t, err)
	return path
}

func TestCreateFolderAndFile(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	require.Equal(t, "docs", docs.Path)

	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "docs/a.txt", file.Path)

	// The resolved path matches the stored path and the storage state.
	require.Equal(t, "docs/a.txt", resolveItem(t, engine, store, file.ID))

	kind, ok := backend.Kind("docs")
	require.True(t, ok)
	require.Equal(t, storage.EntryDir, kind)

	content, ok := backend.Content("docs/a.txt")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), content)
}

func TestCreateValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	require.NoError(t, err)

	t.Run("EmptyName", func(t *testing.T) {
		_, err := engine.Create(ctx, &docs.ID, "", metadata.KindFolder, nil)
		require.Error(t, err)
	})

	t.Run("SeparatorInName", func(t *testing.T) {
		// A separator would create nested storage entries for one row.
		_, err := engine.Create(ctx, nil, "docs/sub", metadata.KindFolder, nil)
		require.Error(t, err)

		_, err = engine.Create(ctx, &docs.ID, `nested\b.txt`, metadata.KindFile, nil)
		require.Error(t, err)
	})

	t.Run("ReservedName", func(t *testing.T) {
		for _, name := range []string{".", ".."} {
			_, err := engine.Create(ctx, &docs.ID, name, metadata.KindFolder, nil)
			require.Error(t, err, name)
		}
	})

	t.Run("FileAtRoot", func(t *testing.T) {
		_, err := engine.Create(ctx, nil, "loose.txt", metadata.KindFile, nil)
		var invalidParent *metadata.InvalidParentError
		require.ErrorAs(t, err, &invalidParent)
	})

	t.Run("FileWithoutExtension", func(t *testing.T) {
		_, err := engine.Create(ctx, &docs.ID, "noext", metadata.KindFile, nil)
		require.Error(t, err)

		// A bare trailing dot is not an extension.
		_, err = engine.Create(ctx, &docs.ID, "trailing.", metadata.KindFile, nil)
		require.Error(t, err)
	})

	t.Run("FileAsParent", func(t *testing.T) {
		_, err := engine.Create(ctx, &file.ID, "nested.txt", metadata.KindFile, nil)
		var invalidParent *metadata.InvalidParentError
		require.ErrorAs(t, err, &invalidParent)
	})

	t.Run("UnknownParent", func(t *testing.T) {
		ghost := metadata.NewItemID()
		_, err := engine.Create(ctx, &ghost, "sub", metadata.KindFolder, nil)
		var notFound *metadata.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})
}

func TestCreateCollision(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)

	first, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	require.NoError(t, err)

	_, err = engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	var collision *metadata.CollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, first.ID, collision.ExistingID)
}

func TestCreateRollsBackOnStorageFailure(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	backend.FailNext("createDir", errors.New("disk full"))

	_, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	var storageErr *metadata.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "createDir", storageErr.Op)

	// The compensating rollback removed the inserted row.
	err = store.View(ctx, func(tx metadata.Tx) error {
		item, err := tx.ChildByName(nil, "docs")
		require.NoError(t, err)
		require.Nil(t, item)
		return nil
	})
	require.NoError(t, err)
}

func TestRenameFolderCascades(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, []byte("x"))
	require.NoError(t, err)

	renamed, err := engine.Rename(ctx, docs.ID, "documents")
	require.NoError(t, err)
	require.Equal(t, "documents", renamed.Name)
	require.Equal(t, "documents", renamed.Path)

	// The descendant's path follows, in metadata and in storage.
	require.Equal(t, "documents/a.txt", resolveItem(t, engine, store, file.ID))
	require.Equal(t, "documents/a.txt", getItem(t, store, file.ID).Path)

	_, ok := backend.Content("docs/a.txt")
	require.False(t, ok)
	_, ok = backend.Content("documents/a.txt")
	require.True(t, ok)
}

func TestRenameFilePreservesExtension(t *testing.T) {
	engine, _, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "report.pdf", metadata.KindFile, nil)
	require.NoError(t, err)

	renamed, err := engine.Rename(ctx, file.ID, "summary")
	require.NoError(t, err)
	require.Equal(t, "summary.pdf", renamed.Name)
	require.Equal(t, "docs/summary.pdf", renamed.Path)

	_, ok := backend.Content("docs/summary.pdf")
	require.True(t, ok)
}

func TestRenameRejectsInvalidNames(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "report.pdf", metadata.KindFile, nil)
	require.NoError(t, err)

	for _, name := range []string{"", "a/b", `a\b`, ".", ".."} {
		_, err := engine.Rename(ctx, docs.ID, name)
		require.Error(t, err, name)
	}

	// A trailing dot would strip the extension without replacing it.
	_, err = engine.Rename(ctx, file.ID, "summary.")
	require.Error(t, err)

	// Nothing changed.
	require.Equal(t, "docs", getItem(t, store, docs.ID).Name)
	require.Equal(t, "report.pdf", getItem(t, store, file.ID).Name)
}

func TestRenameCollision(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	first, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	require.NoError(t, err)
	second, err := engine.Create(ctx, &docs.ID, "b.txt", metadata.KindFile, nil)
	require.NoError(t, err)

	_, err = engine.Rename(ctx, second.ID, "a.txt")
	var collision *metadata.CollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, first.ID, collision.ExistingID)
}

func TestRenameStorageFailureLeavesMetadataUntouched(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)

	backend.FailNext("renameEntry", errors.New("permission denied"))

	_, err = engine.Rename(ctx, docs.ID, "documents")
	var storageErr *metadata.StorageError
	require.ErrorAs(t, err, &storageErr)

	got := getItem(t, store, docs.ID)
	require.Equal(t, "docs", got.Name)
	require.Equal(t, "docs", got.Path)
}

func TestMoveIntoDescendantFails(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	a, err := engine.Create(ctx, nil, "A", metadata.KindFolder, nil)
	require.NoError(t, err)
	b, err := engine.Create(ctx, &a.ID, "B", metadata.KindFolder, nil)
	require.NoError(t, err)

	_, err = engine.Move(ctx, a.ID, &b.ID)
	var cycle *metadata.CycleError
	require.ErrorAs(t, err, &cycle)

	// Self-move is a cycle too.
	_, err = engine.Move(ctx, a.ID, &a.ID)
	require.ErrorAs(t, err, &cycle)

	// Tree unchanged.
	require.Equal(t, "A/B", getItem(t, store, b.ID).Path)
}

func TestMoveFolderCascades(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	archive, err := engine.Create(ctx, nil, "archive", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, []byte("x"))
	require.NoError(t, err)

	moved, err := engine.Move(ctx, docs.ID, &archive.ID)
	require.NoError(t, err)
	require.Equal(t, "archive/docs", moved.Path)
	require.NotNil(t, moved.ParentID)
	require.Equal(t, archive.ID, *moved.ParentID)

	require.Equal(t, "archive/docs/a.txt", getItem(t, store, file.ID).Path)
	require.Equal(t, "archive/docs/a.txt", resolveItem(t, engine, store, file.ID))

	_, ok := backend.Content("archive/docs/a.txt")
	require.True(t, ok)
	_, ok = backend.Content("docs/a.txt")
	require.False(t, ok)
}

func TestMoveValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	require.NoError(t, err)

	t.Run("FileToRoot", func(t *testing.T) {
		_, err := engine.Move(ctx, file.ID, nil)
		var invalidParent *metadata.InvalidParentError
		require.ErrorAs(t, err, &invalidParent)
	})

	t.Run("FileAsTarget", func(t *testing.T) {
		sub, err := engine.Create(ctx, &docs.ID, "sub", metadata.KindFolder, nil)
		require.NoError(t, err)
		_, err = engine.Move(ctx, sub.ID, &file.ID)
		var invalidParent *metadata.InvalidParentError
		require.ErrorAs(t, err, &invalidParent)
	})

	t.Run("CollisionInTarget", func(t *testing.T) {
		other, err := engine.Create(ctx, nil, "other", metadata.KindFolder, nil)
		require.NoError(t, err)
		blocker, err := engine.Create(ctx, &other.ID, "a.txt", metadata.KindFile, nil)
		require.NoError(t, err)

		_, err = engine.Move(ctx, file.ID, &other.ID)
		var collision *metadata.CollisionError
		require.ErrorAs(t, err, &collision)
		require.Equal(t, blocker.ID, collision.ExistingID)
	})
}

func TestMoveStorageFailureLeavesMetadataUntouched(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	archive, err := engine.Create(ctx, nil, "archive", metadata.KindFolder, nil)
	require.NoError(t, err)

	backend.FailNext("moveEntry", errors.New("io error"))

	_, err = engine.Move(ctx, docs.ID, &archive.ID)
	var storageErr *metadata.StorageError
	require.ErrorAs(t, err, &storageErr)

	got := getItem(t, store, docs.ID)
	require.Nil(t, got.ParentID)
	require.Equal(t, "docs", got.Path)
}

func TestDeleteFolderRemovesSubtree(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	sub, err := engine.Create(ctx, &docs.ID, "sub", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &sub.ID, "deep.txt", metadata.KindFile, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, engine.Delete(ctx, docs.ID))

	err = store.View(ctx, func(tx metadata.Tx) error {
		for _, id := range []metadata.ItemID{docs.ID, sub.ID, file.ID} {
			_, err := tx.Get(id)
			var notFound *metadata.NotFoundError
			require.ErrorAs(t, err, &notFound)
		}
		return nil
	})
	require.NoError(t, err)

	exists, err := backend.PathExists(ctx, "docs")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDeleteStorageFailureKeepsMetadata(t *testing.T) {
	engine, store, backend := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
	require.NoError(t, err)

	backend.FailNext("deleteEntry", errors.New("permission denied"))

	err = engine.Delete(ctx, file.ID)
	var storageErr *metadata.StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "deleteEntry", storageErr.Op)

	// The metadata row is still present.
	got := getItem(t, store, file.ID)
	require.Equal(t, "a.txt", got.Name)
}

func TestListChildren(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		_, err := engine.Create(ctx, &docs.ID, name, metadata.KindFile, nil)
		require.NoError(t, err)
	}

	items, err := engine.ListChildren(ctx, &docs.ID, metadata.ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "a.txt", items[0].Name)

	items, err = engine.ListChildren(ctx, &docs.ID, metadata.ListOptions{Search: "b."})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "b.txt", items[0].Name)

	t.Run("UnknownParent", func(t *testing.T) {
		ghost := metadata.NewItemID()
		_, err := engine.ListChildren(ctx, &ghost, metadata.ListOptions{})
		var notFound *metadata.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("FileAsParent", func(t *testing.T) {
		file, err := engine.Create(ctx, &docs.ID, "d.txt", metadata.KindFile, nil)
		require.NoError(t, err)
		_, err = engine.ListChildren(ctx, &file.ID, metadata.ListOptions{})
		var invalidParent *metadata.InvalidParentError
		require.ErrorAs(t, err, &invalidParent)
	})
}
