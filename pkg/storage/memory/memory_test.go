package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/storage"
)

func TestCreateDirCreatesAncestors(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "a/b/c"))

	for _, path := range []string{"a", "a/b", "a/b/c"} {
		kind, ok := s.Kind(path)
		require.True(t, ok, path)
		require.Equal(t, storage.EntryDir, kind)
	}
}

func TestWriteFileRejectsDirectoryPath(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "docs"))
	require.Error(t, s.WriteFile(ctx, "docs", []byte("x")))
}

func TestMoveCarriesSubtree(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "docs/sub"))
	require.NoError(t, s.WriteFile(ctx, "docs/sub/a.txt", []byte("x")))

	require.NoError(t, s.MoveEntry(ctx, "docs", "archive"))

	_, ok := s.Kind("docs")
	require.False(t, ok)
	content, ok := s.Content("archive/sub/a.txt")
	require.True(t, ok)
	require.Equal(t, []byte("x"), content)

	err := s.MoveEntry(ctx, "gone", "elsewhere")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteEntryNonRecursive(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "docs"))
	require.NoError(t, s.WriteFile(ctx, "docs/a.txt", []byte("x")))

	require.Error(t, s.DeleteEntry(ctx, "docs", false))
	require.NoError(t, s.DeleteEntry(ctx, "docs", true))

	_, ok := s.Kind("docs/a.txt")
	require.False(t, ok)
}

func TestListDirEntriesSortedDirectChildren(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.CreateDir(ctx, "docs/sub"))
	require.NoError(t, s.WriteFile(ctx, "docs/b.txt", nil))
	require.NoError(t, s.WriteFile(ctx, "docs/a.txt", nil))
	require.NoError(t, s.WriteFile(ctx, "docs/sub/deep.txt", nil))

	entries, err := s.ListDirEntries(ctx, "docs")
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)

	_, err = s.ListDirEntries(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFailNextIsOneShot(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	boom := errors.New("boom")
	s.FailNext("createDir", boom)

	require.ErrorIs(t, s.CreateDir(ctx, "docs"), boom)
	require.NoError(t, s.CreateDir(ctx, "docs"))

	// "*" matches any operation.
	s.FailNext("*", boom)
	_, err := s.PathExists(ctx, "docs")
	require.ErrorIs(t, err, boom)
}
