package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/metadata"
	metadatasqlite "github.com/fileshelf/fileshelf/pkg/metadata/sqlite"
	storagelocal "github.com/fileshelf/fileshelf/pkg/storage/local"
	"github.com/fileshelf/fileshelf/pkg/tree"
)

// TestFullLifecycle drives a tree through create, rename, move, list, and
// delete on every store/backend combination, verifying metadata and storage
// agree after each step.
func TestFullLifecycle(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		ctx := context.Background()

		docs, err := tc.Engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
		require.NoError(t, err)
		reports, err := tc.Engine.Create(ctx, &docs.ID, "reports", metadata.KindFolder, nil)
		require.NoError(t, err)
		q3, err := tc.Engine.Create(ctx, &reports.ID, "q3.pdf", metadata.KindFile, []byte("report"))
		require.NoError(t, err)
		require.Equal(t, "docs/reports/q3.pdf", q3.Path)

		exists, err := tc.Backend.PathExists(ctx, "docs/reports/q3.pdf")
		require.NoError(t, err)
		require.True(t, exists)

		// Rename the top folder; the whole subtree follows.
		_, err = tc.Engine.Rename(ctx, docs.ID, "documents")
		require.NoError(t, err)

		exists, err = tc.Backend.PathExists(ctx, "documents/reports/q3.pdf")
		require.NoError(t, err)
		require.True(t, exists)

		// Move reports to the root.
		_, err = tc.Engine.Move(ctx, reports.ID, nil)
		require.NoError(t, err)

		exists, err = tc.Backend.PathExists(ctx, "reports/q3.pdf")
		require.NoError(t, err)
		require.True(t, exists)

		children, err := tc.Engine.ListChildren(ctx, nil, metadata.ListOptions{})
		require.NoError(t, err)
		require.Len(t, children, 2)
		require.Equal(t, "documents", children[0].Name)
		require.Equal(t, "reports", children[1].Name)

		// Nothing drifted.
		report, err := tc.Reconciler().Reconcile(ctx, tree.ModeReport)
		require.NoError(t, err)
		require.True(t, report.Clean())

		// Delete the subtree holding the file.
		require.NoError(t, tc.Engine.Delete(ctx, reports.ID))

		exists, err = tc.Backend.PathExists(ctx, "reports")
		require.NoError(t, err)
		require.False(t, exists)

		children, err = tc.Engine.ListChildren(ctx, nil, metadata.ListOptions{})
		require.NoError(t, err)
		require.Len(t, children, 1)
	})
}

// TestReconcileRepairsDrift introduces out-of-band storage changes and checks
// that adopt and prune bring the two trees back into agreement.
func TestReconcileRepairsDrift(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		ctx := context.Background()

		docs, err := tc.Engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
		require.NoError(t, err)
		_, err = tc.Engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, []byte("x"))
		require.NoError(t, err)

		// Drift: a storage entry appears and another disappears behind the
		// engine's back.
		require.NoError(t, tc.Backend.WriteFile(ctx, "docs/stray.txt", []byte("y")))
		require.NoError(t, tc.Backend.DeleteEntry(ctx, "docs/a.txt", false))

		report, err := tc.Reconciler().Reconcile(ctx, tree.ModeReport)
		require.NoError(t, err)
		require.Len(t, report.Orphaned, 1)
		require.Len(t, report.Missing, 1)

		report, err = tc.Reconciler().Reconcile(ctx, tree.ModeAdopt)
		require.NoError(t, err)
		require.Equal(t, 1, report.Adopted)

		report, err = tc.Reconciler().Reconcile(ctx, tree.ModePrune)
		require.NoError(t, err)
		require.Equal(t, 1, report.Pruned)

		report, err = tc.Reconciler().Reconcile(ctx, tree.ModeReport)
		require.NoError(t, err)
		require.True(t, report.Clean())

		children, err := tc.Engine.ListChildren(ctx, &docs.ID, metadata.ListOptions{})
		require.NoError(t, err)
		require.Len(t, children, 1)
		require.Equal(t, "stray.txt", children[0].Name)
	})
}

// TestCollisionAcrossOperations checks sibling-name uniqueness end to end for
// create, rename, and move.
func TestCollisionAcrossOperations(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		ctx := context.Background()

		docs, err := tc.Engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
		require.NoError(t, err)
		a, err := tc.Engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
		require.NoError(t, err)
		b, err := tc.Engine.Create(ctx, &docs.ID, "b.txt", metadata.KindFile, nil)
		require.NoError(t, err)

		var collision *metadata.CollisionError

		_, err = tc.Engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, nil)
		require.ErrorAs(t, err, &collision)
		require.Equal(t, a.ID, collision.ExistingID)

		_, err = tc.Engine.Rename(ctx, b.ID, "a.txt")
		require.ErrorAs(t, err, &collision)

		other, err := tc.Engine.Create(ctx, nil, "other", metadata.KindFolder, nil)
		require.NoError(t, err)
		_, err = tc.Engine.Create(ctx, &other.ID, "b.txt", metadata.KindFile, nil)
		require.NoError(t, err)

		_, err = tc.Engine.Move(ctx, b.ID, &other.ID)
		require.ErrorAs(t, err, &collision)
	})
}

// TestSQLitePersistsAcrossReopen verifies the tree survives closing and
// reopening the database.
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "fileshelf.db")

	store, err := metadatasqlite.Open(dbPath, metadatasqlite.Options{})
	require.NoError(t, err)

	backend, err := storagelocal.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	engine := tree.NewEngine(store, backend, tree.Options{})

	docs, err := engine.Create(ctx, nil, "docs", metadata.KindFolder, nil)
	require.NoError(t, err)
	file, err := engine.Create(ctx, &docs.ID, "a.txt", metadata.KindFile, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Close())

	reopened, err := metadatasqlite.Open(dbPath, metadatasqlite.Options{})
	require.NoError(t, err)
	defer reopened.Close()

	var got *metadata.Item
	err = reopened.View(ctx, func(tx metadata.Tx) error {
		var err error
		got, err = tx.Get(file.ID)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, "docs/a.txt", got.Path)

	// The rebuilt engine stays consistent with the untouched backend.
	rebuilt := tree.NewEngine(reopened, backend, tree.Options{})
	report, err := tree.NewReconciler(reopened, backend, rebuilt.Resolver()).Reconcile(ctx, tree.ModeReport)
	require.NoError(t, err)
	require.True(t, report.Clean())
}
