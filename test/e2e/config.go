package e2e

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fileshelf/fileshelf/pkg/metadata"
	metadatamemory "github.com/fileshelf/fileshelf/pkg/metadata/memory"
	metadatasqlite "github.com/fileshelf/fileshelf/pkg/metadata/sqlite"
	"github.com/fileshelf/fileshelf/pkg/storage"
	storagelocal "github.com/fileshelf/fileshelf/pkg/storage/local"
	storagememory "github.com/fileshelf/fileshelf/pkg/storage/memory"
	"github.com/fileshelf/fileshelf/pkg/tree"
)

// MetadataStoreType selects the metadata store for a test run.
type MetadataStoreType string

const (
	MetadataMemory MetadataStoreType = "memory"
	MetadataSQLite MetadataStoreType = "sqlite"
)

// StorageType selects the storage backend for a test run.
type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageLocal  StorageType = "local"
)

// TestConfig is one store/backend combination to run the scenarios against.
type TestConfig struct {
	Name          string
	MetadataStore MetadataStoreType
	Storage       StorageType
}

func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.MetadataStore, tc.Storage)
}

// allConfigs are the combinations exercised by every scenario. The S3 backend
// needs Localstack and is covered by the integration tests instead.
var allConfigs = []TestConfig{
	{Name: "memory-memory", MetadataStore: MetadataMemory, Storage: StorageMemory},
	{Name: "sqlite-local", MetadataStore: MetadataSQLite, Storage: StorageLocal},
}

// TestContext bundles the wired-up engine and its dependencies for one run.
type TestContext struct {
	Config  *TestConfig
	Store   metadata.Store
	Backend storage.Storage
	Engine  *tree.Engine
}

// Reconciler builds a reconciler sharing the engine's resolver.
func (tc *TestContext) Reconciler() *tree.Reconciler {
	return tree.NewReconciler(tc.Store, tc.Backend, tc.Engine.Resolver())
}

func newTestContext(t *testing.T, cfg *TestConfig) *TestContext {
	t.Helper()

	var store metadata.Store
	switch cfg.MetadataStore {
	case MetadataMemory:
		store = metadatamemory.NewMemoryStore(metadatamemory.Options{})
	case MetadataSQLite:
		var err error
		store, err = metadatasqlite.Open(filepath.Join(t.TempDir(), "fileshelf.db"), metadatasqlite.Options{})
		if err != nil {
			t.Fatalf("failed to open sqlite store: %v", err)
		}
	default:
		t.Fatalf("unknown metadata store type: %s", cfg.MetadataStore)
	}
	t.Cleanup(func() { store.Close() })

	var backend storage.Storage
	switch cfg.Storage {
	case StorageMemory:
		backend = storagememory.NewMemoryStorage()
	case StorageLocal:
		var err error
		backend, err = storagelocal.NewLocalStorage(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create local storage: %v", err)
		}
	default:
		t.Fatalf("unknown storage type: %s", cfg.Storage)
	}

	return &TestContext{
		Config:  cfg,
		Store:   store,
		Backend: backend,
		Engine:  tree.NewEngine(store, backend, tree.Options{}),
	}
}

// runOnAllConfigs runs testFunc once per store/backend combination.
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	for i := range allConfigs {
		cfg := &allConfigs[i]
		t.Run(cfg.Name, func(t *testing.T) {
			testFunc(t, newTestContext(t, cfg))
		})
	}
}
