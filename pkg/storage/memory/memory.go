// Package memory implements storage.Storage with in-memory state, primarily
// for tests that need to fake the byte-storage side or inject failures.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fileshelf/fileshelf/pkg/storage"
)

type entry struct {
	kind storage.EntryKind
	data []byte
}

// MemoryStorage keeps entries in a path-keyed map. The root directory exists
// implicitly.
//
// Fault Injection:
// FailNext arms a one-shot error for the next invocation of the named
// operation, letting tests exercise the engine's compensation and
// filesystem-first ordering without a real failing disk.
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]*entry

	failOp  string
	failErr error
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]*entry)}
}

// FailNext arms a one-shot failure for the next call of op. Valid ops are the
// Storage method names in lowerCamelCase ("createDir", "writeFile",
// "renameEntry", "moveEntry", "deleteEntry", "pathExists", "listDirEntries")
// or "*" for any.
func (s *MemoryStorage) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOp = op
	s.failErr = err
}

// takeFailure consumes an armed failure matching op, if any. Caller must hold
// the mutex.
func (s *MemoryStorage) takeFailure(op string) error {
	if s.failErr != nil && (s.failOp == op || s.failOp == "*") {
		err := s.failErr
		s.failOp = ""
		s.failErr = nil
		return err
	}
	return nil
}

func (s *MemoryStorage) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("createDir"); err != nil {
		return err
	}

	// Create missing ancestors as well, mirroring os.MkdirAll.
	for _, dir := range ancestorsOf(path) {
		if existing, ok := s.entries[dir]; ok && existing.kind != storage.EntryDir {
			return fmt.Errorf("path %q exists and is not a directory", dir)
		}
		s.entries[dir] = &entry{kind: storage.EntryDir}
	}

	return nil
}

func (s *MemoryStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("writeFile"); err != nil {
		return err
	}

	if existing, ok := s.entries[path]; ok && existing.kind == storage.EntryDir {
		return fmt.Errorf("path %q is a directory", path)
	}

	s.entries[path] = &entry{kind: storage.EntryFile, data: append([]byte(nil), data...)}
	return nil
}

func (s *MemoryStorage) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, "renameEntry", oldPath, newPath)
}

func (s *MemoryStorage) MoveEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, "moveEntry", oldPath, newPath)
}

func (s *MemoryStorage) move(ctx context.Context, op, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(op); err != nil {
		return err
	}

	source, ok := s.entries[oldPath]
	if !ok {
		return fmt.Errorf("%q: %w", oldPath, storage.ErrNotFound)
	}

	sep := string(filepath.Separator)
	prefix := oldPath + sep

	// Move the entry and, for directories, everything underneath it.
	moved := map[string]*entry{newPath: source}
	for path, e := range s.entries {
		if strings.HasPrefix(path, prefix) {
			moved[newPath+path[len(oldPath):]] = e
		}
	}

	delete(s.entries, oldPath)
	for path := range s.entries {
		if strings.HasPrefix(path, prefix) {
			delete(s.entries, path)
		}
	}
	for path, e := range moved {
		s.entries[path] = e
	}

	return nil
}

func (s *MemoryStorage) DeleteEntry(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("deleteEntry"); err != nil {
		return err
	}

	target, ok := s.entries[path]
	if !ok {
		return fmt.Errorf("%q: %w", path, storage.ErrNotFound)
	}

	sep := string(filepath.Separator)
	prefix := path + sep

	if target.kind == storage.EntryDir && !recursive {
		for other := range s.entries {
			if strings.HasPrefix(other, prefix) {
				return fmt.Errorf("directory %q is not empty", path)
			}
		}
	}

	delete(s.entries, path)
	for other := range s.entries {
		if strings.HasPrefix(other, prefix) {
			delete(s.entries, other)
		}
	}

	return nil
}

func (s *MemoryStorage) PathExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("pathExists"); err != nil {
		return false, err
	}

	if path == "" {
		return true, nil
	}
	_, ok := s.entries[path]
	return ok, nil
}

func (s *MemoryStorage) ListDirEntries(ctx context.Context, path string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure("listDirEntries"); err != nil {
		return nil, err
	}

	if path != "" {
		dir, ok := s.entries[path]
		if !ok {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
		}
		if dir.kind != storage.EntryDir {
			return nil, fmt.Errorf("path %q is not a directory", path)
		}
	}

	sep := string(filepath.Separator)
	prefix := ""
	if path != "" {
		prefix = path + sep
	}

	var entries []storage.Entry
	for other, e := range s.entries {
		if !strings.HasPrefix(other, prefix) {
			continue
		}
		rest := other[len(prefix):]
		if rest == "" || strings.Contains(rest, sep) {
			continue
		}
		entries = append(entries, storage.Entry{Name: rest, Kind: e.kind})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Kind returns the kind of the entry at path, for test assertions.
func (s *MemoryStorage) Kind(path string) (storage.EntryKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok {
		return "", false
	}
	return e.kind, true
}

// Content returns the file data at path, for test assertions.
func (s *MemoryStorage) Content(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[path]
	if !ok || e.kind != storage.EntryFile {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// ancestorsOf returns path and all of its ancestors, shallowest first.
func ancestorsOf(path string) []string {
	sep := string(filepath.Separator)
	parts := strings.Split(path, sep)

	out := make([]string, 0, len(parts))
	for i := range parts {
		out = append(out, strings.Join(parts[:i+1], sep))
	}
	return out
}
