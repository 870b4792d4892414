// Package local implements storage.Storage on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fileshelf/fileshelf/pkg/storage"
)

// LocalStorage stores entries under a base directory on the local filesystem.
//
// Thread Safety:
// Individual operations delegate to the OS and are safe to call concurrently;
// the tree engine serializes mutations that touch overlapping paths through
// its transaction scope.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local storage rooted at basePath, creating the
// directory if it does not exist.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage: base path is required")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// abs anchors a root-relative path under the base directory, rejecting
// escapes above the root.
func (s *LocalStorage) abs(path string) (string, error) {
	full := filepath.Join(s.basePath, path)
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

func (s *LocalStorage) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.abs(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(full, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (s *LocalStorage) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.abs(path)
	if err != nil {
		return err
	}

	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *LocalStorage) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, oldPath, newPath)
}

func (s *LocalStorage) MoveEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, oldPath, newPath)
}

// move implements both rename and move; on a local filesystem they are the
// same rename(2) call.
func (s *LocalStorage) move(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	oldFull, err := s.abs(oldPath)
	if err != nil {
		return err
	}
	newFull, err := s.abs(newPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldFull); os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", oldPath, storage.ErrNotFound)
	}

	if err := os.Rename(oldFull, newFull); err != nil {
		return fmt.Errorf("failed to rename entry: %w", err)
	}
	return nil
}

func (s *LocalStorage) DeleteEntry(ctx context.Context, path string, recursive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := s.abs(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(full); os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", path, storage.ErrNotFound)
	}

	if recursive {
		if err := os.RemoveAll(full); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		return nil
	}

	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (s *LocalStorage) PathExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	full, err := s.abs(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat entry: %w", err)
	}
	return true, nil
}

func (s *LocalStorage) ListDirEntries(ctx context.Context, path string) ([]storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := s.abs(path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]storage.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		kind := storage.EntryFile
		if de.IsDir() {
			kind = storage.EntryDir
		}
		entries = append(entries, storage.Entry{Name: de.Name(), Kind: kind})
	}

	return entries, nil
}
