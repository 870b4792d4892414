// Package s3 implements storage.Storage on Amazon S3 or S3-compatible object
// storage.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fileshelf/fileshelf/pkg/storage"
)

// S3Storage implements storage.Storage against an S3 bucket.
//
// Key Design:
//   - Tree paths map to slash-separated object keys under an optional prefix.
//   - Folders are represented by zero-byte marker objects with a trailing "/"
//     so empty folders survive (S3 has no real directories).
//   - The bucket therefore mirrors the metadata tree and stays inspectable.
//
// S3 has no rename: RenameEntry and MoveEntry are CopyObject + DeleteObject
// per key, applied to the whole subtree for folders. These are not atomic; as
// with every backend, the reconciler is the recovery mechanism for a crash
// mid-operation.
//
// Thread Safety:
// The S3 client is safe for concurrent use. Concurrent mutations of the same
// subtree are serialized by the tree engine's transaction scope.
type S3Storage struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// Config contains the settings for an S3 storage backend.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys, e.g. "fileshelf/".
	KeyPrefix string
}

// NewS3Storage creates an S3-backed storage and verifies bucket access.
func NewS3Storage(ctx context.Context, cfg Config) (*S3Storage, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 storage: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	s := &S3Storage{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return s, nil
}

// fileKey maps a tree path to the object key for a regular file.
func (s *S3Storage) fileKey(path string) string {
	return s.keyPrefix + filepath.ToSlash(path)
}

// dirKey maps a tree path to the marker key for a folder.
func (s *S3Storage) dirKey(path string) string {
	if path == "" {
		return s.keyPrefix
	}
	return s.keyPrefix + filepath.ToSlash(path) + "/"
}

func (s *S3Storage) CreateDir(ctx context.Context, path string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dirKey(path)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("failed to create directory marker: %w", err)
	}
	return nil
}

func (s *S3Storage) WriteFile(ctx context.Context, path string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fileKey(path)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (s *S3Storage) RenameEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, oldPath, newPath)
}

func (s *S3Storage) MoveEntry(ctx context.Context, oldPath, newPath string) error {
	return s.move(ctx, oldPath, newPath)
}

// move copies every key of the source entry to the destination and deletes
// the originals.
func (s *S3Storage) move(ctx context.Context, oldPath, newPath string) error {
	keys, isDir, err := s.entryKeys(ctx, oldPath)
	if err != nil {
		return err
	}

	oldBase := s.fileKey(oldPath)
	var newBase string
	if isDir {
		newBase = strings.TrimSuffix(s.dirKey(newPath), "/")
	} else {
		newBase = s.fileKey(newPath)
	}

	for _, key := range keys {
		destKey := newBase + key[len(oldBase):]
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(s.bucket + "/" + key),
			Key:        aws.String(destKey),
		})
		if err != nil {
			return fmt.Errorf("failed to copy %q: %w", key, err)
		}
	}

	return s.deleteKeys(ctx, keys)
}

func (s *S3Storage) DeleteEntry(ctx context.Context, path string, recursive bool) error {
	keys, isDir, err := s.entryKeys(ctx, path)
	if err != nil {
		return err
	}

	if isDir && !recursive && len(keys) > 1 {
		return fmt.Errorf("directory %q is not empty", path)
	}

	return s.deleteKeys(ctx, keys)
}

func (s *S3Storage) PathExists(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}

	if ok, err := s.objectExists(ctx, s.fileKey(path)); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	return s.objectExists(ctx, s.dirKey(path))
}

func (s *S3Storage) ListDirEntries(ctx context.Context, path string) ([]storage.Entry, error) {
	prefix := s.dirKey(path)

	if path != "" {
		exists, err := s.objectExists(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
		}
	}

	var entries []storage.Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				entries = append(entries, storage.Entry{Name: name, Kind: storage.EntryDir})
			}
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			// Skip the directory's own marker.
			if name == "" {
				continue
			}
			entries = append(entries, storage.Entry{Name: name, Kind: storage.EntryFile})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// entryKeys resolves the object keys making up the entry at path: a single
// key for a file, the marker plus every descendant key for a folder.
func (s *S3Storage) entryKeys(ctx context.Context, path string) ([]string, bool, error) {
	fileKey := s.fileKey(path)
	if ok, err := s.objectExists(ctx, fileKey); err != nil {
		return nil, false, err
	} else if ok {
		return []string{fileKey}, false, nil
	}

	dirKey := s.dirKey(path)
	exists, err := s.objectExists(ctx, dirKey)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, fmt.Errorf("%q: %w", path, storage.ErrNotFound)
	}

	keys := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(dirKey),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	// The folder's own marker object is included by the prefix listing.
	sort.Strings(keys)
	return keys, true, nil
}

// deleteKeys removes objects in DeleteObjects batches of up to 1000 keys.
func (s *S3Storage) deleteKeys(ctx context.Context, keys []string) error {
	const batchSize = 1000

	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
	}

	return nil
}

func (s *S3Storage) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}
