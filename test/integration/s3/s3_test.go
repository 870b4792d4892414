//go:build integration

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/fileshelf/fileshelf/pkg/storage"
	storageS3 "github.com/fileshelf/fileshelf/pkg/storage/s3"
)

// setupTestS3 creates an S3 client and test bucket for integration tests.
//
// It connects to Localstack (or another S3-compatible endpoint) and creates a
// test bucket that is removed again by the returned cleanup function.
func setupTestS3(t *testing.T, bucketName string) (*s3.Client, func()) {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "",
		)),
	)
	require.NoError(t, err)

	// Path-style URLs are required for Localstack.
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	cleanup := func() {
		listResp, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucketName),
		})
		if listResp != nil {
			for _, obj := range listResp.Contents {
				client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(bucketName),
					Key:    obj.Key,
				})
			}
		}
		client.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(bucketName),
		})
	}

	return client, cleanup
}

// TestS3Storage_Integration exercises the S3 storage backend against a real
// S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT set)
//   - Run with: go test -tags=integration ./test/integration/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Storage_Integration(t *testing.T) {
	ctx := context.Background()

	client, cleanup := setupTestS3(t, "fileshelf-test-bucket")
	defer cleanup()

	backend, err := storageS3.NewS3Storage(ctx, storageS3.Config{
		Client:    client,
		Bucket:    "fileshelf-test-bucket",
		KeyPrefix: "trees/",
	})
	require.NoError(t, err)

	t.Run("CreateAndList", func(t *testing.T) {
		require.NoError(t, backend.CreateDir(ctx, "docs"))
		require.NoError(t, backend.WriteFile(ctx, "docs/a.txt", []byte("hello")))
		require.NoError(t, backend.CreateDir(ctx, "docs/sub"))

		entries, err := backend.ListDirEntries(ctx, "docs")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		byName := map[string]storage.EntryKind{}
		for _, e := range entries {
			byName[e.Name] = e.Kind
		}
		require.Equal(t, storage.EntryFile, byName["a.txt"])
		require.Equal(t, storage.EntryDir, byName["sub"])
	})

	t.Run("PathExists", func(t *testing.T) {
		exists, err := backend.PathExists(ctx, "docs/a.txt")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = backend.PathExists(ctx, "docs/sub")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = backend.PathExists(ctx, "docs/missing.txt")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("MoveCarriesSubtree", func(t *testing.T) {
		require.NoError(t, backend.MoveEntry(ctx, "docs", "archive"))

		exists, err := backend.PathExists(ctx, "docs")
		require.NoError(t, err)
		require.False(t, exists)

		exists, err = backend.PathExists(ctx, "archive/a.txt")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = backend.PathExists(ctx, "archive/sub")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("RenameFile", func(t *testing.T) {
		require.NoError(t, backend.RenameEntry(ctx, "archive/a.txt", "archive/b.txt"))

		exists, err := backend.PathExists(ctx, "archive/b.txt")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("DeleteEntry", func(t *testing.T) {
		// Non-recursive delete refuses a non-empty directory.
		require.Error(t, backend.DeleteEntry(ctx, "archive", false))

		require.NoError(t, backend.DeleteEntry(ctx, "archive", true))
		exists, err := backend.PathExists(ctx, "archive")
		require.NoError(t, err)
		require.False(t, exists)

		err = backend.DeleteEntry(ctx, "archive", true)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
