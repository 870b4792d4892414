package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/fileshelf/fileshelf/internal/logger"
	"github.com/fileshelf/fileshelf/pkg/metadata"
	metadataMemory "github.com/fileshelf/fileshelf/pkg/metadata/memory"
	metadataSqlite "github.com/fileshelf/fileshelf/pkg/metadata/sqlite"
	"github.com/fileshelf/fileshelf/pkg/storage"
	storageLocal "github.com/fileshelf/fileshelf/pkg/storage/local"
	storageMemory "github.com/fileshelf/fileshelf/pkg/storage/memory"
	storageS3 "github.com/fileshelf/fileshelf/pkg/storage/s3"
)

// CreateMetadataStore creates a metadata store based on configuration.
//
// The Type field selects the implementation; the matching option map is
// decoded with mapstructure and passed to the store's constructor.
func CreateMetadataStore(cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return createSQLiteMetadataStore(cfg)
	case "memory":
		return metadataMemory.NewMemoryStore(metadataMemory.Options{
			CaseInsensitive: cfg.CaseInsensitive,
		}), nil
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

func createSQLiteMetadataStore(cfg *MetadataConfig) (metadata.Store, error) {
	type SQLiteStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg SQLiteStoreConfig
	if err := mapstructure.Decode(cfg.SQLite, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode sqlite store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("sqlite metadata store: path is required")
	}

	store, err := metadataSqlite.Open(storeCfg.Path, metadataSqlite.Options{
		CaseInsensitive: cfg.CaseInsensitive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite metadata store: %w", err)
	}

	logger.Info("sqlite metadata store opened: path=%s", storeCfg.Path)
	return store, nil
}

// CreateStorage creates a storage backend based on configuration.
func CreateStorage(ctx context.Context, cfg *StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "local":
		return createLocalStorage(cfg.Local)
	case "memory":
		return storageMemory.NewMemoryStorage(), nil
	case "s3":
		return createS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}
}

func createLocalStorage(options map[string]any) (storage.Storage, error) {
	type LocalStorageConfig struct {
		Root string `mapstructure:"root"`
	}

	var storeCfg LocalStorageConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode local storage config: %w", err)
	}

	if storeCfg.Root == "" {
		return nil, fmt.Errorf("local storage: root is required")
	}

	backend, err := storageLocal.NewLocalStorage(storeCfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create local storage: %w", err)
	}

	logger.Info("local storage initialized: root=%s", storeCfg.Root)
	return backend, nil
}

func createS3Storage(ctx context.Context, options map[string]any) (storage.Storage, error) {
	type S3StorageConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3StorageConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 storage config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("s3 storage: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint support for MinIO, Localstack, etc.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for compatibility with MinIO/Localstack
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	backend, err := storageS3.NewS3Storage(ctx, storageS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 storage: %w", err)
	}

	logger.Info("s3 storage initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return backend, nil
}
