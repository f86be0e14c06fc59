package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/backend/badger"
	fsbackend "github.com/marmos91/dittostream/pkg/backend/fs"
	"github.com/marmos91/dittostream/pkg/backend/memory"
	"github.com/marmos91/dittostream/pkg/backend/minio"
	"github.com/marmos91/dittostream/pkg/backend/mongodb"
	"github.com/marmos91/dittostream/pkg/backend/postgres"
	"github.com/marmos91/dittostream/pkg/backend/s3"
)

// CreateBackend creates a storage backend based on configuration.
//
// This factory function uses the Type field to determine which backend
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the backend's constructor.
//
// Supported types:
//   - "memory": Uses pkg/backend/memory (ephemeral, process-local)
//   - "filesystem": Uses pkg/backend/fs (directory on the local disk)
//   - "s3": Uses pkg/backend/s3 (Amazon S3 or compatible storage)
//   - "minio": Uses pkg/backend/minio (MinIO client)
//   - "badger": Uses pkg/backend/badger (embedded key-value store)
//   - "postgres": Uses pkg/backend/postgres (single table)
//   - "mongodb": Uses pkg/backend/mongodb (single collection)
//
// Unknown keys in the options map are rejected so that typos surface at
// startup instead of silently falling back to defaults.
func CreateBackend(ctx context.Context, cfg *BackendConfig) (backend.Backend, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryBackend(cfg.Memory)
	case "filesystem":
		return createFilesystemBackend(ctx, cfg.Filesystem)
	case "s3":
		return createS3Backend(ctx, cfg.S3)
	case "minio":
		return createMinIOBackend(ctx, cfg.MinIO)
	case "badger":
		return createBadgerBackend(ctx, cfg.Badger)
	case "postgres":
		return createPostgresBackend(ctx, cfg.Postgres)
	case "mongodb":
		return createMongoDBBackend(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

// decodeOptions decodes a backend options map into out. Numbers written as
// strings (e.g. from environment variables) are accepted.
func decodeOptions(kind string, options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("failed to decode %s backend config: %w", kind, err)
	}
	return nil
}

// createMemoryBackend creates an in-memory backend.
func createMemoryBackend(options map[string]any) (backend.Backend, error) {
	var cfg memory.Config
	if err := decodeOptions("memory", options, &cfg); err != nil {
		return nil, err
	}

	switch cfg.DefaultVisibility {
	case "", backend.VisibilityPublic, backend.VisibilityPrivate:
	default:
		return nil, fmt.Errorf("memory backend: invalid default_visibility %q", cfg.DefaultVisibility)
	}

	logger.Info("Initialized memory backend (exclusive_reads=%v, visibility=%v)", cfg.ExclusiveReads, !cfg.DisableVisibility)
	return memory.New(cfg), nil
}

// createFilesystemBackend creates a backend rooted at a local directory.
func createFilesystemBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var cfg fsbackend.Config
	if err := decodeOptions("filesystem", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.Root == "" {
		return nil, fmt.Errorf("filesystem backend: root is required")
	}

	b, err := fsbackend.NewOs(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem backend: %w", err)
	}

	logger.Info("Initialized filesystem backend at %s", cfg.Root)
	return b, nil
}

// createS3Backend creates an S3-backed backend.
func createS3Backend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	type S3BackendConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		ACL             bool   `mapstructure:"acl"`
		PartSize        int64  `mapstructure:"part_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var cfg S3BackendConfig
	if err := decodeOptions("s3", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	client, err := s3.NewClient(ctx, s3.ClientConfig{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		MaxRetries:      cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	b, err := s3.New(ctx, s3.Config{
		Client:    client,
		Bucket:    cfg.Bucket,
		KeyPrefix: cfg.KeyPrefix,
		ACL:       cfg.ACL,
		PartSize:  cfg.PartSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("Initialized S3 backend: bucket=%s region=%s prefix=%q", cfg.Bucket, cfg.Region, cfg.KeyPrefix)
	return b, nil
}

// createMinIOBackend creates a backend on top of the MinIO client.
func createMinIOBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var cfg minio.Config
	if err := decodeOptions("minio", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio backend: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio backend: bucket is required")
	}

	b, err := minio.Dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio backend: %w", err)
	}

	logger.Info("Initialized minio backend: endpoint=%s bucket=%s", cfg.Endpoint, cfg.Bucket)
	return b, nil
}

// createBadgerBackend creates a BadgerDB-backed backend.
func createBadgerBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var cfg badger.Config
	if err := decodeOptions("badger", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger backend: path is required unless in_memory is set")
	}

	b, err := badger.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger backend: %w", err)
	}

	logger.Info("Initialized badger backend (path=%q, in_memory=%v, compression=%v)", cfg.Path, cfg.InMemory, cfg.Compression)
	return b, nil
}

// createPostgresBackend creates a PostgreSQL-backed backend.
func createPostgresBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var cfg postgres.Config
	if err := decodeOptions("postgres", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres backend: dsn is required")
	}

	b, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres backend: %w", err)
	}

	logger.Info("Initialized postgres backend: table=%s namespace=%q", cfg.Table, cfg.Namespace)
	return b, nil
}

// createMongoDBBackend creates a MongoDB-backed backend.
func createMongoDBBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var cfg mongodb.Config
	if err := decodeOptions("mongodb", options, &cfg); err != nil {
		return nil, err
	}

	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb backend: uri is required")
	}

	b, err := mongodb.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb backend: %w", err)
	}

	logger.Info("Initialized mongodb backend: database=%s collection=%s", cfg.Database, cfg.Collection)
	return b, nil
}
