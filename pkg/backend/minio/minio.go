// Package minio implements a backend on MinIO and other S3-compatible
// stores through minio-go.
//
// The key layout matches package s3: files are objects under KeyPrefix,
// directories are "/"-terminated marker objects or implicit prefixes.
// MinIO has no object ACLs, so visibility is unsupported.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Config configures the MinIO backend.
type Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
}

// Backend implements backend.Backend on a MinIO bucket.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ backend.Backend = (*Backend)(nil)

// Dial connects to cfg.Endpoint and returns a backend on cfg.Bucket.
func Dial(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return New(ctx, client, cfg.Bucket, cfg.KeyPrefix)
}

// New wraps an existing client and verifies the bucket exists.
func New(ctx context.Context, client *minio.Client, bucket, prefix string) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %q does not exist", bucket)
	}

	return &Backend{client: client, bucket: bucket, prefix: prefix}, nil
}

// Capabilities reports that visibility is never available.
func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Unsupported: []string{backend.FieldVisibility}}
}

func (b *Backend) fileKey(path string) string {
	return b.prefix + path
}

func (b *Backend) dirKey(path string) string {
	if path == "" {
		return b.prefix
	}
	return b.prefix + path + "/"
}

func (b *Backend) pathOf(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, b.prefix), "/")
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// stat returns the object at key, or (nil, nil) if it does not exist.
func (b *Backend) stat(ctx context.Context, key string) (*minio.ObjectInfo, error) {
	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return &info, nil
}

func (b *Backend) isDir(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.dirKey(path),
		Recursive: true,
		MaxKeys:   1,
	}) {
		if obj.Err != nil {
			return false, fmt.Errorf("failed to probe directory %s: %w", path, obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (b *Backend) keysUnder(ctx context.Context, path string) ([]string, error) {
	var keys []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.dirKey(path),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", path, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if path != "" {
		info, err := b.stat(ctx, b.fileKey(path))
		if err != nil {
			return false, err
		}
		if info != nil {
			return true, nil
		}
	}
	return b.isDir(ctx, path)
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path != "" {
		info, err := b.stat(ctx, b.fileKey(path))
		if err != nil {
			return nil, err
		}
		if info != nil {
			size := info.Size
			ts := info.LastModified
			return &backend.Metadata{Path: path, Kind: backend.KindFile, Size: &size, Timestamp: &ts}, nil
		}
	}

	dir, err := b.isDir(ctx, path)
	if err != nil {
		return nil, err
	}
	if !dir {
		return nil, fmt.Errorf("metadata %s: %w", path, backend.ErrNotFound)
	}
	return &backend.Metadata{Path: path, Kind: backend.KindDir}, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	m, err := b.GetMetadata(ctx, path)
	if err != nil {
		return 0, err
	}
	if m.Size == nil {
		return 0, nil
	}
	return *m.Size, nil
}

func (b *Backend) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	m, err := b.GetMetadata(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	if m.Timestamp == nil {
		return time.Time{}, nil
	}
	return *m.Timestamp, nil
}

func (b *Backend) GetVisibility(ctx context.Context, path string) (string, error) {
	return "", fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
}

// ReadStream returns a *minio.Object, which is seekable: sessions read it in
// place through ranged requests until they mutate.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := b.stat(ctx, b.fileKey(path))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrNotFound)
	}

	obj, err := b.client.GetObject(ctx, b.bucket, b.fileKey(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	return obj, nil
}

func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(map[string]backend.Metadata)
	addDir := func(p string) {
		if p != "" && p != dir {
			if _, ok := entries[p]; !ok {
				entries[p] = backend.Metadata{Path: p, Kind: backend.KindDir}
			}
		}
	}

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.dirKey(dir),
		Recursive: recursive,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, obj.Err)
		}

		p := b.pathOf(obj.Key)
		if recursive {
			for parent := backend.Dirname(p); backend.IsChildOf(parent, dir); parent = backend.Dirname(parent) {
				addDir(parent)
			}
		}
		if strings.HasSuffix(obj.Key, "/") {
			addDir(p)
			continue
		}

		size := obj.Size
		ts := obj.LastModified
		entries[p] = backend.Metadata{Path: p, Kind: backend.KindFile, Size: &size, Timestamp: &ts}
	}

	result := make([]backend.Metadata, 0, len(entries))
	for _, m := range entries {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	return fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
}

// WriteStream uploads r with unknown length; minio-go switches to multipart
// uploads as needed.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	_, err := b.client.PutObject(ctx, b.bucket, b.fileKey(path), r, -1, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := b.stat(ctx, b.fileKey(path))
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("delete %s: %w", path, backend.ErrNotFound)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, b.fileKey(path), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if backend.IsChildOf(to, from) {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
	}

	info, err := b.stat(ctx, b.fileKey(from))
	if err != nil {
		return err
	}
	if info != nil {
		if err := b.copyObject(ctx, b.fileKey(from), b.fileKey(to)); err != nil {
			return err
		}
		return b.removeKeys(ctx, []string{b.fileKey(from)})
	}

	keys, err := b.keysUnder(ctx, from)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("rename %s: %w", from, backend.ErrNotFound)
	}

	src, dst := b.dirKey(from), b.dirKey(to)
	for _, key := range keys {
		if err := b.copyObject(ctx, key, dst+key[len(src):]); err != nil {
			return err
		}
	}
	return b.removeKeys(ctx, keys)
}

func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	info, err := b.stat(ctx, b.fileKey(path))
	if err != nil {
		return err
	}
	if info != nil {
		return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
	}

	_, err = b.client.PutObject(ctx, b.bucket, b.dirKey(path), strings.NewReader(""), 0, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to create directory marker %s: %w", path, err)
	}
	return nil
}

func (b *Backend) DeleteDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := b.keysUnder(ctx, path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		if info, err := b.stat(ctx, b.fileKey(path)); err == nil && info != nil {
			return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
		}
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotFound)
	}
	return b.removeKeys(ctx, keys)
}

func (b *Backend) copyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: b.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

func (b *Backend) removeKeys(ctx context.Context, keys []string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var firstErr error
	for rerr := range b.client.RemoveObjects(ctx, b.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return firstErr
}
