// Package s3 implements a backend on Amazon S3 and S3-compatible services.
//
// Files map to objects keyed by KeyPrefix + path. Directories exist either
// explicitly, as zero-length marker objects whose key ends with "/", or
// implicitly, whenever some object key lives below them.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Config configures the S3 backend.
type Config struct {
	// Client is a configured S3 client. Required.
	Client *s3.Client

	// Bucket is the S3 bucket name. Required.
	Bucket string

	// KeyPrefix is prepended to every object key (e.g. "streams/").
	KeyPrefix string

	// ACL enables visibility through canned object ACLs (public-read or
	// private). Buckets with object ownership enforced reject ACLs, so it is
	// off by default and visibility then reports backend.ErrNotSupported.
	ACL bool

	// PartSize is the multipart upload part size used by WriteStream.
	// Defaults to the uploader's 5MB minimum.
	PartSize int64
}

// Backend implements backend.Backend on a bucket.
//
// Thread Safety:
// Safe for concurrent use; all state lives in S3.
type Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	acl      bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates an S3 backend and verifies that the bucket is reachable.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	// ========================================================================
	// Step 1: Validate configuration
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.PartSize != 0 && cfg.PartSize < manager.MinUploadPartSize {
		return nil, fmt.Errorf("part size must be at least %d bytes, got %d", manager.MinUploadPartSize, cfg.PartSize)
	}

	// ========================================================================
	// Step 2: Verify bucket access
	// ========================================================================

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	uploader := manager.NewUploader(cfg.Client, func(u *manager.Uploader) {
		if cfg.PartSize != 0 {
			u.PartSize = cfg.PartSize
		}
	})

	return &Backend{
		client:   cfg.Client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		acl:      cfg.ACL,
	}, nil
}

// Capabilities reports visibility as unsupported unless ACLs are enabled.
func (b *Backend) Capabilities() backend.Capabilities {
	if b.acl {
		return backend.Capabilities{}
	}
	return backend.Capabilities{Unsupported: []string{backend.FieldVisibility}}
}

// fileKey is the object key of a file.
func (b *Backend) fileKey(path string) string {
	return b.prefix + path
}

// dirKey is the key prefix shared by everything inside a directory; for
// explicit directories it is also the key of the marker object.
func (b *Backend) dirKey(path string) string {
	if path == "" {
		return b.prefix
	}
	return b.prefix + path + "/"
}

// pathOf maps an object key back to a normalized backend path.
func (b *Backend) pathOf(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, b.prefix), "/")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// head returns the object at key, or (nil, nil) when it does not exist.
func (b *Backend) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return out, nil
}

// isDir reports whether path is an explicit or implicit directory.
func (b *Backend) isDir(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(b.dirKey(path)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to probe directory %s: %w", path, err)
	}
	return len(out.Contents) > 0, nil
}

// keysUnder returns every object key at or below the directory path,
// including its marker.
func (b *Backend) keysUnder(ctx context.Context, path string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.dirKey(path)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", path, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
