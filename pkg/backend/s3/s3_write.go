package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittostream/pkg/backend"
)

// maxDeleteBatch is the DeleteObjects limit per request.
const maxDeleteBatch = 1000

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.acl {
		return fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
	}

	acl := types.ObjectCannedACLPrivate
	switch visibility {
	case backend.VisibilityPublic:
		acl = types.ObjectCannedACLPublicRead
	case backend.VisibilityPrivate:
	default:
		return fmt.Errorf("unknown visibility %q", visibility)
	}

	_, err := b.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fileKey(path)),
		ACL:    acl,
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
		}
		return fmt.Errorf("failed to set ACL for %s: %w", path, err)
	}
	return nil
}

// WriteStream uploads r through the multipart uploader, which streams
// readers of unknown length in parts.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fileKey(path)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	obj, err := b.head(ctx, b.fileKey(path))
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("delete %s: %w", path, backend.ErrNotFound)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fileKey(path)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// Rename copies then deletes. Directories are moved object by object, which
// is not atomic: a failure midway leaves both trees partially populated.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if backend.IsChildOf(to, from) {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
	}

	obj, err := b.head(ctx, b.fileKey(from))
	if err != nil {
		return err
	}
	if obj != nil {
		if err := b.copyObject(ctx, b.fileKey(from), b.fileKey(to)); err != nil {
			return err
		}
		return b.deleteKeys(ctx, []string{b.fileKey(from)})
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
	return b.deleteKeys(ctx, keys)
}

// CreateDir writes a marker object. Parents stay implicit.
func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	obj, err := b.head(ctx, b.fileKey(path))
	if err != nil {
		return err
	}
	if obj != nil {
		return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.dirKey(path)),
		Body:   bytes.NewReader(nil),
	})
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
		if obj, err := b.head(ctx, b.fileKey(path)); err == nil && obj != nil {
			return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
		}
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotFound)
	}
	return b.deleteKeys(ctx, keys)
}

func (b *Backend) copyObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		CopySource: aws.String(copySource(b.bucket, srcKey)),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// copySource URL-encodes bucket/key segment by segment.
func copySource(bucket, key string) string {
	segments := strings.Split(bucket+"/"+key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// deleteKeys removes keys in batches of maxDeleteBatch.
func (b *Backend) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}
