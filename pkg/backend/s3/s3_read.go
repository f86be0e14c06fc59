package s3

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittostream/pkg/backend"
)

// allUsersURI identifies the public grantee group in object ACLs.
const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	obj, err := b.head(ctx, b.fileKey(path))
	if err != nil {
		return false, err
	}
	if obj != nil && path != "" {
		return true, nil
	}
	return b.isDir(ctx, path)
}

// GetMetadata heads the file object and falls back to a directory probe.
func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if path != "" {
		obj, err := b.head(ctx, b.fileKey(path))
		if err != nil {
			return nil, err
		}
		if obj != nil {
			size := aws.ToInt64(obj.ContentLength)
			m := &backend.Metadata{Path: path, Kind: backend.KindFile, Size: &size}
			if obj.LastModified != nil {
				ts := *obj.LastModified
				m.Timestamp = &ts
			}
			return m, nil
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

// GetTimestamp returns the object's last modification. Implicit directories
// have no timestamp of their own and report the zero time.
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

// GetVisibility inspects the object ACL for a public read grant.
func (b *Backend) GetVisibility(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !b.acl {
		return "", fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
	}

	out, err := b.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fileKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get ACL for %s: %w", path, err)
	}

	for _, grant := range out.Grants {
		if grant.Grantee != nil && aws.ToString(grant.Grantee.URI) == allUsersURI &&
			(grant.Permission == types.PermissionRead || grant.Permission == types.PermissionFullControl) {
			return backend.VisibilityPublic, nil
		}
	}
	return backend.VisibilityPrivate, nil
}

// ReadStream returns the object body. S3 bodies are not seekable, so the
// stream layer copies them into its own buffer.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fileKey(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("read %s: %w", path, backend.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", path, err)
	}
	return out.Body, nil
}

// ListContents lists a directory. Non-recursive listings use the "/"
// delimiter so sub-directories arrive as common prefixes; recursive listings
// synthesize the implicit directories between the root and every key.
func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.dirKey(dir)),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	entries := make(map[string]backend.Metadata)
	addDir := func(p string) {
		if p != "" && p != dir {
			if _, ok := entries[p]; !ok {
				entries[p] = backend.Metadata{Path: p, Kind: backend.KindDir}
			}
		}
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		for _, cp := range page.CommonPrefixes {
			addDir(b.pathOf(aws.ToString(cp.Prefix)))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			p := b.pathOf(key)

			if recursive {
				for parent := backend.Dirname(p); backend.IsChildOf(parent, dir); parent = backend.Dirname(parent) {
					addDir(parent)
				}
			}

			if strings.HasSuffix(key, "/") {
				addDir(p)
				continue
			}

			size := aws.ToInt64(obj.Size)
			m := backend.Metadata{Path: p, Kind: backend.KindFile, Size: &size}
			if obj.LastModified != nil {
				ts := *obj.LastModified
				m.Timestamp = &ts
			}
			entries[p] = m
		}
	}

	result := make([]backend.Metadata, 0, len(entries))
	for _, m := range entries {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}
