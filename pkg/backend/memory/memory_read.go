package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// ============================================================================
// Read Operations
// ============================================================================

// Has reports whether path exists. The root always exists.
func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.lookup(path)
	return ok, nil
}

// GetMetadata returns the full metadata set; the memory backend has every
// field at hand.
func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(path)
	if !ok {
		return nil, fmt.Errorf("metadata %s: %w", path, backend.ErrNotFound)
	}

	m := b.describe(path, e)
	return &m, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(path)
	if !ok {
		return 0, fmt.Errorf("size %s: %w", path, backend.ErrNotFound)
	}
	return int64(len(e.data)), nil
}

func (b *Backend) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(path)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", path, backend.ErrNotFound)
	}
	return e.modified, nil
}

func (b *Backend) GetVisibility(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.cfg.DisableVisibility {
		return "", fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(path)
	if !ok {
		return "", fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
	}
	return e.visibility, nil
}

// ReadStream returns a view of the stored bytes.
//
// By default the view aliases the stored slice, which is safe because writes
// replace slices instead of mutating them. With ExclusiveReads the caller
// receives a private copy exposed through backend.ExclusiveStream.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.lookup(path)
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrNotFound)
	}
	if e.kind != backend.KindFile {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrIsDirectory)
	}

	if b.cfg.ExclusiveReads {
		data := make([]byte, len(e.data))
		copy(data, e.data)
		return &exclusiveStream{sharedStream: sharedStream{bytes.NewReader(data)}, data: data}, nil
	}

	return &sharedStream{bytes.NewReader(e.data)}, nil
}

// ListContents lists the entries below dir, sorted by path.
func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := b.children(dir, recursive)
	result := make([]backend.Metadata, 0, len(paths))
	for _, p := range paths {
		result = append(result, b.describe(p, b.entries[p]))
	}
	return result, nil
}

// sharedStream is a seekable read-only view over stored bytes.
type sharedStream struct {
	*bytes.Reader
}

func (s *sharedStream) Close() error {
	return nil
}

// exclusiveStream carries a private copy whose ownership can be released.
type exclusiveStream struct {
	sharedStream
	data []byte
}

func (s *exclusiveStream) Exclusive() []byte {
	data := s.data
	s.data = nil
	return data
}
