package metrics

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Instrument wraps b so that every call is reported to m under protocol.
// Streams are passed through untouched, so shared and exclusive read
// streams keep their zero-copy behavior. A nil m returns b unchanged.
func Instrument(protocol string, b backend.Backend, m BackendMetrics) backend.Backend {
	if m == nil {
		return b
	}
	return &instrumented{next: b, protocol: protocol, metrics: m}
}

type instrumented struct {
	next     backend.Backend
	protocol string
	metrics  BackendMetrics
}

func (i *instrumented) record(operation string, start time.Time, err error) {
	i.metrics.RecordCall(i.protocol, operation, time.Since(start), err)
}

// Close closes the wrapped backend if it holds resources.
func (i *instrumented) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap exposes the instrumented backend.
func (i *instrumented) Unwrap() backend.Backend {
	return i.next
}

func (i *instrumented) Has(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := i.next.Has(ctx, path)
	i.record("Has", start, err)
	return ok, err
}

func (i *instrumented) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	start := time.Now()
	m, err := i.next.GetMetadata(ctx, path)
	i.record("GetMetadata", start, err)
	return m, err
}

func (i *instrumented) GetSize(ctx context.Context, path string) (int64, error) {
	start := time.Now()
	size, err := i.next.GetSize(ctx, path)
	i.record("GetSize", start, err)
	return size, err
}

func (i *instrumented) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	start := time.Now()
	ts, err := i.next.GetTimestamp(ctx, path)
	i.record("GetTimestamp", start, err)
	return ts, err
}

func (i *instrumented) GetVisibility(ctx context.Context, path string) (string, error) {
	start := time.Now()
	v, err := i.next.GetVisibility(ctx, path)
	i.record("GetVisibility", start, err)
	return v, err
}

func (i *instrumented) SetVisibility(ctx context.Context, path string, visibility string) error {
	start := time.Now()
	err := i.next.SetVisibility(ctx, path, visibility)
	i.record("SetVisibility", start, err)
	return err
}

func (i *instrumented) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := i.next.ReadStream(ctx, path)
	i.record("ReadStream", start, err)
	return rc, err
}

func (i *instrumented) WriteStream(ctx context.Context, path string, r io.Reader) error {
	start := time.Now()
	err := i.next.WriteStream(ctx, path, r)
	i.record("WriteStream", start, err)
	return err
}

func (i *instrumented) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.Delete(ctx, path)
	i.record("Delete", start, err)
	return err
}

func (i *instrumented) Rename(ctx context.Context, from, to string) error {
	start := time.Now()
	err := i.next.Rename(ctx, from, to)
	i.record("Rename", start, err)
	return err
}

func (i *instrumented) CreateDir(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.CreateDir(ctx, path)
	i.record("CreateDir", start, err)
	return err
}

func (i *instrumented) DeleteDir(ctx context.Context, path string) error {
	start := time.Now()
	err := i.next.DeleteDir(ctx, path)
	i.record("DeleteDir", start, err)
	return err
}

func (i *instrumented) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	start := time.Now()
	entries, err := i.next.ListContents(ctx, dir, recursive)
	i.record("ListContents", start, err)
	return entries, err
}
