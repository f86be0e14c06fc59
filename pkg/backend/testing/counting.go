package testing

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Counting decorates a backend and records how often each method runs.
// Tests use it to prove that an operation touched the backend only in the
// expected ways, or not at all.
type Counting struct {
	inner backend.Backend

	mu    sync.Mutex
	calls map[string]int
}

var (
	_ backend.Backend = (*Counting)(nil)
	_ backend.Wrapper = (*Counting)(nil)
)

// NewCounting wraps b.
func NewCounting(b backend.Backend) *Counting {
	return &Counting{inner: b, calls: make(map[string]int)}
}

func (c *Counting) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

// Calls returns how often method ran since the last Reset.
func (c *Counting) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Total returns the number of calls of any method since the last Reset.
func (c *Counting) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// Methods lists the methods called since the last Reset.
func (c *Counting) Methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	methods := make([]string, 0, len(c.calls))
	for m := range c.calls {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Reset clears all counters.
func (c *Counting) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
}

func (c *Counting) Unwrap() backend.Backend {
	return c.inner
}

func (c *Counting) Has(ctx context.Context, path string) (bool, error) {
	c.record("Has")
	return c.inner.Has(ctx, path)
}

func (c *Counting) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	c.record("GetMetadata")
	return c.inner.GetMetadata(ctx, path)
}

func (c *Counting) GetSize(ctx context.Context, path string) (int64, error) {
	c.record("GetSize")
	return c.inner.GetSize(ctx, path)
}

func (c *Counting) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	c.record("GetTimestamp")
	return c.inner.GetTimestamp(ctx, path)
}

func (c *Counting) GetVisibility(ctx context.Context, path string) (string, error) {
	c.record("GetVisibility")
	return c.inner.GetVisibility(ctx, path)
}

func (c *Counting) SetVisibility(ctx context.Context, path string, visibility string) error {
	c.record("SetVisibility")
	return c.inner.SetVisibility(ctx, path, visibility)
}

func (c *Counting) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	c.record("ReadStream")
	return c.inner.ReadStream(ctx, path)
}

func (c *Counting) WriteStream(ctx context.Context, path string, r io.Reader) error {
	c.record("WriteStream")
	return c.inner.WriteStream(ctx, path, r)
}

func (c *Counting) Delete(ctx context.Context, path string) error {
	c.record("Delete")
	return c.inner.Delete(ctx, path)
}

func (c *Counting) Rename(ctx context.Context, from, to string) error {
	c.record("Rename")
	return c.inner.Rename(ctx, from, to)
}

func (c *Counting) CreateDir(ctx context.Context, path string) error {
	c.record("CreateDir")
	return c.inner.CreateDir(ctx, path)
}

func (c *Counting) DeleteDir(ctx context.Context, path string) error {
	c.record("DeleteDir")
	return c.inner.DeleteDir(ctx, path)
}

func (c *Counting) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	c.record("ListContents")
	return c.inner.ListContents(ctx, dir, recursive)
}
