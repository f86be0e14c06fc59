package backend

import (
	"context"
	"io"
	"time"
)

// Waiter blocks until the caller may proceed. *ratelimiter.RateLimiter
// satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Throttle wraps b so that every call first waits on w. The returned backend
// forwards Close and exposes b through Unwrap.
func Throttle(b Backend, w Waiter) Backend {
	return &throttled{next: b, wait: w}
}

type throttled struct {
	next Backend
	wait Waiter
}

// Close closes the wrapped backend if it holds resources.
func (t *throttled) Close() error {
	if c, ok := t.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap exposes the throttled backend.
func (t *throttled) Unwrap() Backend {
	return t.next
}

func (t *throttled) Has(ctx context.Context, path string) (bool, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return false, err
	}
	return t.next.Has(ctx, path)
}

func (t *throttled) GetMetadata(ctx context.Context, path string) (*Metadata, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.GetMetadata(ctx, path)
}

func (t *throttled) GetSize(ctx context.Context, path string) (int64, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return 0, err
	}
	return t.next.GetSize(ctx, path)
}

func (t *throttled) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return time.Time{}, err
	}
	return t.next.GetTimestamp(ctx, path)
}

func (t *throttled) GetVisibility(ctx context.Context, path string) (string, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.GetVisibility(ctx, path)
}

func (t *throttled) SetVisibility(ctx context.Context, path string, visibility string) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.SetVisibility(ctx, path, visibility)
}

func (t *throttled) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ReadStream(ctx, path)
}

func (t *throttled) WriteStream(ctx context.Context, path string, r io.Reader) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.WriteStream(ctx, path, r)
}

func (t *throttled) Delete(ctx context.Context, path string) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.Delete(ctx, path)
}

func (t *throttled) Rename(ctx context.Context, from, to string) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.Rename(ctx, from, to)
}

func (t *throttled) CreateDir(ctx context.Context, path string) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.CreateDir(ctx, path)
}

func (t *throttled) DeleteDir(ctx context.Context, path string) error {
	if err := t.wait.Wait(ctx); err != nil {
		return err
	}
	return t.next.DeleteDir(ctx, path)
}

func (t *throttled) ListContents(ctx context.Context, dir string, recursive bool) ([]Metadata, error) {
	if err := t.wait.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListContents(ctx, dir, recursive)
}
