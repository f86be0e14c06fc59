// Package stream reconciles POSIX-style stream semantics with coarse
// whole-object backends.
//
// A Filesystem serves one registry binding. It opens Sessions (positional,
// partially-read and partially-written file handles buffered in memory),
// emulates stat records, validates rename/mkdir/rmdir preconditions and
// snapshots directory listings. Every failure is returned as an *Error whose
// Code tells the host how to surface it.
package stream

import (
	"context"
	"os"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/lock"
	"github.com/marmos91/dittostream/pkg/registry"
)

// Options tunes a Filesystem.
type Options struct {
	// Locks relays advisory locks. Default: a relay on lock.DefaultDir().
	Locks *lock.Relay

	// Clock supplies access times. Default: time.Now.
	Clock func() time.Time
}

// Filesystem runs stream operations against a single binding.
//
// Thread Safety:
// Filesystem holds no mutable state of its own and may be shared. The
// Sessions and Listings it returns are not safe for concurrent use.
type Filesystem struct {
	binding *registry.Binding
	locks   *lock.Relay
	now     func() time.Time
	uid     int64
	gid     int64
}

// New creates a Filesystem for binding.
func New(binding *registry.Binding, opts Options) *Filesystem {
	if opts.Locks == nil {
		opts.Locks = lock.NewRelay("")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Filesystem{
		binding: binding,
		locks:   opts.Locks,
		now:     opts.Clock,
		uid:     int64(os.Getuid()),
		gid:     int64(os.Getgid()),
	}
}

// Binding returns the binding served by f.
func (f *Filesystem) Binding() *registry.Binding {
	return f.binding
}

// Protocol returns the bound protocol name.
func (f *Filesystem) Protocol() string {
	return f.binding.Protocol
}

func (f *Filesystem) backend() backend.Backend {
	return f.binding.Backend
}

// resolve normalizes a logical path for op.
func (f *Filesystem) resolve(op, path string) (string, error) {
	normalized, err := backend.NormalizePath(path)
	if err != nil {
		return "", newError(ErrGeneric, op, path, err)
	}
	return normalized, nil
}

// lookup fetches the metadata of path. The root is a public directory, and a
// backend that answers without a usable kind is treated as not found.
func (f *Filesystem) lookup(ctx context.Context, path string) (*backend.Metadata, error) {
	if path == "" {
		return &backend.Metadata{Kind: backend.KindDir, Visibility: backend.VisibilityPublic}, nil
	}

	m, err := f.backend().GetMetadata(ctx, path)
	if err != nil {
		return nil, err
	}
	if m == nil || (m.Kind != backend.KindFile && m.Kind != backend.KindDir) {
		return nil, backend.ErrNotFound
	}
	return m, nil
}

// exists reports whether path exists. The root always does.
func (f *Filesystem) exists(ctx context.Context, path string) (bool, error) {
	if path == "" {
		return true, nil
	}
	return f.backend().Has(ctx, path)
}
