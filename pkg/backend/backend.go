// Package backend defines the coarse storage capability set that the stream
// layer reconciles with POSIX-like stream semantics.
//
// A backend only knows whole objects: it can hand out a readable stream for a
// path, replace a path's content from a stream, list a directory, report
// metadata and delete things. Positional I/O, append, truncate, locking and
// stat emulation all live above it, in package stream.
//
// Paths handed to a backend are always normalized (see NormalizePath): no
// leading or trailing slash, no "." or ".." segments, and "" for the root.
package backend

import (
	"context"
	"io"
	"time"
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Standard visibility values. Backends may also report a numeric octal
// string (for example "0640"), which the stat adapter parses directly.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Metadata field names, used for the required-metadata list of a binding and
// for capability negotiation.
const (
	FieldTimestamp  = "timestamp"
	FieldSize       = "size"
	FieldVisibility = "visibility"
)

// Metadata describes one entry. Optional fields are nil (or empty for
// Visibility) when the backend did not provide them in the base lookup.
type Metadata struct {
	Path       string
	Kind       Kind
	Size       *int64
	Timestamp  *time.Time
	Visibility string
}

// IsDir reports whether the entry is a directory.
func (m *Metadata) IsDir() bool {
	return m.Kind == KindDir
}

// Backend is the capability surface consumed by the stream layer.
//
// Every method takes a context; implementations should return ctx.Err()
// early when it is already done. Missing paths are reported by wrapping
// ErrNotFound, missing capabilities by wrapping ErrNotSupported.
type Backend interface {
	// Has reports whether a file or directory exists at path.
	Has(ctx context.Context, path string) (bool, error)

	// GetMetadata returns the base metadata set (kind plus whatever else is
	// cheap to obtain) or ErrNotFound.
	GetMetadata(ctx context.Context, path string) (*Metadata, error)

	GetSize(ctx context.Context, path string) (int64, error)
	GetTimestamp(ctx context.Context, path string) (time.Time, error)
	GetVisibility(ctx context.Context, path string) (string, error)
	SetVisibility(ctx context.Context, path string, visibility string) error

	// ReadStream opens the content of a file for reading. The caller closes
	// the returned stream. See ExclusiveStream for ownership hand-off.
	ReadStream(ctx context.Context, path string) (io.ReadCloser, error)

	// WriteStream creates or replaces the content at path with everything
	// read from r. Missing parent directories are created.
	WriteStream(ctx context.Context, path string, r io.Reader) error

	Delete(ctx context.Context, path string) error
	Rename(ctx context.Context, from, to string) error

	// CreateDir creates path and any missing parents. Creating an existing
	// directory succeeds.
	CreateDir(ctx context.Context, path string) error

	// DeleteDir removes path and everything below it.
	DeleteDir(ctx context.Context, path string) error

	// ListContents returns the entries below dir with full paths. A missing
	// directory lists as empty.
	ListContents(ctx context.Context, dir string, recursive bool) ([]Metadata, error)
}

// ExclusiveStream is implemented by read streams whose bytes the backend
// hands over for exclusive use. A session may adopt those bytes as its
// private buffer without duplicating them.
type ExclusiveStream interface {
	io.ReadCloser

	// Exclusive releases the underlying bytes to the caller. The stream must
	// not be used afterwards except for Close.
	Exclusive() []byte
}

// Capabilities lists metadata fields a backend can never produce.
type Capabilities struct {
	Unsupported []string
}

// CapabilityReporter is implemented by backends that know their gaps up
// front, which spares the registry from probing them.
type CapabilityReporter interface {
	Capabilities() Capabilities
}

// Wrapper is implemented by decorators such as the one returned by Throttle.
type Wrapper interface {
	Unwrap() Backend
}

// ReportedCapabilities looks for a CapabilityReporter through any chain of
// decorators. ok is false when no layer reports capabilities.
func ReportedCapabilities(b Backend) (caps Capabilities, ok bool) {
	for b != nil {
		if r, isReporter := b.(CapabilityReporter); isReporter {
			return r.Capabilities(), true
		}
		w, isWrapper := b.(Wrapper)
		if !isWrapper {
			break
		}
		b = w.Unwrap()
	}
	return Capabilities{}, false
}
