package wrapper

import (
	"context"
	"errors"
	"os"

	"github.com/marmos91/dittostream/pkg/stream"
)

// Open options.
const (
	// OpenUsePath asks Open to report the resolved path back.
	OpenUsePath = 1
)

// SetMetadata options.
const (
	MetaTouch     = 1
	MetaOwnerName = 2
	MetaOwner     = 3
	MetaGroupName = 4
	MetaGroup     = 5
	MetaAccess    = 6
)

var (
	errCrossProtocol = errors.New("cannot rename across protocols")
	errBadPerm       = errors.New("permission value must be numeric")
)

// Open opens uri with an fopen-style mode.
func (w *Wrapper) Open(ctx context.Context, uri, mode string, options int) (h *Handle, ok bool) {
	const op = "fopen"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return nil, false
	}

	session, err := t.fs.Open(ctx, t.path, mode)
	if err != nil {
		w.report(op, err, t.path)
		return nil, false
	}

	h = &Handle{w: w, uri: uri, session: session}
	if options&OpenUsePath != 0 {
		h.openedPath = BuildURI(t.fs.Protocol(), session.Path())
	}
	return h, true
}

// Stat returns the stat record of uri. With stream.StatQuiet a missing path
// fails without a warning.
func (w *Wrapper) Stat(ctx context.Context, uri string, flags int) (st *stream.Stat, ok bool) {
	const op = "stat"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return nil, false
	}

	st, err := t.fs.Stat(ctx, t.path, flags)
	if err != nil {
		if !(flags&stream.StatQuiet != 0 && stream.IsCode(err, stream.ErrNotFound)) {
			w.report(op, err, t.path)
		}
		return nil, false
	}
	return st, true
}

// OpenDir snapshots the listing of uri.
func (w *Wrapper) OpenDir(ctx context.Context, uri string) (d *Dir, ok bool) {
	const op = "opendir"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return nil, false
	}

	listing, err := t.fs.OpenDir(ctx, t.path)
	if err != nil {
		w.report(op, err, t.path)
		return nil, false
	}
	return &Dir{listing: listing}, true
}

// Mkdir creates the directory at uri. perm is accepted for signature
// compatibility; new directories get the backend's default visibility.
func (w *Wrapper) Mkdir(ctx context.Context, uri string, perm os.FileMode, options int) (ok bool) {
	const op = "mkdir"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return false
	}
	if err := t.fs.Mkdir(ctx, t.path, options); err != nil {
		w.report(op, err, t.path)
		return false
	}
	return true
}

// Rmdir removes the directory at uri.
func (w *Wrapper) Rmdir(ctx context.Context, uri string, options int) (ok bool) {
	const op = "rmdir"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return false
	}
	if err := t.fs.Rmdir(ctx, t.path, options); err != nil {
		w.report(op, err, t.path)
		return false
	}
	return true
}

// Rename moves from to to. Both URIs must use the same protocol.
func (w *Wrapper) Rename(ctx context.Context, from, to string) (ok bool) {
	const op = "rename"
	defer w.rescue(op, from, to)

	src, ok := w.resolve(op, from)
	if !ok {
		return false
	}
	dst, ok := w.resolve(op, to)
	if !ok {
		return false
	}
	if src.fs.Protocol() != dst.fs.Protocol() {
		w.report(op, errCrossProtocol, src.path, dst.path)
		return false
	}

	if err := src.fs.Rename(ctx, src.path, dst.path); err != nil {
		w.report(op, err, src.path, dst.path)
		return false
	}
	return true
}

// Unlink deletes the file at uri.
func (w *Wrapper) Unlink(ctx context.Context, uri string) (ok bool) {
	const op = "unlink"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return false
	}
	if err := t.fs.Unlink(ctx, t.path); err != nil {
		w.report(op, err, t.path)
		return false
	}
	return true
}

// SetMetadata handles touch and chmod requests. For MetaAccess, value holds
// the permission bits (any integer type or os.FileMode); a backend without
// visibility support accepts the request silently. Owner and group changes
// are not supported and return false.
func (w *Wrapper) SetMetadata(ctx context.Context, uri string, option int, value any) (ok bool) {
	switch option {
	case MetaTouch:
		return w.Touch(ctx, uri)
	case MetaAccess:
		perm, valid := permOf(value)
		if !valid {
			w.report("chmod", errBadPerm, uri)
			return false
		}
		return w.Chmod(ctx, uri, perm)
	default:
		return false
	}
}

// Touch creates an empty file at uri unless something already exists there.
func (w *Wrapper) Touch(ctx context.Context, uri string) (ok bool) {
	const op = "touch"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return false
	}
	if err := t.fs.Touch(ctx, t.path); err != nil {
		w.report(op, err, t.path)
		return false
	}
	return true
}

// Chmod maps perm onto the public/private visibility of uri.
func (w *Wrapper) Chmod(ctx context.Context, uri string, perm uint32) (ok bool) {
	const op = "chmod"
	defer w.rescue(op, uri)

	t, ok := w.resolve(op, uri)
	if !ok {
		return false
	}

	err := t.fs.Chmod(ctx, t.path, perm)
	switch {
	case err == nil, stream.IsCode(err, stream.ErrUnsupported):
		return true
	default:
		w.report(op, err, t.path)
		return false
	}
}

func permOf(value any) (uint32, bool) {
	switch v := value.(type) {
	case os.FileMode:
		return uint32(v.Perm()), true
	case uint32:
		return v, true
	case int:
		return uint32(v), v >= 0
	case int64:
		return uint32(v), v >= 0
	case uint:
		return uint32(v), true
	default:
		return 0, false
	}
}
