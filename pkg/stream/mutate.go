package stream

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
)

// MkdirRecursive creates missing parents; RmdirRecursive removes contents.
const (
	MkdirRecursive = 1
	RmdirRecursive = 1
)

var errRenameRoot = errors.New("cannot rename the root directory")

// Rename moves from to to with overwrite semantics the backend lacks:
//   - identical paths succeed without touching the backend
//   - a missing source, or a missing destination parent, is ErrNotFound
//     reported against the source
//   - a destination below the source is ErrGeneric
//   - a file never replaces a directory (ErrDirectoryExists) and a directory
//     never replaces a file (ErrNotADirectory)
//   - a file replaces a file
//   - a directory replaces only an empty directory (ErrDirectoryNotEmpty)
func (f *Filesystem) Rename(ctx context.Context, from, to string) error {
	const op = "rename"

	src, err := f.resolve(op, from)
	if err != nil {
		return err
	}
	dst, err := f.resolve(op, to)
	if err != nil {
		return err
	}

	if src == dst {
		return nil
	}
	if src == "" || dst == "" {
		return newError(ErrGeneric, op, from, errRenameRoot)
	}

	b := f.backend()

	srcMeta, err := f.lookup(ctx, src)
	if err != nil {
		return wrap(op, from, err)
	}
	if backend.IsChildOf(dst, src) {
		return newError(ErrGeneric, op, from, backend.ErrInvalidRename)
	}

	dstMeta, err := f.lookup(ctx, dst)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		parentExists, err := f.exists(ctx, backend.Dirname(dst))
		if err != nil {
			return wrap(op, from, err)
		}
		if !parentExists {
			return newError(ErrNotFound, op, from, backend.ErrNotFound)
		}
	case err != nil:
		return wrap(op, to, err)
	default:
		if err := f.clearDestination(ctx, srcMeta, dstMeta, dst); err != nil {
			return wrap(op, to, err)
		}
	}

	if err := b.Rename(ctx, src, dst); err != nil {
		return wrap(op, from, err)
	}

	logger.Debug("renamed %s://%s to %s", f.Protocol(), src, dst)
	return nil
}

// clearDestination removes an existing destination that the source may
// replace, or reports why it may not.
func (f *Filesystem) clearDestination(ctx context.Context, srcMeta, dstMeta *backend.Metadata, dst string) error {
	b := f.backend()

	switch {
	case dstMeta.IsDir() && !srcMeta.IsDir():
		return newError(ErrDirectoryExists, "rename", dst, nil)
	case !dstMeta.IsDir() && srcMeta.IsDir():
		return newError(ErrNotADirectory, "rename", dst, nil)
	case !dstMeta.IsDir():
		return b.Delete(ctx, dst)
	}

	entries, err := b.ListContents(ctx, dst, false)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return newError(ErrDirectoryNotEmpty, "rename", dst, nil)
	}
	return b.DeleteDir(ctx, dst)
}

// Mkdir creates path. Without MkdirRecursive a multi-segment path needs an
// existing parent.
func (f *Filesystem) Mkdir(ctx context.Context, path string, options int) error {
	const op = "mkdir"

	p, err := f.resolve(op, path)
	if err != nil {
		return err
	}

	if options&MkdirRecursive == 0 && strings.Contains(p, "/") {
		exists, err := f.exists(ctx, backend.Dirname(p))
		if err != nil {
			return wrap(op, path, err)
		}
		if !exists {
			return newError(ErrNotFound, op, path, backend.ErrNotFound)
		}
	}

	if err := f.backend().CreateDir(ctx, p); err != nil {
		return wrap(op, path, err)
	}
	return nil
}

// Rmdir removes the directory at path. The root is never removed. Without
// RmdirRecursive the directory must be empty.
func (f *Filesystem) Rmdir(ctx context.Context, path string, options int) error {
	const op = "rmdir"

	p, err := f.resolve(op, path)
	if err != nil {
		return err
	}
	if p == "" {
		return newError(ErrRootViolation, op, path, nil)
	}

	b := f.backend()
	if options&RmdirRecursive == 0 {
		entries, err := b.ListContents(ctx, p, false)
		if err != nil {
			return wrap(op, path, err)
		}
		if len(entries) > 0 {
			return newError(ErrDirectoryNotEmpty, op, path, nil)
		}
	}

	if err := b.DeleteDir(ctx, p); err != nil {
		return wrap(op, path, err)
	}
	return nil
}

// Unlink deletes the file at path.
func (f *Filesystem) Unlink(ctx context.Context, path string) error {
	const op = "unlink"

	p, err := f.resolve(op, path)
	if err != nil {
		return err
	}
	if err := f.backend().Delete(ctx, p); err != nil {
		return wrap(op, path, err)
	}
	return nil
}

// Touch creates an empty file unless path already exists.
func (f *Filesystem) Touch(ctx context.Context, path string) error {
	const op = "touch"

	p, err := f.resolve(op, path)
	if err != nil {
		return err
	}

	exists, err := f.exists(ctx, p)
	if err != nil {
		return wrap(op, path, err)
	}
	if exists {
		return nil
	}
	if err := f.backend().WriteStream(ctx, p, strings.NewReader("")); err != nil {
		return wrap(op, path, err)
	}
	return nil
}

// Chmod maps permission bits onto the binary visibility of the backend:
// any bit in the binding's public mask makes the path public.
func (f *Filesystem) Chmod(ctx context.Context, path string, perm uint32) error {
	const op = "chmod"

	p, err := f.resolve(op, path)
	if err != nil {
		return err
	}

	visibility := backend.VisibilityPrivate
	if f.binding.Config.Public(perm) {
		visibility = backend.VisibilityPublic
	}

	if err := f.backend().SetVisibility(ctx, p, visibility); err != nil {
		return wrap(op, path, err)
	}
	return nil
}
