// Package vfs exposes a stream binding as an afero.Fs, so code written
// against afero (or io/fs via afero.NewIOFS) can use any backend with the
// same buffering, copy-on-write and stat emulation the wrapper hooks get.
//
// Open flags map onto fopen modes:
//
//	O_RDONLY          r
//	O_RDWR            r+
//	O_WRONLY          c
//	O_CREATE          c / c+
//	O_APPEND          a / a+
//	O_TRUNC           w / w+
//	O_CREATE|O_EXCL   x / x+
//
// Failures are returned as *os.PathError wrapping the matching fs sentinel.
package vfs

import (
	"context"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittostream/pkg/stream"
)

// Fs is an afero.Fs over one stream.Filesystem.
type Fs struct {
	fs  *stream.Filesystem
	ctx context.Context
}

var _ afero.Fs = (*Fs)(nil)

// New creates an Fs. ctx is used for every backend call.
func New(ctx context.Context, f *stream.Filesystem) *Fs {
	return &Fs{fs: f, ctx: ctx}
}

func (v *Fs) Name() string {
	return "dittostream:" + v.fs.Protocol()
}

func (v *Fs) Create(name string) (afero.File, error) {
	return v.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

func (v *Fs) Open(name string) (afero.File, error) {
	return v.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens name with os-style flags. Directories open read-only and
// serve Readdir; perm is applied as visibility to files it creates.
func (v *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	const op = "open"

	st, err := v.fs.Stat(v.ctx, name, stream.StatQuiet|stream.StatIgnoreSize)
	exists := err == nil
	if err != nil && !stream.IsCode(err, stream.ErrNotFound) {
		return nil, pathError(op, name, err)
	}

	if exists && st.IsDir() {
		if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
			return nil, pathError(op, name, &stream.Error{Code: stream.ErrDirectoryExists})
		}
		listing, err := v.fs.OpenDir(v.ctx, name)
		if err != nil {
			return nil, pathError(op, name, err)
		}
		return &File{vfs: v, name: name, listing: listing}, nil
	}

	if !exists && flag&os.O_CREATE == 0 {
		return nil, pathError(op, name, &stream.Error{Code: stream.ErrNotFound})
	}

	session, err := v.fs.Open(v.ctx, name, modeFor(flag))
	if err != nil {
		return nil, pathError(op, name, err)
	}

	f := &File{vfs: v, name: name, session: session}
	if !exists && perm != 0 {
		// The file only exists once flushed; create it now so visibility
		// can be set.
		if err := session.Flush(); err != nil {
			_ = session.Close()
			return nil, pathError(op, name, err)
		}
		if err := v.chmod(name, perm); err != nil {
			_ = session.Close()
			return nil, err
		}
	}
	return f, nil
}

// modeFor maps os.OpenFile flags onto an fopen mode.
func modeFor(flag int) string {
	var mode string
	switch {
	case flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		mode = "x"
	case flag&os.O_TRUNC != 0:
		mode = "w"
	case flag&os.O_APPEND != 0:
		mode = "a"
	case flag&os.O_CREATE != 0, flag&os.O_WRONLY != 0:
		mode = "c"
	default:
		mode = "r"
	}

	if flag&os.O_RDWR != 0 {
		mode += "+"
	}
	return mode
}

// Mkdir creates name; its parent must exist.
func (v *Fs) Mkdir(name string, perm os.FileMode) error {
	const op = "mkdir"

	if _, err := v.fs.Stat(v.ctx, name, stream.StatQuiet|stream.StatIgnoreSize); err == nil {
		return pathError(op, name, &stream.Error{Code: stream.ErrFileExists})
	}
	if err := v.fs.Mkdir(v.ctx, name, 0); err != nil {
		return pathError(op, name, err)
	}
	return v.chmod(name, perm)
}

// MkdirAll creates name and every missing parent.
func (v *Fs) MkdirAll(name string, perm os.FileMode) error {
	const op = "mkdir"

	st, err := v.fs.Stat(v.ctx, name, stream.StatQuiet|stream.StatIgnoreSize)
	if err == nil {
		if !st.IsDir() {
			return pathError(op, name, &stream.Error{Code: stream.ErrNotADirectory})
		}
		return nil
	}
	if err := v.fs.Mkdir(v.ctx, name, stream.MkdirRecursive); err != nil {
		return pathError(op, name, err)
	}
	return v.chmod(name, perm)
}

// Remove deletes a file or an empty directory.
func (v *Fs) Remove(name string) error {
	const op = "remove"

	st, err := v.fs.Stat(v.ctx, name, stream.StatQuiet|stream.StatIgnoreSize)
	if err != nil {
		return pathError(op, name, err)
	}
	if st.IsDir() {
		return pathError(op, name, v.fs.Rmdir(v.ctx, name, 0))
	}
	return pathError(op, name, v.fs.Unlink(v.ctx, name))
}

// RemoveAll deletes name and everything below it. A missing path is not
// an error.
func (v *Fs) RemoveAll(name string) error {
	const op = "removeall"

	st, err := v.fs.Stat(v.ctx, name, stream.StatQuiet|stream.StatIgnoreSize)
	switch {
	case stream.IsCode(err, stream.ErrNotFound):
		return nil
	case err != nil:
		return pathError(op, name, err)
	case st.IsDir():
		return pathError(op, name, v.fs.Rmdir(v.ctx, name, stream.RmdirRecursive))
	default:
		return pathError(op, name, v.fs.Unlink(v.ctx, name))
	}
}

func (v *Fs) Rename(oldname, newname string) error {
	return pathError("rename", oldname, v.fs.Rename(v.ctx, oldname, newname))
}

func (v *Fs) Stat(name string) (os.FileInfo, error) {
	st, err := v.fs.Stat(v.ctx, name, stream.StatQuiet)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return newFileInfo(name, st), nil
}

// Chmod maps mode onto visibility. Backends without visibility accept it
// as a no-op.
func (v *Fs) Chmod(name string, mode os.FileMode) error {
	return v.chmod(name, mode)
}

func (v *Fs) chmod(name string, mode os.FileMode) error {
	err := v.fs.Chmod(v.ctx, name, uint32(mode.Perm()))
	if err == nil || stream.IsCode(err, stream.ErrUnsupported) {
		return nil
	}
	return pathError("chmod", name, err)
}

func (v *Fs) Chown(name string, uid, gid int) error {
	return pathError("chown", name, &stream.Error{Code: stream.ErrUnsupported})
}

func (v *Fs) Chtimes(name string, atime, mtime time.Time) error {
	return pathError("chtimes", name, &stream.Error{Code: stream.ErrUnsupported})
}
