package vfs

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/spf13/afero"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/marmos91/dittostream/pkg/stream"
)

var errWriteAtInAppendMode = errors.New("os: invalid use of WriteAt on file opened with O_APPEND")

// File is an afero.File over either a stream session (regular files) or a
// listing snapshot (directories).
type File struct {
	vfs  *Fs
	name string

	session *stream.Session
	listing *stream.Listing
}

var _ afero.File = (*File)(nil)

func (f *File) Name() string {
	return f.name
}

func (f *File) isDir() bool {
	return f.listing != nil
}

func (f *File) Read(p []byte) (int, error) {
	if f.isDir() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}
	if f.session.Mode().WriteOnly() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EBADF}
	}
	if len(p) == 0 {
		return 0, nil
	}

	data, err := f.session.Read(len(p))
	if err != nil {
		return 0, pathError("read", f.name, err)
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.isDir() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}

	pos := f.session.Offset()
	defer func() { _ = f.session.Seek(pos, io.SeekStart) }()

	if err := f.session.Seek(off, io.SeekStart); err != nil {
		return 0, pathError("read", f.name, err)
	}

	n := 0
	for n < len(p) {
		m, err := f.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.isDir() {
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: syscall.EISDIR}
	}
	if err := f.session.Seek(offset, whence); err != nil {
		return 0, pathError("seek", f.name, err)
	}
	return f.session.Offset(), nil
}

func (f *File) Write(p []byte) (int, error) {
	if f.isDir() {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: syscall.EISDIR}
	}

	n, err := f.session.Write(p)
	if stream.IsCode(err, stream.ErrUnsupported) {
		return n, &os.PathError{Op: "write", Path: f.name, Err: syscall.EBADF}
	}
	if err != nil {
		return n, pathError("write", f.name, err)
	}
	return n, nil
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if f.isDir() {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: syscall.EISDIR}
	}
	if f.session.Mode().Appending() {
		return 0, errWriteAtInAppendMode
	}

	pos := f.session.Offset()
	defer func() { _ = f.session.Seek(pos, io.SeekStart) }()

	if err := f.session.Seek(off, io.SeekStart); err != nil {
		return 0, pathError("write", f.name, err)
	}
	return f.Write(p)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Readdir returns FileInfos for up to count entries, or all remaining ones
// when count <= 0. With count > 0 an exhausted listing returns io.EOF.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	names, err := f.Readdirnames(count)
	if err != nil {
		return nil, err
	}

	dir, err := backend.NormalizePath(f.name)
	if err != nil {
		return nil, pathError("readdir", f.name, err)
	}

	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		child := backend.Join(dir, name)
		st, err := f.vfs.fs.Stat(f.vfs.ctx, child, stream.StatQuiet)
		if stream.IsCode(err, stream.ErrNotFound) {
			// Removed since the snapshot was taken.
			continue
		}
		if err != nil {
			return infos, pathError("readdir", child, err)
		}
		infos = append(infos, newFileInfo(child, st))
	}
	return infos, nil
}

func (f *File) Readdirnames(n int) ([]string, error) {
	if !f.isDir() {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: syscall.ENOTDIR}
	}

	var names []string
	for n <= 0 || len(names) < n {
		name, ok := f.listing.Read()
		if !ok {
			break
		}
		names = append(names, name)
	}

	if n > 0 && len(names) == 0 {
		return nil, io.EOF
	}
	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.isDir() {
		return f.vfs.Stat(f.name)
	}

	st, err := f.session.Stat()
	if err != nil {
		return nil, pathError("stat", f.name, err)
	}
	return newFileInfo(f.session.Path(), st), nil
}

// Sync commits buffered writes to the backend.
func (f *File) Sync() error {
	if f.isDir() {
		return nil
	}
	return pathError("sync", f.name, f.session.Flush())
}

func (f *File) Truncate(size int64) error {
	if f.isDir() {
		return &os.PathError{Op: "truncate", Path: f.name, Err: syscall.EISDIR}
	}

	err := f.session.Truncate(size)
	if stream.IsCode(err, stream.ErrUnsupported) {
		return &os.PathError{Op: "truncate", Path: f.name, Err: syscall.EBADF}
	}
	return pathError("truncate", f.name, err)
}

// Close flushes pending writes and releases the file.
func (f *File) Close() error {
	if f.isDir() {
		f.listing.Close()
		return nil
	}
	return pathError("close", f.name, f.session.Close())
}
