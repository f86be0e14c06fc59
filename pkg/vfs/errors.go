package vfs

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/marmos91/dittostream/pkg/stream"
)

// pathError converts a stream failure into the *os.PathError callers of an
// afero.Fs expect, so errors.Is(err, fs.ErrNotExist) and friends work.
func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	var cause error
	switch stream.CodeOf(err) {
	case stream.ErrNotFound:
		cause = fs.ErrNotExist
	case stream.ErrFileExists:
		cause = fs.ErrExist
	case stream.ErrDirectoryExists:
		cause = syscall.EISDIR
	case stream.ErrNotADirectory:
		cause = syscall.ENOTDIR
	case stream.ErrDirectoryNotEmpty:
		cause = syscall.ENOTEMPTY
	case stream.ErrRootViolation:
		cause = fs.ErrPermission
	case stream.ErrUnsupported:
		cause = errors.ErrUnsupported
	case stream.ErrInvalidMode:
		cause = fs.ErrInvalid
	default:
		cause = err
	}
	return &os.PathError{Op: op, Path: name, Err: cause}
}
