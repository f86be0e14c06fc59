package stream

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittostream/pkg/backend"
)

// ErrorCode classifies failures of stream operations.
//
// Hosts translate codes into their own conventions (warnings, errno values,
// fs.ErrNotExist and friends); the stream layer itself never decides how a
// failure is surfaced.
type ErrorCode int

const (
	// ErrNotFound indicates the path does not exist
	ErrNotFound ErrorCode = iota

	// ErrFileExists indicates an exclusive create hit an existing path
	ErrFileExists

	// ErrDirectoryExists indicates a directory sits where a file was expected
	ErrDirectoryExists

	// ErrRootViolation indicates an attempt to remove the root directory.
	// Never retried.
	ErrRootViolation

	// ErrDirectoryNotEmpty indicates a directory still has entries
	ErrDirectoryNotEmpty

	// ErrNotADirectory indicates a file sits where a directory was expected
	ErrNotADirectory

	// ErrUnsupported indicates a capability gap of the backend or handle.
	// Hosts degrade silently instead of reporting it.
	ErrUnsupported

	// ErrInvalidMode indicates an unparseable open mode
	ErrInvalidMode

	// ErrGeneric covers every other failure
	ErrGeneric
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "not found",
	ErrFileExists:        "file exists",
	ErrDirectoryExists:   "is a directory",
	ErrRootViolation:     "root violation",
	ErrDirectoryNotEmpty: "directory not empty",
	ErrNotADirectory:     "not a directory",
	ErrUnsupported:       "unsupported",
	ErrInvalidMode:       "invalid mode",
	ErrGeneric:           "generic",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is returned by every stream operation.
type Error struct {
	Code ErrorCode

	// Op is the host-level operation name, e.g. "fopen" or "rename".
	Op string

	// Path is the logical path the failure is reported against.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrReadOnlyHandle is the cause reported when a read-only session is asked
// to mutate its buffer.
var ErrReadOnlyHandle = errors.New("stream is read-only")

// CodeOf classifies err. Stream errors keep their code; backend sentinels
// map onto the nearest code; anything else is ErrGeneric.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}

	switch {
	case errors.Is(err, backend.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, backend.ErrAlreadyExists):
		return ErrFileExists
	case errors.Is(err, backend.ErrIsDirectory):
		return ErrDirectoryExists
	case errors.Is(err, backend.ErrNotDirectory):
		return ErrNotADirectory
	case errors.Is(err, backend.ErrDirectoryNotEmpty):
		return ErrDirectoryNotEmpty
	case errors.Is(err, backend.ErrNotSupported):
		return ErrUnsupported
	}
	return ErrGeneric
}

// IsCode reports whether err classifies as code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func newError(code ErrorCode, op, path string, cause error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: cause}
}

// wrap attaches op and path to err, keeping an existing stream error as is.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return newError(CodeOf(err), op, path, err)
}
