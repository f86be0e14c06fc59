package wrapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/stream"
)

// Warning is what a failed hook reports to the host.
type Warning struct {
	// Op is the host function name the failure is reported under.
	Op string

	// Paths are the logical path arguments of the call.
	Paths []string

	Code    stream.ErrorCode
	Message string
}

func (w Warning) String() string {
	return w.Message
}

// WarningHandler receives every warning a Wrapper emits.
type WarningHandler func(Warning)

// LogWarnings is the default handler: one WARN log line per warning.
func LogWarnings(w Warning) {
	logger.Warn("%s", w.Message)
}

// Translate maps a failure to the warning a host should see. It returns
// false for nil errors and for capability gaps, which degrade silently.
//
// Messages follow the fopen/rename/rmdir conventions:
//
//	fopen(): No such file or directory
//	fopen(): failed to open stream: File exists
//	mkdir(): File exists
//	rename(a,b): Is a directory
//	rename(a,b): Not a directory
//	rmdir(a): Directory not empty
//	rmdir(): Cannot remove the root directory
func Translate(op string, err error, paths ...string) (Warning, bool) {
	if err == nil {
		return Warning{}, false
	}

	code := stream.CodeOf(err)
	w := Warning{Op: op, Paths: paths, Code: code}

	switch code {
	case stream.ErrUnsupported:
		return Warning{}, false
	case stream.ErrNotFound:
		w.Message = op + "(): No such file or directory"
	case stream.ErrFileExists:
		if op == "fopen" {
			w.Message = op + "(): failed to open stream: File exists"
		} else {
			w.Message = op + "(): File exists"
		}
	case stream.ErrDirectoryExists:
		w.Message = withPaths(op, paths) + ": Is a directory"
	case stream.ErrNotADirectory:
		w.Message = withPaths(op, paths) + ": Not a directory"
	case stream.ErrDirectoryNotEmpty:
		w.Message = withPaths(op, paths) + ": Directory not empty"
	case stream.ErrRootViolation:
		w.Message = op + "(): Cannot remove the root directory"
	case stream.ErrInvalidMode:
		w.Message = op + "(): Invalid mode"
	default:
		w.Message = fmt.Sprintf("%s(): %s", op, causeOf(err))
	}
	return w, true
}

func withPaths(op string, paths []string) string {
	return op + "(" + strings.Join(paths, ",") + ")"
}

// causeOf is the most specific message available for err.
func causeOf(err error) string {
	var se *stream.Error
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}
