package backend

import "errors"

// ============================================================================
// Standard Backend Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all backend implementations. The stream layer classifies them into
// its own error taxonomy, which the wrapper then turns into host warnings.
//
// Usage Pattern:
//
//	rc, err := b.ReadStream(ctx, path)
//	if err != nil {
//	    if errors.Is(err, backend.ErrNotFound) {
//	        return stream.NewError(stream.ErrNotFound, "fopen", path, err)
//	    }
//	    return err
//	}
//
// Error Wrapping:
// Implementations should wrap these errors with the offending path:
//
//	return fmt.Errorf("read %s: %w", path, backend.ErrNotFound)

var (
	// ErrNotFound indicates the requested path does not exist.
	//
	// This error is returned when:
	//   - ReadStream() or GetMetadata() is called for a missing path
	//   - Delete() or Rename() is called on a missing source
	//   - a per-field getter is called for a missing path
	ErrNotFound = errors.New("path not found")

	// ErrAlreadyExists indicates the path is already taken.
	//
	// Most writes overwrite and never return this. It is reserved for
	// operations with "must not exist" semantics, such as renaming onto an
	// occupied destination in backends that refuse to overwrite.
	ErrAlreadyExists = errors.New("path already exists")

	// ErrNotSupported indicates the backend lacks a capability.
	//
	// Typical examples are visibility on object stores that do not model
	// ACLs. Callers degrade the feature silently instead of failing.
	ErrNotSupported = errors.New("operation not supported")

	// ErrNotDirectory indicates a directory operation hit a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory indicates a file operation hit a directory.
	ErrIsDirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty indicates a non-recursive directory removal
	// found children.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrInvalidRename indicates a rename whose destination lies below its
	// own source.
	ErrInvalidRename = errors.New("cannot move a directory into itself")

	// ErrPathOutsideRoot indicates that ".." segments escape the root.
	ErrPathOutsideRoot = errors.New("path is outside of the defined root")
)
