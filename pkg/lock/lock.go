// Package lock relays advisory locks on logical paths to flock(2) on local
// lock files.
//
// Backends have no locking primitive of their own, so cooperating processes
// agree on a scratch directory instead:
//
//	<dir>/<hex(protocol)>/<hex(blake3(normalized path))>
//
// The protocol is hex-encoded because scheme names may contain characters
// that are awkward in file names, and the path is hashed to bound the file
// name length and sidestep case-insensitive filesystems. Exclusion only holds
// between processes sharing the same directory.
package lock

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Lock operations, OR-able with NonBlocking.
const (
	Shared      = 1
	Exclusive   = 2
	Unlock      = 3
	NonBlocking = 4
)

var (
	// ErrUnsupported is returned on platforms without flock(2).
	ErrUnsupported = errors.New("advisory locking not supported on this platform")

	// ErrWouldBlock is returned when a NonBlocking request conflicts with a
	// lock held elsewhere.
	ErrWouldBlock = errors.New("lock is held by another process")

	// ErrInvalidOperation is returned for operations other than Shared,
	// Exclusive and Unlock.
	ErrInvalidOperation = errors.New("invalid lock operation")
)

// IsUnlock reports whether op requests a release.
func IsUnlock(op int) bool {
	return op&Unlock == Unlock
}

// DefaultDir is the scratch directory used when none is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "dittostream")
}

// Relay maps logical paths to lock files below a scratch directory.
type Relay struct {
	dir string
}

// NewRelay creates a relay rooted at dir, or DefaultDir when dir is empty.
func NewRelay(dir string) *Relay {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Relay{dir: dir}
}

// Dir returns the scratch directory.
func (r *Relay) Dir() string {
	return r.dir
}

// Path returns the lock file used for path under protocol.
func (r *Relay) Path(protocol, path string) (string, error) {
	normalized, err := backend.NormalizePath(path)
	if err != nil {
		return "", err
	}

	sum := blake3.Sum256([]byte(normalized))
	return filepath.Join(r.dir, hex.EncodeToString([]byte(protocol)), hex.EncodeToString(sum[:])), nil
}

// Open opens the lock file for path, creating it and its directory when
// needed. The returned handle holds no lock yet.
func (r *Relay) Open(protocol, path string) (*Handle, error) {
	name, err := r.Path(protocol, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o777); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	return &Handle{file: f}, nil
}

// Handle is an open lock file.
type Handle struct {
	file *os.File
}

// Apply performs op on the lock file. Acquiring a lock that is already held
// through this handle converts it, as flock(2) does.
func (h *Handle) Apply(op int) error {
	return flock(h.file, op)
}

// Close closes the lock file, which drops any lock still held.
func (h *Handle) Close() error {
	return h.file.Close()
}
