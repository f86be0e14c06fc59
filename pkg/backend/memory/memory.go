// Package memory implements an in-memory backend.
//
// Content slices are never mutated in place: every write installs a fresh
// slice. ReadStream can therefore hand out a zero-copy view of the stored
// bytes, which the stream layer treats as a shared reference and duplicates
// only when a session starts mutating it.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Config tunes the memory backend.
type Config struct {
	// ExclusiveReads makes ReadStream return a private copy that the session
	// may adopt without duplicating it again.
	ExclusiveReads bool `mapstructure:"exclusive_reads"`

	// DisableVisibility makes every visibility call fail with
	// backend.ErrNotSupported, mimicking stores without ACLs.
	DisableVisibility bool `mapstructure:"disable_visibility"`

	// DefaultVisibility is assigned to new entries. Defaults to public.
	DefaultVisibility string `mapstructure:"default_visibility"`
}

type entry struct {
	kind       backend.Kind
	data       []byte
	modified   time.Time
	visibility string
}

// Backend stores files and directories in a map keyed by normalized path.
//
// Characteristics:
//   - Fast: all operations are memory-speed
//   - Volatile: data is lost on restart
//   - Thread-safe: protected by a RWMutex
//
// The root directory always exists and is never stored in the map.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cfg     Config

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// New creates an empty memory backend.
func New(cfg Config) *Backend {
	if cfg.DefaultVisibility == "" {
		cfg.DefaultVisibility = backend.VisibilityPublic
	}

	return &Backend{
		entries: make(map[string]*entry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Capabilities reports visibility as unsupported when it is disabled.
func (b *Backend) Capabilities() backend.Capabilities {
	if b.cfg.DisableVisibility {
		return backend.Capabilities{Unsupported: []string{backend.FieldVisibility}}
	}
	return backend.Capabilities{}
}

// SetClock replaces the time source used for modification timestamps.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.now = now
}

// lookup returns the entry at path. The root resolves to a synthetic
// directory. Callers hold b.mu.
func (b *Backend) lookup(path string) (*entry, bool) {
	if path == "" {
		return &entry{kind: backend.KindDir, visibility: backend.VisibilityPublic}, true
	}
	e, ok := b.entries[path]
	return e, ok
}

// ensureParents creates every missing ancestor of path as a directory.
// Callers hold b.mu for writing.
func (b *Backend) ensureParents(path string) error {
	var missing []string
	for dir := backend.Dirname(path); dir != ""; dir = backend.Dirname(dir) {
		e, ok := b.entries[dir]
		if ok {
			if e.kind != backend.KindDir {
				return backend.ErrNotDirectory
			}
			break
		}
		missing = append(missing, dir)
	}

	now := b.now()
	for _, dir := range missing {
		b.entries[dir] = &entry{kind: backend.KindDir, modified: now, visibility: b.cfg.DefaultVisibility}
	}
	return nil
}

// children returns the sorted paths strictly below dir. Callers hold b.mu.
func (b *Backend) children(dir string, recursive bool) []string {
	var paths []string
	for p := range b.entries {
		if recursive && backend.IsChildOf(p, dir) || !recursive && backend.IsDirectChildOf(p, dir) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// describe builds the metadata for an entry. Callers hold b.mu.
func (b *Backend) describe(path string, e *entry) backend.Metadata {
	m := backend.Metadata{
		Path: path,
		Kind: e.kind,
	}
	if !b.cfg.DisableVisibility {
		m.Visibility = e.visibility
	}
	ts := e.modified
	m.Timestamp = &ts
	if e.kind == backend.KindFile {
		size := int64(len(e.data))
		m.Size = &size
	}
	return m
}
