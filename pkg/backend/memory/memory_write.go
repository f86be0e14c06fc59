package memory

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittostream/pkg/backend"
)

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.cfg.DisableVisibility {
		return fmt.Errorf("visibility %s: %w", path, backend.ErrNotSupported)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
	}
	e.visibility = visibility
	return nil
}

// WriteStream replaces the content at path with everything read from r.
//
// The reader is drained before the lock is taken so that a slow source does
// not block other callers. Missing parents are created.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
	// ========================================================================
	// Step 1: Drain the source into a fresh slice
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	// ========================================================================
	// Step 2: Install the slice
	// ========================================================================

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.entries[path]
	if ok && existing.kind == backend.KindDir {
		return fmt.Errorf("write %s: %w", path, backend.ErrIsDirectory)
	}
	if err := b.ensureParents(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	visibility := b.cfg.DefaultVisibility
	if ok {
		visibility = existing.visibility
	}
	b.entries[path] = &entry{
		kind:       backend.KindFile,
		data:       data,
		modified:   b.now(),
		visibility: visibility,
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return fmt.Errorf("delete %s: %w", path, backend.ErrNotFound)
	}
	if e.kind == backend.KindDir {
		return fmt.Errorf("delete %s: %w", path, backend.ErrIsDirectory)
	}
	delete(b.entries, path)
	return nil
}

// Rename moves a file or a whole directory tree. The destination must be
// free.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[from]
	if !ok {
		return fmt.Errorf("rename %s: %w", from, backend.ErrNotFound)
	}
	if _, taken := b.lookup(to); taken {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrAlreadyExists)
	}
	if backend.IsChildOf(to, from) {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
	}
	if err := b.ensureParents(to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	if e.kind == backend.KindDir {
		for _, child := range b.children(from, true) {
			b.entries[to+child[len(from):]] = b.entries[child]
			delete(b.entries, child)
		}
	}
	b.entries[to] = e
	delete(b.entries, from)
	return nil
}

func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.entries[path]; ok {
		if e.kind != backend.KindDir {
			return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
		}
		return nil
	}
	if err := b.ensureParents(path); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	b.entries[path] = &entry{kind: backend.KindDir, modified: b.now(), visibility: b.cfg.DefaultVisibility}
	return nil
}

// DeleteDir removes the directory and its whole subtree.
func (b *Backend) DeleteDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotFound)
	}
	if e.kind != backend.KindDir {
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
	}

	for _, child := range b.children(path, true) {
		delete(b.entries, child)
	}
	delete(b.entries, path)
	return nil
}
