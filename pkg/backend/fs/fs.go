// Package fs implements a backend on top of an afero filesystem.
//
// Production setups root an afero.OsFs at a directory through
// afero.NewBasePathFs; tests use afero.NewMemMapFs. Visibility is mapped to
// permission bits: an entry is public when any group or other read bit is
// set.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittostream/pkg/backend"
)

// tempPrefix marks in-flight writes; listings skip such names.
const tempPrefix = ".dittostream-"

// Config holds the permission bits applied by SetVisibility and to new
// entries.
type Config struct {
	// Root is the directory the backend is confined to. Only used by
	// NewOs; New takes an already rooted afero.Fs.
	Root string `mapstructure:"root"`

	FilePublic  os.FileMode `mapstructure:"file_public"`
	FilePrivate os.FileMode `mapstructure:"file_private"`
	DirPublic   os.FileMode `mapstructure:"dir_public"`
	DirPrivate  os.FileMode `mapstructure:"dir_private"`
}

func (c *Config) applyDefaults() {
	if c.FilePublic == 0 {
		c.FilePublic = 0o644
	}
	if c.FilePrivate == 0 {
		c.FilePrivate = 0o600
	}
	if c.DirPublic == 0 {
		c.DirPublic = 0o755
	}
	if c.DirPrivate == 0 {
		c.DirPrivate = 0o700
	}
}

// Backend stores entries as real files and directories.
//
// Thread Safety:
// Writes go through a temporary file that is renamed into place, so readers
// holding an open stream keep seeing the previous content. Concurrent
// writers to the same path race at the rename and the last one wins.
type Backend struct {
	fs  afero.Fs
	cfg Config
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend over fsys, which is treated as the root.
func New(fsys afero.Fs, cfg Config) *Backend {
	cfg.applyDefaults()
	return &Backend{fs: fsys, cfg: cfg}
}

// NewOs creates a backend rooted at cfg.Root on the local disk, creating the
// root directory if needed.
func NewOs(ctx context.Context, cfg Config) (*Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		return nil, errors.New("filesystem backend requires a root directory")
	}

	cfg.applyDefaults()
	if err := os.MkdirAll(cfg.Root, cfg.DirPublic); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return New(afero.NewBasePathFs(afero.NewOsFs(), cfg.Root), cfg), nil
}

// fullPath maps a normalized backend path to a path inside the afero root.
func fullPath(p string) string {
	return "/" + p
}

func (b *Backend) stat(p string) (os.FileInfo, error) {
	info, err := b.fs.Stat(fullPath(p))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, err
	}
	return info, nil
}

func (b *Backend) describe(p string, info os.FileInfo) backend.Metadata {
	m := backend.Metadata{
		Path:       p,
		Kind:       backend.KindFile,
		Visibility: visibilityOf(info.Mode()),
	}
	if info.IsDir() {
		m.Kind = backend.KindDir
	} else {
		size := info.Size()
		m.Size = &size
	}
	ts := info.ModTime()
	m.Timestamp = &ts
	return m
}

func visibilityOf(mode os.FileMode) string {
	if mode.Perm()&0o044 != 0 {
		return backend.VisibilityPublic
	}
	return backend.VisibilityPrivate
}

func (b *Backend) modeFor(kind backend.Kind, visibility string) (os.FileMode, error) {
	switch {
	case kind == backend.KindDir && visibility == backend.VisibilityPublic:
		return b.cfg.DirPublic, nil
	case kind == backend.KindDir && visibility == backend.VisibilityPrivate:
		return b.cfg.DirPrivate, nil
	case visibility == backend.VisibilityPublic:
		return b.cfg.FilePublic, nil
	case visibility == backend.VisibilityPrivate:
		return b.cfg.FilePrivate, nil
	}
	return 0, fmt.Errorf("unknown visibility %q", visibility)
}

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Has(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := b.stat(p)
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Backend) GetMetadata(ctx context.Context, p string) (*backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := b.stat(p)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", p, err)
	}
	m := b.describe(p, info)
	return &m, nil
}

func (b *Backend) GetSize(ctx context.Context, p string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := b.stat(p)
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", p, err)
	}
	return info.Size(), nil
}

func (b *Backend) GetTimestamp(ctx context.Context, p string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	info, err := b.stat(p)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", p, err)
	}
	return info.ModTime(), nil
}

func (b *Backend) GetVisibility(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := b.stat(p)
	if err != nil {
		return "", fmt.Errorf("visibility %s: %w", p, err)
	}
	return visibilityOf(info.Mode()), nil
}

// ReadStream opens the file directly. The returned afero.File is seekable,
// so sessions read from it without copying until they mutate.
func (b *Backend) ReadStream(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := b.stat(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: %w", p, backend.ErrIsDirectory)
	}

	f, err := b.fs.Open(fullPath(p))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	return f, nil
}

func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []backend.Metadata
	if err := b.list(ctx, dir, recursive, &result); err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (b *Backend) list(ctx context.Context, dir string, recursive bool, out *[]backend.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	infos, err := afero.ReadDir(b.fs, fullPath(dir))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		// Listing a file is treated like listing a missing directory.
		if info, statErr := b.stat(dir); statErr == nil && !info.IsDir() {
			return nil
		}
		return fmt.Errorf("list %s: %w", dir, err)
	}

	for _, info := range infos {
		if strings.HasPrefix(info.Name(), tempPrefix) {
			continue
		}
		child := backend.Join(dir, info.Name())
		*out = append(*out, b.describe(child, info))
		if recursive && info.IsDir() {
			if err := b.list(ctx, child, true, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, p string, visibility string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := b.stat(p)
	if err != nil {
		return fmt.Errorf("visibility %s: %w", p, err)
	}

	kind := backend.KindFile
	if info.IsDir() {
		kind = backend.KindDir
	}
	mode, err := b.modeFor(kind, visibility)
	if err != nil {
		return err
	}
	return b.fs.Chmod(fullPath(p), mode)
}

// WriteStream writes r to a temporary sibling and renames it over p.
// An existing file keeps its permission bits.
func (b *Backend) WriteStream(ctx context.Context, p string, r io.Reader) error {
	// ========================================================================
	// Step 1: Validate target and prepare parent
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	mode := b.cfg.FilePublic
	if info, err := b.stat(p); err == nil {
		if info.IsDir() {
			return fmt.Errorf("write %s: %w", p, backend.ErrIsDirectory)
		}
		mode = info.Mode().Perm()
	}

	parent := fullPath(backend.Dirname(p))
	if err := b.fs.MkdirAll(parent, b.cfg.DirPublic); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", p, err)
	}

	// ========================================================================
	// Step 2: Stream into a temporary file
	// ========================================================================

	tmp, err := afero.TempFile(b.fs, parent, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", p, err)
	}
	tmpName := path.Join(parent, path.Base(tmp.Name()))

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}

	// ========================================================================
	// Step 3: Publish
	// ========================================================================

	if err := b.fs.Chmod(tmpName, mode); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", p, err)
	}
	if err := b.fs.Rename(tmpName, fullPath(p)); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := b.stat(p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if info.IsDir() {
		return fmt.Errorf("delete %s: %w", p, backend.ErrIsDirectory)
	}
	return b.fs.Remove(fullPath(p))
}

func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := b.stat(from); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	if _, err := b.stat(to); err == nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrAlreadyExists)
	}
	if backend.IsChildOf(to, from) {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
	}
	if err := b.fs.MkdirAll(fullPath(backend.Dirname(to)), b.cfg.DirPublic); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", to, err)
	}
	return b.fs.Rename(fullPath(from), fullPath(to))
}

func (b *Backend) CreateDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if info, err := b.stat(p); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("mkdir %s: %w", p, backend.ErrAlreadyExists)
		}
		return nil
	}
	return b.fs.MkdirAll(fullPath(p), b.cfg.DirPublic)
}

func (b *Backend) DeleteDir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := b.stat(p)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rmdir %s: %w", p, backend.ErrNotDirectory)
	}
	return b.fs.RemoveAll(fullPath(p))
}
