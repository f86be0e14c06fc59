// Package badger implements a backend on an embedded BadgerDB database.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
)

// Config configures the BadgerDB backend.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory keeps the whole database in RAM.
	InMemory bool `mapstructure:"in_memory"`

	// Compression stores file bodies zstd-compressed.
	Compression bool `mapstructure:"compression"`

	// SyncWrites fsyncs every transaction.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// Backend stores entry records and content blobs in BadgerDB.
//
// Thread Safety:
// Every operation runs in its own Badger transaction. Conflicting
// concurrent updates surface as badger.ErrConflict.
type Backend struct {
	db    *badger.DB
	codec *codec
	now   func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// New opens (or creates) the database described by cfg.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	// ========================================================================
	// Step 1: Build Badger options
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path != "":
		opts = badger.DefaultOptions(cfg.Path)
	default:
		return nil, errors.New("badger backend requires a path or in_memory")
	}
	opts = opts.WithLoggingLevel(badger.WARNING).WithSyncWrites(cfg.SyncWrites)

	// ========================================================================
	// Step 2: Open the database
	// ========================================================================

	c, err := newCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	db, err := badger.Open(opts)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug("badger backend opened: path=%q in_memory=%t compression=%t", cfg.Path, cfg.InMemory, cfg.Compression)

	return &Backend{db: db, codec: c, now: time.Now}, nil
}

// Close flushes and closes the database.
func (b *Backend) Close() error {
	b.codec.close()
	return b.db.Close()
}

// getRecord loads the record at path. The root resolves to a synthetic
// public directory.
func getRecord(txn *badger.Txn, path string) (*record, error) {
	if path == "" {
		return &record{Kind: backend.KindDir, Visibility: backend.VisibilityPublic}, nil
	}

	item, err := txn.Get(keyEntry(path))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, err
	}

	var r *record
	err = item.Value(func(val []byte) error {
		var decodeErr error
		r, decodeErr = decodeRecord(val)
		return decodeErr
	})
	return r, err
}

func putRecord(txn *badger.Txn, path string, r *record) error {
	data, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return txn.Set(keyEntry(path), data)
}

// ensureParents creates missing ancestor directories of path.
func (b *Backend) ensureParents(txn *badger.Txn, path string) error {
	now := b.now().UnixNano()
	for dir := backend.Dirname(path); dir != ""; dir = backend.Dirname(dir) {
		r, err := getRecord(txn, dir)
		if err == nil {
			if r.Kind != backend.KindDir {
				return backend.ErrNotDirectory
			}
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if err := putRecord(txn, dir, &record{Kind: backend.KindDir, Modified: now, Visibility: backend.VisibilityPublic}); err != nil {
			return err
		}
	}
	return nil
}

// scan calls fn for every entry strictly below dir, in key order.
func scan(txn *badger.Txn, dir string, fn func(path string, r *record) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = keySubtree(dir)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		path := pathFromEntryKey(item.Key())

		var r *record
		if err := item.Value(func(val []byte) error {
			var decodeErr error
			r, decodeErr = decodeRecord(val)
			return decodeErr
		}); err != nil {
			return err
		}
		if err := fn(path, r); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := getRecord(txn, path)
		if errors.Is(err, backend.ErrNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m backend.Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return err
		}
		m = r.metadata(path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return &m, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	m, err := b.GetMetadata(ctx, path)
	if err != nil {
		return 0, err
	}
	if m.Size == nil {
		return 0, nil
	}
	return *m.Size, nil
}

func (b *Backend) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	m, err := b.GetMetadata(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return *m.Timestamp, nil
}

func (b *Backend) GetVisibility(ctx context.Context, path string) (string, error) {
	m, err := b.GetMetadata(ctx, path)
	if err != nil {
		return "", err
	}
	return m.Visibility, nil
}

// ReadStream loads the whole blob. The bytes are a private copy, so the
// stream hands them over through backend.ExclusiveStream.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return err
		}
		if r.Kind != backend.KindFile {
			return backend.ErrIsDirectory
		}
		if r.Blob == "" {
			return nil
		}

		item, err := txn.Get(keyBlob(r.Blob))
		if err != nil {
			return fmt.Errorf("blob %s for %s: %w", r.Blob, path, err)
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if r.Compressed {
			raw, err = b.codec.decompress(raw)
			if err != nil {
				return err
			}
		}
		data = raw
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &blobStream{Reader: bytes.NewReader(data), data: data}, nil
}

func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []backend.Metadata
	err := b.db.View(func(txn *badger.Txn) error {
		return scan(txn, dir, func(path string, r *record) error {
			if recursive || backend.IsDirectChildOf(path, dir) {
				result = append(result, r.metadata(path))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

// blobStream carries a private copy of a file body.
type blobStream struct {
	*bytes.Reader
	data []byte
}

func (s *blobStream) Close() error {
	return nil
}

func (s *blobStream) Exclusive() []byte {
	data := s.data
	s.data = nil
	return data
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return fmt.Errorf("visibility %s: %w", path, err)
		}
		r.Visibility = visibility
		return putRecord(txn, path, r)
	})
}

// WriteStream stores the body under a fresh blob id and points the entry at
// it, dropping the previous blob in the same transaction.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
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

	rec := &record{
		Kind:       backend.KindFile,
		Size:       int64(len(data)),
		Modified:   b.now().UnixNano(),
		Visibility: backend.VisibilityPublic,
		Blob:       uuid.NewString(),
	}
	if b.codec.enabled() {
		data = b.codec.compress(data)
		rec.Compressed = true
	}

	return b.db.Update(func(txn *badger.Txn) error {
		existing, err := getRecord(txn, path)
		switch {
		case err == nil && existing.Kind == backend.KindDir:
			return fmt.Errorf("write %s: %w", path, backend.ErrIsDirectory)
		case err == nil:
			rec.Visibility = existing.Visibility
			if existing.Blob != "" {
				if err := txn.Delete(keyBlob(existing.Blob)); err != nil {
					return err
				}
			}
		case !errors.Is(err, backend.ErrNotFound):
			return err
		}

		if err := b.ensureParents(txn, path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := txn.Set(keyBlob(rec.Blob), data); err != nil {
			return err
		}
		return putRecord(txn, path, rec)
	})
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
		if r.Kind == backend.KindDir {
			return fmt.Errorf("delete %s: %w", path, backend.ErrIsDirectory)
		}
		return deleteEntry(txn, path, r)
	})
}

func deleteEntry(txn *badger.Txn, path string, r *record) error {
	if r.Blob != "" {
		if err := txn.Delete(keyBlob(r.Blob)); err != nil {
			return err
		}
	}
	return txn.Delete(keyEntry(path))
}

// Rename moves an entry, and for directories its whole subtree, by
// rewriting entry keys. Blobs stay where they are.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, from)
		if err != nil {
			return fmt.Errorf("rename %s: %w", from, err)
		}
		if _, err := getRecord(txn, to); err == nil {
			return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrAlreadyExists)
		}
		if backend.IsChildOf(to, from) {
			return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
		}
		if err := b.ensureParents(txn, to); err != nil {
			return fmt.Errorf("rename %s to %s: %w", from, to, err)
		}

		type move struct {
			path string
			rec  *record
		}
		moves := []move{{from, r}}
		if r.Kind == backend.KindDir {
			if err := scan(txn, from, func(path string, child *record) error {
				moves = append(moves, move{path, child})
				return nil
			}); err != nil {
				return err
			}
		}

		for _, m := range moves {
			if err := txn.Delete(keyEntry(m.path)); err != nil {
				return err
			}
			if err := putRecord(txn, to+m.path[len(from):], m.rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	return b.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err == nil {
			if r.Kind != backend.KindDir {
				return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
			}
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if err := b.ensureParents(txn, path); err != nil {
			return fmt.Errorf("mkdir %s: %w", path, err)
		}
		return putRecord(txn, path, &record{Kind: backend.KindDir, Modified: b.now().UnixNano(), Visibility: backend.VisibilityPublic})
	})
}

func (b *Backend) DeleteDir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		r, err := getRecord(txn, path)
		if err != nil {
			return fmt.Errorf("rmdir %s: %w", path, err)
		}
		if r.Kind != backend.KindDir {
			return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
		}

		type victim struct {
			path string
			rec  *record
		}
		var victims []victim
		if err := scan(txn, path, func(p string, child *record) error {
			victims = append(victims, victim{p, child})
			return nil
		}); err != nil {
			return err
		}

		for _, v := range victims {
			if err := deleteEntry(txn, v.path, v.rec); err != nil {
				return err
			}
		}
		if path == "" {
			return nil
		}
		return txn.Delete(keyEntry(path))
	})
}
