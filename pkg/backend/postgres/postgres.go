// Package postgres implements a backend that keeps every entry as a row in a
// single PostgreSQL table.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
)

// Config configures the PostgreSQL backend.
type Config struct {
	// DSN is a lib/pq connection string or URL.
	DSN string `mapstructure:"dsn"`

	// Table holds the entries. Created when missing. Default: "dittostream_entries".
	Table string `mapstructure:"table"`

	// Namespace partitions the table so several bindings can share it.
	Namespace string `mapstructure:"namespace"`
}

// Backend stores entries as rows keyed by (namespace, path).
type Backend struct {
	db        *sql.DB
	table     string
	namespace string
	now       func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// New connects, verifies the connection and creates the schema.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = "dittostream_entries"
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	b := &Backend{
		db:        db,
		table:     pq.QuoteIdentifier(cfg.Table),
		namespace: cfg.Namespace,
		now:       time.Now,
	}
	if err := b.initSchema(ctx, cfg.Table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("postgres backend ready: table=%s namespace=%q", cfg.Table, cfg.Namespace)
	return b, nil
}

func (b *Backend) initSchema(ctx context.Context, table string) error {
	index := pq.QuoteIdentifier("idx_" + table + "_prefix")
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace  TEXT NOT NULL,
			path       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			data       BYTEA,
			size       BIGINT NOT NULL DEFAULT 0,
			visibility TEXT NOT NULL DEFAULT 'public',
			modified   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, path)
		);
		CREATE INDEX IF NOT EXISTS %s ON %s (namespace, path text_pattern_ops);
	`, b.table, index, b.table)

	_, err := b.db.ExecContext(ctx, query)
	return err
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (b *Backend) lookup(ctx context.Context, q querier, path string) (*backend.Metadata, error) {
	if path == "" {
		return &backend.Metadata{Path: "", Kind: backend.KindDir, Visibility: backend.VisibilityPublic}, nil
	}

	query := fmt.Sprintf("SELECT kind, size, visibility, modified FROM %s WHERE namespace = $1 AND path = $2", b.table)

	var (
		kind, visibility string
		size             int64
		modified         time.Time
	)
	err := q.QueryRowContext(ctx, query, b.namespace, path).Scan(&kind, &size, &visibility, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return describe(path, kind, size, visibility, modified), nil
}

func describe(path, kind string, size int64, visibility string, modified time.Time) *backend.Metadata {
	m := &backend.Metadata{
		Path:       path,
		Kind:       backend.Kind(kind),
		Visibility: visibility,
		Timestamp:  &modified,
	}
	if m.Kind == backend.KindFile {
		m.Size = &size
	}
	return m
}

// ensureParents inserts missing ancestor directories of path.
func (b *Backend) ensureParents(ctx context.Context, tx *sql.Tx, path string) error {
	insert := fmt.Sprintf(
		"INSERT INTO %s (namespace, path, kind, modified) VALUES ($1, $2, 'dir', $3) ON CONFLICT (namespace, path) DO NOTHING",
		b.table)

	for dir := backend.Dirname(path); dir != ""; dir = backend.Dirname(dir) {
		m, err := b.lookup(ctx, tx, dir)
		if err == nil {
			if !m.IsDir() {
				return backend.ErrNotDirectory
			}
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, b.namespace, dir, b.now()); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (b *Backend) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// subtreeClause matches path $2 and everything below it.
const subtreeClause = "namespace = $1 AND (path = $2::text OR left(path, length($2::text) + 1) = $2::text || '/')"

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	_, err := b.lookup(ctx, b.db, path)
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	m, err := b.lookup(ctx, b.db, path)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	return m, nil
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
	if m.Timestamp == nil {
		return time.Time{}, nil
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

// ReadStream fetches the body column. The scanned slice is owned by the
// caller, so it is offered through backend.ExclusiveStream.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	query := fmt.Sprintf("SELECT kind, data FROM %s WHERE namespace = $1 AND path = $2", b.table)

	var (
		kind string
		data []byte
	)
	err := b.db.QueryRowContext(ctx, query, b.namespace, path).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if backend.Kind(kind) != backend.KindFile {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrIsDirectory)
	}

	return &rowStream{Reader: bytes.NewReader(data), data: data}, nil
}

func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	query := fmt.Sprintf(
		"SELECT path, kind, size, visibility, modified FROM %s WHERE namespace = $1 AND left(path, length($2::text)) = $2::text AND path <> '' ORDER BY path",
		b.table)

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}

	rows, err := b.db.QueryContext(ctx, query, b.namespace, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	defer func() { _ = rows.Close() }()

	var result []backend.Metadata
	for rows.Next() {
		var (
			path, kind, visibility string
			size                   int64
			modified               time.Time
		)
		if err := rows.Scan(&path, &kind, &size, &visibility, &modified); err != nil {
			return nil, err
		}
		if !recursive && !backend.IsDirectChildOf(path, dir) {
			continue
		}
		result = append(result, *describe(path, kind, size, visibility, modified))
	}
	return result, rows.Err()
}

type rowStream struct {
	*bytes.Reader
	data []byte
}

func (s *rowStream) Close() error {
	return nil
}

func (s *rowStream) Exclusive() []byte {
	data := s.data
	s.data = nil
	return data
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	query := fmt.Sprintf("UPDATE %s SET visibility = $3 WHERE namespace = $1 AND path = $2", b.table)

	result, err := b.db.ExecContext(ctx, query, b.namespace, path, visibility)
	if err != nil {
		return fmt.Errorf("visibility %s: %w", path, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
	}
	return nil
}

// WriteStream upserts the row. An existing file keeps its visibility.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
	if path == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (namespace, path, kind, data, size, visibility, modified)
		VALUES ($1, $2, 'file', $3, $4, 'public', $5)
		ON CONFLICT (namespace, path)
		DO UPDATE SET
			data = EXCLUDED.data,
			size = EXCLUDED.size,
			modified = EXCLUDED.modified
	`, b.table)

	return b.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := b.lookup(ctx, tx, path)
		if err == nil && existing.IsDir() {
			return fmt.Errorf("write %s: %w", path, backend.ErrIsDirectory)
		}
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if err := b.ensureParents(ctx, tx, path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		_, err = tx.ExecContext(ctx, upsert, b.namespace, path, data, len(data), b.now())
		return err
	})
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	m, err := b.lookup(ctx, b.db, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if m.IsDir() {
		return fmt.Errorf("delete %s: %w", path, backend.ErrIsDirectory)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1 AND path = $2", b.table)
	if _, err := b.db.ExecContext(ctx, query, b.namespace, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Rename rewrites the path column of the entry and its subtree in one
// statement.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	update := fmt.Sprintf(
		"UPDATE %s SET path = $3::text || substr(path, length($2::text) + 1) WHERE "+subtreeClause,
		b.table)

	return b.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := b.lookup(ctx, tx, from); err != nil {
			return fmt.Errorf("rename %s: %w", from, err)
		}
		if _, err := b.lookup(ctx, tx, to); err == nil {
			return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrAlreadyExists)
		}
		if backend.IsChildOf(to, from) {
			return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
		}
		if err := b.ensureParents(ctx, tx, to); err != nil {
			return fmt.Errorf("rename %s to %s: %w", from, to, err)
		}
		_, err := tx.ExecContext(ctx, update, b.namespace, from, to)
		return err
	})
}

func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (namespace, path, kind, modified) VALUES ($1, $2, 'dir', $3)",
		b.table)

	return b.inTx(ctx, func(tx *sql.Tx) error {
		m, err := b.lookup(ctx, tx, path)
		if err == nil {
			if !m.IsDir() {
				return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
			}
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if err := b.ensureParents(ctx, tx, path); err != nil {
			return fmt.Errorf("mkdir %s: %w", path, err)
		}
		_, err = tx.ExecContext(ctx, insert, b.namespace, path, b.now())
		return err
	})
}

func (b *Backend) DeleteDir(ctx context.Context, path string) error {
	m, err := b.lookup(ctx, b.db, path)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	if !m.IsDir() {
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
	}

	if path == "" {
		query := fmt.Sprintf("DELETE FROM %s WHERE namespace = $1", b.table)
		_, err = b.db.ExecContext(ctx, query, b.namespace)
	} else {
		query := fmt.Sprintf("DELETE FROM %s WHERE "+subtreeClause, b.table)
		_, err = b.db.ExecContext(ctx, query, b.namespace, path)
	}
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	return nil
}
