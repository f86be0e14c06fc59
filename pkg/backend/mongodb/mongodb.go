// Package mongodb implements a backend storing one document per entry in a
// MongoDB collection.
package mongodb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/dittostream/internal/logger"
	"github.com/marmos91/dittostream/pkg/backend"
)

// Config configures the MongoDB backend.
type Config struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`

	// Namespace partitions the collection between bindings.
	Namespace string `mapstructure:"namespace"`
}

// entryDocument is the stored form of a file or directory. Bodies live
// inline, which caps files at the 16MB document limit.
type entryDocument struct {
	Namespace  string    `bson:"namespace"`
	Path       string    `bson:"path"`
	Kind       string    `bson:"kind"`
	Data       []byte    `bson:"data,omitempty"`
	Size       int64     `bson:"size"`
	Visibility string    `bson:"visibility"`
	Modified   time.Time `bson:"modified"`
}

func (d *entryDocument) metadata() backend.Metadata {
	modified := d.Modified
	m := backend.Metadata{
		Path:       d.Path,
		Kind:       backend.Kind(d.Kind),
		Visibility: d.Visibility,
		Timestamp:  &modified,
	}
	if m.Kind == backend.KindFile {
		size := d.Size
		m.Size = &size
	}
	return m
}

// Backend stores entries in a single collection.
type Backend struct {
	client     *mongo.Client
	collection *mongo.Collection
	namespace  string
	now        func() time.Time
}

var _ backend.Backend = (*Backend)(nil)

// New connects, pings the server and ensures the (namespace, path) index.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "dittostream"
	}
	if cfg.Collection == "" {
		cfg.Collection = "entries"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "path", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	logger.Debug("mongodb backend ready: database=%s collection=%s namespace=%q", cfg.Database, cfg.Collection, cfg.Namespace)

	return &Backend{
		client:     client,
		collection: coll,
		namespace:  cfg.Namespace,
		now:        time.Now,
	}, nil
}

// Close disconnects the client.
func (b *Backend) Close() error {
	return b.client.Disconnect(context.Background())
}

func (b *Backend) byPath(path string) bson.M {
	return bson.M{"namespace": b.namespace, "path": path}
}

// below matches every entry strictly under dir.
func (b *Backend) below(dir string) bson.M {
	pattern := "^"
	if dir != "" {
		pattern += regexp.QuoteMeta(dir + "/")
	}
	return bson.M{
		"namespace": b.namespace,
		"path":      primitive.Regex{Pattern: pattern},
	}
}

func (b *Backend) lookup(ctx context.Context, path string) (*entryDocument, error) {
	if path == "" {
		return &entryDocument{Kind: string(backend.KindDir), Visibility: backend.VisibilityPublic}, nil
	}

	var doc entryDocument
	err := b.collection.FindOne(ctx, b.byPath(path)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ensureParents upserts missing ancestor directories of path.
func (b *Backend) ensureParents(ctx context.Context, path string) error {
	for dir := backend.Dirname(path); dir != ""; dir = backend.Dirname(dir) {
		doc, err := b.lookup(ctx, dir)
		if err == nil {
			if doc.Kind != string(backend.KindDir) {
				return backend.ErrNotDirectory
			}
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		if err := b.insertDir(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) insertDir(ctx context.Context, path string) error {
	update := bson.M{"$setOnInsert": bson.M{
		"kind":       string(backend.KindDir),
		"size":       int64(0),
		"visibility": backend.VisibilityPublic,
		"modified":   b.now(),
	}}
	_, err := b.collection.UpdateOne(ctx, b.byPath(path), update, options.Update().SetUpsert(true))
	return err
}

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Has(ctx context.Context, path string) (bool, error) {
	_, err := b.lookup(ctx, path)
	if errors.Is(err, backend.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Backend) GetMetadata(ctx context.Context, path string) (*backend.Metadata, error) {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", path, err)
	}
	m := doc.metadata()
	m.Path = path
	return &m, nil
}

func (b *Backend) GetSize(ctx context.Context, path string) (int64, error) {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("size %s: %w", path, err)
	}
	return doc.Size, nil
}

func (b *Backend) GetTimestamp(ctx context.Context, path string) (time.Time, error) {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", path, err)
	}
	return doc.Modified, nil
}

func (b *Backend) GetVisibility(ctx context.Context, path string) (string, error) {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return "", fmt.Errorf("visibility %s: %w", path, err)
	}
	return doc.Visibility, nil
}

// ReadStream decodes the document body, which the caller then owns.
func (b *Backend) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if doc.Kind != string(backend.KindFile) {
		return nil, fmt.Errorf("read %s: %w", path, backend.ErrIsDirectory)
	}
	return &documentStream{Reader: bytes.NewReader(doc.Data), data: doc.Data}, nil
}

func (b *Backend) ListContents(ctx context.Context, dir string, recursive bool) ([]backend.Metadata, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "path", Value: 1}}).
		SetProjection(bson.M{"data": 0})

	cursor, err := b.collection.Find(ctx, b.below(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var result []backend.Metadata
	for cursor.Next(ctx) {
		var doc entryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if !recursive && !backend.IsDirectChildOf(doc.Path, dir) {
			continue
		}
		result = append(result, doc.metadata())
	}
	return result, cursor.Err()
}

type documentStream struct {
	*bytes.Reader
	data []byte
}

func (s *documentStream) Close() error {
	return nil
}

func (s *documentStream) Exclusive() []byte {
	data := s.data
	s.data = nil
	return data
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) SetVisibility(ctx context.Context, path string, visibility string) error {
	result, err := b.collection.UpdateOne(ctx, b.byPath(path), bson.M{"$set": bson.M{"visibility": visibility}})
	if err != nil {
		return fmt.Errorf("visibility %s: %w", path, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("visibility %s: %w", path, backend.ErrNotFound)
	}
	return nil
}

// WriteStream upserts the document. An existing file keeps its visibility.
func (b *Backend) WriteStream(ctx context.Context, path string, r io.Reader) error {
	if path == "" {
		return fmt.Errorf("write root: %w", backend.ErrIsDirectory)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	existing, err := b.lookup(ctx, path)
	switch {
	case err == nil && existing.Kind == string(backend.KindDir):
		return fmt.Errorf("write %s: %w", path, backend.ErrIsDirectory)
	case err != nil && !errors.Is(err, backend.ErrNotFound):
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := b.ensureParents(ctx, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	update := bson.M{
		"$set": bson.M{
			"kind":     string(backend.KindFile),
			"data":     data,
			"size":     int64(len(data)),
			"modified": b.now(),
		},
		"$setOnInsert": bson.M{"visibility": backend.VisibilityPublic},
	}
	if _, err := b.collection.UpdateOne(ctx, b.byPath(path), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if doc.Kind == string(backend.KindDir) {
		return fmt.Errorf("delete %s: %w", path, backend.ErrIsDirectory)
	}
	if _, err := b.collection.DeleteOne(ctx, b.byPath(path)); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Rename moves the entry and, for directories, every descendant. The moves
// are separate updates, so a failure part way leaves a partial rename.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	doc, err := b.lookup(ctx, from)
	if err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	if _, err := b.lookup(ctx, to); err == nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrAlreadyExists)
	}
	if backend.IsChildOf(to, from) {
		return fmt.Errorf("rename %s to %s: %w", from, to, backend.ErrInvalidRename)
	}
	if err := b.ensureParents(ctx, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	paths := []string{from}
	if doc.Kind == string(backend.KindDir) {
		children, err := b.ListContents(ctx, from, true)
		if err != nil {
			return err
		}
		for _, child := range children {
			paths = append(paths, child.Path)
		}
	}

	for _, p := range paths {
		target := to + p[len(from):]
		if _, err := b.collection.UpdateOne(ctx, b.byPath(p), bson.M{"$set": bson.M{"path": target}}); err != nil {
			return fmt.Errorf("rename %s to %s: %w", p, target, err)
		}
	}
	return nil
}

func (b *Backend) CreateDir(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	doc, err := b.lookup(ctx, path)
	if err == nil {
		if doc.Kind != string(backend.KindDir) {
			return fmt.Errorf("mkdir %s: %w", path, backend.ErrAlreadyExists)
		}
		return nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	if err := b.ensureParents(ctx, path); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return b.insertDir(ctx, path)
}

func (b *Backend) DeleteDir(ctx context.Context, path string) error {
	doc, err := b.lookup(ctx, path)
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	if doc.Kind != string(backend.KindDir) {
		return fmt.Errorf("rmdir %s: %w", path, backend.ErrNotDirectory)
	}

	if _, err := b.collection.DeleteMany(ctx, b.below(path)); err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	if path == "" {
		return nil
	}
	if _, err := b.collection.DeleteOne(ctx, b.byPath(path)); err != nil {
		return fmt.Errorf("rmdir %s: %w", path, err)
	}
	return nil
}
