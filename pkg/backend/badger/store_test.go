package badger

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
)

func newTestBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()
	b, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerBackend(t *testing.T) {
	configs := map[string]func(t *testing.T) Config{
		"InMemory":    func(t *testing.T) Config { return Config{InMemory: true} },
		"Compression": func(t *testing.T) Config { return Config{InMemory: true, Compression: true} },
		"OnDisk":      func(t *testing.T) Config { return Config{Path: t.TempDir()} },
	}

	for name, mkConfig := range configs {
		t.Run(name, func(t *testing.T) {
			suite := &backendtesting.Suite{
				NewBackend: func(t *testing.T) backend.Backend {
					return newTestBackend(t, mkConfig(t))
				},
			}
			suite.Run(t)
		})
	}
}

func TestNewRequiresLocation(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestReadStreamIsExclusive(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{InMemory: true})

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("owned"))))

	rc, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	ex, ok := rc.(backend.ExclusiveStream)
	require.True(t, ok)
	assert.Equal(t, "owned", string(ex.Exclusive()))
	assert.Nil(t, ex.Exclusive(), "bytes are handed over once")
}

func TestCompressedBlobsReadableWithoutCompression(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	body := bytes.Repeat([]byte("dittostream "), 1024)

	b, err := New(ctx, Config{Path: dir, Compression: true})
	require.NoError(t, err)
	require.NoError(t, b.WriteStream(ctx, "big.txt", bytes.NewReader(body)))
	require.NoError(t, b.Close())

	b = newTestBackend(t, Config{Path: dir})

	size, err := b.GetSize(ctx, "big.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), size, "size reports the uncompressed length")

	rc, err := b.ReadStream(ctx, "big.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestOverwriteKeepsVisibility(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{InMemory: true})

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("a"))))
	require.NoError(t, b.SetVisibility(ctx, "f", backend.VisibilityPrivate))
	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("b"))))

	vis, err := b.GetVisibility(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPrivate, vis)
}

func TestRecordEncodingIsDeterministic(t *testing.T) {
	r := &record{Kind: backend.KindFile, Size: 3, Modified: 42, Visibility: "public", Blob: "x"}

	first, err := encodeRecord(r)
	require.NoError(t, err)
	second, err := encodeRecord(r)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := decodeRecord(first)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestSubtreeKeys(t *testing.T) {
	assert.Equal(t, "e:", string(keySubtree("")))
	assert.Equal(t, "e:a/", string(keySubtree("a")))
	assert.Equal(t, "a/b", pathFromEntryKey(keyEntry("a/b")))
}
