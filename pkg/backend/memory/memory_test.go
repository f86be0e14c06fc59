package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	configs := map[string]Config{
		"Default":           {},
		"ExclusiveReads":    {ExclusiveReads: true},
		"DisableVisibility": {DisableVisibility: true},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			suite := &backendtesting.Suite{
				NewBackend: func(t *testing.T) backend.Backend {
					return New(cfg)
				},
			}
			suite.Run(t)
		})
	}
}

func TestSharedStreamSurvivesOverwrite(t *testing.T) {
	ctx := context.Background()
	b := New(Config{})

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("before"))))

	rc, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	_, isSeeker := rc.(io.ReadSeeker)
	assert.True(t, isSeeker, "shared streams are seekable")
	_, isExclusive := rc.(backend.ExclusiveStream)
	assert.False(t, isExclusive)

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("after!"))))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "before", string(data))
}

func TestExclusiveStreamReleasesCopy(t *testing.T) {
	ctx := context.Background()
	b := New(Config{ExclusiveReads: true})

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("mine"))))

	rc, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)

	ex, ok := rc.(backend.ExclusiveStream)
	require.True(t, ok)

	data := ex.Exclusive()
	data[0] = 'M'
	require.NoError(t, rc.Close())

	rc2, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)
	stored, err := io.ReadAll(rc2)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(stored))
}

func TestWriteOverDirectoryFails(t *testing.T) {
	ctx := context.Background()
	b := New(Config{})

	require.NoError(t, b.CreateDir(ctx, "dir"))
	err := b.WriteStream(ctx, "dir", bytes.NewReader(nil))
	assert.ErrorIs(t, err, backend.ErrIsDirectory)

	err = b.Delete(ctx, "dir")
	assert.ErrorIs(t, err, backend.ErrIsDirectory)
}

func TestCapabilities(t *testing.T) {
	assert.Empty(t, New(Config{}).Capabilities().Unsupported)
	assert.Equal(t, []string{backend.FieldVisibility}, New(Config{DisableVisibility: true}).Capabilities().Unsupported)
}
