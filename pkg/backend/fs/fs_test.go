package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
)

func TestMemMapFsBackend(t *testing.T) {
	suite := &backendtesting.Suite{
		NewBackend: func(t *testing.T) backend.Backend {
			return New(afero.NewMemMapFs(), Config{})
		},
	}
	suite.Run(t)
}

func TestOsBackend(t *testing.T) {
	suite := &backendtesting.Suite{
		NewBackend: func(t *testing.T) backend.Backend {
			b, err := NewOs(context.Background(), Config{Root: filepath.Join(t.TempDir(), "root")})
			require.NoError(t, err)
			return b
		},
	}
	suite.Run(t)
}

func TestNewOsRequiresRoot(t *testing.T) {
	_, err := NewOs(context.Background(), Config{})
	assert.Error(t, err)
}

func TestVisibilityMapsToPermissionBits(t *testing.T) {
	ctx := context.Background()
	memfs := afero.NewMemMapFs()
	b := New(memfs, Config{})

	require.NoError(t, b.WriteStream(ctx, "secret", bytes.NewReader([]byte("s"))))
	require.NoError(t, b.SetVisibility(ctx, "secret", backend.VisibilityPrivate))

	info, err := memfs.Stat("/secret")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Overwriting keeps the permission bits of the existing file.
	require.NoError(t, b.WriteStream(ctx, "secret", bytes.NewReader([]byte("t"))))
	vis, err := b.GetVisibility(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPrivate, vis)
}

func TestOpenStreamKeepsOldContentAfterOverwrite(t *testing.T) {
	ctx := context.Background()
	b, err := NewOs(ctx, Config{Root: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("old"))))
	rc, err := b.ReadStream(ctx, "f")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	require.NoError(t, b.WriteStream(ctx, "f", bytes.NewReader([]byte("new"))))

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestListingSkipsTemporaryFiles(t *testing.T) {
	ctx := context.Background()
	memfs := afero.NewMemMapFs()
	b := New(memfs, Config{})

	require.NoError(t, afero.WriteFile(memfs, "/"+tempPrefix+"123", []byte("x"), 0o600))
	require.NoError(t, b.WriteStream(ctx, "real", bytes.NewReader([]byte("x"))))

	entries, err := b.ListContents(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "real", entries[0].Path)
}
