//go:build unix

package lock

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathLayout(t *testing.T) {
	dir := t.TempDir()
	r := NewRelay(dir)

	p, err := r.Path("s3.v2", "a/b.txt")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, hex.EncodeToString([]byte("s3.v2"))), filepath.Dir(p))
	assert.Len(t, filepath.Base(p), 64)
}

func TestPathNormalizes(t *testing.T) {
	r := NewRelay(t.TempDir())

	a, err := r.Path("mem", "/a//b/./c.txt")
	require.NoError(t, err)
	b, err := r.Path("mem", "a/b/c.txt")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := r.Path("disk", "a/b/c.txt")
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	_, err = r.Path("mem", "../escape")
	assert.Error(t, err)
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, DefaultDir(), NewRelay("").Dir())
}

func TestIsUnlock(t *testing.T) {
	assert.True(t, IsUnlock(Unlock))
	assert.True(t, IsUnlock(Unlock|NonBlocking))
	assert.False(t, IsUnlock(Shared))
	assert.False(t, IsUnlock(Exclusive|NonBlocking))
}

func TestExclusiveConflicts(t *testing.T) {
	r := NewRelay(t.TempDir())

	first, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, first.Apply(Exclusive))
	assert.ErrorIs(t, second.Apply(Exclusive|NonBlocking), ErrWouldBlock)
	assert.ErrorIs(t, second.Apply(Shared|NonBlocking), ErrWouldBlock)

	require.NoError(t, first.Apply(Unlock))
	assert.NoError(t, second.Apply(Exclusive|NonBlocking))
}

func TestSharedLocksCoexist(t *testing.T) {
	r := NewRelay(t.TempDir())

	first, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	require.NoError(t, first.Apply(Shared))
	assert.NoError(t, second.Apply(Shared|NonBlocking))
}

func TestCloseReleases(t *testing.T) {
	r := NewRelay(t.TempDir())

	first, err := r.Open("mem", "file")
	require.NoError(t, err)
	require.NoError(t, first.Apply(Exclusive))
	require.NoError(t, first.Close())

	second, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = second.Close() }()
	assert.NoError(t, second.Apply(Exclusive|NonBlocking))
}

func TestInvalidOperation(t *testing.T) {
	r := NewRelay(t.TempDir())

	h, err := r.Open("mem", "file")
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	assert.ErrorIs(t, h.Apply(0), ErrInvalidOperation)
	assert.ErrorIs(t, h.Apply(NonBlocking), ErrInvalidOperation)
}
