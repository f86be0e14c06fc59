package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend/memory"
	"github.com/marmos91/dittostream/pkg/registry"
)

func readAll(l *Listing) []string {
	var names []string
	for {
		name, ok := l.Read()
		if !ok {
			return names
		}
		names = append(names, name)
	}
}

func TestOpenDirListsDirectChildren(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})
	fx.put(t, "dir/b", "x")
	fx.put(t, "dir/a", "x")
	fx.put(t, "dir/sub/deep", "x")
	fx.put(t, "other", "x")

	l, err := fx.fs.OpenDir(context.Background(), "/dir/")
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"a", "b", "sub"}, readAll(l))
}

func TestOpenDirRoot(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})
	fx.put(t, "dir/a", "x")
	fx.put(t, "file", "x")

	l, err := fx.fs.OpenDir(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir", "file"}, readAll(l))
}

func TestListingIsASnapshot(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})
	fx.put(t, "dir/a", "x")

	l, err := fx.fs.OpenDir(context.Background(), "dir")
	require.NoError(t, err)

	fx.put(t, "dir/b", "x")
	assert.Equal(t, []string{"a"}, readAll(l))

	_, ok := l.Read()
	assert.False(t, ok, "reading past the end stays at the end")
}

func TestListingRewindDoesNotRefetch(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})
	fx.put(t, "dir/a", "x")
	fx.put(t, "dir/b", "x")

	l, err := fx.fs.OpenDir(context.Background(), "dir")
	require.NoError(t, err)

	first := readAll(l)
	l.Rewind()
	assert.Equal(t, first, readAll(l))
	assert.Equal(t, 1, fx.counting.Calls("ListContents"))
}

func TestOpenDirMissingIsEmpty(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})

	l, err := fx.fs.OpenDir(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, l.Len())

	_, ok := l.Read()
	assert.False(t, ok)
}

func TestListingClose(t *testing.T) {
	fx := newFixture(t, memory.Config{}, registry.Config{})
	fx.put(t, "a", "x")

	l, err := fx.fs.OpenDir(context.Background(), "")
	require.NoError(t, err)
	l.Close()

	assert.Zero(t, l.Len())
	_, ok := l.Read()
	assert.False(t, ok)
}
