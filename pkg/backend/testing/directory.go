package testing

import (
	"errors"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDirectoryTests executes directory and listing tests.
func (suite *Suite) RunDirectoryTests(t *testing.T) {
	t.Run("CreateDir_Nested", suite.testCreateDirNested)
	t.Run("CreateDir_Existing", suite.testCreateDirExisting)
	t.Run("ListContents_Shallow", suite.testListShallow)
	t.Run("ListContents_Recursive", suite.testListRecursive)
	t.Run("ListContents_Missing", suite.testListMissing)
	t.Run("DeleteDir_Subtree", suite.testDeleteDir)
	t.Run("Rename_Directory", suite.testRenameDir)
	t.Run("Rename_IntoItself", suite.testRenameIntoItself)
}

func (suite *Suite) testCreateDirNested(t *testing.T) {
	b := suite.NewBackend(t)

	require.NoError(t, b.CreateDir(testContext(), "x/y/z"))

	for _, p := range []string{"x", "x/y", "x/y/z"} {
		meta, err := b.GetMetadata(testContext(), p)
		require.NoError(t, err, p)
		assert.Equal(t, backend.KindDir, meta.Kind, p)
	}
}

func (suite *Suite) testCreateDirExisting(t *testing.T) {
	b := suite.NewBackend(t)

	require.NoError(t, b.CreateDir(testContext(), "again"))
	require.NoError(t, b.CreateDir(testContext(), "again"))
}

func (suite *Suite) testListShallow(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "root.txt", []byte("r"))
	mustWrite(t, b, "dir/one.txt", []byte("1"))
	mustWrite(t, b, "dir/sub/two.txt", []byte("2"))
	require.NoError(t, b.CreateDir(testContext(), "dir/empty"))

	assert.Equal(t, map[string]backend.Kind{
		"root.txt": backend.KindFile,
		"dir":      backend.KindDir,
	}, listPaths(t, b, "", false))

	assert.Equal(t, map[string]backend.Kind{
		"dir/one.txt": backend.KindFile,
		"dir/sub":     backend.KindDir,
		"dir/empty":   backend.KindDir,
	}, listPaths(t, b, "dir", false))
}

func (suite *Suite) testListRecursive(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "dir/one.txt", []byte("1"))
	mustWrite(t, b, "dir/sub/two.txt", []byte("2"))

	assert.Equal(t, map[string]backend.Kind{
		"dir/one.txt":     backend.KindFile,
		"dir/sub":         backend.KindDir,
		"dir/sub/two.txt": backend.KindFile,
	}, listPaths(t, b, "dir", true))
}

func (suite *Suite) testListMissing(t *testing.T) {
	b := suite.NewBackend(t)

	assert.Empty(t, listPaths(t, b, "nowhere", false))
}

func (suite *Suite) testDeleteDir(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "tree/a.txt", []byte("a"))
	mustWrite(t, b, "tree/branch/b.txt", []byte("b"))
	mustWrite(t, b, "keep.txt", []byte("k"))

	require.NoError(t, b.DeleteDir(testContext(), "tree"))

	assert.False(t, mustHave(t, b, "tree"))
	assert.False(t, mustHave(t, b, "tree/branch/b.txt"))
	assert.True(t, mustHave(t, b, "keep.txt"))
}

func (suite *Suite) testRenameDir(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "src/a.txt", []byte("a"))
	mustWrite(t, b, "src/deep/b.txt", []byte("b"))

	require.NoError(t, b.Rename(testContext(), "src", "dst"))

	assert.False(t, mustHave(t, b, "src"))
	assert.Equal(t, []byte("a"), mustRead(t, b, "dst/a.txt"))
	assert.Equal(t, []byte("b"), mustRead(t, b, "dst/deep/b.txt"))
}

func (suite *Suite) testRenameIntoItself(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "loop/f.txt", []byte("f"))

	AssertErrorIs(t, backend.ErrInvalidRename, b.Rename(testContext(), "loop", "loop/inner"))

	assert.Equal(t, []byte("f"), mustRead(t, b, "loop/f.txt"))
	assert.False(t, mustHave(t, b, "loop/inner"))
}

// RunVisibilityTests checks visibility round-trips on backends that support
// it and the ErrNotSupported contract on those that do not.
func (suite *Suite) RunVisibilityTests(t *testing.T) {
	b := suite.NewBackend(t)
	ctx := testContext()

	mustWrite(t, b, "vis.txt", []byte("v"))

	_, err := b.GetVisibility(ctx, "vis.txt")
	if errors.Is(err, backend.ErrNotSupported) {
		AssertErrorIs(t, backend.ErrNotSupported, b.SetVisibility(ctx, "vis.txt", backend.VisibilityPrivate))
		return
	}
	require.NoError(t, err)

	require.NoError(t, b.SetVisibility(ctx, "vis.txt", backend.VisibilityPrivate))
	got, err := b.GetVisibility(ctx, "vis.txt")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPrivate, got)

	require.NoError(t, b.SetVisibility(ctx, "vis.txt", backend.VisibilityPublic))
	got, err = b.GetVisibility(ctx, "vis.txt")
	require.NoError(t, err)
	assert.Equal(t, backend.VisibilityPublic, got)

	_, err = b.GetVisibility(ctx, "missing")
	AssertErrorIs(t, backend.ErrNotFound, err)
}
