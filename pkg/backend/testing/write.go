package testing

import (
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWriteTests executes all write-side backend tests.
func (suite *Suite) RunWriteTests(t *testing.T) {
	t.Run("WriteStream_Overwrite", suite.testOverwrite)
	t.Run("WriteStream_CreatesParents", suite.testWriteCreatesParents)
	t.Run("Delete_Success", suite.testDelete)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("Rename_File", suite.testRenameFile)
	t.Run("Rename_NotFound", suite.testRenameNotFound)
}

func (suite *Suite) testOverwrite(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "file", []byte("first version"))
	mustWrite(t, b, "file", []byte("second"))

	assert.Equal(t, []byte("second"), mustRead(t, b, "file"))
}

func (suite *Suite) testWriteCreatesParents(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "a/b/c.txt", []byte("deep"))

	assert.True(t, mustHave(t, b, "a"))
	assert.True(t, mustHave(t, b, "a/b"))

	meta, err := b.GetMetadata(testContext(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, backend.KindDir, meta.Kind)
}

func (suite *Suite) testDelete(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "doomed", []byte("x"))
	require.NoError(t, b.Delete(testContext(), "doomed"))
	assert.False(t, mustHave(t, b, "doomed"))
}

func (suite *Suite) testDeleteNotFound(t *testing.T) {
	b := suite.NewBackend(t)

	AssertErrorIs(t, backend.ErrNotFound, b.Delete(testContext(), "ghost"))
}

func (suite *Suite) testRenameFile(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "old.txt", []byte("payload"))
	require.NoError(t, b.Rename(testContext(), "old.txt", "moved/new.txt"))

	assert.False(t, mustHave(t, b, "old.txt"))
	assert.Equal(t, []byte("payload"), mustRead(t, b, "moved/new.txt"))
}

func (suite *Suite) testRenameNotFound(t *testing.T) {
	b := suite.NewBackend(t)

	AssertErrorIs(t, backend.ErrNotFound, b.Rename(testContext(), "ghost", "other"))
}
