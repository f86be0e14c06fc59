package testing

import (
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReadTests executes all read-side backend tests.
func (suite *Suite) RunReadTests(t *testing.T) {
	t.Run("ReadStream_NotFound", suite.testReadNotFound)
	t.Run("ReadStream_Success", suite.testReadSuccess)
	t.Run("ReadStream_Empty", suite.testReadEmpty)
	t.Run("ReadStream_Large", suite.testReadLarge)
	t.Run("Has", suite.testHas)
	t.Run("GetMetadata_File", suite.testMetadataFile)
	t.Run("GetMetadata_NotFound", suite.testMetadataNotFound)
	t.Run("GetSize", suite.testGetSize)
	t.Run("GetTimestamp", suite.testGetTimestamp)
}

func (suite *Suite) testReadNotFound(t *testing.T) {
	b := suite.NewBackend(t)

	_, err := b.ReadStream(testContext(), "missing.txt")
	AssertErrorIs(t, backend.ErrNotFound, err)
}

func (suite *Suite) testReadSuccess(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "hello.txt", []byte("Hello, World!"))
	assert.Equal(t, []byte("Hello, World!"), mustRead(t, b, "hello.txt"))
}

func (suite *Suite) testReadEmpty(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "empty", nil)
	assert.Empty(t, mustRead(t, b, "empty"))
}

func (suite *Suite) testReadLarge(t *testing.T) {
	b := suite.NewBackend(t)

	data := pattern(1 << 20)
	mustWrite(t, b, "large.bin", data)
	assert.Equal(t, data, mustRead(t, b, "large.bin"))
}

func (suite *Suite) testHas(t *testing.T) {
	b := suite.NewBackend(t)

	assert.False(t, mustHave(t, b, "file.txt"))
	mustWrite(t, b, "file.txt", []byte("x"))
	assert.True(t, mustHave(t, b, "file.txt"))
}

func (suite *Suite) testMetadataFile(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "dir/file.txt", []byte("12345"))

	meta, err := b.GetMetadata(testContext(), "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "dir/file.txt", meta.Path)
	assert.Equal(t, backend.KindFile, meta.Kind)
	if meta.Size != nil {
		assert.Equal(t, int64(5), *meta.Size)
	}
}

func (suite *Suite) testMetadataNotFound(t *testing.T) {
	b := suite.NewBackend(t)

	_, err := b.GetMetadata(testContext(), "nope")
	AssertErrorIs(t, backend.ErrNotFound, err)
}

func (suite *Suite) testGetSize(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "sized", []byte("abc"))

	size, err := b.GetSize(testContext(), "sized")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	_, err = b.GetSize(testContext(), "unsized")
	AssertErrorIs(t, backend.ErrNotFound, err)
}

func (suite *Suite) testGetTimestamp(t *testing.T) {
	b := suite.NewBackend(t)

	mustWrite(t, b, "stamped", []byte("abc"))

	ts, err := b.GetTimestamp(testContext(), "stamped")
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}
