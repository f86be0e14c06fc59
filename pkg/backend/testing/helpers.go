package testing

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/marmos91/dittostream/pkg/backend"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs fails the test unless err wraps expected.
func AssertErrorIs(t *testing.T, expected, err error) {
	t.Helper()

	require.Error(t, err)
	require.True(t, errors.Is(err, expected), "expected %v, got %v", expected, err)
}

func mustWrite(t *testing.T, b backend.Backend, path string, data []byte) {
	t.Helper()

	require.NoError(t, b.WriteStream(testContext(), path, bytes.NewReader(data)))
}

func mustRead(t *testing.T, b backend.Backend, path string) []byte {
	t.Helper()

	rc, err := b.ReadStream(testContext(), path)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func mustHave(t *testing.T, b backend.Backend, path string) bool {
	t.Helper()

	ok, err := b.Has(testContext(), path)
	require.NoError(t, err)
	return ok
}

func listPaths(t *testing.T, b backend.Backend, dir string, recursive bool) map[string]backend.Kind {
	t.Helper()

	entries, err := b.ListContents(testContext(), dir, recursive)
	require.NoError(t, err)

	paths := make(map[string]backend.Kind, len(entries))
	for _, e := range entries {
		paths[e.Path] = e.Kind
	}
	return paths
}

func pattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
