package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
)

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "dsn is required")
}

func TestDescribeOmitsDirectorySize(t *testing.T) {
	now := time.Now()

	file := describe("a/f", "file", 3, "private", now)
	require.NotNil(t, file.Size)
	assert.Equal(t, int64(3), *file.Size)
	assert.Equal(t, "private", file.Visibility)

	dir := describe("a", "dir", 0, "public", now)
	assert.True(t, dir.IsDir())
	assert.Nil(t, dir.Size)
}

// TestPostgresBackend runs the conformance suite against a live server.
// Each test gets its own namespace, so a shared database stays usable.
func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("DITTOSTREAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DITTOSTREAM_TEST_POSTGRES_DSN not set")
	}

	suite := &backendtesting.Suite{
		NewBackend: func(t *testing.T) backend.Backend {
			b, err := New(context.Background(), Config{DSN: dsn, Namespace: uuid.NewString()})
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = b.DeleteDir(context.Background(), "")
				_ = b.Close()
			})
			return b
		},
	}
	suite.Run(t)
}
