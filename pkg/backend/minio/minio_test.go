package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
)

func TestKeyMapping(t *testing.T) {
	b := &Backend{prefix: "root/"}

	assert.Equal(t, "root/a/b", b.fileKey("a/b"))
	assert.Equal(t, "root/a/", b.dirKey("a"))
	assert.Equal(t, "a", b.pathOf("root/a/"))
}

func TestVisibilityUnsupported(t *testing.T) {
	b := &Backend{}

	_, err := b.GetVisibility(context.Background(), "x")
	assert.ErrorIs(t, err, backend.ErrNotSupported)
	assert.ErrorIs(t, b.SetVisibility(context.Background(), "x", backend.VisibilityPublic), backend.ErrNotSupported)
	assert.Equal(t, []string{backend.FieldVisibility}, b.Capabilities().Unsupported)
}

func TestDialRequiresEndpoint(t *testing.T) {
	_, err := Dial(context.Background(), Config{Bucket: "b"})
	assert.Error(t, err)
}

// TestMinioBackend_Integration runs the backend suite against a MinIO server
// when DITTOSTREAM_TEST_MINIO_ENDPOINT is set (host:port, credentials
// minioadmin/minioadmin).
func TestMinioBackend_Integration(t *testing.T) {
	endpoint := os.Getenv("DITTOSTREAM_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("DITTOSTREAM_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	suite := &backendtesting.Suite{
		NewBackend: func(t *testing.T) backend.Backend {
			bucket := fmt.Sprintf("dittostream-%d", time.Now().UnixNano())
			require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))

			b, err := New(ctx, client, bucket, "streams/")
			require.NoError(t, err)

			t.Cleanup(func() {
				_ = b.DeleteDir(ctx, "")
				_ = client.RemoveBucket(ctx, bucket)
			})
			return b
		},
	}
	suite.Run(t)
}
