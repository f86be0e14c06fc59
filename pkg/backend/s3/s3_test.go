package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
)

func TestKeyMapping(t *testing.T) {
	b := &Backend{prefix: "streams/"}

	assert.Equal(t, "streams/dir/file", b.fileKey("dir/file"))
	assert.Equal(t, "streams/dir/", b.dirKey("dir"))
	assert.Equal(t, "streams/", b.dirKey(""))
	assert.Equal(t, "dir", b.pathOf("streams/dir/"))
	assert.Equal(t, "dir/file", b.pathOf("streams/dir/file"))
}

func TestCopySourceEscapesSegments(t *testing.T) {
	assert.Equal(t, "bucket/dir/a%20b", copySource("bucket", "dir/a b"))
}

func TestCapabilitiesFollowACLSetting(t *testing.T) {
	assert.Equal(t, []string{backend.FieldVisibility}, (&Backend{}).Capabilities().Unsupported)
	assert.Empty(t, (&Backend{acl: true}).Capabilities().Unsupported)
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Bucket: "b"})
	assert.ErrorContains(t, err, "client is required")

	client, err := NewClient(ctx, ClientConfig{Region: "us-east-1", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = New(ctx, Config{Client: client})
	assert.ErrorContains(t, err, "bucket name is required")

	_, err = New(ctx, Config{Client: client, Bucket: "b", PartSize: 1})
	assert.ErrorContains(t, err, "part size")
}
