//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittostream/pkg/backend"
	backendtesting "github.com/marmos91/dittostream/pkg/backend/testing"
)

// TestS3Backend_Integration runs the backend suite against an S3-compatible
// service such as Localstack.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or DITTOSTREAM_TEST_S3_ENDPOINT)
//   - Run with: go test -tags=integration ./pkg/backend/s3/...
func TestS3Backend_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("DITTOSTREAM_TEST_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	client, err := NewClient(ctx, ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	suite := &backendtesting.Suite{
		NewBackend: func(t *testing.T) backend.Backend {
			bucket := fmt.Sprintf("dittostream-test-%d", time.Now().UnixNano())
			_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
			require.NoError(t, err)

			b, err := New(ctx, Config{Client: client, Bucket: bucket, KeyPrefix: "streams/"})
			require.NoError(t, err)

			t.Cleanup(func() {
				_ = b.DeleteDir(ctx, "")
				_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
			})
			return b
		},
	}
	suite.Run(t)
}
