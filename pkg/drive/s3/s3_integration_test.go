//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/onedrivefs/pkg/drive"
	drivetesting "github.com/marmos91/onedrivefs/pkg/drive/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localstackClient connects to Localstack.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./pkg/drive/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func localstackClient(t *testing.T) *s3.Client {
	t.Helper()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(context.Background(),
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // Required for Localstack
	})
}

// newBucketDrive creates a fresh bucket and a drive on it. The bucket is
// emptied and removed when the test ends.
func newBucketDrive(t *testing.T, client *s3.Client, partSize int64) *S3Drive {
	t.Helper()
	ctx := context.Background()

	bucket := fmt.Sprintf("onedrivefs-test-%d", time.Now().UnixNano())
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	d, err := New(ctx, Config{Client: client, Bucket: bucket, KeyPrefix: "drive", PartSize: partSize})
	require.NoError(t, err)

	t.Cleanup(func() {
		keys, err := d.keysUnder(ctx, "")
		if err == nil && len(keys) > 0 {
			_ = d.deleteKeys(ctx, keys)
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})
	return d
}

func TestS3Drive_Integration(t *testing.T) {
	client := localstackClient(t)

	suite := &drivetesting.DriveTestSuite{
		NewDrive: func(t *testing.T) drive.Drive {
			return newBucketDrive(t, client, 0)
		},
	}
	suite.Run(t)
}

func TestS3Drive_MultipartParts(t *testing.T) {
	ctx := context.Background()
	d := newBucketDrive(t, localstackClient(t), MinPartSize)

	// 40 chunks of 320 KiB make 12.5 MiB: two full 5 MiB parts and a tail.
	data := make([]byte, 40*drive.ChunkAlignment)
	for i := range data {
		data[i] = byte(i % 251)
	}

	s, err := d.CreateUploadSession(ctx, "/", "large.bin")
	require.NoError(t, err)

	total := int64(len(data))
	for start := int64(0); start < total; start += drive.ChunkAlignment {
		end := min(start+drive.ChunkAlignment, total)
		require.NoError(t, d.UploadChunk(ctx, s, drive.ByteRange{Start: start, End: end - 1, Total: total}, data[start:end]))
	}
	assert.Equal(t, 0, d.OpenSessions())

	got, err := d.Download(ctx, "/large.bin")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestS3Drive_ImplicitFolders(t *testing.T) {
	ctx := context.Background()
	client := localstackClient(t)
	d := newBucketDrive(t, client, 0)

	// An object written by another tool, without folder markers.
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.fileKey("/a/b/c.txt")),
		Body:   nil,
	})
	require.NoError(t, err)

	item, err := d.GetItem(ctx, "/a/b")
	require.NoError(t, err)
	assert.True(t, item.IsDir())

	children, err := d.ListChildren(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "b", children[0].Name)
	assert.True(t, children[0].IsDir())
}
