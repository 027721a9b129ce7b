//go:build integration

package stream

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sys/unix"
)

// localstackHelper manages the Localstack container for S3 stream tests.
type localstackHelper struct {
	container testcontainers.Container
	endpoint  string
	client    *s3.Client
}

// newLocalstackHelper starts a Localstack container or connects to an
// existing one via LOCALSTACK_ENDPOINT.
func newLocalstackHelper(t *testing.T) *localstackHelper {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		helper := &localstackHelper{endpoint: endpoint}
		helper.createClient(t)
		return helper
	}

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start localstack container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "4566")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container port: %v", err)
	}

	helper := &localstackHelper{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	helper.createClient(t)

	return helper
}

func (lh *localstackHelper) config() S3Config {
	return S3Config{
		Region:          "us-east-1",
		Endpoint:        lh.endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	}
}

func (lh *localstackHelper) createClient(t *testing.T) {
	t.Helper()

	client, err := NewS3Client(context.Background(), lh.config())
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	lh.client = client
}

func (lh *localstackHelper) createBucket(t *testing.T, bucketName string) {
	t.Helper()

	_, err := lh.client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		t.Fatalf("failed to create test bucket: %v", err)
	}
}

func (lh *localstackHelper) cleanup() {
	if lh.container != nil {
		_ = lh.container.Terminate(context.Background())
	}
}

// writeAll pushes data through a raw descriptor, retrying short writes.
func writeAll(t *testing.T, fd int, data []byte) {
	t.Helper()
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		require.NoError(t, err)
		data = data[n:]
	}
}

// readAll drains a raw descriptor until EOF.
func readAll(t *testing.T, fd int) []byte {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, 64*1024)
	for {
		n, err := unix.Read(fd, buf)
		require.NoError(t, err)
		if n == 0 {
			return out.Bytes()
		}
		out.Write(buf[:n])
	}
}

func TestS3Stream_Roundtrip(t *testing.T) {
	lh := newLocalstackHelper(t)
	defer lh.cleanup()
	lh.createBucket(t, "streams")

	ctx := context.Background()
	cfg := lh.config()
	payload := []byte("zcore replication stream payload")

	sink, err := OpenSink(ctx, "s3://streams/tank/daily.zstream", Options{S3: &cfg})
	require.NoError(t, err)
	writeAll(t, sink.FD(), payload)
	require.NoError(t, sink.Commit(ctx))

	src, err := OpenSource(ctx, "s3://streams/tank/daily.zstream", Options{S3: &cfg})
	require.NoError(t, err)
	got := readAll(t, src.FD())
	require.NoError(t, src.Close())

	assert.Equal(t, payload, got)
}

func TestS3Stream_MultipartRoundtrip(t *testing.T) {
	lh := newLocalstackHelper(t)
	defer lh.cleanup()
	lh.createBucket(t, "streams")

	ctx := context.Background()
	cfg := lh.config()

	// Three parts: two at the 5 MiB floor plus a short tail.
	payload := make([]byte, 11*1024*1024)
	_, err := io.ReadFull(rand.Reader, payload)
	require.NoError(t, err)

	sink, err := OpenSink(ctx, "s3://streams/tank/full.zstream", Options{S3: &cfg})
	require.NoError(t, err)
	writeAll(t, sink.FD(), payload)
	require.NoError(t, sink.Commit(ctx))

	src, err := OpenSource(ctx, "s3://streams/tank/full.zstream", Options{S3: &cfg})
	require.NoError(t, err)
	got := readAll(t, src.FD())
	require.NoError(t, src.Close())

	assert.Equal(t, payload, got)
}

func TestS3Stream_SourceNotFound(t *testing.T) {
	lh := newLocalstackHelper(t)
	defer lh.cleanup()
	lh.createBucket(t, "streams")

	cfg := lh.config()
	_, err := OpenSource(context.Background(), "s3://streams/missing.zstream", Options{S3: &cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestS3Stream_AbortLeavesNoObject(t *testing.T) {
	lh := newLocalstackHelper(t)
	defer lh.cleanup()
	lh.createBucket(t, "streams")

	ctx := context.Background()
	cfg := lh.config()

	sink, err := OpenSink(ctx, "s3://streams/tank/aborted.zstream", Options{S3: &cfg})
	require.NoError(t, err)
	writeAll(t, sink.FD(), []byte("half a stream"))
	require.NoError(t, sink.Abort())

	_, err = lh.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("streams"),
		Key:    aws.String("tank/aborted.zstream"),
	})
	require.Error(t, err)
	assert.True(t, isNotFoundError(err))
}
