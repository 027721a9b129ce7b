package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/metrics"
	"github.com/marmos91/zcore/internal/telemetry"
)

// s3Source streams an S3 object into a pipe for the engine to read.
//
// The object is opened before the source is returned, so a missing key
// fails here rather than surfacing as a corrupt stream mid-receive. A
// download error after that closes the write end early; the engine sees
// a truncated stream and fails the receive.
type s3Source struct {
	pr, pw  *os.File
	bucket  string
	key     string
	metrics *metrics.Operations

	done   chan error
	closed bool
}

func newS3Source(ctx context.Context, target Target, cfg S3Config, m *metrics.Operations) (*s3Source, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(target.Bucket),
		Key:    aws.String(target.Key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("stream object not found: s3://%s/%s", target.Bucket, target.Key)
		}
		return nil, fmt.Errorf("failed to open s3://%s/%s: %w", target.Bucket, target.Key, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		_ = out.Body.Close()
		return nil, fmt.Errorf("failed to create stream pipe: %w", err)
	}

	s := &s3Source{
		pr:      pr,
		pw:      pw,
		bucket:  target.Bucket,
		key:     target.Key,
		metrics: m,
		done:    make(chan error, 1),
	}

	go func() {
		defer func() { _ = out.Body.Close() }()
		defer func() { _ = s.pw.Close() }()

		ctx, span := telemetry.StartStreamSpan(ctx, "receive",
			telemetry.StoreType("s3"),
			telemetry.Bucket(s.bucket),
			telemetry.StorageKey(s.key))
		defer span.End()

		n, err := io.Copy(s.pw, out.Body)
		if err == nil {
			s.metrics.RecordStreamBytes("receive", n)
			telemetry.SetAttributes(ctx, telemetry.StreamBytes(n))
		} else {
			telemetry.RecordError(ctx, err)
		}
		s.done <- err
	}()

	return s, nil
}

func (s *s3Source) FD() int {
	return int(s.pr.Fd())
}

// Close tears down the pipe and reports any download failure.
func (s *s3Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	// Closing the read end unblocks the copier if the engine stopped
	// reading partway through the object. The EPIPE that produces is
	// the reader stopping, not a download failure.
	_ = s.pr.Close()
	if err := <-s.done; err != nil && !errors.Is(err, unix.EPIPE) {
		return fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
