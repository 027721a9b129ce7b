package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/internal/metrics"
	"github.com/marmos91/zcore/internal/telemetry"
)

// s3Sink uploads a stream to an S3 object.
//
// The engine writes into a pipe; a background goroutine drains the read
// end and uploads the data, as a single PutObject when the stream fits
// in one part and as a multipart upload otherwise. On upload failure
// the read end is closed, so the engine's next write fails instead of
// blocking on a full pipe.
type s3Sink struct {
	pr, pw   *os.File
	client   *s3.Client
	bucket   string
	key      string
	partSize uint64
	metrics  *metrics.Operations

	cancel context.CancelFunc
	done   chan error
	closed bool
}

func newS3Sink(ctx context.Context, target Target, cfg S3Config, m *metrics.Operations) (*s3Sink, error) {
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stream pipe: %w", err)
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	s := &s3Sink{
		pr:       pr,
		pw:       pw,
		client:   client,
		bucket:   target.Bucket,
		key:      target.Key,
		partSize: cfg.partSize(),
		metrics:  m,
		cancel:   cancel,
		done:     make(chan error, 1),
	}

	go func() {
		defer func() { _ = s.pr.Close() }()
		s.done <- s.upload(uploadCtx)
	}()

	return s, nil
}

func (s *s3Sink) FD() int {
	return int(s.pw.Fd())
}

// Commit closes the write end and waits for the upload to finish.
func (s *s3Sink) Commit(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.cancel()

	if err := s.pw.Close(); err != nil {
		return fmt.Errorf("failed to close stream pipe: %w", err)
	}

	select {
	case err := <-s.done:
		if err != nil {
			return fmt.Errorf("failed to upload stream to s3://%s/%s: %w", s.bucket, s.key, err)
		}
		return nil
	case <-ctx.Done():
		s.cancel()
		<-s.done
		return ctx.Err()
	}
}

// Abort cancels the upload and discards any parts already sent.
func (s *s3Sink) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.cancel()
	_ = s.pw.Close()
	<-s.done
	return nil
}

// upload drains the pipe into the object. The first read decides the
// shape: streams no larger than one part go up in a single PutObject.
func (s *s3Sink) upload(ctx context.Context) (err error) {
	ctx, span := telemetry.StartStreamSpan(ctx, "send",
		telemetry.StoreType("s3"),
		telemetry.Bucket(s.bucket),
		telemetry.StorageKey(s.key))
	defer span.End()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	buf := make([]byte, s.partSize)

	n, rerr := io.ReadFull(s.pr, buf)
	if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
			Body:   bytes.NewReader(buf[:n]),
		})
		if err != nil {
			return err
		}
		s.metrics.RecordStreamBytes("send", int64(n))
		telemetry.SetAttributes(ctx, telemetry.StreamBytes(int64(n)))
		return nil
	}
	if rerr != nil {
		return fmt.Errorf("failed to read stream: %w", rerr)
	}

	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return err
	}
	uploadID := aws.ToString(create.UploadId)

	var (
		parts   []types.CompletedPart
		partNum int32
		total   int64
	)
	for {
		partNum++
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.bucket),
			Key:        aws.String(s.key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(partNum),
			Body:       bytes.NewReader(buf[:n]),
		})
		if err != nil {
			s.abortUpload(uploadID)
			return fmt.Errorf("failed to upload part %d: %w", partNum, err)
		}
		parts = append(parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNum),
		})
		total += int64(n)

		n, rerr = io.ReadFull(s.pr, buf)
		if rerr == io.EOF {
			break
		}
		if rerr != nil && rerr != io.ErrUnexpectedEOF {
			s.abortUpload(uploadID)
			return fmt.Errorf("failed to read stream: %w", rerr)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		s.abortUpload(uploadID)
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}
	s.metrics.RecordStreamBytes("send", total)
	telemetry.SetAttributes(ctx, telemetry.StreamBytes(total))
	return nil
}

// abortUpload discards an in-progress multipart upload. Runs on its own
// context so cleanup still happens when the upload context is gone.
func (s *s3Sink) abortUpload(uploadID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		logger.Warn("Failed to abort multipart upload",
			"bucket", s.bucket, "key", s.key, "error", err)
	}
}
