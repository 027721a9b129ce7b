// Package stream moves replication streams between the engine and the
// outside world.
//
// The engine reads and writes streams through file descriptors. This
// package resolves user-facing targets into descriptor-backed sinks and
// sources:
//
//   - "-" is standard input or output
//   - "s3://bucket/key" is an object in S3-compatible storage
//   - anything else is a local file path
//
// File sinks write to a temporary name and rename into place on Commit,
// so a half-written stream is never visible under its final name. The
// spool watcher relies on that contract.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/marmos91/zcore/internal/metrics"
)

// StdioTarget selects standard input or output as the stream endpoint.
const StdioTarget = "-"

// TargetKind discriminates the supported stream endpoints.
type TargetKind int

const (
	// TargetFile is a local file path.
	TargetFile TargetKind = iota

	// TargetS3 is an object in S3-compatible storage.
	TargetS3

	// TargetStdio is standard input or output.
	TargetStdio
)

// Target is a parsed stream endpoint.
type Target struct {
	Kind TargetKind

	// Path is the file path for TargetFile.
	Path string

	// Bucket and Key locate the object for TargetS3.
	Bucket string
	Key    string
}

// ParseTarget classifies a raw target string.
//
// "s3://bucket/key" must name both a bucket and a key. Everything that
// is not stdio or an s3 URL is treated as a file path.
func ParseTarget(raw string) (Target, error) {
	if raw == "" {
		return Target{}, fmt.Errorf("stream target is empty")
	}
	if raw == StdioTarget {
		return Target{Kind: TargetStdio}, nil
	}
	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return Target{}, fmt.Errorf("invalid S3 target %q: want s3://bucket/key", raw)
		}
		return Target{Kind: TargetS3, Bucket: bucket, Key: key}, nil
	}
	return Target{Kind: TargetFile, Path: raw}, nil
}

// Sink is a replication stream destination.
//
// The engine writes the stream into FD(). After the send completes the
// caller must Commit to finalize the destination, or Abort to discard
// partial output. Abort after Commit is a no-op.
type Sink interface {
	// FD returns the descriptor the engine writes the stream into.
	FD() int

	// Commit finalizes the destination.
	Commit(ctx context.Context) error

	// Abort discards partial output.
	Abort() error
}

// Source is a replication stream origin.
//
// The engine reads the stream from FD(). Close releases the origin and
// reports any transfer error encountered while feeding the descriptor.
type Source interface {
	// FD returns the descriptor the engine reads the stream from.
	FD() int

	// Close releases the origin.
	Close() error
}

// Options carries the settings shared by every sink and source.
type Options struct {
	// S3 configures access to S3-compatible storage. Required for
	// s3:// targets, ignored otherwise.
	S3 *S3Config

	// Metrics receives stream byte counters. Nil disables counting.
	Metrics *metrics.Operations
}

// OpenSink resolves a target into a stream destination.
func OpenSink(ctx context.Context, raw string, opts Options) (Sink, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case TargetStdio:
		return newStdoutSink(), nil
	case TargetS3:
		if opts.S3 == nil {
			return nil, fmt.Errorf("S3 target %q needs stream.s3 configuration", raw)
		}
		return newS3Sink(ctx, target, *opts.S3, opts.Metrics)
	default:
		return newFileSink(target.Path, opts.Metrics)
	}
}

// OpenSource resolves a target into a stream origin.
func OpenSource(ctx context.Context, raw string, opts Options) (Source, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case TargetStdio:
		return newStdinSource(), nil
	case TargetS3:
		if opts.S3 == nil {
			return nil, fmt.Errorf("S3 target %q needs stream.s3 configuration", raw)
		}
		return newS3Source(ctx, target, *opts.S3, opts.Metrics)
	default:
		return newFileSource(target.Path, opts.Metrics)
	}
}
