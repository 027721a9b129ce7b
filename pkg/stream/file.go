package stream

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/zcore/internal/metrics"
)

// partialSuffix marks a stream file still being written. Commit renames
// the file to its final name, so consumers that ignore the suffix never
// see a torn stream.
const partialSuffix = ".partial"

// fileSink writes a stream to a local file.
type fileSink struct {
	file    *os.File
	path    string
	tmpPath string
	metrics *metrics.Operations
	done    bool
}

func newFileSink(path string, m *metrics.Operations) (*fileSink, error) {
	tmpPath := path + partialSuffix
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream file: %w", err)
	}
	return &fileSink{file: f, path: path, tmpPath: tmpPath, metrics: m}, nil
}

func (s *fileSink) FD() int {
	return int(s.file.Fd())
}

func (s *fileSink) Commit(ctx context.Context) error {
	if s.done {
		return nil
	}
	s.done = true

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		_ = os.Remove(s.tmpPath)
		return fmt.Errorf("failed to sync stream file: %w", err)
	}
	info, err := s.file.Stat()
	if err == nil {
		s.metrics.RecordStreamBytes("send", info.Size())
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.tmpPath)
		return fmt.Errorf("failed to close stream file: %w", err)
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		_ = os.Remove(s.tmpPath)
		return fmt.Errorf("failed to finalize stream file: %w", err)
	}
	return nil
}

func (s *fileSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true

	_ = s.file.Close()
	_ = os.Remove(s.tmpPath)
	return nil
}

// fileSource reads a stream from a local file.
type fileSource struct {
	file    *os.File
	metrics *metrics.Operations
	closed  bool
}

func newFileSource(path string, m *metrics.Operations) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream file: %w", err)
	}
	return &fileSource{file: f, metrics: m}, nil
}

func (s *fileSource) FD() int {
	return int(s.file.Fd())
}

func (s *fileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if info, err := s.file.Stat(); err == nil {
		s.metrics.RecordStreamBytes("receive", info.Size())
	}
	return s.file.Close()
}

// stdoutSink hands out the standard output descriptor. Commit and Abort
// leave the descriptor open; it belongs to the process.
type stdoutSink struct{}

func newStdoutSink() stdoutSink { return stdoutSink{} }

func (stdoutSink) FD() int                      { return int(os.Stdout.Fd()) }
func (stdoutSink) Commit(context.Context) error { return nil }
func (stdoutSink) Abort() error                 { return nil }

// stdinSource hands out the standard input descriptor.
type stdinSource struct{}

func newStdinSource() stdinSource { return stdinSource{} }

func (stdinSource) FD() int      { return int(os.Stdin.Fd()) }
func (stdinSource) Close() error { return nil }
