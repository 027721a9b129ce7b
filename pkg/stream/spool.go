package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/zcore/internal/logger"
)

// HandleFunc processes one spooled stream file. A nil return means the
// file was consumed and the watcher may archive or delete it.
type HandleFunc func(ctx context.Context, path string) error

// SpoolWatcher drains a directory of finished stream files.
//
// Producers must write under a temporary name and rename into place;
// the watcher acts on create events and would otherwise pick up files
// that are still being written. Files carrying the ".partial" suffix
// are always skipped. Files already present when the watcher starts
// are drained before any events are handled.
//
// A handled file is moved into the archive directory, or deleted when
// no archive is configured. A failed file stays in the spool so a
// later run can retry it.
type SpoolWatcher struct {
	dir     string
	archive string
	handle  HandleFunc
}

func NewSpoolWatcher(dir, archive string, handle HandleFunc) *SpoolWatcher {
	return &SpoolWatcher{
		dir:     dir,
		archive: archive,
		handle:  handle,
	}
}

// Run watches the spool directory until ctx is cancelled.
func (w *SpoolWatcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("failed to open spool directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("spool path is not a directory: %s", w.dir)
	}
	if w.archive != "" {
		if err := os.MkdirAll(w.archive, 0755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create spool watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	// Drain files dropped before the watcher existed. The watch is
	// already in place, so nothing lands between the listing and the
	// event loop unseen.
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to list spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, entry.Name()))
		if ctx.Err() != nil {
			return nil
		}
	}

	logger.Info("Spool watcher started", "dir", w.dir, "archive", w.archive)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				w.process(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("spool watcher error: %w", err)
		}
	}
}

// process hands one file to the handler and disposes of it on success.
func (w *SpoolWatcher) process(ctx context.Context, path string) {
	if strings.HasSuffix(path, partialSuffix) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	logger.Info("Processing spooled stream", "path", path)
	if err := w.handle(ctx, path); err != nil {
		logger.Warn("Failed to process spooled stream; leaving file for retry",
			"path", path, "error", err)
		return
	}

	if w.archive == "" {
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove spooled stream", "path", path, "error", err)
		}
		return
	}

	dst := filepath.Join(w.archive, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		logger.Warn("Failed to archive spooled stream", "path", path, "error", err)
	}
}
