package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/docintel-go/internal/logging"
)

// IngestFunc receives the bytes of a file picked up by a Watcher.
type IngestFunc func(ctx context.Context, filename string, data []byte) error

// Watcher ingests files that are created or written in a single inbox
// directory. Subdirectories and hidden files are ignored.
type Watcher struct {
	// dir is the watched directory.
	dir string

	// ingest is called for every accepted file.
	ingest IngestFunc

	// maxBytes rejects files larger than this; zero means unlimited.
	maxBytes int64

	// fs is the underlying notifier.
	fs *fsnotify.Watcher
}

// NewWatcher starts watching dir. Call Run to process events and Close to
// release the notifier.
func NewWatcher(dir string, maxBytes int64, ingest IngestFunc) (*Watcher, error) {
	if ingest == nil {
		return nil, fmt.Errorf("ingestion: watcher ingest func must not be nil")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion: watch dir %q is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("ingestion: create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("ingestion: watch %q: %w", dir, err)
	}

	return &Watcher{dir: dir, ingest: ingest, maxBytes: maxBytes, fs: fw}, nil
}

// Run processes events until ctx is done or the notifier is closed.
func (w *Watcher) Run(ctx context.Context) {
	log := logging.FromContext(ctx).With(slog.String("watch_dir", w.dir))
	log.Info("ingestion: watching inbox directory")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn("ingestion: watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the underlying notifier.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// handleEvent ingests the file named by ev when it is a create or write of a
// visible regular file. It reports whether the ingest func was called.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}

	log := logging.FromContext(ctx).With(slog.String("file", ev.Name))

	info, err := os.Stat(ev.Name)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return false
	}
	if w.maxBytes > 0 && info.Size() > w.maxBytes {
		log.Warn("ingestion: skipping oversized file", slog.Int64("bytes", info.Size()))
		return false
	}

	data, err := os.ReadFile(ev.Name)
	if err != nil {
		log.Warn("ingestion: read failed", slog.String("error", err.Error()))
		return false
	}

	if err := w.ingest(ctx, name, data); err != nil {
		log.Warn("ingestion: inbox ingest failed", slog.String("error", err.Error()))
	}
	return true
}
