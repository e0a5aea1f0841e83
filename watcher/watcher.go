// Package watcher imports playlist documents dropped into a directory.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"billy/metrics"
	"billy/sentryhelper"
)

// DefaultDebounce is how long a file must stay quiet before it is imported,
// so a document still being written is not read half way.
const DefaultDebounce = 2 * time.Second

// Importer is the part of the application the watcher feeds.
type Importer interface {
	ImportJSON(ctx context.Context, r io.Reader) ([]string, error)
}

type Watcher struct {
	dir      string
	importer Importer
	debounce time.Duration
	logger   *log.Entry

	ready chan struct{}

	mutex   sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func New(dir string, importer Importer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		importer: importer,
		debounce: debounce,
		logger:   log.WithFields(log.Fields{"module": "watcher", "dir": dir}),
		timers:   make(map[string]*time.Timer),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the directory until ctx is done. Imports already scheduled
// when ctx ends are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create import dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching for playlist documents")
	close(w.ready)

	defer func() {
		w.stopTimers()
		w.wg.Wait()
	}()

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("File watcher error")
		case <-ctx.Done():
			w.logger.Info("Stopping file watcher")
			return nil
		}
	}
}

func isDocument(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !isDocument(event.Name) {
		return
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.stopped {
		return
	}

	if timer, ok := w.timers[event.Name]; ok {
		timer.Stop()
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mutex.Lock()
		delete(w.timers, path)
		if w.stopped {
			w.mutex.Unlock()
			return
		}
		w.wg.Add(1)
		w.mutex.Unlock()

		defer w.wg.Done()
		if ctx.Err() != nil {
			return
		}
		w.importFile(ctx, path)
	})
}

func (w *Watcher) stopTimers() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.stopped = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	logger := w.logger.WithField("file", filepath.Base(path))

	ctx, transaction := sentryhelper.StartTransaction(ctx, "watcher.import", "file.import", map[string]string{
		"file": filepath.Base(path),
	})
	defer transaction.Finish()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("Document disappeared before import")
			return
		}
		logger.WithError(err).Warn("Failed to open document")
		metrics.ImportedFiles.WithLabelValues("failed").Inc()
		return
	}
	defer f.Close()

	added, err := w.importer.ImportJSON(ctx, f)
	if err != nil {
		logger.WithError(err).Warn("Failed to import document")
		transaction.Status = sentry.SpanStatusInvalidArgument
		metrics.ImportedFiles.WithLabelValues("failed").Inc()
		return
	}

	transaction.Status = sentry.SpanStatusOK
	metrics.ImportedFiles.WithLabelValues("imported").Inc()
	logger.WithField("playlists", added).Info("Imported document")
}
