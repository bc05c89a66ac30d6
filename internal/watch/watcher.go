// Package watch monitors a directory and feeds newly created media files to
// the transcription worker.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RCR0101/transcriber/internal/transcribe"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RequestBuilder turns a detected file path into a validated request.
type RequestBuilder func(source string) (transcribe.Request, error)

type Watcher struct {
	dir     string
	build   RequestBuilder
	worker  *transcribe.Worker
	logger  *zap.Logger
	settle  time.Duration
	watcher *fsnotify.Watcher
}

// New watches dir for created files. settle is how long a file must be
// untouched before it is considered fully written; encoders and network
// copies create the file long before the last byte lands.
func New(dir string, worker *transcribe.Worker, build RequestBuilder, logger *zap.Logger, settle time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		build:   build,
		worker:  worker,
		logger:  logger,
		settle:  settle,
		watcher: fsw,
	}, nil
}

// Run consumes filesystem events until ctx is cancelled. Detected media
// files are submitted to the worker; files with unsupported extensions are
// ignored rather than failed, since a watched directory legitimately holds
// other content.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for new media files", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !transcribe.SupportedExtension(event.Name) {
				w.logger.Debug("ignoring non-media file", zap.String("path", event.Name))
				continue
			}

			if err := w.awaitSettled(ctx, event.Name); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Warn("file disappeared before processing", zap.String("path", event.Name), zap.Error(err))
				continue
			}

			req, err := w.build(event.Name)
			if err != nil {
				w.logger.Warn("skipping file", zap.String("path", event.Name), zap.Error(err))
				continue
			}

			jobID, err := w.worker.Submit(ctx, req)
			if err != nil {
				return err
			}
			w.logger.Info("queued transcription", zap.String("job", jobID), zap.String("source", event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Close stops delivering events.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// awaitSettled polls the file size until it stops growing.
func (w *Watcher) awaitSettled(ctx context.Context, path string) error {
	var lastSize int64 = -1
	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.Size() == lastSize {
				return nil
			}
			lastSize = info.Size()
		}
	}
}
