// Package watch turns bursts of new stills in a directory into batches.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"framestack/internal/fsutil"

	"github.com/fsnotify/fsnotify"
)

// Batch is a set of stills that arrived together.
type Batch struct {
	Files []string  `json:"files"`
	Time  time.Time `json:"time"`
}

// DirWatcher collects created or written image files and emits them as one
// Batch once the directory has been quiet for the settle time.
type DirWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	settle  time.Duration
	log     *slog.Logger
	Batches chan Batch
}

// New watches dir. Call Run to start delivering batches.
func New(dir string, settle time.Duration, log *slog.Logger) (*DirWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &DirWatcher{
		watcher: watcher,
		dir:     dir,
		settle:  settle,
		log:     log,
		Batches: make(chan Batch, 8),
	}, nil
}

// Run processes events until ctx is canceled. Batches is closed on return.
func (w *DirWatcher) Run(ctx context.Context) error {
	defer close(w.Batches)
	defer w.watcher.Close()

	w.log.Info("watching directory", "dir", w.dir, "settle", w.settle)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !fsutil.IsImageFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.settle)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("filesystem watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := Batch{Time: time.Now()}
			for f := range pending {
				batch.Files = append(batch.Files, f)
			}
			sort.Strings(batch.Files)
			clear(pending)

			select {
			case w.Batches <- batch:
				w.log.Info("batch ready", "files", len(batch.Files))
			default:
				w.log.Warn("batch buffer full, dropping batch", "files", len(batch.Files))
			}
		}
	}
}
