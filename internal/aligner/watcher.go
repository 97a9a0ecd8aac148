package aligner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrCanceled is returned when a Watcher asks an alignment to stop.
var ErrCanceled = errors.New("alignment canceled")

// Watcher follows the progress of a long running operation and may ask it
// to stop. Operations accept a nil Watcher.
type Watcher interface {
	SetTotal(total int)
	SetCurrent(current int)
	ShouldCancel() bool
}

// LogWatcher reports progress through slog and can be canceled from another
// goroutine.
type LogWatcher struct {
	log      *slog.Logger
	label    string
	total    atomic.Int64
	current  atomic.Int64
	canceled atomic.Bool
}

// NewLogWatcher returns a watcher that logs under label.
func NewLogWatcher(log *slog.Logger, label string) *LogWatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LogWatcher{log: log, label: label}
}

func (w *LogWatcher) SetTotal(total int) {
	w.total.Store(int64(total))
	w.current.Store(0)
}

func (w *LogWatcher) SetCurrent(current int) {
	w.current.Store(int64(current))
	w.log.Debug("progress", "task", w.label, "current", current, "total", w.total.Load())
}

// Progress returns the last reported position and total.
func (w *LogWatcher) Progress() (current, total int) {
	return int(w.current.Load()), int(w.total.Load())
}

// Cancel asks the watched operation to stop at its next check.
func (w *LogWatcher) Cancel() { w.canceled.Store(true) }

func (w *LogWatcher) ShouldCancel() bool { return w.canceled.Load() }

// checkCancel is polled between units of work.
func checkCancel(ctx context.Context, w Watcher) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	if w != nil && w.ShouldCancel() {
		return ErrCanceled
	}
	return nil
}
