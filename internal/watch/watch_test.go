package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDirWatcherBatchesNewImages(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, 200*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for _, name := range []string{"b.png", "a.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case batch := <-w.Batches:
		want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
		if diff := cmp.Diff(want, batch.Files); diff != "" {
			t.Fatalf("batch mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a batch")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := <-w.Batches; ok {
		t.Fatalf("expected batches channel closed after run")
	}
}

func TestNewFailsForMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), time.Second, nil); err == nil {
		t.Fatalf("expected error for a missing directory")
	}
}
