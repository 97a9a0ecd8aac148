package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListImagesSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.tif", "notes.txt", "sub/c.jpg"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.tif"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "sub", "c.jpg"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("listing mismatch (-want +got):\n%s", diff)
	}

	single, err := ListImages(want[0])
	if err != nil || len(single) != 1 {
		t.Fatalf("expected a file root to list itself, got %v, %v", single, err)
	}
}

func TestGroupFrames(t *testing.T) {
	files := []string{"1", "2", "3", "4", "5"}
	got, err := GroupFrames(files, 2)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	want := [][]string{{"1", "2"}, {"3", "4"}, {"5"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	if _, err := GroupFrames(files, 0); err == nil {
		t.Fatalf("expected error for zero stills per frame")
	}
}
