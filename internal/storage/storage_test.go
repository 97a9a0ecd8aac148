package storage

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "framestack.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordJobQueued(JobRecord{ID: "j1", JobType: "align", Status: "queued", InputPath: "/in", OutputPath: "/out.tif"}); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := s.RecordJobStart("j1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.RecordJobResult("j1", "success", map[string]any{"frames": 3}, ""); err != nil {
		t.Fatalf("result: %v", err)
	}

	rec, err := s.Job("j1")
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if rec.Status != "success" || rec.StartedAt == nil || rec.CompletedAt == nil {
		t.Fatalf("unexpected record %+v", rec)
	}
	meta, err := s.JobMeta("j1")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta["frames"] != float64(3) {
		t.Fatalf("unexpected meta %v", meta)
	}

	recent, err := s.RecentJobs(10)
	if err != nil || len(recent) != 1 || recent[0].ID != "j1" {
		t.Fatalf("unexpected recent jobs %v, %v", recent, err)
	}
}

func TestRecordPositionsReplaces(t *testing.T) {
	s := openTestStore(t)
	first := []StillPosition{{FilePath: "b.png", Frame: 1, X: 3, Y: -1}, {FilePath: "a.png", Frame: 0}}
	if err := s.RecordPositions("j1", first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := []StillPosition{{FilePath: "a.png", Frame: 0, X: 0.5, Y: 2}}
	if err := s.RecordPositions("j1", second); err != nil {
		t.Fatalf("record again: %v", err)
	}
	got, err := s.Positions("j1")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Fatalf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	if err := s.RecordJobStart("x"); err != nil {
		t.Fatalf("nil store should ignore writes: %v", err)
	}
	if err := s.RecordPositions("x", nil); err != nil {
		t.Fatalf("nil store should ignore writes: %v", err)
	}
	if _, err := s.RecentJobs(1); err == nil {
		t.Fatalf("nil store should refuse reads")
	}
}
