package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "aisocials/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jobs.json")
	ctx := context.Background()

	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	rec := JobRecord{
		JobID:       "content_generation_ab12cd34",
		JobType:     "content_generation",
		Task:        "content.generate",
		TriggerType: "interval",
		TriggerArgs: map[string]any{"hours": 6},
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RunCount:    3,
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, JobRecord{JobID: "b_job", Task: "maintenance.cleanup", TriggerType: "cron", TriggerArgs: map[string]any{"expression": "0 3 * * *"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// reopen and verify everything survived
	s, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, ok, err := s.Get(ctx, rec.JobID)
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if got.Task != rec.Task || got.RunCount != 3 || !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("record = %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].JobID != "b_job" {
		t.Fatalf("list = %+v", list)
	}

	if err := s.Delete(ctx, "b_job"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "b_job"); ok {
		t.Fatal("record still present after delete")
	}
	// deleting a missing id is not an error
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatal(err)
	}
}

func TestFileStoreRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestFileStoreRejectsEmptyID(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "jobs.json")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Put(context.Background(), JobRecord{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestMemoryStoreClosed(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	ctx := context.Background()
	if err := s.Put(ctx, JobRecord{JobID: "x"}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if err := s.Put(ctx, JobRecord{JobID: "y"}); err != ErrClosed {
		t.Fatalf("Put after close = %v, want ErrClosed", err)
	}
	if _, err := s.List(ctx); err != ErrClosed {
		t.Fatalf("List after close = %v, want ErrClosed", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
