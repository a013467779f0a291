package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"genstudio/internal/config"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.WorkflowsDir = filepath.Join(base, "workflows")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordStartAndLookup(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	gen, err := store.RecordStart(ctx, "job-1", "text-to-video", "t2v", "127.0.0.1:8223")
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	if gen.State != "created" {
		t.Fatalf("state = %s, want created", gen.State)
	}
	if gen.CreatedAt.IsZero() || gen.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}

	got, err := store.GetByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get by job id: %v", err)
	}
	if got.Operation != "text-to-video" || got.Template != "t2v" {
		t.Fatalf("lookup mismatch: %+v", got)
	}
}

func TestRecordResultFinalizesRow(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	if _, err := store.RecordStart(ctx, "job-2", "lipsync", "lipsync", "127.0.0.1:8222"); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if err := store.RecordResult(ctx, "job-2", "finished", "/out/comfy_job-2_v.mp4", "Success"); err != nil {
		t.Fatalf("record result: %v", err)
	}

	got, err := store.GetByJobID(ctx, "job-2")
	if err != nil {
		t.Fatalf("get by job id: %v", err)
	}
	if got.State != "finished" || got.Artifact != "/out/comfy_job-2_v.mp4" {
		t.Fatalf("row not finalized: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updated_at %v precedes created_at %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestRecordResultUnknownJob(t *testing.T) {
	store := newStoreForTest(t)

	err := store.RecordResult(context.Background(), "ghost", "failed", "", "nope")
	if !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("err = %v, want ErrNotRecorded", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.RecordStart(ctx, id, "text-to-video", "t2v", "srv"); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].JobID != "c" || all[2].JobID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 || limited[0].JobID != "c" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestClearEmptiesLedger(t *testing.T) {
	store := newStoreForTest(t)
	ctx := context.Background()

	if _, err := store.RecordStart(ctx, "job-3", "inpaint", "inpaint", "srv"); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	rows, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("ledger not empty: %+v", rows)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OutputDir = filepath.Join(base, "outputs")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.WorkflowsDir = filepath.Join(base, "workflows")

	first, err := Open(&cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.RecordStart(context.Background(), "job-4", "outpaint", "outpaint", "srv"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := Open(&cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.GetByJobID(context.Background(), "job-4"); err != nil {
		t.Fatalf("row lost across reopen: %v", err)
	}
}
