package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestSQLiteIndex_RecordBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordBatch(BatchRow{
		ID: "b1", Target: "victim", Kind: "batch",
		HackThreads: 250, GrowThreads: 10, WeakenThreads: 11,
		SpacingMs: 250, Outcome: "COMPLETE",
		StartedAt: "2026-08-23T10:00:00Z", FinishedAt: "2026-08-23T10:00:04Z",
	})
	idx.RecordOp(OpRow{BatchID: "b1", Seq: 0, Kind: "WEAKEN", Host: "worker-01", Threads: 11, DelayMs: 0, PID: 1337})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		target  string
		hack    int
		outcome string
	)
	row := db.QueryRow(`SELECT target,hack_threads,outcome FROM batches WHERE id='b1'`)
	if err := row.Scan(&target, &hack, &outcome); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if target != "victim" || hack != 250 || outcome != "COMPLETE" {
		t.Fatalf("row mismatch: target=%q hack=%d outcome=%q", target, hack, outcome)
	}

	var pid int64
	if err := db.QueryRow(`SELECT pid FROM ops WHERE batch_id='b1' AND seq=0`).Scan(&pid); err != nil {
		t.Fatalf("Scan op: %v", err)
	}
	if pid != 1337 {
		t.Fatalf("pid = %d", pid)
	}
}

func TestSQLiteIndex_RecentBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	idx.RecordBatch(BatchRow{ID: "b1", Target: "a", Kind: "prep", Outcome: "COMPLETE",
		StartedAt: "2026-08-23T10:00:00Z", FinishedAt: "2026-08-23T10:00:01Z"})
	idx.RecordBatch(BatchRow{ID: "b2", Target: "a", Kind: "batch", Outcome: "INVALID",
		StartedAt: "2026-08-23T10:00:05Z", FinishedAt: "2026-08-23T10:00:06Z"})

	// The writer goroutine owns ordering; drain it before querying.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()

	got, err := idx2.RecentBatches(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentBatches: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b2" || got[1].ID != "b1" {
		t.Fatalf("RecentBatches = %+v", got)
	}
}
