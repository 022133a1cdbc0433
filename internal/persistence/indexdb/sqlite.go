// Package indexdb keeps a queryable history of batch outcomes. It is a
// secondary index: losing it never affects scheduling decisions.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqBatch reqKind = iota + 1
	reqOp
)

type req struct {
	kind reqKind

	batch BatchRow
	op    OpRow
}

// BatchRow is one prep step or full batch, with its outcome.
type BatchRow struct {
	ID            string
	Target        string
	Kind          string // "prep" or "batch"
	HackThreads   int
	GrowThreads   int
	WeakenThreads int
	SpacingMs     int64
	Outcome       string // scheduler terminal state
	StartedAt     string
	FinishedAt    string
}

// OpRow is one dispatched operation belonging to a batch.
type OpRow struct {
	BatchID string
	Seq     int
	Kind    string
	Host    string
	Threads int
	DelayMs int64
	PID     int64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Writes are tiny and bursty at batch boundaries; buffer enough
		// that schedulers never block on the index.
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads; NORMAL durability
	// is fine for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			kind TEXT NOT NULL,
			hack_threads INTEGER NOT NULL,
			grow_threads INTEGER NOT NULL,
			weaken_threads INTEGER NOT NULL,
			spacing_ms INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_batches_target_started ON batches(target, started_at);`,
		`CREATE TABLE IF NOT EXISTS ops (
			batch_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			host TEXT NOT NULL,
			threads INTEGER NOT NULL,
			delay_ms INTEGER NOT NULL,
			pid INTEGER NOT NULL,
			PRIMARY KEY (batch_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ops_host ON ops(host, batch_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatch enqueues a batch row; drops silently after Close.
func (s *SQLiteIndex) RecordBatch(row BatchRow) {
	if s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqBatch, batch: row}
}

// RecordOp enqueues a dispatched-operation row; drops silently after Close.
func (s *SQLiteIndex) RecordOp(row OpRow) {
	if s.closed.Load() {
		return
	}
	s.ch <- req{kind: reqOp, op: row}
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqBatch:
			b := r.batch
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO batches
				 (id,target,kind,hack_threads,grow_threads,weaken_threads,spacing_ms,outcome,started_at,finished_at)
				 VALUES (?,?,?,?,?,?,?,?,?,?)`,
				b.ID, b.Target, b.Kind, b.HackThreads, b.GrowThreads, b.WeakenThreads,
				b.SpacingMs, b.Outcome, b.StartedAt, b.FinishedAt,
			)
		case reqOp:
			o := r.op
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO ops (batch_id,seq,kind,host,threads,delay_ms,pid)
				 VALUES (?,?,?,?,?,?,?)`,
				o.BatchID, o.Seq, o.Kind, o.Host, o.Threads, o.DelayMs, o.PID,
			)
		}
	}
}

// RecentBatches returns the newest rows, newest first.
func (s *SQLiteIndex) RecentBatches(ctx context.Context, limit int) ([]BatchRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,target,kind,hack_threads,grow_threads,weaken_threads,spacing_ms,outcome,started_at,finished_at
		 FROM batches ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchRow
	for rows.Next() {
		var b BatchRow
		if err := rows.Scan(&b.ID, &b.Target, &b.Kind, &b.HackThreads, &b.GrowThreads,
			&b.WeakenThreads, &b.SpacingMs, &b.Outcome, &b.StartedAt, &b.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
