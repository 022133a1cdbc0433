// Package log writes the daemon's batch history as compressed JSONL.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// HistoryEntry is one prep step or batch as it finished.
type HistoryEntry struct {
	BatchID string `json:"batch_id"`
	Target  string `json:"target"`
	Kind    string `json:"kind"` // "prep" or "batch"

	HackThreads   int `json:"hack_threads,omitempty"`
	GrowThreads   int `json:"grow_threads,omitempty"`
	WeakenThreads int `json:"weaken_threads,omitempty"`

	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// HistoryLogger appends entries to <dir>/history-YYYY-MM-DD.jsonl.zst,
// rotating at UTC midnight.
type HistoryLogger struct {
	dir string

	mu     sync.Mutex
	curDay string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer

	now func() time.Time
}

func NewHistoryLogger(dir string) *HistoryLogger {
	return &HistoryLogger{dir: dir, now: time.Now}
}

func (l *HistoryLogger) Write(e HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.now().UTC().Format("2006-01-02")
	if day != l.curDay {
		if err := l.rotateLocked(day); err != nil {
			return err
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *HistoryLogger) rotateLocked(day string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(l.dir, fmt.Sprintf("history-%s.jsonl.zst", day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 64*1024)
	l.curDay = day
	return nil
}

func (l *HistoryLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *HistoryLogger) closeLocked() error {
	var err error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	return err
}
