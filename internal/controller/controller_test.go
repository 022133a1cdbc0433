package controller

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"netfarm/internal/hgw"
	"netfarm/internal/persistence/indexdb"
	persistlog "netfarm/internal/persistence/log"
)

// stubEnv serves a permanently prepped target and two roomy hosts.
type stubEnv struct {
	mu         sync.Mutex
	dispatched []hgw.Op
	nextPID    int64
}

func (e *stubEnv) ObserveTarget(context.Context, string) (hgw.TargetState, error) {
	return hgw.TargetState{
		Host: "victim", Value: 1_000_000, MaxValue: 1_000_000,
		Security: 10, MinSecurity: 10,
		GrowthBase: 1.03, HackYield: 0.001,
	}, nil
}

func (e *stubEnv) ObserveHost(_ context.Context, host string) (hgw.HostState, error) {
	return hgw.HostState{Host: host, FreeRAM: 10_000, TotalRAM: 16_384}, nil
}

func (e *stubEnv) Dispatch(_ context.Context, op hgw.Op) (hgw.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatched = append(e.dispatched, op)
	e.nextPID++
	return hgw.Handle{Host: op.Host, PID: e.nextPID}, nil
}

func (e *stubEnv) IsFinished(context.Context, hgw.Handle) (bool, error) { return true, nil }

func (e *stubEnv) PredictDuration(_ context.Context, _ string, kind hgw.Kind) (time.Duration, error) {
	switch kind {
	case hgw.KindWeaken:
		return 4 * time.Second, nil
	case hgw.KindGrow:
		return 3200 * time.Millisecond, nil
	default:
		return 1600 * time.Millisecond, nil
	}
}

type memIndex struct {
	mu      sync.Mutex
	batches []indexdb.BatchRow
	ops     []indexdb.OpRow
}

func (m *memIndex) RecordBatch(r indexdb.BatchRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, r)
}

func (m *memIndex) RecordOp(r indexdb.OpRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, r)
}

// cancelAfterBatch stops the controller once the first full batch lands.
type cancelAfterBatch struct {
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries []persistlog.HistoryEntry
}

func (h *cancelAfterBatch) Write(e persistlog.HistoryEntry) error {
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
	if e.Kind == "batch" {
		h.cancel()
	}
	return nil
}

func TestController_OneBatchCycle(t *testing.T) {
	env := &stubEnv{}
	index := &memIndex{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	history := &cancelAfterBatch{cancel: cancel}

	cfg := Config{
		Targets:      []string{"victim"},
		Workers:      []string{"worker-01", "worker-02"},
		Strategy:     hgw.StrategyConservative,
		HackFraction: 0.25,
		Spacing:      250 * time.Millisecond,
		SafetyBuffer: 100 * time.Millisecond,
		PollInterval: 500 * time.Millisecond,
		Retry:        time.Millisecond,
		RAMCosts:     hgw.DefaultRAMCosts(),
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		},
	}

	c := New(env, cfg, log.New(io.Discard, "", 0), index, history)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("controller did not stop after first batch")
	}

	index.mu.Lock()
	defer index.mu.Unlock()
	if len(index.batches) == 0 {
		t.Fatal("no batch rows recorded")
	}
	b := index.batches[0]
	if b.Kind != "batch" || b.Outcome != "COMPLETE" {
		t.Fatalf("batch row = %+v", b)
	}
	if b.HackThreads != 250 || b.GrowThreads != 10 || b.WeakenThreads != 11 {
		t.Fatalf("thread counts = %+v", b)
	}

	if len(index.ops) != 3 {
		t.Fatalf("ops = %+v, want weaken+grow+hack", index.ops)
	}
	for i, op := range index.ops {
		if op.BatchID != b.ID {
			t.Fatalf("op %d not linked to batch: %+v", i, op)
		}
	}

	// A prepped target must not produce prep rows.
	for _, row := range index.batches {
		if row.Kind == "prep" {
			t.Fatalf("unexpected prep row: %+v", row)
		}
	}
}
