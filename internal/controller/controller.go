// Package controller runs the outer loop: one goroutine per configured
// target, each preparing its target and then batching it indefinitely.
// Target selection stays in the config; the controller carries no
// economy logic of its own.
package controller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"netfarm/internal/hgw"
	"netfarm/internal/persistence/indexdb"
	persistlog "netfarm/internal/persistence/log"
)

// BatchIndex is the queryable history sink. *indexdb.SQLiteIndex
// satisfies it; nil disables indexing.
type BatchIndex interface {
	RecordBatch(indexdb.BatchRow)
	RecordOp(indexdb.OpRow)
}

// HistoryWriter is the append-only history sink; nil disables it.
type HistoryWriter interface {
	Write(persistlog.HistoryEntry) error
}

type Config struct {
	Targets []string
	Workers []string

	Strategy     hgw.Strategy
	HackFraction float64

	Spacing      time.Duration
	SafetyBuffer time.Duration
	PollInterval time.Duration
	Retry        time.Duration

	RAMCosts hgw.RAMCosts

	// Sleep is injectable for tests; nil means real timer sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Controller struct {
	env     hgw.Env
	cfg     Config
	logger  *log.Logger
	index   BatchIndex
	history HistoryWriter
}

func New(env hgw.Env, cfg Config, logger *log.Logger, index BatchIndex, history HistoryWriter) *Controller {
	if cfg.Sleep == nil {
		cfg.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
	return &Controller{env: env, cfg: cfg, logger: logger, index: index, history: history}
}

// Run blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, target := range c.cfg.Targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			c.runTarget(ctx, target)
		}(target)
	}
	wg.Wait()
}

func (c *Controller) runTarget(ctx context.Context, target string) {
	for ctx.Err() == nil {
		sched, ops := c.newScheduler()
		prep := hgw.NewPreparer(c.env, sched)

		started := time.Now()
		err := prep.Run(ctx, target, c.cfg.Workers)
		if ctx.Err() != nil {
			return
		}
		// An already-prepped target dispatches nothing; no row for that.
		if err != nil || ops.count() > 0 {
			c.record("prep", target, hgw.BatchPlan{}, started, err, ops)
		}
		if err != nil {
			c.logger.Printf("prep %s: %v", target, err)
			if c.backoff(ctx) != nil {
				return
			}
			continue
		}

		c.runBatches(ctx, target)
	}
}

// runBatches plans and fires full batches until the target stops
// yielding valid plans (then control returns to prep).
func (c *Controller) runBatches(ctx context.Context, target string) {
	for ctx.Err() == nil {
		t, err := c.env.ObserveTarget(ctx, target)
		if err != nil {
			c.logger.Printf("observe %s: %v", target, err)
			if c.backoff(ctx) != nil {
				return
			}
			continue
		}
		if !t.Prepped() {
			return
		}

		// Weaken is the most expensive per thread; planning against it
		// keeps the capacity estimate conservative.
		capacity, err := hgw.PoolCapacity(ctx, c.env, c.cfg.Workers, c.cfg.RAMCosts.Weaken)
		if err != nil {
			c.logger.Printf("capacity %s: %v", target, err)
			if c.backoff(ctx) != nil {
				return
			}
			continue
		}

		plan, err := hgw.PlanBatch(t, capacity, c.cfg.HackFraction, c.cfg.Strategy)
		if errors.Is(err, hgw.ErrPlanInvalid) {
			c.logger.Printf("plan %s: invalid, skipping this cycle", target)
			if c.backoff(ctx) != nil {
				return
			}
			continue
		}
		if err != nil {
			c.logger.Printf("plan %s: %v", target, err)
			if c.backoff(ctx) != nil {
				return
			}
			continue
		}

		sched, ops := c.newScheduler()
		started := time.Now()
		err = sched.RunBatch(ctx, plan, c.cfg.Workers)
		if ctx.Err() != nil {
			return
		}
		c.record("batch", target, plan, started, err, ops)
		if err != nil {
			c.logger.Printf("batch %s: %v", target, err)
			if c.backoff(ctx) != nil {
				return
			}
		}
	}
}

// opLog collects the dispatches one scheduler made so they can be
// flushed to the index under the batch id assigned afterwards.
type opLog struct {
	mu  sync.Mutex
	ops []indexdb.OpRow
}

func (l *opLog) add(op hgw.Op, h hgw.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, indexdb.OpRow{
		Seq:     len(l.ops),
		Kind:    string(op.Kind),
		Host:    op.Host,
		Threads: op.Threads,
		DelayMs: op.Delay.Milliseconds(),
		PID:     h.PID,
	})
}

func (l *opLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}

func (l *opLog) flush(index BatchIndex, batchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, op := range l.ops {
		op.BatchID = batchID
		index.RecordOp(op)
	}
}

func (c *Controller) newScheduler() (*hgw.Scheduler, *opLog) {
	ops := &opLog{}
	cfg := hgw.SchedulerConfig{
		Spacing:      c.cfg.Spacing,
		PollInterval: c.cfg.PollInterval,
		RAMCosts:     c.cfg.RAMCosts,
		Sleep:        c.cfg.Sleep,
		OnDispatch:   ops.add,
	}
	oracle := hgw.NewOracle(c.env, c.cfg.SafetyBuffer)
	return hgw.NewScheduler(c.env, oracle, cfg), ops
}

func (c *Controller) record(kind, target string, plan hgw.BatchPlan, started time.Time, runErr error, ops *opLog) {
	id := uuid.NewString()
	outcome := hgw.StateComplete.String()
	if runErr != nil {
		outcome = hgw.StateInvalid.String()
	}
	finished := time.Now()

	if c.index != nil {
		c.index.RecordBatch(indexdb.BatchRow{
			ID:            id,
			Target:        target,
			Kind:          kind,
			HackThreads:   plan.Hack,
			GrowThreads:   plan.Grow,
			WeakenThreads: plan.Weaken,
			SpacingMs:     c.cfg.Spacing.Milliseconds(),
			Outcome:       outcome,
			StartedAt:     started.UTC().Format(time.RFC3339Nano),
			FinishedAt:    finished.UTC().Format(time.RFC3339Nano),
		})
		ops.flush(c.index, id)
	}

	if c.history != nil {
		e := persistlog.HistoryEntry{
			BatchID:       id,
			Target:        target,
			Kind:          kind,
			HackThreads:   plan.Hack,
			GrowThreads:   plan.Grow,
			WeakenThreads: plan.Weaken,
			Outcome:       outcome,
			StartedAt:     started.UTC().Format(time.RFC3339Nano),
			FinishedAt:    finished.UTC().Format(time.RFC3339Nano),
		}
		if runErr != nil {
			e.Error = runErr.Error()
		}
		if err := c.history.Write(e); err != nil {
			c.logger.Printf("history write: %v", err)
		}
	}
}

func (c *Controller) backoff(ctx context.Context) error {
	return c.cfg.Sleep(ctx, c.cfg.Retry)
}
