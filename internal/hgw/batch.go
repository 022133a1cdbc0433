package hgw

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCapacityExceeded means dispatch found less free capacity than the
// plan assumed (another scheduler consumed it first). The batch is
// abandoned; already-dispatched operations complete harmlessly.
var ErrCapacityExceeded = errors.New("hgw: capacity exceeded at dispatch")

// State is the batch scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateDispatching
	StateWaiting
	StateComplete
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDispatching:
		return "DISPATCHING"
	case StateWaiting:
		return "WAITING"
	case StateComplete:
		return "COMPLETE"
	case StateInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// FireDelays are per-operation delays relative to batch start.
type FireDelays struct {
	Weaken time.Duration
	Grow   time.Duration
	Hack   time.Duration
}

// ComputeFireDelays spaces completions so they land weaken, grow, hack,
// each pair separated by at least spacing. Weaken is the longest
// operation and fires immediately; the others wait out the difference.
func ComputeFireDelays(weakenDur, growDur, hackDur, spacing time.Duration) FireDelays {
	d := FireDelays{
		Weaken: 0,
		Grow:   weakenDur + spacing - growDur,
		Hack:   weakenDur + 2*spacing - hackDur,
	}
	if d.Grow < 0 {
		d.Grow = 0
	}
	if d.Hack < 0 {
		d.Hack = 0
	}
	return d
}

// SchedulerConfig carries the tunables shared by batches and prep steps.
type SchedulerConfig struct {
	Spacing      time.Duration
	PollInterval time.Duration
	RAMCosts     RAMCosts

	// Sleep is injectable for tests; nil means real timer sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnDispatch, when set, observes every successful dispatch.
	OnDispatch func(op Op, h Handle)
}

// Scheduler runs one batch (or one prep operation) at a time against a
// single target. Many schedulers may run concurrently over different
// targets; they share nothing but the externally-observed host pool.
type Scheduler struct {
	env    Env
	oracle *Oracle
	cfg    SchedulerConfig

	state State
}

func NewScheduler(env Env, oracle *Oracle, cfg SchedulerConfig) *Scheduler {
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Scheduler{env: env, oracle: oracle, cfg: cfg}
}

func (s *Scheduler) State() State { return s.state }

// RunBatch dispatches one full weaken/grow/hack batch and blocks until
// the last operation is observed finished. State is derived fresh per
// call; nothing carries over between batches.
func (s *Scheduler) RunBatch(ctx context.Context, plan BatchPlan, hosts []string) error {
	s.state = StateDispatching

	weakenDur, err := s.oracle.Duration(ctx, plan.Target, KindWeaken)
	if err != nil {
		s.state = StateInvalid
		return err
	}
	growDur, err := s.oracle.Duration(ctx, plan.Target, KindGrow)
	if err != nil {
		s.state = StateInvalid
		return err
	}
	hackDur, err := s.oracle.Duration(ctx, plan.Target, KindHack)
	if err != nil {
		s.state = StateInvalid
		return err
	}

	delays := ComputeFireDelays(weakenDur, growDur, hackDur, s.cfg.Spacing)

	// Fire order follows completion order: the longest operation first.
	stages := []struct {
		kind    Kind
		threads int
		delay   time.Duration
	}{
		{KindWeaken, plan.Weaken, delays.Weaken},
		{KindGrow, plan.Grow, delays.Grow},
		{KindHack, plan.Hack, delays.Hack},
	}

	var handles []Handle
	for _, st := range stages {
		hs, err := s.dispatchSplit(ctx, st.kind, plan.Target, st.threads, st.delay, hosts)
		handles = append(handles, hs...)
		if err != nil {
			s.state = StateInvalid
			return err
		}
	}

	s.state = StateWaiting
	if err := s.waitHandles(ctx, handles, delays.Hack+hackDur); err != nil {
		s.state = StateInvalid
		return err
	}
	s.state = StateComplete
	return nil
}

// RunSingle dispatches one operation (a prep step) and blocks until done.
func (s *Scheduler) RunSingle(ctx context.Context, kind Kind, target string, threads int, hosts []string) error {
	s.state = StateDispatching
	dur, err := s.oracle.Duration(ctx, target, kind)
	if err != nil {
		s.state = StateInvalid
		return err
	}
	handles, err := s.dispatchSplit(ctx, kind, target, threads, 0, hosts)
	if err != nil {
		s.state = StateInvalid
		return err
	}
	s.state = StateWaiting
	if err := s.waitHandles(ctx, handles, dur); err != nil {
		s.state = StateInvalid
		return err
	}
	s.state = StateComplete
	return nil
}

// dispatchSplit spreads threads across hosts, re-observing each host's
// free RAM at the moment of dispatch. Partial handles are returned even
// on failure so callers can account for what was already fired.
func (s *Scheduler) dispatchSplit(ctx context.Context, kind Kind, target string, threads int, delay time.Duration, hosts []string) ([]Handle, error) {
	perThread := s.cfg.RAMCosts.For(kind)
	remaining := threads

	var handles []Handle
	for _, host := range hosts {
		if remaining <= 0 {
			break
		}
		hs, err := s.env.ObserveHost(ctx, host)
		if err != nil {
			return handles, err
		}
		fit := Threads(hs.FreeRAM, perThread)
		if fit == 0 {
			continue
		}
		n := fit
		if n > remaining {
			n = remaining
		}
		op := Op{
			Kind:    kind,
			Target:  target,
			Host:    host,
			Threads: n,
			Delay:   delay,
		}
		h, err := s.env.Dispatch(ctx, op)
		if err != nil {
			return handles, fmt.Errorf("dispatch %s x%d on %s: %w", kind, n, host, err)
		}
		if s.cfg.OnDispatch != nil {
			s.cfg.OnDispatch(op, h)
		}
		handles = append(handles, h)
		remaining -= n
	}
	if remaining > 0 {
		return handles, fmt.Errorf("%w: %s short %d threads", ErrCapacityExceeded, kind, remaining)
	}
	return handles, nil
}

// waitHandles sleeps through the predicted completion window, then polls
// until every handle reports finished. Predictions drift; the poll loop
// absorbs that rather than treating it as an error.
func (s *Scheduler) waitHandles(ctx context.Context, handles []Handle, predicted time.Duration) error {
	if predicted > 0 {
		if err := s.cfg.Sleep(ctx, predicted); err != nil {
			return err
		}
	}
	for {
		done := true
		for _, h := range handles {
			fin, err := s.env.IsFinished(ctx, h)
			if err != nil {
				return err
			}
			if !fin {
				done = false
				break
			}
		}
		if done {
			return nil
		}
		if err := s.cfg.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
