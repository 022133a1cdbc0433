package hgw

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// fakeEnv is an in-memory game for tests. With applyEffects set, a
// dispatched operation mutates the target immediately (the scheduler
// only ever looks again after waiting for completion, so "immediately"
// is indistinguishable from "on completion").
type fakeEnv struct {
	mu sync.Mutex

	targets   map[string]TargetState
	hosts     map[string]HostState
	durations map[Kind]time.Duration

	applyEffects bool
	finishAfter  int // IsFinished polls before a handle reports done

	dispatched []Op
	nextPID    int64
	polls      map[int64]int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		targets: map[string]TargetState{},
		hosts:   map[string]HostState{},
		durations: map[Kind]time.Duration{
			KindWeaken: 4 * time.Second,
			KindGrow:   3200 * time.Millisecond,
			KindHack:   1600 * time.Millisecond,
		},
		polls: map[int64]int{},
	}
}

func (f *fakeEnv) ObserveTarget(_ context.Context, host string) (TargetState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.targets[host]
	if !ok {
		return TargetState{}, fmt.Errorf("unknown target %q", host)
	}
	return t, nil
}

func (f *fakeEnv) ObserveHost(_ context.Context, host string) (HostState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hosts[host]
	if !ok {
		return HostState{}, fmt.Errorf("unknown host %q", host)
	}
	return h, nil
}

func (f *fakeEnv) Dispatch(_ context.Context, op Op) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, op)
	f.nextPID++
	if f.applyEffects {
		f.apply(op)
	}
	return Handle{Host: op.Host, PID: f.nextPID}, nil
}

func (f *fakeEnv) apply(op Op) {
	t := f.targets[op.Target]
	n := float64(op.Threads)
	switch op.Kind {
	case KindWeaken:
		t.Security = math.Max(t.MinSecurity, t.Security+n*SecurityDeltaWeaken)
	case KindGrow:
		v := math.Max(t.Value, 1)
		t.Value = math.Min(t.MaxValue, v*math.Pow(t.GrowthBase, n))
		t.Security += n * SecurityDeltaGrow
	case KindHack:
		stolen := math.Min(1, n*t.HackYield)
		t.Value -= t.Value * stolen
		t.Security += n * SecurityDeltaHack
	}
	f.targets[op.Target] = t
}

func (f *fakeEnv) IsFinished(_ context.Context, h Handle) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[h.PID]++
	return f.polls[h.PID] > f.finishAfter, nil
}

func (f *fakeEnv) PredictDuration(_ context.Context, _ string, kind Kind) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durations[kind], nil
}

func (f *fakeEnv) dispatchedKinds() []Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]Kind, 0, len(f.dispatched))
	for _, op := range f.dispatched {
		kinds = append(kinds, op.Kind)
	}
	return kinds
}

// recordingSleep collects sleep requests and returns instantly.
func recordingSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}
