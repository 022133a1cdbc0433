package hgw

import (
	"context"
	"time"
)

// Kind identifies one of the three remote operations.
type Kind string

const (
	KindHack   Kind = "HACK"
	KindGrow   Kind = "GROW"
	KindWeaken Kind = "WEAKEN"
)

// TargetState is a point-in-time observation of a target.
type TargetState struct {
	Host        string
	Value       float64 // current money on the target
	MaxValue    float64
	Security    float64
	MinSecurity float64

	// GrowthBase is the compounding multiplier one grow thread applies.
	GrowthBase float64
	// HackYield is the fraction of current value one hack thread steals.
	HackYield float64
}

// Prepped reports whether the target sits at the batching baseline.
func (t TargetState) Prepped() bool {
	return t.Security <= t.MinSecurity && t.Value >= t.MaxValue
}

// HostState is a point-in-time observation of a worker host. RAM is in GB.
type HostState struct {
	Host     string
	FreeRAM  float64
	TotalRAM float64
}

// Op is one dispatchable unit of work.
type Op struct {
	Kind    Kind
	Target  string
	Host    string
	Threads int
	Delay   time.Duration
}

// Handle identifies a dispatched operation process on a worker host.
type Handle struct {
	Host string
	PID  int64
}

// Env is the game-side collaborator. Implementations are expected to
// return fresh state on every observe call; nothing here is cached.
type Env interface {
	ObserveTarget(ctx context.Context, host string) (TargetState, error)
	ObserveHost(ctx context.Context, host string) (HostState, error)
	Dispatch(ctx context.Context, op Op) (Handle, error)
	IsFinished(ctx context.Context, h Handle) (bool, error)
	PredictDuration(ctx context.Context, target string, kind Kind) (time.Duration, error)
}
