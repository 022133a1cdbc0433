package hgw

import (
	"context"
	"time"
)

// Per-thread security deltas. These are intrinsic to the game's
// simulation and must match it exactly.
const (
	SecurityDeltaHack   = 0.002
	SecurityDeltaGrow   = 0.004
	SecurityDeltaWeaken = -0.05
)

// SecurityDelta returns the signed security change one thread of k causes.
func SecurityDelta(k Kind) float64 {
	switch k {
	case KindHack:
		return SecurityDeltaHack
	case KindGrow:
		return SecurityDeltaGrow
	default:
		return SecurityDeltaWeaken
	}
}

// Oracle predicts operation durations. Predictions are a function of
// target state at call time and can be stale by completion; the fixed
// buffer absorbs scheduler jitter, not state drift.
type Oracle struct {
	env    Env
	buffer time.Duration
}

func NewOracle(env Env, buffer time.Duration) *Oracle {
	return &Oracle{env: env, buffer: buffer}
}

func (o *Oracle) Duration(ctx context.Context, target string, k Kind) (time.Duration, error) {
	d, err := o.env.PredictDuration(ctx, target, k)
	if err != nil {
		return 0, err
	}
	return d + o.buffer, nil
}
