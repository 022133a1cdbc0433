package hgw

import "context"

// Preparer drives a target to the batching baseline (minimum security,
// maximum value) using only weaken and grow.
type Preparer struct {
	env   Env
	sched *Scheduler
}

func NewPreparer(env Env, sched *Scheduler) *Preparer {
	return &Preparer{env: env, sched: sched}
}

// Run loops weaken and grow steps until a single fresh observation shows
// the target prepped. Grow raises security, so a pass that fixes value
// can un-fix security; convergence is only trusted when one observation
// satisfies both conditions at once. An already-prepped target returns
// immediately with nothing dispatched.
func (p *Preparer) Run(ctx context.Context, target string, hosts []string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := p.env.ObserveTarget(ctx, target)
		if err != nil {
			return err
		}
		if t.Prepped() {
			return nil
		}

		if t.Security > t.MinSecurity {
			capacity, err := PoolCapacity(ctx, p.env, hosts, p.sched.cfg.RAMCosts.Weaken)
			if err != nil {
				return err
			}
			n, err := WeakenThreads(t, capacity)
			if err != nil {
				return err
			}
			if n > 0 {
				if err := p.sched.RunSingle(ctx, KindWeaken, target, n, hosts); err != nil {
					return err
				}
			}
			// Security moved; grow sizing needs a fresh look.
			t, err = p.env.ObserveTarget(ctx, target)
			if err != nil {
				return err
			}
		}

		if t.Value < t.MaxValue {
			capacity, err := PoolCapacity(ctx, p.env, hosts, p.sched.cfg.RAMCosts.Grow)
			if err != nil {
				return err
			}
			n, err := GrowThreads(t, capacity)
			if err != nil {
				return err
			}
			if n > 0 {
				if err := p.sched.RunSingle(ctx, KindGrow, target, n, hosts); err != nil {
					return err
				}
			}
		}
	}
}
