package hgw

import (
	"context"
	"math"
)

// RAMCosts holds the per-thread script RAM cost of each operation, in GB.
type RAMCosts struct {
	Hack   float64
	Grow   float64
	Weaken float64
}

func DefaultRAMCosts() RAMCosts {
	return RAMCosts{Hack: 1.7, Grow: 1.75, Weaken: 1.75}
}

func (c RAMCosts) For(k Kind) float64 {
	switch k {
	case KindHack:
		return c.Hack
	case KindGrow:
		return c.Grow
	default:
		return c.Weaken
	}
}

// Threads returns how many threads of an operation fit in freeRAM.
// Zero is a valid answer and means "skip this host", not an error.
func Threads(freeRAM, perThread float64) int {
	if perThread <= 0 || freeRAM <= 0 {
		return 0
	}
	n := int(math.Floor(freeRAM / perThread))
	if n < 0 {
		return 0
	}
	return n
}

// PoolCapacity sums the thread capacity of hosts for one operation kind.
// Hosts are observed fresh on every call: other schedulers may have
// consumed RAM since the last look, so cached numbers are worthless.
func PoolCapacity(ctx context.Context, env Env, hosts []string, perThread float64) (int, error) {
	total := 0
	for _, h := range hosts {
		hs, err := env.ObserveHost(ctx, h)
		if err != nil {
			return 0, err
		}
		total += Threads(hs.FreeRAM, perThread)
	}
	return total, nil
}
