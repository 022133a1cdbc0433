package hgw

import (
	"errors"
	"math"
	"sort"
)

// ErrPlanInvalid means no valid thread assignment exists for the request
// (zero capacity, or the extraction fraction rounds below one thread).
// Callers must skip the target for the current cycle, never dispatch.
var ErrPlanInvalid = errors.New("hgw: plan invalid")

// Strategy selects how hack threads are sized in a full batch.
type Strategy string

const (
	// StrategyConservative steals a fixed fraction of current value.
	StrategyConservative Strategy = "conservative"
	// StrategyGreedy steals as much as the worker pool can regrow.
	StrategyGreedy Strategy = "greedy"
)

// minValueFloor rescues the multiplicative growth model at value 0:
// a target with no money cannot be lifted by a pure multiplier, so
// planning treats anything below one unit as one unit.
const minValueFloor = 1.0

// greedyExtractCap bounds greedy extraction. Stealing everything would
// collapse value onto the floor and make regrow thread counts explode,
// so greedy never plans past this fraction of current value.
const greedyExtractCap = 0.9

// WeakenThreads returns the weaken thread count that drives the target
// to minimum security in one pass, capped by capacity. Returns 0 when
// the target is already at the floor. Ceiling rounding may overshoot;
// the game clamps security at the floor, so defense never goes below it.
func WeakenThreads(t TargetState, capacity int) (int, error) {
	if t.Security <= t.MinSecurity {
		return 0, nil
	}
	if capacity <= 0 {
		return 0, ErrPlanInvalid
	}
	need := int(math.Ceil((t.Security - t.MinSecurity) / -SecurityDeltaWeaken))
	if need < 1 {
		need = 1
	}
	if need > capacity {
		need = capacity
	}
	return need, nil
}

// GrowThreads returns the smallest grow thread count whose compounded
// multiplier lifts value to max, capped by capacity. Returns 0 when the
// target is already full.
func GrowThreads(t TargetState, capacity int) (int, error) {
	if t.Value >= t.MaxValue {
		return 0, nil
	}
	if capacity <= 0 || t.GrowthBase <= 1 {
		return 0, ErrPlanInvalid
	}
	need := growThreadsNeeded(t.Value, t.MaxValue, t.GrowthBase)
	if need > capacity {
		need = capacity
	}
	return need, nil
}

func growThreadsNeeded(value, maxValue, base float64) int {
	v := value
	if v < minValueFloor {
		v = minValueFloor
	}
	if v >= maxValue {
		return 0
	}
	n := int(math.Ceil(math.Log(maxValue/v) / math.Log(base)))
	if n < 1 {
		n = 1
	}
	// Log arithmetic can round under; nudge until the compound actually lands.
	for v*math.Pow(base, float64(n)) < maxValue {
		n++
	}
	return n
}

// BatchPlan is a full weaken/grow/hack thread assignment for one target.
type BatchPlan struct {
	Target string
	Hack   int
	Grow   int
	Weaken int
}

func (p BatchPlan) TotalThreads() int { return p.Hack + p.Grow + p.Weaken }

// PlanBatch sizes one full batch against a target. Weaken and grow are
// sized to exactly offset the chosen hack count: grow must refill what
// hack steals, and weaken must shed the security both hack and grow add
// (grow raises security too, so its weaken share depends on the grow
// count, which depends on the hack count).
//
// The plan is deterministic in (t, capacity, fraction, strategy): no
// hidden state, identical snapshots yield identical plans.
func PlanBatch(t TargetState, capacity int, fraction float64, strategy Strategy) (BatchPlan, error) {
	if capacity <= 0 || t.HackYield <= 0 || t.GrowthBase <= 1 {
		return BatchPlan{}, ErrPlanInvalid
	}

	extract := fraction
	if strategy == StrategyGreedy {
		extract = greedyExtractCap
	}
	start := int(math.Floor(extract / t.HackYield))
	if start < 1 {
		return BatchPlan{}, ErrPlanInvalid
	}

	total := func(hack int) int {
		g, w := supportThreads(t, hack)
		return hack + g + w
	}

	// Thread totals grow monotonically with the hack count, so the
	// largest count that fits capacity is found by binary search.
	idx := sort.Search(start, func(i int) bool {
		return total(i+1) > capacity
	})
	if idx == 0 {
		return BatchPlan{}, ErrPlanInvalid
	}
	hack := idx

	grow, weaken := supportThreads(t, hack)
	return BatchPlan{Target: t.Host, Hack: hack, Grow: grow, Weaken: weaken}, nil
}

// supportThreads returns the grow and weaken counts that restore the
// target after hack threads land.
func supportThreads(t TargetState, hack int) (grow, weaken int) {
	stolen := float64(hack) * t.HackYield
	if stolen > 1 {
		stolen = 1
	}
	remaining := t.Value * (1 - stolen)
	grow = growThreadsNeeded(remaining, t.MaxValue, t.GrowthBase)

	secRise := float64(hack)*SecurityDeltaHack + float64(grow)*SecurityDeltaGrow
	weaken = int(math.Ceil(secRise / -SecurityDeltaWeaken))
	if weaken < 1 {
		weaken = 1
	}
	return grow, weaken
}
