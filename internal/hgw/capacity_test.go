package hgw

import (
	"context"
	"testing"
)

func TestThreads(t *testing.T) {
	cases := []struct {
		free, cost float64
		want       int
	}{
		{free: 8, cost: 1.75, want: 4},
		{free: 1.7, cost: 1.7, want: 1},
		{free: 1.6, cost: 1.7, want: 0},
		{free: 0, cost: 1.75, want: 0},
		{free: -4, cost: 1.75, want: 0},
		{free: 100, cost: 0, want: 0},
	}
	for _, c := range cases {
		if got := Threads(c.free, c.cost); got != c.want {
			t.Fatalf("Threads(%v, %v) = %d, want %d", c.free, c.cost, got, c.want)
		}
	}
}

func TestPoolCapacity(t *testing.T) {
	env := newFakeEnv()
	env.hosts["w1"] = HostState{Host: "w1", FreeRAM: 35, TotalRAM: 64}
	env.hosts["w2"] = HostState{Host: "w2", FreeRAM: 1.0, TotalRAM: 8}
	env.hosts["w3"] = HostState{Host: "w3", FreeRAM: 17.5, TotalRAM: 32}

	got, err := PoolCapacity(context.Background(), env, []string{"w1", "w2", "w3"}, 1.75)
	if err != nil {
		t.Fatalf("PoolCapacity: %v", err)
	}
	// 20 + 0 + 10; the host that fits nothing contributes zero, not an error.
	if got != 30 {
		t.Fatalf("PoolCapacity = %d, want 30", got)
	}
}

func TestRAMCostsFor(t *testing.T) {
	c := DefaultRAMCosts()
	if c.For(KindHack) != 1.7 || c.For(KindGrow) != 1.75 || c.For(KindWeaken) != 1.75 {
		t.Fatalf("unexpected default costs: %+v", c)
	}
}
