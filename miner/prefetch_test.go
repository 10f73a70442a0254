package miner

import (
	"math/big"
	"sync"
	"testing"

	"github.com/matanfield/lightsolver/core"
)

// countingSimulator is a concurrency-safe NoExec wrapper that records how
// many simulations ran and against which ledger versions.
type countingSimulator struct {
	inner Simulator

	mu       sync.Mutex
	calls    int
	versions map[core.OrderID][]uint64
}

func newCountingSimulator() *countingSimulator {
	return &countingSimulator{inner: NewNoExecSimulator(), versions: make(map[core.OrderID][]uint64)}
}

func (s *countingSimulator) Simulate(ledger *core.Ledger, order *core.Order) (*core.SimResult, error) {
	s.mu.Lock()
	s.calls++
	s.versions[order.ID] = append(s.versions[order.ID], ledger.Version())
	s.mu.Unlock()
	return s.inner.Simulate(ledger, order)
}

func TestPrefetchMatchesSequentialOutcome(t *testing.T) {
	orders := func() []*core.Order {
		return []*core.Order{
			mkOrder("a", 10, 2),
			mkOrder("b", 8, 2),
			mkOrder("c", 6, 2),
			mkOrder("d", 5, 1, nonce("acct1", 1)),
			mkOrder("e", 3, 1, nonce("acct1", 0)),
		}
	}

	sequential := AlgorithmConfig{Ordering: core.OrderingMaxProfit, Capacity: 8, RetryLimit: 1}
	speculative := sequential
	speculative.Prefetch = 3

	plain, _, err := buildWith(sequential, NewNoExecSimulator(), orders()...)
	if err != nil {
		t.Fatal(err)
	}
	spec, _, err := buildWith(speculative, newCountingSimulator(), orders()...)
	if err != nil {
		t.Fatal(err)
	}

	assertSelected(t, spec, plain.SelectedIDs()...)
	if plain.Profit().Cmp(spec.Profit()) != 0 {
		t.Fatalf("profit diverged: %v vs %v", plain.Profit(), spec.Profit())
	}
	if plain.CapacityUsed() != spec.CapacityUsed() {
		t.Fatalf("capacity diverged: %d vs %d", plain.CapacityUsed(), spec.CapacityUsed())
	}
}

func TestPrefetcherDiscardsStaleResults(t *testing.T) {
	sim := newCountingSimulator()
	p := newPrefetcher(sim, 2)

	ledger := core.NewLedger(100)
	order := mkOrder("a", 5, 1)
	p.warm(ledger, []*core.Order{order})

	// The ledger moves on, the cached result no longer applies.
	if err := ledger.Commit(mkOrder("other", 1, 1), &core.SimResult{Profit: big.NewInt(1), Cost: 1}); err != nil {
		t.Fatal(err)
	}

	res, err := p.simulate(ledger, order)
	if err != nil {
		t.Fatal(err)
	}
	if res.Profit.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("profit = %v, want 5", res.Profit)
	}
	versions := sim.versions["a"]
	if len(versions) != 2 || versions[0] != 0 || versions[1] != 1 {
		t.Fatalf("simulated against versions %v, want [0 1]", versions)
	}
}

func TestPrefetcherReusesFreshResult(t *testing.T) {
	sim := newCountingSimulator()
	p := newPrefetcher(sim, 2)

	ledger := core.NewLedger(100)
	order := mkOrder("a", 5, 1)
	p.warm(ledger, []*core.Order{order})

	if _, err := p.simulate(ledger, order); err != nil {
		t.Fatal(err)
	}
	if len(sim.versions["a"]) != 1 {
		t.Fatalf("simulated %d times, want 1", len(sim.versions["a"]))
	}
}
