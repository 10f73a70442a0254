package miner

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matanfield/lightsolver/core"
)

// specResult is a simulation outcome tied to the ledger version it was
// computed against.
type specResult struct {
	version uint64
	res     *core.SimResult
	err     error
}

// prefetcher pre-simulates likely-to-be-chosen candidates in parallel while
// the loop is busy elsewhere, to hide simulation latency. Results are keyed
// by ledger version; a result computed against an older ledger is discarded
// and the order is simulated again inline, so commits always reflect the
// current state and stay in strict priority order.
type prefetcher struct {
	sim     Simulator
	workers int

	mu    sync.Mutex
	cache map[core.OrderID]specResult
}

func newPrefetcher(sim Simulator, workers int) *prefetcher {
	return &prefetcher{
		sim:     sim,
		workers: workers,
		cache:   make(map[core.OrderID]specResult),
	}
}

// warm simulates the candidates against the current ledger, skipping ones
// with a fresh cached result. Rejections are cached too, they are outcomes.
func (p *prefetcher) warm(ledger *core.Ledger, candidates []*core.Order) {
	version := ledger.Version()

	var pending []*core.Order
	p.mu.Lock()
	for _, order := range candidates {
		if cached, ok := p.cache[order.ID]; ok && cached.version == version {
			continue
		}
		pending = append(pending, order)
	}
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, order := range pending {
		order := order
		g.Go(func() error {
			res, err := p.sim.Simulate(ledger, order)
			p.mu.Lock()
			p.cache[order.ID] = specResult{version: version, res: res, err: err}
			p.mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// simulate returns a cached result when it matches the current ledger
// version, falling back to an inline simulation otherwise.
func (p *prefetcher) simulate(ledger *core.Ledger, order *core.Order) (*core.SimResult, error) {
	version := ledger.Version()
	p.mu.Lock()
	cached, ok := p.cache[order.ID]
	delete(p.cache, order.ID)
	p.mu.Unlock()

	if ok && cached.version == version {
		speculativeHitMeter.Mark(1)
		return cached.res, cached.err
	}
	if ok {
		speculativeStaleMeter.Mark(1)
	}
	return p.sim.Simulate(ledger, order)
}
