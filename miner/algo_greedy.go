package miner

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"

	"github.com/matanfield/lightsolver/core"
)

// GreedyBuilder drives one build run: it repeatedly pops the best candidate,
// checks its dependencies, simulates it and commits it to the ledger until
// the deadline passes, the pool drains or the capacity budget is spent.
// The loop is single threaded, a commit is atomic with respect to the ledger
// and the cursors. This struct's lifecycle is tied to one run.
type GreedyBuilder struct {
	conf       AlgorithmConfig
	sim        Simulator
	pool       *core.Pool
	ledger     *core.Ledger
	processed  mapset.Set[core.OrderID]
	retries    map[core.OrderID]int
	prefetcher *prefetcher
}

func NewGreedyBuilder(conf AlgorithmConfig, sim Simulator) *GreedyBuilder {
	b := &GreedyBuilder{
		conf:      conf,
		sim:       sim,
		pool:      core.NewPool(conf.Ordering),
		ledger:    core.NewLedger(conf.Capacity),
		processed: mapset.NewThreadUnsafeSet[core.OrderID](),
		retries:   make(map[core.OrderID]int),
	}
	if conf.Prefetch > 0 {
		b.prefetcher = newPrefetcher(sim, conf.Prefetch)
	}
	return b
}

// AddOrders ingests validated candidates. Malformed or duplicate orders are
// rejected individually, the rest are accepted.
func (b *GreedyBuilder) AddOrders(orders []*core.Order) (accepted int, rejected []error) {
	for _, order := range orders {
		if err := b.pool.Add(order); err != nil {
			log.Trace("Rejected order at ingestion", "id", order.ID, "err", err)
			rejected = append(rejected, err)
			continue
		}
		accepted++
	}
	return accepted, rejected
}

// Pool exposes the remaining candidates, for export after a run.
func (b *GreedyBuilder) Pool() *core.Pool { return b.pool }

// Ledger exposes the accumulating result.
func (b *GreedyBuilder) Ledger() *core.Ledger { return b.ledger }

// Build runs the loop to a termination condition and returns the ledger.
// The ledger is always a feasible selection, also when the returned error
// reports a caller abort. Only internal invariant violations make the
// result untrustworthy.
func (b *GreedyBuilder) Build(ctx context.Context) (*core.Ledger, error) {
	start := time.Now()
	defer buildTimer.UpdateSince(start)

	var deadline time.Time
	if b.conf.Deadline > 0 {
		deadline = start.Add(b.conf.Deadline)
	}

	for {
		// Termination and abort are only observed between iterations, an
		// in-flight simulation always runs to completion.
		if err := ctx.Err(); err != nil {
			return b.ledger, fmt.Errorf("%w: %v", errBuildAborted, err)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			log.Debug("Build deadline reached", "committed", b.ledger.Stats.Committed)
			break
		}
		if b.ledger.CapacityRemaining() == 0 {
			break
		}
		if b.prefetcher != nil {
			b.prefetcher.warm(b.ledger, b.pool.TopN(b.conf.Prefetch))
		}
		order := b.pool.PopBest()
		if order == nil {
			break
		}

		if order.Cost > b.ledger.CapacityRemaining() {
			if err := b.skip(order); err != nil {
				return b.ledger, err
			}
			continue
		}

		elig, blocking := b.ledger.Classify(order)
		switch elig {
		case core.Stale:
			if err := b.dropStale(order, blocking); err != nil {
				return b.ledger, err
			}
			continue
		case core.Deferred:
			if b.conf.DropDeferred {
				if err := b.dropDeferred(order, blocking); err != nil {
					return b.ledger, err
				}
				continue
			}
			log.Trace("Parked order", "id", order.ID, "account", blocking.Account, "seq", blocking.Seq)
			b.pool.Park(order, blocking.Account, blocking.Seq)
			b.ledger.Stats.Deferred++
			deferredMeter.Mark(1)
			continue
		}

		res, err := b.simulate(order)
		if err != nil {
			if !IsRejection(err) {
				return b.ledger, err
			}
			if b.retries[order.ID] < b.conf.RetryLimit {
				b.retries[order.ID]++
				b.ledger.Stats.Retried++
				retryMeter.Mark(1)
				log.Trace("Requeued rejected order", "id", order.ID, "attempt", b.retries[order.ID], "err", err)
				b.pool.Requeue(order)
				continue
			}
			if err := b.dropRejected(order, err); err != nil {
				return b.ledger, err
			}
			continue
		}

		// The realized cost may exceed the declared one, re-check the fit.
		if res.Cost > b.ledger.CapacityRemaining() {
			if err := b.skip(order); err != nil {
				return b.ledger, err
			}
			continue
		}

		if err := b.commit(order, res); err != nil {
			return b.ledger, err
		}
	}

	gasUsedGauge.Update(int64(b.ledger.CapacityUsed()))
	committedGauge.Update(int64(b.ledger.Stats.Committed))
	if profit := b.ledger.Profit(); profit.IsInt64() {
		profitGauge.Update(profit.Int64())
	}
	return b.ledger, nil
}

func (b *GreedyBuilder) simulate(order *core.Order) (*core.SimResult, error) {
	start := time.Now()
	var (
		res *core.SimResult
		err error
	)
	if b.prefetcher != nil {
		res, err = b.prefetcher.simulate(b.ledger, order)
	} else {
		res, err = b.sim.Simulate(b.ledger, order)
	}
	simulationMeter.Mark(1)
	if err != nil {
		failedSimulationTimer.UpdateSince(start)
	} else {
		successfulSimulationTimer.UpdateSince(start)
	}
	return res, err
}

func (b *GreedyBuilder) commit(order *core.Order, res *core.SimResult) error {
	if err := b.terminal(order.ID); err != nil {
		return err
	}
	if err := b.ledger.Commit(order, res); err != nil {
		return err
	}
	commitMeter.Mark(1)
	log.Trace("Committed order", "id", order.ID, "profit", res.Profit, "cost", res.Cost,
		"capacityUsed", b.ledger.CapacityUsed(), "capacity", b.conf.Capacity)

	// A cursor move supersedes every sibling still declaring the old
	// sequence, and frees orders that were waiting for the new one.
	for _, n := range order.Nonces {
		woken, dropped := b.pool.OnCursorAdvance(n.Account, b.ledger.Cursor(n.Account))
		if woken > 0 {
			log.Trace("Woke parked orders", "account", n.Account, "count", woken)
		}
		for _, stale := range dropped {
			if err := b.dropStale(stale, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *GreedyBuilder) skip(order *core.Order) error {
	if err := b.terminal(order.ID); err != nil {
		return err
	}
	b.ledger.Stats.CapacitySkipped++
	capacitySkipMeter.Mark(1)
	log.Trace("Skipped order over remaining capacity", "id", order.ID, "cost", order.Cost,
		"remaining", b.ledger.CapacityRemaining())
	return nil
}

func (b *GreedyBuilder) dropStale(order *core.Order, blocking core.Nonce) error {
	if err := b.terminal(order.ID); err != nil {
		return err
	}
	b.ledger.Stats.StaleDropped++
	staleDropMeter.Mark(1)
	log.Trace("Dropped stale order", "id", order.ID, "account", blocking.Account,
		"cursor", b.ledger.Cursor(blocking.Account))
	return nil
}

func (b *GreedyBuilder) dropDeferred(order *core.Order, blocking core.Nonce) error {
	if err := b.terminal(order.ID); err != nil {
		return err
	}
	b.ledger.Stats.DeferredDropped++
	deferredDropMeter.Mark(1)
	log.Trace("Dropped deferred order", "id", order.ID, "account", blocking.Account, "seq", blocking.Seq)
	return nil
}

func (b *GreedyBuilder) dropRejected(order *core.Order, cause error) error {
	if err := b.terminal(order.ID); err != nil {
		return err
	}
	b.ledger.Stats.RejectedDropped++
	rejectionDropMeter.Mark(1)
	log.Trace("Dropped rejected order", "id", order.ID, "err", cause)
	return nil
}

// terminal records a terminal outcome for the id. Reaching a second
// terminal outcome is fatal.
func (b *GreedyBuilder) terminal(id core.OrderID) error {
	if !b.processed.Add(id) {
		return &ReprocessedOrderError{ID: id}
	}
	return nil
}
