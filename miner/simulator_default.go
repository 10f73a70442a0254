package miner

import (
	"math/big"

	"github.com/matanfield/lightsolver/core"
)

// NoExecSimulator realizes the declared profit and cost of an order without
// re-executing anything, the mode used when replaying historical instances
// whose values were already measured. Composite orders accumulate their
// parts atomically and must reproduce the declared totals.
type NoExecSimulator struct{}

func NewNoExecSimulator() *NoExecSimulator { return &NoExecSimulator{} }

func (s *NoExecSimulator) Simulate(_ *core.Ledger, order *core.Order) (*core.SimResult, error) {
	if !order.Composite() {
		return &core.SimResult{Profit: new(big.Int).Set(order.Profit), Cost: order.Cost}, nil
	}
	profit := new(big.Int)
	cost := uint64(0)
	for _, part := range order.Parts {
		if part.Cost == 0 {
			return nil, NewRejectionError(order.ID, "composite part with zero cost")
		}
		profit.Add(profit, part.Profit)
		cost += part.Cost
	}
	if cost != order.Cost || profit.Cmp(order.Profit) != 0 {
		return nil, NewRejectionError(order.ID, "composite parts diverge from declared totals")
	}
	return &core.SimResult{Profit: profit, Cost: cost}, nil
}
