package miner

import (
	"context"
	"math/big"

	"github.com/matanfield/lightsolver/core"
)

func mkOrder(id string, profit int64, cost uint64, nonces ...core.Nonce) *core.Order {
	return &core.Order{ID: core.OrderID(id), Profit: big.NewInt(profit), Cost: cost, Nonces: nonces}
}

func nonce(account string, seq uint64) core.Nonce {
	return core.Nonce{Account: account, Seq: seq}
}

// scriptedSimulator realizes declared values like NoExecSimulator but can be
// told to reject specific orders a number of times first, and counts calls.
type scriptedSimulator struct {
	inner      Simulator
	rejections map[core.OrderID]int
	calls      map[core.OrderID]int
}

func newScriptedSimulator() *scriptedSimulator {
	return &scriptedSimulator{
		inner:      NewNoExecSimulator(),
		rejections: make(map[core.OrderID]int),
		calls:      make(map[core.OrderID]int),
	}
}

func (s *scriptedSimulator) rejectTimes(id core.OrderID, times int) {
	s.rejections[id] = times
}

func (s *scriptedSimulator) Simulate(ledger *core.Ledger, order *core.Order) (*core.SimResult, error) {
	s.calls[order.ID]++
	if s.rejections[order.ID] > 0 {
		s.rejections[order.ID]--
		return nil, NewRejectionError(order.ID, "scripted rejection")
	}
	return s.inner.Simulate(ledger, order)
}

func buildWith(conf AlgorithmConfig, sim Simulator, orders ...*core.Order) (*core.Ledger, *GreedyBuilder, error) {
	builder := NewGreedyBuilder(conf, sim)
	builder.AddOrders(orders)
	ledger, err := builder.Build(context.Background())
	return ledger, builder, err
}
