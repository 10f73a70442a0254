package core

import (
	"errors"
	"math/big"
)

// OrderID is an opaque order identifier assigned by the ingestion layer.
type OrderID string

// Nonce declares that an order requires the account cursor to be exactly at
// Seq when the order commits.
type Nonce struct {
	Account string
	Seq     uint64
}

// Part is a single operation of a composite order. Composite orders are
// simulated atomically, any failing part rejects the whole order.
type Part struct {
	Profit *big.Int
	Cost   uint64
}

// Order is a candidate operation competing for inclusion. Profit is a signed
// fixed-point integer in the common unit supplied by the ingestion layer,
// Cost is consumed from the capacity budget on commit. Orders are immutable
// once created.
type Order struct {
	ID     OrderID
	Profit *big.Int
	Cost   uint64
	Nonces []Nonce
	Parts  []Part
}

var (
	ErrEmptyOrderID          = errors.New("order id is empty")
	ErrZeroCost              = errors.New("order cost must be positive")
	ErrNilProfit             = errors.New("order profit is nil")
	ErrBadParts              = errors.New("composite parts do not sum to order totals")
	ErrDuplicateNonceAccount = errors.New("order declares an account nonce twice")
)

// Validate checks the ingestion invariants. Malformed orders must be
// rejected before they enter a pool.
func (o *Order) Validate() error {
	if o.ID == "" {
		return ErrEmptyOrderID
	}
	if o.Profit == nil {
		return ErrNilProfit
	}
	if o.Cost == 0 {
		return ErrZeroCost
	}
	// One cursor per account: a second declaration either repeats the first
	// or can never be satisfied together with it.
	for i, n := range o.Nonces {
		for _, m := range o.Nonces[:i] {
			if m.Account == n.Account {
				return ErrDuplicateNonceAccount
			}
		}
	}
	if len(o.Parts) > 0 {
		totalCost := uint64(0)
		totalProfit := new(big.Int)
		for _, p := range o.Parts {
			if p.Profit == nil || p.Cost == 0 {
				return ErrBadParts
			}
			totalCost += p.Cost
			totalProfit.Add(totalProfit, p.Profit)
		}
		if totalCost != o.Cost || totalProfit.Cmp(o.Profit) != 0 {
			return ErrBadParts
		}
	}
	return nil
}

// Composite reports whether the order is an atomic group of sub-operations.
func (o *Order) Composite() bool {
	return len(o.Parts) > 0
}

// NonceFor returns the declared sequence for the account, if any.
func (o *Order) NonceFor(account string) (uint64, bool) {
	for _, n := range o.Nonces {
		if n.Account == account {
			return n.Seq, true
		}
	}
	return 0, false
}

// SimResult is the outcome of a successful simulation: the realized profit
// and cost to record on commit, plus an opaque state delta owned by the
// simulator.
type SimResult struct {
	Profit *big.Int
	Cost   uint64
	Delta  any
}
