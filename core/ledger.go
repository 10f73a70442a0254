package core

import (
	"fmt"
	"math/big"
)

// Stats counts the terminal outcomes of a build run, for observability.
type Stats struct {
	Committed       uint64 `json:"committed"`
	StaleDropped    uint64 `json:"staleDropped"`
	RejectedDropped uint64 `json:"rejectedDropped"`
	CapacitySkipped uint64 `json:"capacitySkipped"`
	Deferred        uint64 `json:"deferred"`
	DeferredDropped uint64 `json:"deferredDropped"`
	Retried         uint64 `json:"retried"`
}

// CommittedOrder records one committed order with its realized values.
type CommittedOrder struct {
	Order  *Order
	Profit *big.Int
	Cost   uint64
	Delta  any
}

// CapacityOverflowError is returned by Commit when the realized cost does
// not fit the remaining budget. The build loop checks capacity before
// committing, so hitting this is fatal.
type CapacityOverflowError struct {
	ID       OrderID
	Capacity uint64
	Used     uint64
	Cost     uint64
}

func (e *CapacityOverflowError) Error() string {
	return fmt.Sprintf("capacity overflow committing %s: used=%d cost=%d capacity=%d", e.ID, e.Used, e.Cost, e.Capacity)
}

func (e *CapacityOverflowError) Unwrap() error { return ErrInvariantViolation }

// NonceMismatchError is returned by Commit when a declared nonce does not
// match its cursor. Eligibility is re-checked at commit time, so with a
// correct loop this never fires.
type NonceMismatchError struct {
	ID       OrderID
	Account  string
	Declared uint64
	Cursor   uint64
}

func (e *NonceMismatchError) Error() string {
	return fmt.Sprintf("nonce mismatch committing %s: account=%s declared=%d cursor=%d", e.ID, e.Account, e.Declared, e.Cursor)
}

func (e *NonceMismatchError) Unwrap() error { return ErrInvariantViolation }

// Ledger is the accumulating result of a build run: consumed capacity,
// running profit, the committed orders in commit order and the dependency
// cursors. Commits are final, there is no rollback. The ledger is not safe
// for concurrent mutation, the build loop is its single writer.
type Ledger struct {
	capacity  uint64
	used      uint64
	profit    *big.Int
	committed []CommittedOrder
	nonces    *NonceTracker
	version   uint64

	Stats Stats
}

func NewLedger(capacity uint64) *Ledger {
	return &Ledger{
		capacity: capacity,
		profit:   new(big.Int),
		nonces:   NewNonceTracker(),
	}
}

func (l *Ledger) Capacity() uint64 { return l.capacity }

func (l *Ledger) CapacityUsed() uint64 { return l.used }

func (l *Ledger) CapacityRemaining() uint64 { return l.capacity - l.used }

// Profit returns a copy of the running realized profit.
func (l *Ledger) Profit() *big.Int { return new(big.Int).Set(l.profit) }

// Version increments on every commit. Speculative simulation results carry
// the version they were computed against and are stale once it moves.
func (l *Ledger) Version() uint64 { return l.version }

// Committed returns the committed orders in commit order.
func (l *Ledger) Committed() []CommittedOrder {
	out := make([]CommittedOrder, len(l.committed))
	copy(out, l.committed)
	return out
}

// SelectedIDs returns the committed order ids in commit order.
func (l *Ledger) SelectedIDs() []OrderID {
	ids := make([]OrderID, len(l.committed))
	for i, c := range l.committed {
		ids[i] = c.Order.ID
	}
	return ids
}

// Cursor returns the current cursor for the account.
func (l *Ledger) Cursor(account string) uint64 { return l.nonces.Cursor(account) }

// Classify checks the order's nonces against the current cursors.
func (l *Ledger) Classify(order *Order) (Eligibility, Nonce) { return l.nonces.Classify(order) }

// EachCursor visits the cursors in account order.
func (l *Ledger) EachCursor(fn func(account string, cursor uint64)) { l.nonces.Each(fn) }

// Commit irreversibly records the order: consumes capacity, adds the
// realized profit and advances every declared cursor past its sequence.
func (l *Ledger) Commit(order *Order, res *SimResult) error {
	if res.Cost > l.CapacityRemaining() {
		return &CapacityOverflowError{ID: order.ID, Capacity: l.capacity, Used: l.used, Cost: res.Cost}
	}
	if elig, blocking := l.nonces.Classify(order); elig != Eligible {
		return &NonceMismatchError{
			ID:       order.ID,
			Account:  blocking.Account,
			Declared: blocking.Seq,
			Cursor:   l.nonces.Cursor(blocking.Account),
		}
	}
	for _, n := range order.Nonces {
		if err := l.nonces.Advance(n.Account, n.Seq+1); err != nil {
			return err
		}
	}
	l.used += res.Cost
	l.profit.Add(l.profit, res.Profit)
	l.committed = append(l.committed, CommittedOrder{Order: order, Profit: new(big.Int).Set(res.Profit), Cost: res.Cost, Delta: res.Delta})
	l.version++
	l.Stats.Committed++
	return nil
}
