package miner

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/matanfield/lightsolver/core"
)

// ErrUnknownSelection is returned when a selection names an id that is not
// in the candidate set.
type ErrUnknownSelection struct {
	ID core.OrderID
}

func NewErrUnknownSelection(id core.OrderID) *ErrUnknownSelection {
	return &ErrUnknownSelection{ID: id}
}

func (e *ErrUnknownSelection) Error() string {
	return fmt.Sprintf("selected order not in candidate set id=%s", e.ID)
}

// ErrDuplicateSelection is returned when a selection names an id twice.
type ErrDuplicateSelection struct {
	ID core.OrderID
}

func NewErrDuplicateSelection(id core.OrderID) *ErrDuplicateSelection {
	return &ErrDuplicateSelection{ID: id}
}

func (e *ErrDuplicateSelection) Error() string {
	return fmt.Sprintf("order selected twice id=%s", e.ID)
}

// ErrSelectionNotEligible is returned when a selected order's declared
// sequence does not match the cursor at its position in the selection.
type ErrSelectionNotEligible struct {
	ID       core.OrderID
	Account  string
	Declared uint64
	Cursor   uint64
}

func NewErrSelectionNotEligible(id core.OrderID, account string, declared, cursor uint64) *ErrSelectionNotEligible {
	return &ErrSelectionNotEligible{ID: id, Account: account, Declared: declared, Cursor: cursor}
}

func (e *ErrSelectionNotEligible) Error() string {
	return fmt.Sprintf("selected order not eligible id=%s account=%s declared=%d cursor=%d",
		e.ID, e.Account, e.Declared, e.Cursor)
}

// ErrSelectionOverCapacity is returned when the selection does not fit the
// capacity budget.
type ErrSelectionOverCapacity struct {
	ID       core.OrderID
	Capacity uint64
	Used     uint64
	Cost     uint64
}

func NewErrSelectionOverCapacity(id core.OrderID, capacity, used, cost uint64) *ErrSelectionOverCapacity {
	return &ErrSelectionOverCapacity{ID: id, Capacity: capacity, Used: used, Cost: cost}
}

func (e *ErrSelectionOverCapacity) Error() string {
	return fmt.Sprintf("selection exceeds capacity id=%s used=%d cost=%d capacity=%d",
		e.ID, e.Used, e.Cost, e.Capacity)
}

// ErrSelectionRejected is returned when the simulator declines a selected
// order. An external solver's selection must replay cleanly, there are no
// retries here.
type ErrSelectionRejected struct {
	ID    core.OrderID
	Cause error
}

func NewErrSelectionRejected(id core.OrderID, cause error) *ErrSelectionRejected {
	return &ErrSelectionRejected{ID: id, Cause: cause}
}

func (e *ErrSelectionRejected) Error() string {
	return fmt.Sprintf("selected order rejected by simulator id=%s err=%v", e.ID, e.Cause)
}

func (e *ErrSelectionRejected) Unwrap() error { return e.Cause }

// VerifySolution replays an untrusted selection, typically produced by an
// alternative solver, against the candidate set. The selection order is the
// commit order. Every id must resolve, appear once, be dependency-eligible
// at its turn, survive simulation and fit the budget. On success the
// recomputed ledger is returned; its totals are authoritative, whatever
// the solver claimed.
func VerifySolution(orders []*core.Order, selection []core.OrderID, sim Simulator, capacity uint64) (*core.Ledger, error) {
	byID := make(map[core.OrderID]*core.Order, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}

	ledger := core.NewLedger(capacity)
	taken := mapset.NewThreadUnsafeSet[core.OrderID]()
	for _, id := range selection {
		order, ok := byID[id]
		if !ok {
			return nil, NewErrUnknownSelection(id)
		}
		if !taken.Add(id) {
			return nil, NewErrDuplicateSelection(id)
		}
		if elig, blocking := ledger.Classify(order); elig != core.Eligible {
			return nil, NewErrSelectionNotEligible(id, blocking.Account, blocking.Seq, ledger.Cursor(blocking.Account))
		}
		res, err := sim.Simulate(ledger, order)
		if err != nil {
			return nil, NewErrSelectionRejected(id, err)
		}
		if res.Cost > ledger.CapacityRemaining() {
			return nil, NewErrSelectionOverCapacity(id, capacity, ledger.CapacityUsed(), res.Cost)
		}
		if err := ledger.Commit(order, res); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}
