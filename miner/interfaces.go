package miner

import (
	"errors"
	"fmt"

	"github.com/matanfield/lightsolver/core"
)

// Simulator applies a candidate order on top of the current build state and
// reports the realized profit and cost, or declines it.
//
// Implementations must behave as pure functions of their inputs: no hidden
// global mutation, identical ledger and order give identical results. The
// build loop relies on this when it retries rejected orders and when it
// consumes speculative results. Composite orders are all or nothing, a
// failing part rejects the whole order.
type Simulator interface {
	Simulate(ledger *core.Ledger, order *core.Order) (*core.SimResult, error)
}

// RejectionError is the recoverable simulation failure. The build loop
// retries the order up to the configured limit, then drops it. Any other
// error from a Simulator aborts the run.
type RejectionError struct {
	ID     core.OrderID
	Reason string
}

func NewRejectionError(id core.OrderID, reason string) *RejectionError {
	return &RejectionError{ID: id, Reason: reason}
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order %s rejected: %s", e.ID, e.Reason)
}

// IsRejection reports whether err is a recoverable simulation rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}
