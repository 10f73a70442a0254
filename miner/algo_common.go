package miner

import (
	"errors"
	"fmt"
	"time"

	"github.com/matanfield/lightsolver/core"
)

// defaultRetryLimit bounds how often a rejected order is re-simulated before
// it is dropped for good.
const defaultRetryLimit = 1

// AlgorithmConfig is the consumed configuration surface of the build loop.
type AlgorithmConfig struct {
	// Ordering selects the priority function.
	Ordering core.Ordering
	// Capacity is the total cost budget of one run.
	Capacity uint64
	// Deadline bounds the run, zero means unbounded. It is polled at
	// iteration boundaries, an in-flight simulation is never cancelled.
	Deadline time.Duration
	// RetryLimit is the number of re-simulations granted after a rejection.
	RetryLimit int
	// DropDeferred drops not-yet-eligible orders instead of parking them
	// until their cursor catches up.
	DropDeferred bool
	// Prefetch enables speculative simulation with that many workers.
	Prefetch int
}

var DefaultAlgorithmConfig = AlgorithmConfig{
	Ordering:   core.OrderingProfitPerGas,
	RetryLimit: defaultRetryLimit,
}

// ReprocessedOrderError reports an order id reaching a second terminal
// outcome, which the pool's duplicate tracking should make impossible.
type ReprocessedOrderError struct {
	ID core.OrderID
}

func (e *ReprocessedOrderError) Error() string {
	return fmt.Sprintf("order %s processed twice", e.ID)
}

func (e *ReprocessedOrderError) Unwrap() error { return core.ErrInvariantViolation }

// errBuildAborted is returned when the caller cancels the run between
// iterations via the context.
var errBuildAborted = errors.New("build aborted")
