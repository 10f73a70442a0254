package core

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
)

// ErrInvariantViolation marks fatal internal errors. Everything wrapping it
// aborts the build loop instead of being recovered.
var ErrInvariantViolation = errors.New("invariant violation")

// CursorRegressionError is returned when an advance would move an account
// cursor backwards or keep it in place.
type CursorRegressionError struct {
	Account   string
	Cursor    uint64
	Requested uint64
}

func (e *CursorRegressionError) Error() string {
	return fmt.Sprintf("cursor regression account=%s cursor=%d requested=%d", e.Account, e.Cursor, e.Requested)
}

func (e *CursorRegressionError) Unwrap() error { return ErrInvariantViolation }

// Eligibility classifies an order against the current cursors.
type Eligibility int

const (
	// Eligible means every declared nonce matches its cursor exactly.
	Eligible Eligibility = iota
	// Deferred means some nonce is ahead of its cursor. An earlier commit
	// may still advance the cursor to match.
	Deferred
	// Stale means some nonce was already passed by its cursor. The order
	// can never become eligible.
	Stale
)

// NonceTracker holds the per-account dependency cursors. Cursors are created
// lazily at zero and only ever move forward, via Advance after a successful
// commit. The backing treemap keeps account iteration sorted so snapshots
// and diagnostics are deterministic.
type NonceTracker struct {
	cursors *treemap.Map
}

func NewNonceTracker() *NonceTracker {
	return &NonceTracker{cursors: treemap.NewWithStringComparator()}
}

// Cursor returns the next expected sequence for the account.
func (t *NonceTracker) Cursor(account string) uint64 {
	if v, ok := t.cursors.Get(account); ok {
		return v.(uint64)
	}
	return 0
}

// Classify checks every declared nonce of the order. Stale wins over
// Deferred: an order with one bypassed dependency can never commit no matter
// what else happens. The returned nonce is the first one blocking
// eligibility, meaningful for Deferred and Stale only.
func (t *NonceTracker) Classify(order *Order) (Eligibility, Nonce) {
	result := Eligible
	var blocking Nonce
	for _, n := range order.Nonces {
		cursor := t.Cursor(n.Account)
		if n.Seq < cursor {
			return Stale, n
		}
		if n.Seq > cursor && result == Eligible {
			result = Deferred
			blocking = n
		}
	}
	return result, blocking
}

// Advance moves the account cursor to next. Moving backwards (or not at all)
// is a fatal internal error.
func (t *NonceTracker) Advance(account string, next uint64) error {
	if cursor := t.Cursor(account); next <= cursor {
		return &CursorRegressionError{Account: account, Cursor: cursor, Requested: next}
	}
	t.cursors.Put(account, next)
	return nil
}

// Each visits the cursors in account order.
func (t *NonceTracker) Each(fn func(account string, cursor uint64)) {
	t.cursors.Each(func(key, value interface{}) {
		fn(key.(string), value.(uint64))
	})
}

// Copy returns an independent tracker with the same cursors.
func (t *NonceTracker) Copy() *NonceTracker {
	cp := NewNonceTracker()
	t.Each(func(account string, cursor uint64) {
		cp.cursors.Put(account, cursor)
	})
	return cp
}
