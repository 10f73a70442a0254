package core

import (
	"errors"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrDuplicateOrder is returned when an order id was already inserted into
// the pool at some point during its lifetime.
var ErrDuplicateOrder = errors.New("duplicate order")

// Pool holds the not-yet-resolved candidate orders. The best candidate is
// popped by priority, ties broken by insertion order. Orders whose nonce
// dependencies are not satisfiable yet can be parked and are woken when the
// relevant cursor advances. A per-account index keeps sibling invalidation
// proportional to the affected orders, not the pool size.
type Pool struct {
	heap      entryHeap
	seen      map[OrderID]uint64
	pending   map[OrderID]*poolEntry
	parked    map[string]map[uint64][]*poolEntry
	byAccount map[string]mapset.Set[OrderID]
	nextSeq   uint64
}

func NewPool(ordering Ordering) *Pool {
	return &Pool{
		heap:      entryHeap{ordering: ordering},
		seen:      make(map[OrderID]uint64),
		pending:   make(map[OrderID]*poolEntry),
		parked:    make(map[string]map[uint64][]*poolEntry),
		byAccount: make(map[string]mapset.Set[OrderID]),
	}
}

// Add inserts a validated order. Ids are never reused, re-adding an id that
// was popped or invalidated earlier is still a duplicate.
func (p *Pool) Add(order *Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if _, ok := p.seen[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	p.seen[order.ID] = p.nextSeq
	entry := &poolEntry{order: order, seq: p.nextSeq, index: -1}
	p.nextSeq++
	p.attach(entry)
	p.heap.push(entry)
	return nil
}

// PopBest removes and returns the highest-priority order, nil if the heap is
// empty. Parked orders are not poppable.
func (p *Pool) PopBest() *Order {
	entry := p.heap.popBest()
	if entry == nil {
		return nil
	}
	p.detach(entry)
	return entry.order
}

// Requeue puts a previously popped order back with its original insertion
// sequence, preserving deterministic tie-breaks.
func (p *Pool) Requeue(order *Order) {
	entry := &poolEntry{order: order, seq: p.seen[order.ID], index: -1}
	p.attach(entry)
	p.heap.push(entry)
}

// Park shelves a popped order until the account cursor reaches seq. Parked
// orders do not compete for priority until they are woken.
func (p *Pool) Park(order *Order, account string, seq uint64) {
	entry := &poolEntry{order: order, seq: p.seen[order.ID], index: -1}
	entry.parkedOn = &Nonce{Account: account, Seq: seq}
	p.attach(entry)
	byseq, ok := p.parked[account]
	if !ok {
		byseq = make(map[uint64][]*poolEntry)
		p.parked[account] = byseq
	}
	byseq[seq] = append(byseq[seq], entry)
}

// OnCursorAdvance reacts to a committed cursor move. Parked orders waiting
// for exactly the new cursor value rejoin the heap; every pending order
// declaring a now-superseded sequence for the account is removed and
// returned so the caller can record the drops.
func (p *Pool) OnCursorAdvance(account string, cursor uint64) (woken int, dropped []*Order) {
	ids, ok := p.byAccount[account]
	if !ok {
		return 0, nil
	}
	var stale []*poolEntry
	var wake []*poolEntry
	ids.Each(func(id OrderID) bool {
		entry := p.pending[id]
		declared, ok := entry.order.NonceFor(account)
		if !ok {
			return false
		}
		switch {
		case declared < cursor:
			stale = append(stale, entry)
		case declared == cursor && entry.parkedOn != nil && entry.parkedOn.Account == account:
			wake = append(wake, entry)
		}
		return false
	})
	for _, entry := range stale {
		p.remove(entry)
		dropped = append(dropped, entry.order)
	}
	for _, entry := range wake {
		p.unpark(entry)
		entry.parkedOn = nil
		p.heap.push(entry)
		woken++
	}
	sort.Slice(dropped, func(i, j int) bool { return p.seen[dropped[i].ID] < p.seen[dropped[j].ID] })
	return woken, dropped
}

// Invalidate purges every pending order matching the predicate and returns
// the number removed.
func (p *Pool) Invalidate(pred func(*Order) bool) int {
	var matched []*poolEntry
	for _, entry := range p.pending {
		if pred(entry.order) {
			matched = append(matched, entry)
		}
	}
	for _, entry := range matched {
		p.remove(entry)
	}
	return len(matched)
}

// Len returns the number of pending orders, parked included.
func (p *Pool) Len() int {
	return len(p.pending)
}

// Empty reports whether there is nothing left to pop.
func (p *Pool) Empty() bool {
	return p.heap.Len() == 0
}

// TopN returns up to n orders from the heap in pop order without removing
// them, for speculative simulation.
func (p *Pool) TopN(n int) []*Order {
	scratch := make([]*poolEntry, len(p.heap.entries))
	copy(scratch, p.heap.entries)
	sort.Slice(scratch, func(i, j int) bool {
		return higherPriority(p.heap.ordering, scratch[i], scratch[j])
	})
	if n > len(scratch) {
		n = len(scratch)
	}
	orders := make([]*Order, n)
	for i := 0; i < n; i++ {
		orders[i] = scratch[i].order
	}
	return orders
}

// Remaining returns all pending orders in insertion order, for export.
func (p *Pool) Remaining() []*Order {
	entries := make([]*poolEntry, 0, len(p.pending))
	for _, entry := range p.pending {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	orders := make([]*Order, len(entries))
	for i, entry := range entries {
		orders[i] = entry.order
	}
	return orders
}

func (p *Pool) attach(entry *poolEntry) {
	p.pending[entry.order.ID] = entry
	for _, n := range entry.order.Nonces {
		ids, ok := p.byAccount[n.Account]
		if !ok {
			ids = mapset.NewThreadUnsafeSet[OrderID]()
			p.byAccount[n.Account] = ids
		}
		ids.Add(entry.order.ID)
	}
}

func (p *Pool) detach(entry *poolEntry) {
	delete(p.pending, entry.order.ID)
	for _, n := range entry.order.Nonces {
		if ids, ok := p.byAccount[n.Account]; ok {
			ids.Remove(entry.order.ID)
			if ids.Cardinality() == 0 {
				delete(p.byAccount, n.Account)
			}
		}
	}
}

// remove drops a pending entry wherever it currently lives.
func (p *Pool) remove(entry *poolEntry) {
	if entry.parkedOn != nil {
		p.unpark(entry)
	} else {
		p.heap.remove(entry)
	}
	p.detach(entry)
}

func (p *Pool) unpark(entry *poolEntry) {
	on := entry.parkedOn
	byseq := p.parked[on.Account]
	slot := byseq[on.Seq]
	for i, e := range slot {
		if e == entry {
			slot = append(slot[:i], slot[i+1:]...)
			break
		}
	}
	if len(slot) == 0 {
		delete(byseq, on.Seq)
		if len(byseq) == 0 {
			delete(p.parked, on.Account)
		}
	} else {
		byseq[on.Seq] = slot
	}
}
