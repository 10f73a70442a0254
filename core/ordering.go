package core

import (
	"container/heap"
	"fmt"
	"math/big"
)

// Ordering selects the priority function used to rank candidate orders.
// The set is closed, new orderings are added here and nowhere else.
type Ordering int

const (
	// OrderingProfitPerGas ranks by profit density, profit divided by cost.
	OrderingProfitPerGas Ordering = iota
	// OrderingMaxProfit ranks by absolute profit.
	OrderingMaxProfit
)

func (o Ordering) String() string {
	switch o {
	case OrderingProfitPerGas:
		return "profit-per-gas"
	case OrderingMaxProfit:
		return "max-profit"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// ParseOrdering resolves a configured ordering name.
func ParseOrdering(name string) (Ordering, error) {
	switch name {
	case "profit-per-gas":
		return OrderingProfitPerGas, nil
	case "max-profit":
		return OrderingMaxProfit, nil
	default:
		return 0, fmt.Errorf("unknown ordering %q", name)
	}
}

// poolEntry wraps an order with its insertion sequence number, used to break
// priority ties deterministically.
type poolEntry struct {
	order    *Order
	seq      uint64
	index    int    // heap index, -1 when not in the heap
	parkedOn *Nonce // set while waiting for a cursor, nil when in the heap
}

// higherPriority compares two entries under the given ordering. Ties are
// broken by ascending insertion sequence, then by id, so that identical
// input always yields the identical pop order.
func higherPriority(ordering Ordering, a, b *poolEntry) bool {
	var cmp int
	switch ordering {
	case OrderingMaxProfit:
		cmp = a.order.Profit.Cmp(b.order.Profit)
	default:
		// Compare profit/cost without dividing: a.p*b.c vs b.p*a.c.
		ax := new(big.Int).Mul(a.order.Profit, new(big.Int).SetUint64(b.order.Cost))
		bx := new(big.Int).Mul(b.order.Profit, new(big.Int).SetUint64(a.order.Cost))
		cmp = ax.Cmp(bx)
	}
	if cmp != 0 {
		return cmp > 0
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return a.order.ID < b.order.ID
}

// entryHeap implements both sort and heap over pool entries.
type entryHeap struct {
	ordering Ordering
	entries  []*poolEntry
}

func (h *entryHeap) Len() int { return len(h.entries) }

func (h *entryHeap) Less(i, j int) bool {
	return higherPriority(h.ordering, h.entries[i], h.entries[j])
}

func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}

func (h *entryHeap) Push(x interface{}) {
	entry := x.(*poolEntry)
	entry.index = len(h.entries)
	h.entries = append(h.entries, entry)
}

func (h *entryHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	h.entries = old[:n-1]
	return entry
}

func (h *entryHeap) push(entry *poolEntry) {
	heap.Push(h, entry)
}

func (h *entryHeap) popBest() *poolEntry {
	if len(h.entries) == 0 {
		return nil
	}
	return heap.Pop(h).(*poolEntry)
}

func (h *entryHeap) remove(entry *poolEntry) {
	if entry.index >= 0 {
		heap.Remove(h, entry.index)
	}
}
