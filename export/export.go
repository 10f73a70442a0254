// Package export serializes candidate sets and build results for interop
// with external solvers. It is a read-only boundary: nothing here mutates
// engine state.
//
// The instance format is the knapsack interchange record: one item per
// candidate with its id, realized-or-declared profit, gas cost and nonce
// dependencies. Profit is an arbitrary-precision decimal string; negative
// profit is clamped to zero in instance items, external solvers only reason
// about non-negative weights.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"

	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"

	"github.com/matanfield/lightsolver/core"
)

// InstanceNonce is one (account, sequence) dependency of an item.
type InstanceNonce struct {
	Account string `json:"account"`
	Seq     uint64 `json:"seq"`
}

// InstancePart is one operation of a composite item.
type InstancePart struct {
	Profit string `json:"profit"`
	Gas    uint64 `json:"gas"`
}

// InstanceItem is one candidate order in interchange form.
type InstanceItem struct {
	ID     string          `json:"id"`
	Profit string          `json:"profit"`
	Gas    uint64          `json:"gas"`
	Nonces []InstanceNonce `json:"nonces,omitempty"`
	Parts  []InstancePart  `json:"parts,omitempty"`
}

// Instance is a complete candidate set plus the capacity budget.
type Instance struct {
	RunID    string         `json:"run_id"`
	Capacity uint64         `json:"capacity"`
	Items    []InstanceItem `json:"items"`
}

// clampedProfit renders a signed profit as a non-negative decimal string.
func clampedProfit(profit *big.Int) string {
	if profit.Sign() < 0 {
		return "0"
	}
	v, overflow := uint256.FromBig(profit)
	if overflow {
		// Beyond 256 bits, keep the exact decimal form.
		return profit.String()
	}
	return v.Dec()
}

// NewInstance converts a candidate set into interchange form. Items are
// sorted by id so identical pools serialize identically.
func NewInstance(runID string, capacity uint64, orders []*core.Order) *Instance {
	items := make([]InstanceItem, 0, len(orders))
	for _, order := range orders {
		item := InstanceItem{
			ID:     string(order.ID),
			Profit: clampedProfit(order.Profit),
			Gas:    order.Cost,
		}
		for _, n := range order.Nonces {
			item.Nonces = append(item.Nonces, InstanceNonce{Account: n.Account, Seq: n.Seq})
		}
		for _, p := range order.Parts {
			item.Parts = append(item.Parts, InstancePart{Profit: clampedProfit(p.Profit), Gas: p.Cost})
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b InstanceItem) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return &Instance{RunID: runID, Capacity: capacity, Items: items}
}

// WriteInstance serializes a candidate set.
func WriteInstance(w io.Writer, runID string, capacity uint64, orders []*core.Order) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewInstance(runID, capacity, orders))
}

// ReadInstance parses a candidate set.
func ReadInstance(r io.Reader) (*Instance, error) {
	var instance Instance
	if err := json.NewDecoder(r).Decode(&instance); err != nil {
		return nil, fmt.Errorf("decoding instance: %w", err)
	}
	return &instance, nil
}

func parseProfit(s string) (*big.Int, error) {
	profit, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed profit %q", s)
	}
	if profit.Sign() < 0 {
		return nil, fmt.Errorf("negative profit %q", s)
	}
	return profit, nil
}

// Orders converts the instance back into engine orders. Malformed items are
// rejected individually and reported, the valid remainder is returned.
func (i *Instance) Orders() ([]*core.Order, []error) {
	var (
		orders   []*core.Order
		rejected []error
	)
	for _, item := range i.Items {
		order, err := item.order()
		if err != nil {
			rejected = append(rejected, fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}
		orders = append(orders, order)
	}
	return orders, rejected
}

func (item *InstanceItem) order() (*core.Order, error) {
	profit, err := parseProfit(item.Profit)
	if err != nil {
		return nil, err
	}
	order := &core.Order{
		ID:     core.OrderID(item.ID),
		Profit: profit,
		Cost:   item.Gas,
	}
	for _, n := range item.Nonces {
		order.Nonces = append(order.Nonces, core.Nonce{Account: n.Account, Seq: n.Seq})
	}
	for _, p := range item.Parts {
		partProfit, err := parseProfit(p.Profit)
		if err != nil {
			return nil, err
		}
		order.Parts = append(order.Parts, core.Part{Profit: partProfit, Cost: p.Gas})
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Report is the serialized form of a final ledger.
type Report struct {
	RunID        string     `json:"run_id"`
	Capacity     uint64     `json:"capacity"`
	CapacityUsed uint64     `json:"capacity_used"`
	Profit       string     `json:"profit"`
	Selected     []string   `json:"selected"`
	Stats        core.Stats `json:"stats"`
}

// NewReport snapshots a ledger. Selected ids keep the commit order.
func NewReport(runID string, ledger *core.Ledger) *Report {
	selected := make([]string, 0, len(ledger.SelectedIDs()))
	for _, id := range ledger.SelectedIDs() {
		selected = append(selected, string(id))
	}
	return &Report{
		RunID:        runID,
		Capacity:     ledger.Capacity(),
		CapacityUsed: ledger.CapacityUsed(),
		Profit:       ledger.Profit().String(),
		Selected:     selected,
		Stats:        ledger.Stats,
	}
}

// WriteReport serializes a final ledger.
func WriteReport(w io.Writer, runID string, ledger *core.Ledger) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(runID, ledger))
}

// Selection is an external solver's answer: the chosen ids, in the order
// they should commit.
type Selection struct {
	Selected []string `json:"selected"`
}

// ReadSelection parses a solver selection.
func ReadSelection(r io.Reader) ([]core.OrderID, error) {
	var sel Selection
	if err := json.NewDecoder(r).Decode(&sel); err != nil {
		return nil, fmt.Errorf("decoding selection: %w", err)
	}
	ids := make([]core.OrderID, len(sel.Selected))
	for i, id := range sel.Selected {
		ids[i] = core.OrderID(id)
	}
	return ids, nil
}
