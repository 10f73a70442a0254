package miner

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matanfield/lightsolver/core"
)

func verifyFixture() []*core.Order {
	return []*core.Order{
		mkOrder("a", 10, 3, nonce("acct1", 0)),
		mkOrder("b", 8, 3, nonce("acct1", 1)),
		mkOrder("c", 5, 2),
	}
}

func TestVerifySolutionAccepts(t *testing.T) {
	ledger, err := VerifySolution(verifyFixture(), []core.OrderID{"a", "b", "c"}, NewNoExecSimulator(), 10)
	require.NoError(t, err)
	require.Equal(t, []core.OrderID{"a", "b", "c"}, ledger.SelectedIDs())
	require.Equal(t, 0, ledger.Profit().Cmp(big.NewInt(23)))
	require.EqualValues(t, 8, ledger.CapacityUsed())
}

func TestVerifySolutionUnknownID(t *testing.T) {
	_, err := VerifySolution(verifyFixture(), []core.OrderID{"ghost"}, NewNoExecSimulator(), 10)
	var unknown *ErrUnknownSelection
	require.ErrorAs(t, err, &unknown)
	require.EqualValues(t, "ghost", unknown.ID)
}

func TestVerifySolutionDuplicate(t *testing.T) {
	_, err := VerifySolution(verifyFixture(), []core.OrderID{"c", "c"}, NewNoExecSimulator(), 10)
	var dup *ErrDuplicateSelection
	require.ErrorAs(t, err, &dup)
	require.EqualValues(t, "c", dup.ID)
}

func TestVerifySolutionDependencyOrder(t *testing.T) {
	// b before a declares acct1 seq 1 while the cursor is still 0.
	_, err := VerifySolution(verifyFixture(), []core.OrderID{"b", "a"}, NewNoExecSimulator(), 10)
	var inelig *ErrSelectionNotEligible
	require.ErrorAs(t, err, &inelig)
	require.EqualValues(t, "b", inelig.ID)
	require.Equal(t, "acct1", inelig.Account)
	require.EqualValues(t, 1, inelig.Declared)
	require.EqualValues(t, 0, inelig.Cursor)
}

func TestVerifySolutionOverCapacity(t *testing.T) {
	_, err := VerifySolution(verifyFixture(), []core.OrderID{"a", "b", "c"}, NewNoExecSimulator(), 6)
	var over *ErrSelectionOverCapacity
	require.ErrorAs(t, err, &over)
	require.EqualValues(t, "c", over.ID)
	require.EqualValues(t, 6, over.Used)
}

func TestVerifySolutionRejected(t *testing.T) {
	sim := newScriptedSimulator()
	sim.rejectTimes("a", 1)
	_, err := VerifySolution(verifyFixture(), []core.OrderID{"a"}, sim, 10)
	var rejected *ErrSelectionRejected
	require.ErrorAs(t, err, &rejected)
	require.EqualValues(t, "a", rejected.ID)
}

func TestVerifySolutionReplaysOwnBuild(t *testing.T) {
	orders := verifyFixture()
	conf := AlgorithmConfig{Ordering: core.OrderingMaxProfit, Capacity: 10, RetryLimit: 1}
	builder := NewGreedyBuilder(conf, NewNoExecSimulator())
	builder.AddOrders(orders)
	ledger, err := builder.Build(context.Background())
	require.NoError(t, err)

	replayed, err := VerifySolution(orders, ledger.SelectedIDs(), NewNoExecSimulator(), conf.Capacity)
	require.NoError(t, err)
	require.Equal(t, ledger.SelectedIDs(), replayed.SelectedIDs())
	require.Equal(t, 0, ledger.Profit().Cmp(replayed.Profit()))
	require.Equal(t, ledger.CapacityUsed(), replayed.CapacityUsed())
}
