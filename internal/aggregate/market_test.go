package aggregate

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"landScope/internal/chain/chaintest"
	"landScope/internal/model"
)

func TestMarketSnapshotKeepsOpenAsksSorted(t *testing.T) {
	fake := chaintest.New(11155111, 500)
	created := func(block uint64, id int64, price int64) {
		fake.AddLog(eventLog(t, "SellOrderCreated", block, 0, []common.Hash{idTopic(id), addrTopic(alice)}, tokens(10), big.NewInt(price)))
	}
	created(100, 1, 3e15)
	created(101, 2, 1e15)
	created(102, 3, 1e15)
	created(103, 4, 2e15)
	created(104, 5, 1e15)
	// A second creation log for order 2 must not produce a duplicate ask.
	created(105, 2, 1e15)
	fake.AddLog(transferLog(t, 106, 0, alice, bob, 1))

	fake.CallFn = contractCalls(t, map[int64]orderState{
		1: {seller: alice, total: tokens(10), remaining: tokens(10), price: big.NewInt(3e15), active: true, plot: 9},
		2: {seller: alice, total: tokens(10), remaining: tokens(4), price: big.NewInt(1e15), active: true},
		3: {seller: bob, total: tokens(10), remaining: tokens(10), price: big.NewInt(1e15), active: true},
		4: {seller: bob, total: tokens(10), remaining: big.NewInt(0), price: big.NewInt(2e15), active: true},
		5: {seller: bob, total: tokens(10), remaining: tokens(10), price: big.NewInt(1e15), active: false},
	})

	agg := newTestAggregator(t, fake, 100)
	snapshot, err := agg.MarketSnapshot(context.Background(), Query{Lookback: 1000, Account: alice.Hex(), WithOrderPlots: true})
	require.NoError(t, err)

	require.Equal(t, alice.Hex(), snapshot.Account)
	require.Equal(t, uint64(11155111), snapshot.ChainID)
	require.Equal(t, uint64(500), snapshot.BlockNumber)

	ids := make([]string, 0, len(snapshot.Asks))
	for _, ask := range snapshot.Asks {
		ids = append(ids, ask.ID)
	}
	require.Equal(t, []string{"2", "3", "1"}, ids)
	require.Equal(t, "9", snapshot.Asks[2].PlotID)
	require.Empty(t, snapshot.Asks[0].PlotID)
	require.Equal(t, uint64(101), snapshot.Asks[0].CreatedBlock)
}

func TestMarketSnapshotFailsOnOrderLookupError(t *testing.T) {
	fake := chaintest.New(1, 50)
	fake.AddLog(eventLog(t, "SellOrderCreated", 10, 0, []common.Hash{idTopic(1), addrTopic(alice)}, tokens(1), big.NewInt(1e15)))
	fake.AddLog(eventLog(t, "SellOrderCreated", 11, 0, []common.Hash{idTopic(2), addrTopic(alice)}, tokens(1), big.NewInt(1e15)))
	fake.CallFn = contractCalls(t, map[int64]orderState{
		1: {fail: true},
		2: {seller: alice, total: tokens(1), remaining: tokens(1), price: big.NewInt(1e15), active: true},
	})

	agg := newTestAggregator(t, fake, 100)
	snapshot, err := agg.MarketSnapshot(context.Background(), Query{})
	require.Error(t, err)
	require.ErrorContains(t, err, "order 1")
	require.Empty(t, snapshot.Asks)
}

func TestMarketSnapshotIncludesOrdersOlderThanWindow(t *testing.T) {
	fake := chaintest.New(1, 500)
	fake.AddLog(eventLog(t, "SellOrderCreated", 10, 0, []common.Hash{idTopic(1), addrTopic(bob)}, tokens(5), big.NewInt(2e15)))
	fake.AddLog(eventLog(t, "SellOrderCreated", 450, 0, []common.Hash{idTopic(2), addrTopic(alice)}, tokens(5), big.NewInt(1e15)))

	contract := newFakeContract(map[int64]orderState{
		1: {seller: bob, total: tokens(5), remaining: tokens(5), price: big.NewInt(2e15), active: true},
		2: {seller: alice, total: tokens(5), remaining: tokens(5), price: big.NewInt(1e15), active: true},
	})
	contract.balances[alice] = tokens(3)
	fake.CallFn = contract.calls(t)

	agg := newTestAggregator(t, fake, 100)
	snapshot, err := agg.MarketSnapshot(context.Background(), Query{Lookback: 100, Account: alice.Hex()})
	require.NoError(t, err)

	require.Len(t, snapshot.Asks, 2)
	require.Equal(t, "2", snapshot.Asks[0].ID)
	require.Equal(t, uint64(450), snapshot.Asks[0].CreatedBlock)
	require.Equal(t, "1", snapshot.Asks[1].ID)
	require.Zero(t, snapshot.Asks[1].CreatedBlock, "created before the window")
	require.Equal(t, tokens(3).String(), snapshot.Balance)
}

func TestMarketSnapshotRejectsInvalidAccount(t *testing.T) {
	fake := chaintest.New(1, 50)
	fake.CallFn = contractCalls(t, nil)

	agg := newTestAggregator(t, fake, 100)
	_, err := agg.MarketSnapshot(context.Background(), Query{Account: "not-an-address"})
	require.Error(t, err)
}

func TestSortAsksNumeric(t *testing.T) {
	asks := []model.SellOrder{
		{ID: "10", PricePerTokenWei: "900"},
		{ID: "9", PricePerTokenWei: "1000"},
		{ID: "2", PricePerTokenWei: "900"},
	}
	SortAsks(asks)
	require.Equal(t, "2", asks[0].ID)
	require.Equal(t, "10", asks[1].ID)
	require.Equal(t, "9", asks[2].ID)
}
