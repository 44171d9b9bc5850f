package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"landScope/internal/land"
	"landScope/internal/model"
)

// MarketSnapshot rebuilds the open asks. Every order id below the
// contract's nextOrderId is read back and kept only while it is active with
// tokens remaining; SellOrderCreated logs in the query window supply the
// creation block of recent orders. Asks are ordered by price, then order id,
// ascending. A failed order read fails the whole snapshot. When q.Account is
// set its token balance is included.
func (a *Aggregator) MarketSnapshot(ctx context.Context, q Query) (model.MarketSnapshot, error) {
	window, err := a.Resolve(ctx, q)
	if err != nil {
		return model.MarketSnapshot{}, err
	}

	var account common.Address
	if q.Account != "" {
		if !common.IsHexAddress(q.Account) {
			return model.MarketSnapshot{}, fmt.Errorf("invalid account address %q", q.Account)
		}
		account = common.HexToAddress(q.Account)
	}

	createdAt, err := a.createdBlocks(ctx, window)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	next, err := a.reader.NextOrderID(ctx)
	if err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("read next order id: %w", err)
	}
	ids := orderIDs(next, createdAt)

	var (
		mu     sync.Mutex
		asks   = make([]model.SellOrder, 0, len(ids))
		failed []error
	)
	forEach(ctx, a.cfg.Concurrency, ids, func(ctx context.Context, id *big.Int) {
		order, err := a.reader.SellOrder(ctx, id)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed = append(failed, fmt.Errorf("order %s: %w", id, err))
			return
		}
		if !isOpen(order) {
			return
		}
		order.CreatedBlock = createdAt[order.ID]
		asks = append(asks, order)
	})
	if err := ctx.Err(); err != nil {
		return model.MarketSnapshot{}, err
	}
	if len(failed) > 0 {
		return model.MarketSnapshot{}, fmt.Errorf("read sell orders: %w", errors.Join(failed...))
	}

	if q.WithOrderPlots {
		askIDs := make([]string, 0, len(asks))
		for _, ask := range asks {
			askIDs = append(askIDs, ask.ID)
		}
		plots := a.orderPlots(ctx, askIDs)
		for i := range asks {
			asks[i].PlotID = plots[asks[i].ID]
		}
	}

	SortAsks(asks)
	snapshot := model.MarketSnapshot{
		Account:     q.Account,
		ChainID:     window.ChainID,
		BlockNumber: window.ToBlock,
		Asks:        asks,
	}
	if q.Account != "" {
		balance, err := a.reader.BalanceOf(ctx, account)
		if err != nil {
			return model.MarketSnapshot{}, fmt.Errorf("read balance: %w", err)
		}
		snapshot.Balance = balance.String()
	}
	return snapshot, nil
}

// createdBlocks maps order ids created in the window to their creation block.
func (a *Aggregator) createdBlocks(ctx context.Context, window Window) (map[string]uint64, error) {
	createdTopic, err := land.EventTopic(model.EventSellOrderCreated)
	if err != nil {
		return nil, err
	}
	events, err := a.scan(ctx, window, []common.Hash{createdTopic})
	if err != nil {
		return nil, err
	}

	createdAt := make(map[string]uint64, len(events))
	for _, event := range events {
		id, ok := land.OrderID(event.Event)
		if !ok {
			continue
		}
		if _, dup := createdAt[id.String()]; !dup {
			createdAt[id.String()] = event.Log.BlockNumber
		}
	}
	return createdAt, nil
}

// orderIDs lists every id below next plus any id seen in logs at or above it.
func orderIDs(next *big.Int, seen map[string]uint64) []*big.Int {
	ids := make([]*big.Int, 0, len(seen))
	for id := new(big.Int); id.Cmp(next) < 0; id = new(big.Int).Add(id, big.NewInt(1)) {
		ids = append(ids, id)
	}
	for key := range seen {
		id, ok := new(big.Int).SetString(key, 10)
		if ok && id.Cmp(next) >= 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func isOpen(order model.SellOrder) bool {
	if !order.Active {
		return false
	}
	remaining, ok := new(big.Int).SetString(order.AmountRemaining, 10)
	return ok && remaining.Sign() > 0
}

// SortAsks orders asks by price per token, then id, both ascending.
func SortAsks(asks []model.SellOrder) {
	sort.SliceStable(asks, func(i, j int) bool {
		if c := compareDecimal(asks[i].PricePerTokenWei, asks[j].PricePerTokenWei); c != 0 {
			return c < 0
		}
		return compareDecimal(asks[i].ID, asks[j].ID) < 0
	})
}

func compareDecimal(a, b string) int {
	x, okA := new(big.Int).SetString(a, 10)
	y, okB := new(big.Int).SetString(b, 10)
	switch {
	case okA && okB:
		return x.Cmp(y)
	case okA:
		return -1
	case okB:
		return 1
	default:
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	}
}
