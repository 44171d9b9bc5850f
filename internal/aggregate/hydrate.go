package aggregate

import (
	"context"
	"math/big"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"landScope/internal/model"
)

// forEach runs fn for every item with at most concurrency calls in flight.
// Items not started before ctx is done are skipped.
func forEach[T any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T)) {
	if len(items) == 0 {
		return
	}
	pool := pond.NewPool(concurrency, pond.WithContext(ctx))
	for _, item := range items {
		item := item
		pool.Submit(func() {
			fn(ctx, item)
		})
	}
	pool.StopAndWait()
}

// hydrateTimestamps fills row timestamps, one lookup per distinct block.
func (a *Aggregator) hydrateTimestamps(ctx context.Context, rowsToFill []model.EventRow) {
	blocks := make([]uint64, 0)
	seen := make(map[uint64]struct{})
	for _, row := range rowsToFill {
		if row.Timestamp != nil {
			continue
		}
		if _, ok := seen[row.BlockNumber]; ok {
			continue
		}
		seen[row.BlockNumber] = struct{}{}
		blocks = append(blocks, row.BlockNumber)
	}

	var mu sync.Mutex
	times := make(map[uint64]uint64, len(blocks))
	forEach(ctx, a.cfg.Concurrency, blocks, func(ctx context.Context, block uint64) {
		ts, err := a.chain.BlockTimestamp(ctx, block)
		if err != nil {
			a.logger.Warn("block timestamp lookup failed", zap.Error(err), zap.Uint64("block_number", block))
			return
		}
		mu.Lock()
		times[block] = ts
		mu.Unlock()
	})

	for i := range rowsToFill {
		if rowsToFill[i].Timestamp != nil {
			continue
		}
		if ts, ok := times[rowsToFill[i].BlockNumber]; ok {
			rowsToFill[i].Timestamp = &ts
		}
	}
}

// hydrateOrderPlots links order rows to their plot. Orders without a link
// keep no plotId.
func (a *Aggregator) hydrateOrderPlots(ctx context.Context, rowsToFill []model.EventRow) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, row := range rowsToFill {
		id := row.Meta[model.MetaOrderID]
		if id == "" || row.Meta[model.MetaPlotID] != "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	plots := a.orderPlots(ctx, ids)
	for i := range rowsToFill {
		id := rowsToFill[i].Meta[model.MetaOrderID]
		if plot, ok := plots[id]; ok && id != "" {
			rowsToFill[i].Meta[model.MetaPlotID] = plot
		}
	}
}

// orderPlots resolves order ids to non-zero plot ids.
func (a *Aggregator) orderPlots(ctx context.Context, ids []string) map[string]string {
	var mu sync.Mutex
	plots := make(map[string]string, len(ids))
	forEach(ctx, a.cfg.Concurrency, ids, func(ctx context.Context, id string) {
		orderID, ok := new(big.Int).SetString(id, 10)
		if !ok {
			return
		}
		plot, err := a.reader.OrderPlot(ctx, orderID)
		if err != nil {
			a.logger.Warn("order plot lookup failed", zap.Error(err), zap.String("order_id", id))
			return
		}
		if plot.Sign() == 0 {
			return
		}
		mu.Lock()
		plots[id] = plot.String()
		mu.Unlock()
	})
	return plots
}
