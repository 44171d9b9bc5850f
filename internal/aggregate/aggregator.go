package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"landScope/internal/chain"
	"landScope/internal/indexer"
	"landScope/internal/land"
	"landScope/internal/model"
	"landScope/internal/rows"
)

const (
	DefaultBatchSize   = 5000
	DefaultConcurrency = 4
)

// Chain is the chain access the aggregator needs: log reads plus eth_call.
type Chain interface {
	indexer.Chain
	land.Caller
}

// Config controls aggregation behavior.
type Config struct {
	Contract    common.Address
	BatchSize   uint64
	Concurrency int
	Retry       chain.RetryPolicy
	TokenMeta   model.TokenMeta
}

// Query selects the rows of one snapshot.
type Query struct {
	// FromBlock and ToBlock bound the range; ToBlock 0 means latest.
	FromBlock uint64
	ToBlock   uint64
	// Lookback, when set, replaces FromBlock with ToBlock-Lookback+1.
	Lookback uint64
	// Limit keeps only the most recent rows; 0 keeps all.
	Limit int
	// Account keeps rows where the account is a counterparty.
	Account        string
	Types          []model.EventType
	WithTimestamps bool
	WithOrderPlots bool
}

// Window is a resolved block range on a chain.
type Window struct {
	ChainID   uint64 `json:"chain_id"`
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
}

// Cursor points at the next older window. Rows of NextToBlock may repeat on
// the next page when the limit cut through that block; MergeRows drops them.
type Cursor struct {
	NextToBlock uint64 `json:"next_to_block"`
	Done        bool   `json:"done"`
}

// Page is one aggregated, ordered and capped set of rows.
type Page struct {
	Window
	Rows      []model.EventRow `json:"rows"`
	Truncated bool             `json:"truncated"`
	Cursor    Cursor           `json:"cursor"`
}

// Aggregator rebuilds read models from contract logs.
type Aggregator struct {
	cfg     Config
	chain   Chain
	decoder *land.Decoder
	mapper  *rows.Mapper
	reader  *land.Reader
	logger  *zap.Logger
}

func NewAggregator(cfg Config, chainClient Chain, logger *zap.Logger) (*Aggregator, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.Contract == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	decoder, err := land.NewDecoder()
	if err != nil {
		return nil, err
	}
	reader, err := land.NewReader(chainClient, cfg.Contract)
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		cfg:     cfg,
		chain:   chainClient,
		decoder: decoder,
		mapper:  rows.NewMapper(cfg.TokenMeta),
		reader:  reader,
		logger:  logger,
	}, nil
}

// Resolve turns a query into a concrete block window.
func (a *Aggregator) Resolve(ctx context.Context, q Query) (Window, error) {
	chainID, err := a.chain.GetChainID(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return Window{}, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	to := q.ToBlock
	if to == 0 {
		latest, err := a.chain.LatestBlockNumber(ctx)
		if err != nil {
			return Window{}, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	from := q.FromBlock
	if q.Lookback > 0 {
		from = indexer.LookbackRange(to, q.Lookback).From
	}
	if from > to {
		return Window{}, fmt.Errorf("from block %d is after to block %d", from, to)
	}

	return Window{ChainID: chainID.Uint64(), FromBlock: from, ToBlock: to}, nil
}

// Events decodes every contract log in the query window. Removed logs and
// logs the decoder does not recognise are skipped.
func (a *Aggregator) Events(ctx context.Context, q Query) ([]land.Decoded, Window, error) {
	window, err := a.Resolve(ctx, q)
	if err != nil {
		return nil, Window{}, err
	}
	events, err := a.scan(ctx, window, a.decoder.Topic0())
	if err != nil {
		return nil, Window{}, err
	}
	return events, window, nil
}

func (a *Aggregator) scan(ctx context.Context, window Window, topic0 []common.Hash) ([]land.Decoded, error) {
	ranges, err := indexer.SplitRange(window.FromBlock, window.ToBlock, a.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	addresses := []common.Address{a.cfg.Contract}
	events := make([]land.Decoded, 0)
	var skipped int
	for _, blockRange := range ranges {
		a.logger.Debug("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := indexer.FetchLogs(ctx, a.chain, a.cfg.Retry, blockRange, addresses, topic0, a.logger)
		if err != nil {
			return nil, fmt.Errorf("filter logs %s: %w", blockRange, err)
		}
		for _, log := range logs {
			decoded, ok := a.decode(window.ChainID, log)
			if !ok {
				skipped++
				continue
			}
			events = append(events, decoded)
		}
	}

	a.logger.Debug("scan complete",
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped),
		zap.Uint64("from", window.FromBlock),
		zap.Uint64("to", window.ToBlock),
	)
	return events, nil
}

func (a *Aggregator) decode(chainID uint64, log types.Log) (land.Decoded, bool) {
	if log.Removed {
		return land.Decoded{}, false
	}
	return a.decoder.DecodeLog(chainID, log)
}

// Rows returns the ordered, deduplicated and capped rows for the query.
func (a *Aggregator) Rows(ctx context.Context, q Query) (Page, error) {
	events, window, err := a.Events(ctx, q)
	if err != nil {
		return Page{}, err
	}

	mapped := make([]model.EventRow, 0, len(events))
	for _, event := range events {
		row, ok := a.mapper.Map(event, rows.Context{ChainID: window.ChainID})
		if !ok || !matches(row, q) {
			continue
		}
		mapped = append(mapped, row)
	}

	ordered := MergeRows(mapped)
	page := Page{Window: window, Rows: ordered}
	if q.Limit > 0 && len(ordered) > q.Limit {
		page.Rows = Limit(ordered, q.Limit)
		page.Truncated = true
	}
	page.Cursor = nextCursor(page)

	if q.WithTimestamps {
		a.hydrateTimestamps(ctx, page.Rows)
	}
	if q.WithOrderPlots {
		a.hydrateOrderPlots(ctx, page.Rows)
	}

	return page, nil
}

func nextCursor(page Page) Cursor {
	if page.Truncated && len(page.Rows) > 0 {
		return Cursor{NextToBlock: page.Rows[len(page.Rows)-1].BlockNumber}
	}
	if page.FromBlock == 0 {
		return Cursor{Done: true}
	}
	return Cursor{NextToBlock: page.FromBlock - 1}
}

func matches(row model.EventRow, q Query) bool {
	if q.Account != "" && !row.Involves(strings.TrimSpace(q.Account)) {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if row.Type == t {
			return true
		}
	}
	return false
}

// Dashboard computes activity stats over the query window. Account and type
// filters do not apply.
func (a *Aggregator) Dashboard(ctx context.Context, q Query) (model.DashboardStats, error) {
	events, window, err := a.Events(ctx, q)
	if err != nil {
		return model.DashboardStats{}, err
	}
	stats := Stats(events)
	stats.FromBlock = window.FromBlock
	stats.ToBlock = window.ToBlock
	return stats, nil
}
