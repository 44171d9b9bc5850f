package live

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"landScope/internal/chain"
)

// HeadSource emits new block numbers until ctx is done. The channel is
// closed when the source stops.
type HeadSource interface {
	Heads(ctx context.Context) (<-chan uint64, error)
}

// BlockNumberReader reads the chain head.
type BlockNumberReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// PollingHeads polls the latest block number and emits increases.
type PollingHeads struct {
	client   BlockNumberReader
	interval time.Duration
	logger   *zap.Logger
}

func NewPollingHeads(client BlockNumberReader, interval time.Duration, logger *zap.Logger) *PollingHeads {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 4 * time.Second
	}
	return &PollingHeads{client: client, interval: interval, logger: logger}
}

func (p *PollingHeads) Heads(ctx context.Context) (<-chan uint64, error) {
	last, err := p.client.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}

	out := make(chan uint64, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			latest, err := p.client.LatestBlockNumber(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("poll head failed", zap.Error(err))
				}
				continue
			}
			if latest <= last {
				continue
			}
			last = latest

			select {
			case out <- latest:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// HeadSubscriber streams headers over a websocket.
type HeadSubscriber interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// NewHeads relays eth_subscribe("newHeads"). A dropped subscription is
// re-established with backoff; the channel closes when retries run out.
type NewHeads struct {
	client HeadSubscriber
	retry  chain.RetryPolicy
	logger *zap.Logger
}

func NewNewHeads(client HeadSubscriber, retry chain.RetryPolicy, logger *zap.Logger) *NewHeads {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewHeads{client: client, retry: retry, logger: logger}
}

func (n *NewHeads) Heads(ctx context.Context) (<-chan uint64, error) {
	headers := make(chan *types.Header, 16)
	sub, err := n.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}

	out := make(chan uint64, 1)
	go func() {
		defer close(out)
		defer func() {
			if sub != nil {
				sub.Unsubscribe()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				n.logger.Warn("head subscription dropped", zap.Error(err))
				sub.Unsubscribe()
				sub = nil
				if err := chain.Retry(ctx, n.retry, func(ctx context.Context) error {
					var err error
					sub, err = n.client.SubscribeNewHead(ctx, headers)
					return err
				}); err != nil {
					n.logger.Error("head resubscribe failed", zap.Error(err))
					return
				}
			case header := <-headers:
				if header == nil || header.Number == nil {
					continue
				}
				select {
				case out <- header.Number.Uint64():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
