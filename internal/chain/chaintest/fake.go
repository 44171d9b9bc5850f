// Package chaintest provides an in-memory chain for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrInjected is returned by calls configured to fail.
var ErrInjected = errors.New("injected failure")

// Chain serves logs, headers and eth_call results from memory.
type Chain struct {
	mu sync.Mutex

	ID     uint64
	Head   uint64
	Logs   []types.Log
	Times  map[uint64]uint64
	CallFn func(msg ethereum.CallMsg) ([]byte, error)

	// FilterFailures makes the next N FilterLogs calls fail.
	FilterFailures int
	// TimestampErr makes every BlockTimestamp call fail.
	TimestampErr error

	filterCalls    int
	timestampCalls int
	filterRanges   [][2]uint64
}

// New returns a chain with the given id and head block.
func New(id, head uint64) *Chain {
	return &Chain{ID: id, Head: head, Times: make(map[uint64]uint64)}
}

// AddLog appends a log at its block number.
func (c *Chain) AddLog(log types.Log) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Logs = append(c.Logs, log)
	if log.BlockNumber > c.Head {
		c.Head = log.BlockNumber
	}
}

// SetHead moves the latest block.
func (c *Chain) SetHead(head uint64) {
	c.mu.Lock()
	c.Head = head
	c.mu.Unlock()
}

func (c *Chain) GetChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.ID), nil
}

func (c *Chain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Head, nil
}

func (c *Chain) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestampCalls++
	if c.TimestampErr != nil {
		return 0, c.TimestampErr
	}
	if ts, ok := c.Times[number]; ok {
		return ts, nil
	}
	return 1_700_000_000 + number*12, nil
}

func (c *Chain) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterCalls++
	c.filterRanges = append(c.filterRanges, [2]uint64{fromBlock, toBlock})
	if c.FilterFailures > 0 {
		c.FilterFailures--
		return nil, ErrInjected
	}

	out := make([]types.Log, 0)
	for _, log := range c.Logs {
		if log.BlockNumber < fromBlock || log.BlockNumber > toBlock {
			continue
		}
		if len(addresses) > 0 && !containsAddress(addresses, log.Address) {
			continue
		}
		if len(topic0) > 0 && (len(log.Topics) == 0 || !containsHash(topic0, log.Topics[0])) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.CallFn == nil {
		return nil, ErrInjected
	}
	return c.CallFn(msg)
}

// FilterCalls reports how many FilterLogs calls were made.
func (c *Chain) FilterCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filterCalls
}

// FilterRanges reports the ranges requested from FilterLogs.
func (c *Chain) FilterRanges() [][2]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][2]uint64(nil), c.filterRanges...)
}

// TimestampCalls reports how many BlockTimestamp calls were made.
func (c *Chain) TimestampCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestampCalls
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, item := range list {
		if item == addr {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}
