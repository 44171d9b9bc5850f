package aggregate

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"landScope/internal/chain"
	"landScope/internal/chain/chaintest"
	"landScope/internal/land"
	"landScope/internal/land/landtest"
)

var (
	testContract = common.HexToAddress("0x5555555555555555555555555555555555555555")
	alice        = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob          = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func addrTopic(addr common.Address) common.Hash {
	return landtest.AddressTopic(addr)
}

func idTopic(id int64) common.Hash {
	return common.BigToHash(big.NewInt(id))
}

// eventLog packs a contract event into a go-ethereum log.
func eventLog(t *testing.T, name string, block uint64, index uint, indexed []common.Hash, args ...interface{}) types.Log {
	t.Helper()
	contractABI, err := land.ContractABI()
	require.NoError(t, err)
	event, ok := contractABI.Events[name]
	require.True(t, ok, "unknown event %s", name)
	data, err := event.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)

	return types.Log{
		Address:     testContract,
		Topics:      append([]common.Hash{event.ID}, indexed...),
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BytesToHash([]byte(fmt.Sprintf("tx-%d-%d", block, index))),
		Index:       index,
	}
}

func transferLog(t *testing.T, block uint64, index uint, from, to common.Address, amount int64) types.Log {
	return eventLog(t, "Transfer", block, index, []common.Hash{addrTopic(from), addrTopic(to)}, tokens(amount))
}

type orderState struct {
	seller    common.Address
	total     *big.Int
	remaining *big.Int
	price     *big.Int
	active    bool
	plot      int64
	// fail makes every read of this order revert.
	fail bool
}

// fakeContract answers the contract's view calls from in-memory tables.
// Unknown order ids read back as the zero order, the way a Solidity mapping does.
type fakeContract struct {
	orders   map[int64]orderState
	nextID   int64
	balances map[common.Address]*big.Int
}

func newFakeContract(orders map[int64]orderState) *fakeContract {
	c := &fakeContract{orders: orders, balances: make(map[common.Address]*big.Int)}
	for id := range orders {
		if id >= c.nextID {
			c.nextID = id + 1
		}
	}
	return c
}

func (c *fakeContract) calls(t *testing.T) func(ethereum.CallMsg) ([]byte, error) {
	contractABI, err := land.ContractABI()
	require.NoError(t, err)

	return func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := contractABI.MethodById(msg.Data)
		if err != nil {
			return nil, errors.New("unexpected call")
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}

		switch method.Name {
		case "nextOrderId":
			return method.Outputs.Pack(big.NewInt(c.nextID))
		case "balanceOf":
			balance, ok := c.balances[args[0].(common.Address)]
			if !ok {
				balance = new(big.Int)
			}
			return method.Outputs.Pack(balance)
		case "sellOrders", "orderPlot":
			id := args[0].(*big.Int)
			order, ok := c.orders[id.Int64()]
			if order.fail {
				return nil, errors.New("execution reverted")
			}
			if method.Name == "orderPlot" {
				return method.Outputs.Pack(big.NewInt(order.plot))
			}
			if !ok {
				return method.Outputs.Pack(id, common.Address{}, new(big.Int), new(big.Int), new(big.Int), false)
			}
			return method.Outputs.Pack(id, order.seller, order.total, order.remaining, order.price, order.active)
		}
		return nil, errors.New("unexpected call")
	}
}

// contractCalls answers the view calls from a table of orders.
func contractCalls(t *testing.T, orders map[int64]orderState) func(ethereum.CallMsg) ([]byte, error) {
	return newFakeContract(orders).calls(t)
}

func newTestAggregator(t *testing.T, fake *chaintest.Chain, batchSize uint64) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(Config{
		Contract:    testContract,
		BatchSize:   batchSize,
		Concurrency: 2,
		Retry:       chain.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
	}, fake, nil)
	require.NoError(t, err)
	return agg
}
