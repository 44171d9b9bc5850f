package land

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"landScope/internal/model"
)

// Token display defaults when the contract does not answer symbol/decimals.
const (
	DefaultTokenSymbol   = "GMCLT"
	DefaultTokenDecimals = 18
)

const landABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "plotId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "areaSqm", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "location", "type": "string"}
    ],
    "name": "PlotRegistered",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "plotId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "beneficiary", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "TokensAllocated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "seller", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "pricePerTokenWei", "type": "uint256"}
    ],
    "name": "SellOrderCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "buyer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "totalPriceWei", "type": "uint256"}
    ],
    "name": "SellOrderFilled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "seller", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountReturned", "type": "uint256"}
    ],
    "name": "SellOrderCancelled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "plotId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "nominee", "type": "address"}
    ],
    "name": "NomineeSet",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "plotId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "DeclaredDeceased",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "plotId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "nominee", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "previousOwner", "type": "address"}
    ],
    "name": "PlotClaimed",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "sellOrders",
    "outputs": [
      {"internalType": "uint256", "name": "id", "type": "uint256"},
      {"internalType": "address", "name": "seller", "type": "address"},
      {"internalType": "uint256", "name": "amountTotal", "type": "uint256"},
      {"internalType": "uint256", "name": "amountRemaining", "type": "uint256"},
      {"internalType": "uint256", "name": "pricePerTokenWei", "type": "uint256"},
      {"internalType": "bool", "name": "active", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "orderId", "type": "uint256"}],
    "name": "orderPlot",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "nextOrderId",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "account", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "symbol",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "decimals",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "amount", "type": "uint256"},
      {"internalType": "uint256", "name": "pricePerTokenWei", "type": "uint256"}
    ],
    "name": "createSellOrder",
    "outputs": [{"internalType": "uint256", "name": "orderId", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "orderId", "type": "uint256"}],
    "name": "cancelSellOrder",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "orderId", "type": "uint256"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "buyFromOrder",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`

var (
	landABI     abi.ABI
	landABIOnce sync.Once
	landABIErr  error
)

// ContractABI returns the parsed land-compensation contract ABI.
func ContractABI() (abi.ABI, error) {
	landABIOnce.Do(func() {
		landABI, landABIErr = abi.JSON(strings.NewReader(landABIJSON))
	})
	return landABI, landABIErr
}

var eventNames = map[model.EventType]string{
	model.EventPlotRegistered:     "PlotRegistered",
	model.EventTokensAllocated:    "TokensAllocated",
	model.EventSellOrderCreated:   "SellOrderCreated",
	model.EventSellOrderFilled:    "SellOrderFilled",
	model.EventSellOrderCancelled: "SellOrderCancelled",
	model.EventTransfer:           "Transfer",
	model.EventNomineeSet:         "NomineeSet",
	model.EventDeclaredDeceased:   "DeclaredDeceased",
	model.EventPlotClaimed:        "PlotClaimed",
}

// EventTopic returns the signature hash of an event type.
func EventTopic(t model.EventType) (common.Hash, error) {
	contractABI, err := ContractABI()
	if err != nil {
		return common.Hash{}, err
	}
	event, ok := contractABI.Events[eventNames[t]]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrUnknownEvent, t)
	}
	return event.ID, nil
}
