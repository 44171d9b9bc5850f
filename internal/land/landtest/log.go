// Package landtest builds contract log records for tests.
package landtest

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"landScope/internal/model"
)

const (
	ChainID  = 11155111
	Block    = 5200000
	TxHash   = "0xdef"
	Contract = "0x5555555555555555555555555555555555555555"
)

// Log assembles a contract log record from a signature, packed data and
// indexed topics.
func Log(topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     ChainID,
		BlockNumber: Block,
		BlockHash:   "0xabc",
		TxHash:      TxHash,
		LogIndex:    1,
		Address:     Contract,
		Topics:      topics,
		Data:        hexutil.Encode(data),
	}
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
