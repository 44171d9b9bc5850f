package model

import (
	"fmt"
	"strings"
)

// LogRecord is a contract log flattened to JSON-friendly fields.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp,omitempty"`
	IngestedAt  string   `json:"ingested_at,omitempty"`
}

// Topic0 returns the event signature topic, or "" when the log is anonymous.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// RowID derives the stable row key from transaction hash and log index.
func (lr LogRecord) RowID() string {
	return RowID(lr.TxHash, lr.LogIndex)
}

// RowID derives the stable row key from transaction hash and log index.
func RowID(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(txHash), logIndex)
}
