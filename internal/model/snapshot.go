package model

// MarketSnapshot is the wholesale-rebuilt view of open asks.
type MarketSnapshot struct {
	Account string `json:"account"`
	// Balance is the account's token balance in base units, empty without an account.
	Balance     string      `json:"balance,omitempty"`
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	Asks        []SellOrder `json:"asks"`
}
