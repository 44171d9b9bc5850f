package model

// SellOrder mirrors a sell order held by the contract. Numeric fields are raw
// base-10 integers (token base units, wei) so callers can do exact arithmetic.
type SellOrder struct {
	ID               string `json:"id"`
	Seller           string `json:"seller"`
	AmountTotal      string `json:"amount_total"`
	AmountRemaining  string `json:"amount_remaining"`
	PricePerTokenWei string `json:"price_per_token_wei"`
	Active           bool   `json:"active"`
	PlotID           string `json:"plot_id,omitempty"`
	CreatedBlock     uint64 `json:"created_block,omitempty"`
}
