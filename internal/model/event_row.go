package model

import "strings"

// EventType tags a normalized event row.
type EventType string

const (
	EventPlotRegistered     EventType = "PLOT_REGISTERED"
	EventTokensAllocated    EventType = "TOKENS_ALLOCATED"
	EventSellOrderCreated   EventType = "SELL_ORDER_CREATED"
	EventSellOrderFilled    EventType = "SELL_ORDER_FILLED"
	EventSellOrderCancelled EventType = "SELL_ORDER_CANCELLED"
	EventTransfer           EventType = "TRANSFER"
	EventNomineeSet         EventType = "NOMINEE_SET"
	EventDeclaredDeceased   EventType = "DECLARED_DECEASED"
	EventPlotClaimed        EventType = "PLOT_CLAIMED"
)

// EventTypes lists every known row type.
var EventTypes = []EventType{
	EventPlotRegistered,
	EventTokensAllocated,
	EventSellOrderCreated,
	EventSellOrderFilled,
	EventSellOrderCancelled,
	EventTransfer,
	EventNomineeSet,
	EventDeclaredDeceased,
	EventPlotClaimed,
}

// Valid reports whether t belongs to the known set.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Counterparty sentinels used when an event has no wallet for a role.
const (
	CounterpartyAdmin  = "ADMIN"
	CounterpartyMarket = "MARKET (ESCROW)"
)

// Meta keys shared by mapper and hydrators.
const (
	MetaPlotID   = "plotId"
	MetaOrderID  = "orderId"
	MetaAreaSqm  = "areaSqm"
	MetaLocation = "location"
)

// EventRow is the presentation-ready projection of one decoded contract log.
type EventRow struct {
	ID          string            `json:"id"`
	Type        EventType         `json:"type"`
	ChainID     uint64            `json:"chain_id"`
	BlockNumber uint64            `json:"block_number"`
	LogIndex    uint64            `json:"log_index"`
	TxHash      string            `json:"tx_hash"`
	Timestamp   *uint64           `json:"timestamp,omitempty"`
	From        string            `json:"from"`
	To          string            `json:"to"`
	Amount      string            `json:"amount,omitempty"`
	Price       string            `json:"price,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Involves reports whether account appears as either counterparty.
func (r EventRow) Involves(account string) bool {
	if account == "" {
		return false
	}
	return strings.EqualFold(r.From, account) || strings.EqualFold(r.To, account)
}

// Before reports whether r sorts ahead of other in most-recent-first order.
func (r EventRow) Before(other EventRow) bool {
	if r.BlockNumber != other.BlockNumber {
		return r.BlockNumber > other.BlockNumber
	}
	return r.LogIndex > other.LogIndex
}
