package land

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"landScope/internal/model"
)

// Event is one decoded contract event. The concrete type identifies the event;
// callers switch on it instead of reading fields by position.
type Event interface {
	Type() model.EventType
}

type PlotRegistered struct {
	PlotID   *big.Int
	Owner    common.Address
	AreaSqm  *big.Int
	Location string
}

type TokensAllocated struct {
	PlotID      *big.Int
	Beneficiary common.Address
	Amount      *big.Int
}

type SellOrderCreated struct {
	OrderID          *big.Int
	Seller           common.Address
	Amount           *big.Int
	PricePerTokenWei *big.Int
}

type SellOrderFilled struct {
	OrderID       *big.Int
	Buyer         common.Address
	Amount        *big.Int
	TotalPriceWei *big.Int
}

type SellOrderCancelled struct {
	OrderID        *big.Int
	Seller         common.Address
	AmountReturned *big.Int
}

type Transfer struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

type NomineeSet struct {
	PlotID  *big.Int
	Owner   common.Address
	Nominee common.Address
}

type DeclaredDeceased struct {
	PlotID *big.Int
	Owner  common.Address
}

type PlotClaimed struct {
	PlotID        *big.Int
	Nominee       common.Address
	PreviousOwner common.Address
}

func (PlotRegistered) Type() model.EventType     { return model.EventPlotRegistered }
func (TokensAllocated) Type() model.EventType    { return model.EventTokensAllocated }
func (SellOrderCreated) Type() model.EventType   { return model.EventSellOrderCreated }
func (SellOrderFilled) Type() model.EventType    { return model.EventSellOrderFilled }
func (SellOrderCancelled) Type() model.EventType { return model.EventSellOrderCancelled }
func (Transfer) Type() model.EventType           { return model.EventTransfer }
func (NomineeSet) Type() model.EventType         { return model.EventNomineeSet }
func (DeclaredDeceased) Type() model.EventType   { return model.EventDeclaredDeceased }
func (PlotClaimed) Type() model.EventType        { return model.EventPlotClaimed }

// IsMint reports whether the transfer creates tokens.
func (t Transfer) IsMint() bool {
	return t.From == (common.Address{})
}

// OrderID returns the sell order an event refers to, if any.
func OrderID(event Event) (*big.Int, bool) {
	switch e := event.(type) {
	case SellOrderCreated:
		return e.OrderID, true
	case SellOrderFilled:
		return e.OrderID, true
	case SellOrderCancelled:
		return e.OrderID, true
	default:
		return nil, false
	}
}

// Decoded pairs an event with the log it came from.
type Decoded struct {
	Log   model.LogRecord
	Event Event
}

// RowID is the stable key of the underlying log.
func (d Decoded) RowID() string {
	return d.Log.RowID()
}
