package rows

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"landScope/internal/land"
	"landScope/internal/model"
)

// Context carries ambient values that are not part of the log itself.
type Context struct {
	Timestamp *uint64
	ChainID   uint64
}

// Mapper converts decoded events into display rows.
type Mapper struct {
	symbol   string
	decimals int32
}

// NewMapper formats token amounts with meta; empty fields fall back to GMCLT/18.
func NewMapper(meta model.TokenMeta) *Mapper {
	m := &Mapper{symbol: meta.Symbol, decimals: int32(meta.Decimals)}
	if m.symbol == "" {
		m.symbol = land.DefaultTokenSymbol
	}
	if m.decimals == 0 {
		m.decimals = land.DefaultTokenDecimals
	}
	return m
}

// Map produces the row for a decoded event. It returns false for events that
// are intentionally not shown, such as mints.
func (m *Mapper) Map(decoded land.Decoded, ctx Context) (model.EventRow, bool) {
	if decoded.Event == nil {
		return model.EventRow{}, false
	}

	chainID := ctx.ChainID
	if chainID == 0 {
		chainID = decoded.Log.ChainID
	}
	row := model.EventRow{
		ID:          decoded.RowID(),
		Type:        decoded.Event.Type(),
		ChainID:     chainID,
		BlockNumber: decoded.Log.BlockNumber,
		LogIndex:    decoded.Log.LogIndex,
		TxHash:      decoded.Log.TxHash,
		Timestamp:   ctx.Timestamp,
	}
	if row.Timestamp == nil && decoded.Log.Timestamp != 0 {
		ts := decoded.Log.Timestamp
		row.Timestamp = &ts
	}

	switch e := decoded.Event.(type) {
	case land.PlotRegistered:
		row.From = model.CounterpartyAdmin
		row.To = e.Owner.Hex()
		row.Meta = map[string]string{
			model.MetaPlotID:   e.PlotID.String(),
			model.MetaAreaSqm:  e.AreaSqm.String(),
			model.MetaLocation: e.Location,
		}
	case land.TokensAllocated:
		row.From = model.CounterpartyAdmin
		row.To = e.Beneficiary.Hex()
		row.Amount = m.tokens(e.Amount)
		row.Meta = map[string]string{model.MetaPlotID: e.PlotID.String()}
	case land.SellOrderCreated:
		row.From = e.Seller.Hex()
		row.To = model.CounterpartyMarket
		row.Amount = m.tokens(e.Amount)
		row.Price = FormatEther(e.PricePerTokenWei) + " ETH / token"
		row.Meta = map[string]string{model.MetaOrderID: e.OrderID.String()}
	case land.SellOrderFilled:
		row.From = model.CounterpartyMarket
		row.To = e.Buyer.Hex()
		row.Amount = m.tokens(e.Amount)
		row.Price = FormatEther(e.TotalPriceWei) + " ETH"
		row.Meta = map[string]string{model.MetaOrderID: e.OrderID.String()}
	case land.SellOrderCancelled:
		row.From = model.CounterpartyMarket
		row.To = e.Seller.Hex()
		row.Amount = m.tokens(e.AmountReturned)
		row.Meta = map[string]string{model.MetaOrderID: e.OrderID.String()}
	case land.Transfer:
		if e.IsMint() {
			return model.EventRow{}, false
		}
		row.From = e.From.Hex()
		row.To = e.To.Hex()
		row.Amount = m.tokens(e.Value)
	case land.NomineeSet:
		row.From = e.Owner.Hex()
		row.To = e.Nominee.Hex()
		row.Meta = map[string]string{model.MetaPlotID: e.PlotID.String()}
	case land.DeclaredDeceased:
		row.From = model.CounterpartyAdmin
		row.To = e.Owner.Hex()
		row.Meta = map[string]string{model.MetaPlotID: e.PlotID.String()}
	case land.PlotClaimed:
		row.From = addressOrAdmin(e.PreviousOwner)
		row.To = e.Nominee.Hex()
		row.Meta = map[string]string{model.MetaPlotID: e.PlotID.String()}
	default:
		return model.EventRow{}, false
	}

	return row, true
}

func (m *Mapper) tokens(amount *big.Int) string {
	return FormatUnits(amount, m.decimals) + " " + m.symbol
}

func addressOrAdmin(addr common.Address) string {
	if addr == (common.Address{}) {
		return model.CounterpartyAdmin
	}
	return addr.Hex()
}
