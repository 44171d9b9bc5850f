package aggregate

import (
	"math/big"

	"landScope/internal/land"
	"landScope/internal/model"
)

// Stats summarizes decoded events with exact integer sums. Amounts are raw
// token base units and wei; block bounds are left to the caller.
func Stats(events []land.Decoded) model.DashboardStats {
	allocated := new(big.Int)
	traded := new(big.Int)
	volume := new(big.Int)
	stats := model.DashboardStats{CountsByType: make(map[model.EventType]int)}

	for _, decoded := range events {
		if decoded.Event == nil {
			continue
		}
		stats.CountsByType[decoded.Event.Type()]++

		switch e := decoded.Event.(type) {
		case land.PlotRegistered:
			stats.PlotsRegistered++
		case land.TokensAllocated:
			addInto(allocated, e.Amount)
		case land.SellOrderCreated:
			stats.OrdersCreated++
		case land.SellOrderFilled:
			stats.OrdersFilled++
			addInto(traded, e.Amount)
			addInto(volume, e.TotalPriceWei)
		case land.SellOrderCancelled:
			stats.OrdersCancelled++
		case land.NomineeSet:
			stats.NomineesSet++
		case land.DeclaredDeceased:
			stats.DeceasedDeclared++
		case land.PlotClaimed:
			stats.PlotsClaimed++
		}
	}

	stats.TokensAllocated = allocated.String()
	stats.TokensTraded = traded.String()
	stats.VolumeWei = volume.String()
	return stats
}

func addInto(sum, v *big.Int) {
	if v != nil {
		sum.Add(sum, v)
	}
}
