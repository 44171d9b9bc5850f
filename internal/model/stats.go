package model

// DashboardStats summarizes contract activity over a block range.
type DashboardStats struct {
	FromBlock        uint64            `json:"from_block"`
	ToBlock          uint64            `json:"to_block"`
	PlotsRegistered  uint64            `json:"plots_registered"`
	TokensAllocated  string            `json:"tokens_allocated"`
	OrdersCreated    uint64            `json:"orders_created"`
	OrdersFilled     uint64            `json:"orders_filled"`
	OrdersCancelled  uint64            `json:"orders_cancelled"`
	TokensTraded     string            `json:"tokens_traded"`
	VolumeWei        string            `json:"volume_wei"`
	NomineesSet      uint64            `json:"nominees_set"`
	DeceasedDeclared uint64            `json:"deceased_declared"`
	PlotsClaimed     uint64            `json:"plots_claimed"`
	CountsByType     map[EventType]int `json:"counts_by_type"`
}
