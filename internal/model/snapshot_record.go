package model

import "time"

// SnapshotRecord stores the displayable result of one snapshot computation.
type SnapshotRecord struct {
	ChainID        uint64    `json:"chain_id"`
	Vault          string    `json:"vault"`
	User           string    `json:"user,omitempty"`
	BlockNumber    uint64    `json:"block_number"`
	ObservedAt     time.Time `json:"observed_at"`
	BalanceX       string    `json:"balance_x"`
	BalanceY       string    `json:"balance_y"`
	TotalShares    string    `json:"total_shares"`
	PricePerShareX string    `json:"price_per_share_x"`
	PricePerShareY string    `json:"price_per_share_y"`
	TVLUSD         string    `json:"tvl_usd"`
	UserValueUSD   *string   `json:"user_value_usd,omitempty"`
	EarningsUSD    *string   `json:"earnings_usd,omitempty"`
	ROI            *string   `json:"roi,omitempty"`
	PriceXStale    bool      `json:"price_x_stale"`
	PriceYStale    bool      `json:"price_y_stale"`
}
