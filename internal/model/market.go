package model

// MarketKind identifies how the underlying liquidity venue discretizes price.
type MarketKind string

const (
	// MarketTick is a concentrated-liquidity pool addressed by ticks and tick spacing.
	MarketTick MarketKind = "tick"
	// MarketBin is a bin-step AMM addressed by bin ids of uniform width.
	MarketBin MarketKind = "bin"
)

// ParseMarketKind normalizes a configured market kind.
func ParseMarketKind(value string) (MarketKind, bool) {
	switch MarketKind(value) {
	case MarketTick:
		return MarketTick, true
	case MarketBin:
		return MarketBin, true
	default:
		return "", false
	}
}

// MarketMeta captures the live price point of the vault's liquidity venue.
type MarketMeta struct {
	Kind         MarketKind `json:"kind"`
	Address      string     `json:"address"`
	ActivePoint  int32      `json:"active_point"`
	Spacing      int32      `json:"spacing"`
	SqrtPriceX96 string     `json:"sqrt_price_x96,omitempty"`
}
