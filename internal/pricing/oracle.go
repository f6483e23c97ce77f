package pricing

import (
	"fmt"
	"math/big"
	"time"

	"vaultScope/internal/model"
)

// OracleParams mirrors the vault oracle's sanity configuration. Prices are
// 128.128 fixed-point values.
type OracleParams struct {
	MinPrice     *big.Int
	MaxPrice     *big.Int
	DeviationBps uint32
	Heartbeat    time.Duration
}

// OracleStatus is the outcome of CheckOracle. The spot price is reported
// as-is; a failed check never swaps in another price.
type OracleStatus struct {
	Spot            *big.Int
	TWAP            *big.Int
	DeviationBps    *big.Int
	Age             time.Duration
	InBounds        bool
	WithinDeviation bool
	Fresh           bool
}

// Healthy reports whether every check passed.
func (s OracleStatus) Healthy() bool {
	return s.InBounds && s.WithinDeviation && s.Fresh
}

// Problems lists failed checks in a stable order.
func (s OracleStatus) Problems() []string {
	var out []string
	if !s.InBounds {
		out = append(out, "price outside min/max bounds")
	}
	if !s.WithinDeviation {
		out = append(out, fmt.Sprintf("spot deviates %s bps from twap", s.DeviationBps))
	}
	if !s.Fresh {
		out = append(out, fmt.Sprintf("last update %s ago", s.Age.Truncate(time.Second)))
	}
	return out
}

// CheckOracle validates a spot price against the oracle parameters. A zero
// twap fails with ErrDivisionByZero because the deviation is undefined.
func CheckOracle(spot, twap *big.Int, updatedAt, now time.Time, params OracleParams) (OracleStatus, error) {
	if spot == nil || twap == nil {
		return OracleStatus{}, fmt.Errorf("%w: oracle spot or twap missing", model.ErrPriceUnavailable)
	}
	deviation, err := DeviationBps(spot, twap)
	if err != nil {
		return OracleStatus{}, err
	}

	status := OracleStatus{
		Spot:         new(big.Int).Set(spot),
		TWAP:         new(big.Int).Set(twap),
		DeviationBps: deviation,
		Age:          now.Sub(updatedAt),
		InBounds:     true,
		Fresh:        true,
	}
	if params.MinPrice != nil && spot.Cmp(params.MinPrice) < 0 {
		status.InBounds = false
	}
	if params.MaxPrice != nil && params.MaxPrice.Sign() > 0 && spot.Cmp(params.MaxPrice) > 0 {
		status.InBounds = false
	}
	status.WithinDeviation = params.DeviationBps == 0 || deviation.Cmp(big.NewInt(int64(params.DeviationBps))) <= 0
	if params.Heartbeat > 0 && status.Age > params.Heartbeat {
		status.Fresh = false
	}
	return status, nil
}
