// Package accounting values a vault snapshot in USD: TVL, per-token
// price-per-share, user position value, earnings and ROI.
package accounting

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

// ratioPlaces is the rounding applied to divisions in display math.
const ratioPlaces = 18

// ppfsDecimals is the fixed-point scale of the vault's price-per-full-share reads.
const ppfsDecimals = 18

var (
	hundred    = decimal.NewFromInt(100)
	bpsDivisor = decimal.NewFromInt(10_000)
	yearSecs   = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))
)

// VaultSnapshot is one consistent read of vault state taken at BlockNumber.
// Fields from different snapshots must never be combined.
type VaultSnapshot struct {
	BlockNumber    uint64
	BalanceX       amount.TokenAmount
	BalanceY       amount.TokenAmount
	TotalShares    *big.Int
	ShareDecimals  uint8
	PricePerShareX decimal.Decimal
	PricePerShareY decimal.Decimal
}

// UserShares is a user's position in the vault's two share classes.
type UserShares struct {
	SharesX           *big.Int
	SharesY           *big.Int
	ShareDecimals     uint8
	// TotalDepositedUSD is the net basis: deposits minus redemptions. It may
	// be negative after profitable withdrawals.
	TotalDepositedUSD decimal.Decimal
}

// Prices carries the external USD quotes used to value a snapshot.
type Prices struct {
	X          pricing.Quote
	Y          pricing.Quote
	StaleAfter time.Duration
}

// Metrics is the USD view of a snapshot for one user.
type Metrics struct {
	BlockNumber    uint64          `json:"blockNumber"`
	TotalTVLUSD    decimal.Decimal `json:"totalTvlUsd"`
	TVLXUSD        decimal.Decimal `json:"tvlXUsd"`
	TVLYUSD        decimal.Decimal `json:"tvlYUsd"`
	UserValueUSD   decimal.Decimal `json:"userValueUsd"`
	PricePerShareX decimal.Decimal `json:"pricePerShareX"`
	PricePerShareY decimal.Decimal `json:"pricePerShareY"`
	EarningsUSD    decimal.Decimal `json:"earningsUsd"`
	ROI            decimal.Decimal `json:"roi"`
	PriceXUSD      decimal.Decimal `json:"priceXUsd"`
	PriceYUSD      decimal.Decimal `json:"priceYUsd"`
	PriceXStale    bool            `json:"priceXStale"`
	PriceYStale    bool            `json:"priceYStale"`
}

// ComputeSnapshotMetrics values the snapshot and the user's shares. A missing
// price fails with ErrPriceUnavailable; a stale one is used and flagged.
func ComputeSnapshotMetrics(snap VaultSnapshot, user UserShares, prices Prices, now time.Time) (Metrics, error) {
	if !prices.X.Available() {
		return Metrics{}, fmt.Errorf("%w: %s", model.ErrPriceUnavailable, quoteName(prices.X, snap.BalanceX))
	}
	if !prices.Y.Available() {
		return Metrics{}, fmt.Errorf("%w: %s", model.ErrPriceUnavailable, quoteName(prices.Y, snap.BalanceY))
	}

	tvlX := snap.BalanceX.ToUSD(prices.X.USD)
	tvlY := snap.BalanceY.ToUSD(prices.Y.USD)

	sharesX := shareDecimal(user.SharesX, user.ShareDecimals)
	sharesY := shareDecimal(user.SharesY, user.ShareDecimals)
	userValue := sharesX.Mul(snap.PricePerShareX).Mul(prices.X.USD).
		Add(sharesY.Mul(snap.PricePerShareY).Mul(prices.Y.USD))

	earnings := userValue.Sub(user.TotalDepositedUSD)
	roi := decimal.Zero
	if user.TotalDepositedUSD.IsPositive() {
		roi = earnings.DivRound(user.TotalDepositedUSD, ratioPlaces).Mul(hundred)
	}

	return Metrics{
		BlockNumber:    snap.BlockNumber,
		TotalTVLUSD:    tvlX.Add(tvlY),
		TVLXUSD:        tvlX,
		TVLYUSD:        tvlY,
		UserValueUSD:   userValue,
		PricePerShareX: snap.PricePerShareX,
		PricePerShareY: snap.PricePerShareY,
		EarningsUSD:    earnings,
		ROI:            roi,
		PriceXUSD:      prices.X.USD,
		PriceYUSD:      prices.Y.USD,
		PriceXStale:    prices.X.IsStale(now, prices.StaleAfter),
		PriceYStale:    prices.Y.IsStale(now, prices.StaleAfter),
	}, nil
}

// TVL returns balanceX*priceX + balanceY*priceY.
func TVL(balanceX, balanceY amount.TokenAmount, priceX, priceY decimal.Decimal) decimal.Decimal {
	return balanceX.ToUSD(priceX).Add(balanceY.ToUSD(priceY))
}

// PricePerShareFromRaw converts a price-per-full-share read (token raw per
// share raw, scaled by 1e18) into whole tokens per whole share.
func PricePerShareFromRaw(ppfs *big.Int, tokenDecimals, shareDecimals uint8) decimal.Decimal {
	if ppfs == nil {
		return decimal.Zero
	}
	shift := int32(shareDecimals) - int32(tokenDecimals) - ppfsDecimals
	return decimal.NewFromBigInt(ppfs, shift)
}

// DerivePricePerShare divides a vault balance by the share supply when the
// vault does not expose a price-per-share read.
func DerivePricePerShare(balance amount.TokenAmount, totalShares *big.Int, shareDecimals uint8) (decimal.Decimal, error) {
	if totalShares == nil || totalShares.Sign() == 0 {
		return decimal.Zero, fmt.Errorf("%w: total shares", model.ErrDivisionByZero)
	}
	return balance.Decimal().DivRound(shareDecimal(totalShares, shareDecimals), ratioPlaces), nil
}

// AUMFee is the management fee accrued on tvl over elapsed at an annual rate in bps.
func AUMFee(tvl decimal.Decimal, annualBps uint32, elapsed time.Duration) decimal.Decimal {
	if annualBps == 0 || elapsed <= 0 {
		return decimal.Zero
	}
	rate := decimal.NewFromInt(int64(annualBps)).Div(bpsDivisor)
	span := decimal.NewFromInt(int64(elapsed/time.Second)).DivRound(yearSecs, ratioPlaces)
	return tvl.Mul(rate).Mul(span)
}

func shareDecimal(shares *big.Int, decimals uint8) decimal.Decimal {
	if shares == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(shares, -int32(decimals))
}

func quoteName(q pricing.Quote, balance amount.TokenAmount) string {
	if q.Symbol != "" {
		return q.Symbol
	}
	if balance.Symbol() != "" {
		return balance.Symbol()
	}
	return "token"
}
