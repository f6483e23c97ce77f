// Package ops turns one block-pinned vault read into the reports and calldata
// the CLI prints: snapshot valuation, queue status, withdrawal and deposit
// plans, and rebalance proposals. Every function here is a pure step over
// contracts.VaultState, so the cobra commands and the console menu share it.
package ops

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/accounting"
	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

// SourceOracle marks a quote derived from the vault oracle and the other
// token's quote.
const SourceOracle = "oracle"

const aumPreviewWindow = 24 * time.Hour

// ValuationInput carries everything a snapshot valuation needs besides the
// chain read.
type ValuationInput struct {
	PriceX            pricing.Quote
	PriceY            pricing.Quote
	StaleAfter        time.Duration
	TotalDepositedUSD decimal.Decimal
	Now               time.Time
}

// Valuation is the USD view of one snapshot.
type Valuation struct {
	Vault       string                `json:"vault"`
	User        string                `json:"user,omitempty"`
	BlockNumber uint64                `json:"blockNumber"`
	Metrics     accounting.Metrics    `json:"metrics"`
	PriceX      pricing.Quote         `json:"-"`
	PriceY      pricing.Quote         `json:"-"`
	OraclePrice string                `json:"oraclePrice,omitempty"`
	Oracle      *pricing.OracleStatus `json:"oracle,omitempty"`
	// AUMFeeDailyUSD previews the management fee accrued over one day at
	// the current TVL.
	AUMFeeDailyUSD decimal.Decimal `json:"aumFeeDailyUsd"`
}

// Valuate values state with the given quotes. A missing quote for one side is
// derived from the oracle when the other side is priced.
func Valuate(vault common.Address, state contracts.VaultState, in ValuationInput) (Valuation, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	priceX, priceY, err := ResolveQuotes(state, in.PriceX, in.PriceY)
	if err != nil {
		return Valuation{}, err
	}

	user := accounting.UserShares{
		ShareDecimals:     state.Snapshot.ShareDecimals,
		TotalDepositedUSD: in.TotalDepositedUSD,
	}
	out := Valuation{Vault: vault.Hex(), BlockNumber: state.BlockNumber, PriceX: priceX, PriceY: priceY}
	if state.User != nil {
		user.SharesX = state.User.Shares
		user.SharesY = state.User.Shares
		out.User = state.User.Address.Hex()
	}

	metrics, err := accounting.ComputeSnapshotMetrics(state.Snapshot, user, accounting.Prices{
		X:          priceX,
		Y:          priceY,
		StaleAfter: in.StaleAfter,
	}, now)
	if err != nil {
		return Valuation{}, err
	}
	out.Metrics = metrics
	out.AUMFeeDailyUSD = accounting.AUMFee(metrics.TotalTVLUSD, state.Strategy.AUMFeeBps, aumPreviewWindow)

	if state.Oracle != nil {
		price, err := pricing.OraclePrice(state.Oracle.Spot, state.TokenX.Decimals, state.TokenY.Decimals)
		if err != nil {
			return Valuation{}, err
		}
		out.OraclePrice = price
		status, err := state.Oracle.Check(now)
		if err != nil {
			return Valuation{}, err
		}
		out.Oracle = &status
	}
	return out, nil
}

// Record flattens the valuation for storage. User figures are only set when a
// user was read.
func (v Valuation) Record(chainID uint64, state contracts.VaultState, observedAt time.Time) model.SnapshotRecord {
	rec := model.SnapshotRecord{
		ChainID:        chainID,
		Vault:          v.Vault,
		User:           v.User,
		BlockNumber:    v.BlockNumber,
		ObservedAt:     observedAt.UTC(),
		BalanceX:       state.Snapshot.BalanceX.Text(),
		BalanceY:       state.Snapshot.BalanceY.Text(),
		TotalShares:    shareText(state),
		PricePerShareX: v.Metrics.PricePerShareX.String(),
		PricePerShareY: v.Metrics.PricePerShareY.String(),
		TVLUSD:         v.Metrics.TotalTVLUSD.String(),
		PriceXStale:    v.Metrics.PriceXStale,
		PriceYStale:    v.Metrics.PriceYStale,
	}
	if v.User != "" {
		rec.UserValueUSD = decimalPtr(v.Metrics.UserValueUSD)
		rec.EarningsUSD = decimalPtr(v.Metrics.EarningsUSD)
		rec.ROI = decimalPtr(v.Metrics.ROI)
	}
	return rec
}

// ResolveQuotes fills one missing side from the oracle spot price. Both quotes
// missing, or a missing side without an oracle, fails with
// ErrPriceUnavailable. A derived quote is as old as the older of its inputs.
func ResolveQuotes(state contracts.VaultState, x, y pricing.Quote) (pricing.Quote, pricing.Quote, error) {
	if x.Symbol == "" {
		x.Symbol = state.TokenX.Label()
	}
	if y.Symbol == "" {
		y.Symbol = state.TokenY.Label()
	}
	if x.Available() && y.Available() {
		return x, y, nil
	}
	if state.Oracle == nil || (!x.Available() && !y.Available()) {
		missing := x.Symbol
		if x.Available() {
			missing = y.Symbol
		}
		return x, y, fmt.Errorf("%w: %s", model.ErrPriceUnavailable, missing)
	}

	yPerX, err := pricing.OraclePriceDecimal(state.Oracle.Spot, state.TokenX.Decimals, state.TokenY.Decimals)
	if err != nil {
		return x, y, err
	}
	if !yPerX.IsPositive() {
		return x, y, fmt.Errorf("%w: oracle price is zero", model.ErrDivisionByZero)
	}

	if !x.Available() {
		x.USD = yPerX.Mul(y.USD)
		x.LastUpdated = older(state.Oracle.UpdatedAt, y.LastUpdated)
		x.Source = SourceOracle
	} else {
		y.USD = x.USD.DivRound(yPerX, 18)
		y.LastUpdated = older(state.Oracle.UpdatedAt, x.LastUpdated)
		y.Source = SourceOracle
	}
	return x, y, nil
}

func older(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}

func shareText(state contracts.VaultState) string {
	if state.Snapshot.TotalShares == nil {
		return "0"
	}
	return decimal.NewFromBigInt(state.Snapshot.TotalShares, -int32(state.Snapshot.ShareDecimals)).String()
}

func decimalPtr(d decimal.Decimal) *string {
	s := d.String()
	return &s
}
