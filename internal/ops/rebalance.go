package ops

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/rebalance"
)

// Default slippage for a proposal's desired active point, per market kind.
const (
	DefaultBinSlippage  = 5
	DefaultTickSlippage = 50
)

// RebalanceRequest tunes a rebalance proposal. Zero values take defaults.
type RebalanceRequest struct {
	// Width is the percent distance to each edge for tick markets and the
	// total bin count for bin markets.
	Width          decimal.Decimal
	ReservePercent *uint32
	Slippage       uint32
	// ActiveSplit uses the liquidity-book layout instead of a uniform one.
	ActiveSplit bool
	// PriceX and PriceY are optional USD prices for the value ratio.
	PriceX decimal.Decimal
	PriceY decimal.Decimal
}

// PriceBounds is the human price at each edge of a range, Y per X.
type PriceBounds struct {
	Lower  decimal.Decimal `json:"lower"`
	Active decimal.Decimal `json:"active"`
	Upper  decimal.Decimal `json:"upper"`
}

// RebalanceReport is everything an operator reviews before submitting.
type RebalanceReport struct {
	BlockNumber  uint64                  `json:"blockNumber"`
	Market       model.MarketMeta        `json:"market"`
	CurrentRange *rebalance.Range        `json:"currentRange,omitempty"`
	Range        rebalance.Range         `json:"range"`
	Prices       PriceBounds             `json:"prices"`
	Ratio        *rebalance.Ratio        `json:"ratio,omitempty"`
	// RatioError says why prices were given but no ratio could be formed.
	RatioError   string                  `json:"ratioError,omitempty"`
	Plan         rebalance.DepositPlan   `json:"plan"`
	Proposal     rebalance.RangeProposal `json:"proposal"`
	Call         contracts.Call          `json:"call"`
}

// PlanRebalance proposes a range around the live active point, a deposit of
// the strategy's idle balances into it and the strategy.rebalance calldata.
func PlanRebalance(state contracts.VaultState, req RebalanceRequest) (RebalanceReport, error) {
	market := state.Market.Meta
	params := rebalance.RangeParams{
		Kind:    market.Kind,
		Active:  market.ActivePoint,
		Spacing: market.Spacing,
	}
	slippage := req.Slippage
	switch market.Kind {
	case model.MarketTick:
		params.WidthPercent = req.Width
		if !params.WidthPercent.IsPositive() {
			params.WidthPercent = decimal.NewFromInt(rebalance.DefaultWidthPercent)
		}
		if slippage == 0 {
			slippage = DefaultTickSlippage
		}
	case model.MarketBin:
		params.BinCount = uint32(req.Width.IntPart())
		if params.BinCount == 0 {
			params.BinCount = rebalance.DefaultBinCount
		}
		if slippage == 0 {
			slippage = DefaultBinSlippage
		}
	default:
		return RebalanceReport{}, fmt.Errorf("%w: unknown market kind %q", model.ErrRangeInvalid, market.Kind)
	}

	r, err := rebalance.DefaultRange(params)
	if err != nil {
		return RebalanceReport{}, err
	}
	report := RebalanceReport{
		BlockNumber:  state.BlockNumber,
		Market:       market,
		CurrentRange: state.Strategy.Range,
		Range:        r,
	}
	if report.Prices, err = priceBounds(state, r); err != nil {
		return RebalanceReport{}, err
	}

	if req.PriceX.IsPositive() && req.PriceY.IsPositive() {
		ratio, err := rebalance.OptimalRatio(state.Strategy.IdleX, state.Strategy.IdleY, req.PriceX, req.PriceY)
		if err != nil {
			report.RatioError = err.Error()
		} else {
			report.Ratio = &ratio
		}
	}

	reserve := uint32(rebalance.DefaultReservePercent)
	if req.ReservePercent != nil {
		reserve = *req.ReservePercent
	}
	priceCtx, err := state.Market.PriceContext(r)
	if err != nil {
		return RebalanceReport{}, err
	}
	if report.Plan, err = rebalance.BuildDepositPlan(state.Strategy.IdleX, state.Strategy.IdleY, reserve, priceCtx); err != nil {
		return RebalanceReport{}, err
	}

	var weights []rebalance.Weight
	if req.ActiveSplit {
		weights, err = rebalance.SplitWeights(r, market.ActivePoint)
	} else {
		weights, err = rebalance.UniformWeights(r)
	}
	if err != nil {
		return RebalanceReport{}, err
	}
	if report.Proposal, err = rebalance.NewRangeProposal(r, market.ActivePoint, slippage, weights); err != nil {
		return RebalanceReport{}, err
	}
	report.Call, err = contracts.PackRebalance(state.Strategy.Address, report.Proposal, report.Plan.AmountX.Raw(), report.Plan.AmountY.Raw())
	if err != nil {
		return RebalanceReport{}, err
	}
	return report, nil
}

func priceBounds(state contracts.VaultState, r rebalance.Range) (PriceBounds, error) {
	dx, dy := state.TokenX.Decimals, state.TokenY.Decimals
	at := func(point int32) (decimal.Decimal, error) {
		if state.Market.Meta.Kind == model.MarketBin {
			if point < 0 {
				return decimal.Zero, fmt.Errorf("%w: negative bin %d", model.ErrRangeInvalid, point)
			}
			return pricing.BinToPrice(uint32(point), state.Market.BinStep, dx, dy)
		}
		return pricing.TickToPrice(point, dx, dy)
	}
	var (
		out PriceBounds
		err error
	)
	if out.Lower, err = at(r.Lower); err != nil {
		return PriceBounds{}, err
	}
	if out.Active, err = at(state.Market.Meta.ActivePoint); err != nil {
		return PriceBounds{}, err
	}
	if out.Upper, err = at(r.Upper); err != nil {
		return PriceBounds{}, err
	}
	return out, nil
}
