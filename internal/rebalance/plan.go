package rebalance

import (
	"fmt"
	"math/big"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

// DefaultReservePercent is the share of idle balances kept out of a deposit.
const DefaultReservePercent = 10

const bpsDenominator = 10_000

// PriceContext locates the current price relative to the chosen range, all as
// Q64.96 square-root prices.
type PriceContext struct {
	SqrtPrice *big.Int
	SqrtLower *big.Int
	SqrtUpper *big.Int
}

// TickPriceContext builds a PriceContext for a tick range.
func TickPriceContext(sqrtPriceX96 *big.Int, r Range) (PriceContext, error) {
	if err := r.Validate(); err != nil {
		return PriceContext{}, err
	}
	lower, err := pricing.SqrtRatioAtTick(r.Lower)
	if err != nil {
		return PriceContext{}, fmt.Errorf("%w: lower tick: %w", model.ErrRangeInvalid, err)
	}
	upper, err := pricing.SqrtRatioAtTick(r.Upper)
	if err != nil {
		return PriceContext{}, fmt.Errorf("%w: upper tick: %w", model.ErrRangeInvalid, err)
	}
	return PriceContext{SqrtPrice: new(big.Int).Set(sqrtPriceX96), SqrtLower: lower, SqrtUpper: upper}, nil
}

// BinPriceContext builds a PriceContext for a bin range around the active bin.
func BinPriceContext(active uint32, binStep uint16, r Range) (PriceContext, error) {
	if err := r.Validate(); err != nil {
		return PriceContext{}, err
	}
	if r.Lower < 0 {
		return PriceContext{}, fmt.Errorf("%w: negative bin %d", model.ErrRangeInvalid, r.Lower)
	}
	current, err := pricing.SqrtPriceAtBin(active, binStep)
	if err != nil {
		return PriceContext{}, err
	}
	lower, err := pricing.SqrtPriceAtBin(uint32(r.Lower), binStep)
	if err != nil {
		return PriceContext{}, err
	}
	upper, err := pricing.SqrtPriceAtBin(uint32(r.Upper), binStep)
	if err != nil {
		return PriceContext{}, err
	}
	return PriceContext{SqrtPrice: current, SqrtLower: lower, SqrtUpper: upper}, nil
}

// DepositPlan is a proposed deposit of idle strategy balances.
type DepositPlan struct {
	AmountX   amount.TokenAmount `json:"amountX"`
	AmountY   amount.TokenAmount `json:"amountY"`
	ReserveX  amount.TokenAmount `json:"reserveX"`
	ReserveY  amount.TokenAmount `json:"reserveY"`
	MinShares *big.Int           `json:"minShares"`
}

// BuildDepositPlan keeps reservePercent of each idle balance and splits the
// rest according to where the range sits against the current price: a range
// above price takes only X, a range below price takes only Y, and a straddling
// range takes the largest amounts that fit one liquidity value.
func BuildDepositPlan(idleX, idleY amount.TokenAmount, reservePercent uint32, ctx PriceContext) (DepositPlan, error) {
	if reservePercent > 100 {
		return DepositPlan{}, model.NewAmountError(model.ErrExceedsAvailable, "reserve percent", big.NewInt(int64(reservePercent)), big.NewInt(100))
	}
	if ctx.SqrtPrice == nil || ctx.SqrtLower == nil || ctx.SqrtUpper == nil || ctx.SqrtLower.Cmp(ctx.SqrtUpper) >= 0 {
		return DepositPlan{}, fmt.Errorf("%w: price context", model.ErrRangeInvalid)
	}

	usableX := amount.Percent(idleX.Raw(), 100-reservePercent)
	usableY := amount.Percent(idleY.Raw(), 100-reservePercent)

	var x, y *big.Int
	switch {
	case ctx.SqrtPrice.Cmp(ctx.SqrtLower) <= 0:
		x, y = usableX, new(big.Int)
	case ctx.SqrtPrice.Cmp(ctx.SqrtUpper) >= 0:
		x, y = new(big.Int), usableY
	default:
		liquidity := liquidityForAmounts(ctx, usableX, usableY)
		x = minInt(amountXForLiquidity(ctx.SqrtPrice, ctx.SqrtUpper, liquidity), usableX)
		y = minInt(amountYForLiquidity(ctx.SqrtLower, ctx.SqrtPrice, liquidity), usableY)
	}

	plan := DepositPlan{MinShares: new(big.Int)}
	var err error
	if plan.AmountX, err = idleX.WithRaw(x); err != nil {
		return DepositPlan{}, err
	}
	if plan.AmountY, err = idleY.WithRaw(y); err != nil {
		return DepositPlan{}, err
	}
	if plan.ReserveX, err = idleX.Sub(plan.AmountX); err != nil {
		return DepositPlan{}, err
	}
	if plan.ReserveY, err = idleY.Sub(plan.AmountY); err != nil {
		return DepositPlan{}, err
	}
	return plan, nil
}

// WithMinShares returns a copy of the plan with MinShares derived from the
// expected shares and a slippage tolerance in bps.
func (p DepositPlan) WithMinShares(expected *big.Int, slippageBps uint32) (DepositPlan, error) {
	floor, err := MinShares(expected, slippageBps)
	if err != nil {
		return DepositPlan{}, err
	}
	p.MinShares = floor
	return p, nil
}

// MinShares floors expected * (10000 - slippageBps) / 10000.
func MinShares(expected *big.Int, slippageBps uint32) (*big.Int, error) {
	if slippageBps > bpsDenominator {
		return nil, model.NewAmountError(model.ErrExceedsAvailable, "slippage bps", big.NewInt(int64(slippageBps)), big.NewInt(bpsDenominator))
	}
	if expected == nil || expected.Sign() < 0 {
		return nil, model.NewAmountError(model.ErrNonPositiveAmount, "expected shares", expected, nil)
	}
	out := new(big.Int).Mul(expected, big.NewInt(int64(bpsDenominator-slippageBps)))
	return out.Quo(out, big.NewInt(bpsDenominator)), nil
}

// liquidityForAmounts is the straddling case of the concentrated-liquidity
// formula: min(L from X above price, L from Y below price).
func liquidityForAmounts(ctx PriceContext, amountX, amountY *big.Int) *big.Int {
	// Lx = x * sqrtP * sqrtU / Q96 / (sqrtU - sqrtP)
	lx := new(big.Int).Mul(ctx.SqrtPrice, ctx.SqrtUpper)
	lx.Quo(lx, pricing.Q96)
	lx.Mul(lx, amountX)
	lx.Quo(lx, new(big.Int).Sub(ctx.SqrtUpper, ctx.SqrtPrice))

	// Ly = y * Q96 / (sqrtP - sqrtL)
	ly := new(big.Int).Mul(amountY, pricing.Q96)
	ly.Quo(ly, new(big.Int).Sub(ctx.SqrtPrice, ctx.SqrtLower))

	return minInt(lx, ly)
}

// amountXForLiquidity = L * Q96 * (sqrtB - sqrtA) / sqrtB / sqrtA
func amountXForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	out := new(big.Int).Lsh(liquidity, 96)
	out.Mul(out, new(big.Int).Sub(sqrtB, sqrtA))
	out.Quo(out, sqrtB)
	return out.Quo(out, sqrtA)
}

// amountYForLiquidity = L * (sqrtB - sqrtA) / Q96
func amountYForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	out := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return out.Quo(out, pricing.Q96)
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
