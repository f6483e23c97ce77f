// Package pricing decodes the two on-chain price encodings used by the vault:
// the 128.128 fixed-point oracle price and the AMM sqrtPriceX96 / tick / bin
// representation. It also derives cross prices and holds the caller-owned
// quote and cache types.
package pricing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
)

// PriceScale is the number of fractional digits kept when a rational price is
// converted to a decimal for display.
const PriceScale = 36

// binIDOffset is the id of the bin whose raw price is exactly 1.
const binIDOffset = 1 << 23

var (
	Q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)
	Q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	bpsScale = big.NewInt(10_000)
)

// OracleAmountYForOneX converts a 128.128 oracle price into the raw amount of
// token Y paid for one whole token X. The price is scaled before the shift so
// fractional Y is not truncated early.
func OracleAmountYForOneX(priceX128 *big.Int, decimalsX uint8) (*big.Int, error) {
	if priceX128 == nil || priceX128.Sign() < 0 {
		return nil, fmt.Errorf("%w: oracle price %v", model.ErrPriceUnavailable, priceX128)
	}
	out := new(big.Int).Mul(priceX128, amount.Pow10(decimalsX))
	return out.Rsh(out, 128), nil
}

// OraclePrice formats OracleAmountYForOneX with token Y's decimals.
func OraclePrice(priceX128 *big.Int, decimalsX, decimalsY uint8) (string, error) {
	raw, err := OracleAmountYForOneX(priceX128, decimalsX)
	if err != nil {
		return "", err
	}
	return amount.ToDecimalString(raw, decimalsY), nil
}

// OraclePriceDecimal is OraclePrice as a decimal for display math.
func OraclePriceDecimal(priceX128 *big.Int, decimalsX, decimalsY uint8) (decimal.Decimal, error) {
	raw, err := OracleAmountYForOneX(priceX128, decimalsX)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(raw, -int32(decimalsY)), nil
}

// SqrtPriceX96ToPrice returns the price of one whole X in whole Y:
// sqrtPriceX96^2 / 2^192 * 10^(decimalsX - decimalsY).
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int, decimalsX, decimalsY uint8) (decimal.Decimal, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: sqrt price %v", model.ErrPriceUnavailable, sqrtPriceX96)
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Set(Q192)
	if decimalsX >= decimalsY {
		num.Mul(num, amount.Pow10(decimalsX-decimalsY))
	} else {
		den.Mul(den, amount.Pow10(decimalsY-decimalsX))
	}
	return RatioToDecimal(num, den)
}

// TickToPrice returns 1.0001^tick adjusted by 10^(decimalsX - decimalsY).
// It goes through the exact Q64.96 ratio rather than a float power.
func TickToPrice(tick int32, decimalsX, decimalsY uint8) (decimal.Decimal, error) {
	sqrtP, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return SqrtPriceX96ToPrice(sqrtP, decimalsX, decimalsY)
}

// BinRawPrice returns (1 + binStep/10000)^(id - 2^23) before decimal adjustment.
func BinRawPrice(id uint32, binStep uint16) (*big.Float, error) {
	if binStep == 0 {
		return nil, fmt.Errorf("%w: bin step 0", model.ErrRangeInvalid)
	}
	if id > 1<<24-1 {
		return nil, fmt.Errorf("%w: bin id %d", model.ErrRangeInvalid, id)
	}
	base := new(big.Float).SetPrec(256).SetInt64(10_000 + int64(binStep))
	base.Quo(base, new(big.Float).SetPrec(256).SetInt64(10_000))

	exp := int64(id) - binIDOffset
	neg := exp < 0
	if neg {
		exp = -exp
	}
	out := new(big.Float).SetPrec(256).SetInt64(1)
	for exp > 0 {
		if exp&1 == 1 {
			out.Mul(out, base)
		}
		base.Mul(base, base)
		exp >>= 1
	}
	if neg {
		out.Quo(new(big.Float).SetPrec(256).SetInt64(1), out)
	}
	return out, nil
}

// BinToPrice returns the price of one whole X in whole Y for a liquidity-book bin.
func BinToPrice(id uint32, binStep uint16, decimalsX, decimalsY uint8) (decimal.Decimal, error) {
	raw, err := BinRawPrice(id, binStep)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(raw.Text('e', 60))
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert bin price: %w", err)
	}
	return price.Shift(int32(decimalsX) - int32(decimalsY)), nil
}

// SqrtPriceAtBin returns sqrt(raw bin price) as Q64.96 so bin markets can use
// the same liquidity math as tick markets.
func SqrtPriceAtBin(id uint32, binStep uint16) (*big.Int, error) {
	raw, err := BinRawPrice(id, binStep)
	if err != nil {
		return nil, err
	}
	root := new(big.Float).SetPrec(256).Sqrt(raw)
	root.Mul(root, new(big.Float).SetPrec(256).SetInt(Q96))
	out, _ := root.Int(nil)
	return out, nil
}

// CrossPrice derives the price of X in raw Y units from two prices quoted in
// a shared reference unit: priceX * 10^decimalsY / priceY. A zero priceY means
// the price is unavailable.
func CrossPrice(priceXNative, priceYNative *big.Int, decimalsY uint8) (*big.Int, error) {
	if priceYNative == nil || priceYNative.Sign() == 0 {
		return nil, fmt.Errorf("%w: %w: cross price denominator", model.ErrPriceUnavailable, model.ErrDivisionByZero)
	}
	if priceXNative == nil {
		return nil, fmt.Errorf("%w: cross price numerator", model.ErrPriceUnavailable)
	}
	out := new(big.Int).Mul(priceXNative, amount.Pow10(decimalsY))
	return out.Quo(out, priceYNative), nil
}

// RatioToDecimal converts num/den into a decimal rounded to PriceScale digits.
func RatioToDecimal(num, den *big.Int) (decimal.Decimal, error) {
	if den == nil || den.Sign() == 0 {
		return decimal.Zero, model.ErrDivisionByZero
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), PriceScale), nil
}

// DeviationBps returns |a - b| * 10000 / b, floored.
func DeviationBps(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, fmt.Errorf("%w: deviation reference", model.ErrDivisionByZero)
	}
	diff := new(big.Int).Sub(a, b)
	diff.Abs(diff)
	diff.Mul(diff, bpsScale)
	return diff.Quo(diff, b), nil
}
