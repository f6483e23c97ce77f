package amount

import (
	"math/big"
	"strings"

	"vaultScope/internal/model"
)

// percentDecimals is the precision accepted for percentage input such as "12.5%".
const percentDecimals = 18

// RawSuffix marks an input as a raw integer amount, e.g. "1500000wei".
const RawSuffix = "wei"

// ParseOptions tunes ParseAmountWithOptions.
type ParseOptions struct {
	// Field names the amount in error messages, e.g. "amount x" or "shares".
	Field string
	// AllowZero accepts a zero result instead of failing with ErrNonPositiveAmount.
	AllowZero bool
}

// ParseAmount interprets user input against an available balance. Accepted
// forms are a decimal ("1.5"), a percentage of available ("50%"), the literal
// "max", and a raw integer with the wei suffix ("1500000wei").
//
// Percentages round down so the result never exceeds available.
func ParseAmount(input string, decimals uint8, available *big.Int) (*big.Int, error) {
	return ParseAmountWithOptions(input, decimals, available, ParseOptions{})
}

// ParseAmountWithOptions is ParseAmount with a field name and zero policy.
func ParseAmountWithOptions(input string, decimals uint8, available *big.Int, opts ParseOptions) (*big.Int, error) {
	if available == nil {
		available = new(big.Int)
	}
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return nil, &model.AmountError{Err: model.ErrInvalidFormat, Field: opts.Field, Input: input}
	}

	if strings.HasPrefix(text, "-") {
		if _, err := parseForm(strings.TrimPrefix(text, "-"), decimals, available); err == nil {
			return nil, &model.AmountError{Err: model.ErrNonPositiveAmount, Field: opts.Field, Input: input}
		}
		return nil, &model.AmountError{Err: model.ErrInvalidFormat, Field: opts.Field, Input: input}
	}

	value, err := parseForm(text, decimals, available)
	if err != nil {
		return nil, &model.AmountError{Err: model.ErrInvalidFormat, Field: opts.Field, Input: input}
	}

	if value.Cmp(available) > 0 {
		return nil, model.NewAmountError(model.ErrExceedsAvailable, opts.Field, value, available)
	}
	if value.Sign() == 0 && !opts.AllowZero {
		return nil, &model.AmountError{Err: model.ErrNonPositiveAmount, Field: opts.Field, Input: input}
	}
	return value, nil
}

func parseForm(text string, decimals uint8, available *big.Int) (*big.Int, error) {
	switch {
	case text == "max":
		return new(big.Int).Set(available), nil
	case strings.HasSuffix(text, "%"):
		return parsePercent(strings.TrimSpace(strings.TrimSuffix(text, "%")), available)
	case strings.HasSuffix(text, RawSuffix):
		digits := strings.TrimSpace(strings.TrimSuffix(text, RawSuffix))
		if digits == "" || !isDigits(digits) {
			return nil, model.ErrInvalidFormat
		}
		out, ok := new(big.Int).SetString(digits, 10)
		if !ok {
			return nil, model.ErrInvalidFormat
		}
		return out, nil
	default:
		return ToInteger(text, decimals)
	}
}

// parsePercent returns floor(available * pct / 100).
func parsePercent(pct string, available *big.Int) (*big.Int, error) {
	scaled, err := ToInteger(pct, percentDecimals)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(available, scaled)
	den := new(big.Int).Mul(bigHundred, Pow10(percentDecimals))
	return out.Quo(out, den), nil
}

// Percent returns floor(value * pct / 100) for an integer percentage.
func Percent(value *big.Int, pct uint32) *big.Int {
	if value == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(value, big.NewInt(int64(pct)))
	return out.Quo(out, bigHundred)
}

// CheckAllowance fails when a spend needs more ERC-20 allowance than granted.
func CheckAllowance(field string, spend, allowance *big.Int) error {
	if spend == nil || spend.Sign() == 0 {
		return nil
	}
	if allowance == nil {
		allowance = new(big.Int)
	}
	if spend.Cmp(allowance) > 0 {
		return model.NewAmountError(model.ErrExceedsAvailable, field+" allowance", spend, allowance)
	}
	return nil
}
