// Package amount converts between human decimal strings and raw integer token
// amounts, and validates user-entered amounts against available balances.
//
// Fractional digits beyond a token's decimals are rejected rather than
// truncated; trailing zeros past that point are accepted because they do not
// change the value.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"vaultScope/internal/model"
)

// MaxDecimals is the largest decimal count the converter accepts.
const MaxDecimals = 24

var (
	ten        = big.NewInt(10)
	bigHundred = big.NewInt(100)
	powCache   [MaxDecimals + 1]*big.Int
)

func init() {
	for i := range powCache {
		powCache[i] = new(big.Int).Exp(ten, big.NewInt(int64(i)), nil)
	}
}

// Pow10 returns 10^decimals. The result must not be mutated.
func Pow10(decimals uint8) *big.Int {
	if int(decimals) < len(powCache) {
		return powCache[decimals]
	}
	return new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
}

// ToInteger converts a non-negative decimal string into a raw integer amount
// scaled by 10^decimals.
func ToInteger(value string, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals %d exceeds %d", model.ErrParse, decimals, MaxDecimals)
	}

	input := strings.TrimSpace(value)
	if input == "" {
		return nil, &model.AmountError{Err: model.ErrParse, Input: value}
	}
	if strings.HasPrefix(input, "-") {
		return nil, &model.AmountError{Err: model.ErrParse, Field: "negative", Input: value}
	}
	input = strings.TrimPrefix(input, "+")

	whole, frac, hasDot := strings.Cut(input, ".")
	if hasDot && strings.Contains(frac, ".") {
		return nil, &model.AmountError{Err: model.ErrParse, Input: value}
	}
	if whole == "" && frac == "" {
		return nil, &model.AmountError{Err: model.ErrParse, Input: value}
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, &model.AmountError{Err: model.ErrParse, Input: value}
	}

	if len(frac) > int(decimals) {
		extra := frac[decimals:]
		if strings.Trim(extra, "0") != "" {
			return nil, &model.AmountError{
				Err:   model.ErrParse,
				Field: fmt.Sprintf("more than %d fractional digits", decimals),
				Input: value,
			}
		}
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, &model.AmountError{Err: model.ErrParse, Input: value}
	}
	return out, nil
}

// ToDecimalString renders a raw amount with exactly `decimals` fractional digits.
func ToDecimalString(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	rat := new(big.Rat).SetFrac(abs, Pow10(decimals))
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// TrimDecimalString drops trailing fractional zeros and a dangling decimal point.
func TrimDecimalString(value string) string {
	if !strings.Contains(value, ".") {
		return value
	}
	value = strings.TrimRight(value, "0")
	return strings.TrimSuffix(value, ".")
}

// FormatDisplay renders a raw amount rounded down to at most `places` fractional digits.
func FormatDisplay(value *big.Int, decimals uint8, places int) string {
	text := ToDecimalString(value, decimals)
	whole, frac, ok := strings.Cut(text, ".")
	if !ok || places < 0 {
		return text
	}
	if places == 0 {
		return whole
	}
	if len(frac) > places {
		frac = frac[:places]
	}
	return whole + "." + frac
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
