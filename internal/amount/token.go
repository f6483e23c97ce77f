package amount

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"vaultScope/internal/model"
)

// TokenAmount is an immutable non-negative raw amount tagged with its token's
// decimals and symbol. The zero value is a zero amount with no decimals.
type TokenAmount struct {
	raw      *big.Int
	decimals uint8
	symbol   string
}

// NewTokenAmount copies raw into a new TokenAmount. A nil raw is zero.
func NewTokenAmount(raw *big.Int, decimals uint8, symbol string) (TokenAmount, error) {
	if decimals > MaxDecimals {
		return TokenAmount{}, fmt.Errorf("%w: decimals %d exceeds %d", model.ErrParse, decimals, MaxDecimals)
	}
	if raw == nil {
		return TokenAmount{raw: new(big.Int), decimals: decimals, symbol: symbol}, nil
	}
	if raw.Sign() < 0 {
		return TokenAmount{}, model.NewAmountError(model.ErrNonPositiveAmount, symbol, raw, nil)
	}
	return TokenAmount{raw: new(big.Int).Set(raw), decimals: decimals, symbol: symbol}, nil
}

// Zero returns a zero amount for the token.
func Zero(meta model.TokenMeta) TokenAmount {
	return TokenAmount{raw: new(big.Int), decimals: meta.Decimals, symbol: meta.Label()}
}

// FromMeta builds a TokenAmount using token metadata.
func FromMeta(raw *big.Int, meta model.TokenMeta) (TokenAmount, error) {
	return NewTokenAmount(raw, meta.Decimals, meta.Label())
}

// ParseTokenAmount parses a decimal string into a TokenAmount.
func ParseTokenAmount(value string, decimals uint8, symbol string) (TokenAmount, error) {
	raw, err := ToInteger(value, decimals)
	if err != nil {
		return TokenAmount{}, err
	}
	return TokenAmount{raw: raw, decimals: decimals, symbol: symbol}, nil
}

// Raw returns a copy of the raw integer amount.
func (a TokenAmount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a TokenAmount) Decimals() uint8 { return a.decimals }

func (a TokenAmount) Symbol() string { return a.symbol }

func (a TokenAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// Cmp compares raw amounts. Decimals are not checked.
func (a TokenAmount) Cmp(b TokenAmount) int {
	return a.Raw().Cmp(b.Raw())
}

// Text renders the amount with all of the token's fractional digits.
func (a TokenAmount) Text() string {
	return ToDecimalString(a.raw, a.decimals)
}

func (a TokenAmount) String() string {
	if a.symbol == "" {
		return TrimDecimalString(a.Text())
	}
	return TrimDecimalString(a.Text()) + " " + a.symbol
}

// Decimal returns the human value for display math.
func (a TokenAmount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.decimals))
}

// ToUSD values the amount at a USD unit price.
func (a TokenAmount) ToUSD(price decimal.Decimal) decimal.Decimal {
	return a.Decimal().Mul(price)
}

// WithRaw returns a new amount of the same token.
func (a TokenAmount) WithRaw(raw *big.Int) (TokenAmount, error) {
	return NewTokenAmount(raw, a.decimals, a.symbol)
}

// Add returns a+b. Both must use the same decimals.
func (a TokenAmount) Add(b TokenAmount) (TokenAmount, error) {
	if a.decimals != b.decimals {
		return TokenAmount{}, fmt.Errorf("%w: decimals mismatch %d != %d", model.ErrInconsistentState, a.decimals, b.decimals)
	}
	return a.WithRaw(new(big.Int).Add(a.Raw(), b.Raw()))
}

// Sub returns a-b, failing rather than going negative.
func (a TokenAmount) Sub(b TokenAmount) (TokenAmount, error) {
	if a.decimals != b.decimals {
		return TokenAmount{}, fmt.Errorf("%w: decimals mismatch %d != %d", model.ErrInconsistentState, a.decimals, b.decimals)
	}
	if a.Cmp(b) < 0 {
		return TokenAmount{}, model.NewAmountError(model.ErrExceedsAvailable, a.symbol, b.Raw(), a.Raw())
	}
	return a.WithRaw(new(big.Int).Sub(a.Raw(), b.Raw()))
}

// MulDiv returns floor(a * num / den).
func (a TokenAmount) MulDiv(num, den *big.Int) (TokenAmount, error) {
	if den == nil || den.Sign() == 0 {
		return TokenAmount{}, fmt.Errorf("%w: %s mul div", model.ErrDivisionByZero, a.symbol)
	}
	out := new(big.Int).Mul(a.Raw(), num)
	out.Quo(out, den)
	return a.WithRaw(out)
}

type tokenAmountJSON struct {
	Raw      string `json:"raw"`
	Value    string `json:"value"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
}

func (a TokenAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenAmountJSON{
		Raw:      a.Raw().String(),
		Value:    a.Text(),
		Decimals: a.decimals,
		Symbol:   a.symbol,
	})
}

func (a *TokenAmount) UnmarshalJSON(data []byte) error {
	var payload tokenAmountJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	raw, ok := new(big.Int).SetString(payload.Raw, 10)
	if !ok {
		return fmt.Errorf("%w: raw %q", model.ErrParse, payload.Raw)
	}
	parsed, err := NewTokenAmount(raw, payload.Decimals, payload.Symbol)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
