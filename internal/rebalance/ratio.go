package rebalance

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Ratio is a token split in percent. X + Y == 100.
type Ratio struct {
	X decimal.Decimal `json:"x"`
	Y decimal.Decimal `json:"y"`
}

func (r Ratio) String() string {
	return r.X.StringFixed(2) + "% / " + r.Y.StringFixed(2) + "%"
}

// OptimalRatio weights each side by its USD value. X is truncated to two
// places and Y takes the rest so the pair always sums to 100.
func OptimalRatio(balanceX, balanceY amount.TokenAmount, priceX, priceY decimal.Decimal) (Ratio, error) {
	valueX := balanceX.ToUSD(priceX)
	valueY := balanceY.ToUSD(priceY)
	total := valueX.Add(valueY)
	if !total.IsPositive() {
		return Ratio{}, fmt.Errorf("%w: combined value %s", model.ErrDivisionByZero, total)
	}
	x := valueX.Mul(hundred).Div(total).Truncate(2)
	return Ratio{X: x, Y: hundred.Sub(x)}, nil
}
