package amount

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

func TestParseAmount(t *testing.T) {
	available := big.NewInt(5_000_000)

	t.Run("max is available", func(t *testing.T) {
		got, err := ParseAmount("max", 6, available)
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), got.Int64())
	})

	t.Run("max is case insensitive", func(t *testing.T) {
		got, err := ParseAmount(" MAX ", 6, available)
		require.NoError(t, err)
		assert.Equal(t, int64(5_000_000), got.Int64())
	})

	t.Run("hundred percent is available", func(t *testing.T) {
		got, err := ParseAmount("100%", 6, available)
		require.NoError(t, err)
		assert.Zero(t, available.Cmp(got))
	})

	t.Run("percent floors", func(t *testing.T) {
		odd := big.NewInt(7)
		got, err := ParseAmount("50%", 0, odd)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Int64())

		got, err = ParseAmount("33.3%", 0, big.NewInt(1000))
		require.NoError(t, err)
		assert.Equal(t, int64(333), got.Int64())
	})

	t.Run("over hundred percent exceeds available", func(t *testing.T) {
		_, err := ParseAmount("150%", 6, available)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrExceedsAvailable)

		var amountErr *model.AmountError
		require.True(t, errors.As(err, &amountErr))
		assert.Equal(t, int64(7_500_000), amountErr.Amount.Int64())
		assert.Equal(t, int64(5_000_000), amountErr.Bound.Int64())
	})

	t.Run("decimal input", func(t *testing.T) {
		got, err := ParseAmount("1.5", 6, available)
		require.NoError(t, err)
		assert.Equal(t, int64(1_500_000), got.Int64())
	})

	t.Run("raw input with unit marker", func(t *testing.T) {
		got, err := ParseAmount("1500wei", 6, available)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), got.Int64())
	})

	t.Run("decimal above available", func(t *testing.T) {
		_, err := ParseAmount("5.000001", 6, available)
		assert.ErrorIs(t, err, model.ErrExceedsAvailable)
	})

	t.Run("zero is non positive", func(t *testing.T) {
		_, err := ParseAmount("0", 6, available)
		assert.ErrorIs(t, err, model.ErrNonPositiveAmount)

		_, err = ParseAmount("0%", 6, available)
		assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
	})

	t.Run("zero allowed when requested", func(t *testing.T) {
		got, err := ParseAmountWithOptions("0", 6, available, ParseOptions{AllowZero: true})
		require.NoError(t, err)
		assert.Zero(t, got.Sign())
	})

	t.Run("negative is non positive", func(t *testing.T) {
		_, err := ParseAmount("-1", 6, available)
		assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
	})

	for _, input := range []string{"", "abc", "%", "12x%", "wei", "1.5wei", "--1", "1.0000001"} {
		input := input
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := ParseAmount(input, 6, available)
			assert.ErrorIs(t, err, model.ErrInvalidFormat)
		})
	}

	t.Run("field name in message", func(t *testing.T) {
		_, err := ParseAmountWithOptions("9", 6, available, ParseOptions{Field: "amount x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount x")
	})
}

func TestParsePercentNeverOvershoots(t *testing.T) {
	for _, avail := range []int64{0, 1, 2, 3, 7, 99, 1_000_001, 5_000_000} {
		available := big.NewInt(avail)
		half, err := ParseAmountWithOptions("50%", 6, available, ParseOptions{AllowZero: true})
		require.NoError(t, err)
		assert.LessOrEqual(t, half.Int64(), avail/2)

		all, err := ParseAmountWithOptions("100%", 6, available, ParseOptions{AllowZero: true})
		require.NoError(t, err)
		assert.Equal(t, avail, all.Int64())
	}
}

func TestCheckAllowance(t *testing.T) {
	require.NoError(t, CheckAllowance("x", big.NewInt(10), big.NewInt(10)))
	require.NoError(t, CheckAllowance("x", big.NewInt(0), nil))
	err := CheckAllowance("x", big.NewInt(11), big.NewInt(10))
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
}

func TestTokenAmount(t *testing.T) {
	a, err := ParseTokenAmount("2.5", 6, "USDC")
	require.NoError(t, err)
	b, err := ParseTokenAmount("1", 6, "USDC")
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "3.5 USDC", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "1.500000", diff.Text())

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)

	_, err = NewTokenAmount(big.NewInt(-1), 6, "USDC")
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)

	assert.True(t, a.ToUSD(decimal.RequireFromString("2")).Equal(decimal.RequireFromString("5")))

	raw := a.Raw()
	raw.SetInt64(0)
	assert.False(t, a.IsZero(), "Raw must return a copy")

	var zero TokenAmount
	assert.True(t, zero.IsZero())
	assert.Equal(t, "0", zero.Text())
}

func TestTokenAmountJSON(t *testing.T) {
	a, err := ParseTokenAmount("0.75", 18, "WAVAX")
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw":"750000000000000000","value":"0.750000000000000000","decimals":18,"symbol":"WAVAX"}`, string(data))

	var decoded TokenAmount
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Zero(t, a.Cmp(decoded))
	assert.Equal(t, "WAVAX", decoded.Symbol())
}
