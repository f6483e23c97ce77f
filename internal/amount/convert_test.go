package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/model"
)

func fromString(s string) *big.Int {
	n, _ := new(big.Int).SetString(s, 10)
	return n
}

func TestToInteger(t *testing.T) {
	t.Run("one and a half with 18 decimals", func(t *testing.T) {
		got, err := ToInteger("1.5", 18)
		require.NoError(t, err)
		assert.Zero(t, fromString("1500000000000000000").Cmp(got))
	})

	t.Run("leading dot and plus sign", func(t *testing.T) {
		got, err := ToInteger("+.25", 6)
		require.NoError(t, err)
		assert.Equal(t, int64(250000), got.Int64())
	})

	t.Run("trailing dot", func(t *testing.T) {
		got, err := ToInteger("7.", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(700), got.Int64())
	})

	t.Run("zero decimals", func(t *testing.T) {
		got, err := ToInteger("42", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.Int64())
	})

	t.Run("trailing zeros past decimals are exact", func(t *testing.T) {
		got, err := ToInteger("1.250000", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(125), got.Int64())
	})

	t.Run("24 decimals keep full precision", func(t *testing.T) {
		got, err := ToInteger("123456789.000000000000000000000001", 24)
		require.NoError(t, err)
		assert.Zero(t, fromString("123456789000000000000000000000001").Cmp(got))
	})

	for _, input := range []string{"", " ", ".", "abc", "1.2.3", "1e18", "-1", "1,5", "0x10"} {
		input := input
		t.Run("rejects "+input, func(t *testing.T) {
			_, err := ToInteger(input, 18)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrParse)
		})
	}

	t.Run("rejects excess fractional digits", func(t *testing.T) {
		_, err := ToInteger("1.0000001", 6)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrParse)
	})

	t.Run("rejects decimals above 24", func(t *testing.T) {
		_, err := ToInteger("1", 25)
		assert.ErrorIs(t, err, model.ErrParse)
	})
}

func TestToDecimalString(t *testing.T) {
	assert.Equal(t, "1.500000000000000000", ToDecimalString(fromString("1500000000000000000"), 18))
	assert.Equal(t, "0.000001", ToDecimalString(big.NewInt(1), 6))
	assert.Equal(t, "42", ToDecimalString(big.NewInt(42), 0))
	assert.Equal(t, "0", ToDecimalString(nil, 6))
	assert.Equal(t, "-0.50", ToDecimalString(big.NewInt(-50), 2))
}

func TestDecimalRoundTrip(t *testing.T) {
	values := []string{"0", "1", "999999", "1000000", "123456789012345678901234567890", "5"}
	for _, decimals := range []uint8{0, 1, 6, 8, 18, 24} {
		for _, v := range values {
			raw := fromString(v)
			back, err := ToInteger(ToDecimalString(raw, decimals), decimals)
			require.NoError(t, err)
			assert.Zero(t, raw.Cmp(back), "decimals %d value %s", decimals, v)
		}
	}

	for _, s := range []string{"1.5", "0.000001", "250", "3.14159"} {
		raw, err := ToInteger(s, 18)
		require.NoError(t, err)
		assert.Equal(t, s, TrimDecimalString(ToDecimalString(raw, 18)))
	}
}

func TestFormatDisplay(t *testing.T) {
	raw := fromString("1234567890000000000")
	assert.Equal(t, "1.2345", FormatDisplay(raw, 18, 4))
	assert.Equal(t, "1", FormatDisplay(raw, 18, 0))
	assert.Equal(t, "12", FormatDisplay(big.NewInt(12), 0, 4))
}
