package rebalance

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
)

func TestDefaultRange(t *testing.T) {
	t.Run("tick range snapped outward to spacing", func(t *testing.T) {
		r, err := DefaultRange(RangeParams{Kind: model.MarketTick, Active: 0, Spacing: 60, WidthPercent: decimal.NewFromInt(10)})
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: -960, Upper: 960, Spacing: 60}, r)
		assert.Equal(t, 33, r.Steps())
	})

	t.Run("tick range off zero", func(t *testing.T) {
		r, err := DefaultRange(RangeParams{Kind: model.MarketTick, Active: 1005, Spacing: 10, WidthPercent: decimal.NewFromInt(1)})
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: 900, Upper: 1110, Spacing: 10}, r)
		assert.Zero(t, r.Lower%10)
		assert.Zero(t, r.Upper%10)
		assert.True(t, r.Contains(1005))
	})

	t.Run("tick range clamps at bounds", func(t *testing.T) {
		r, err := DefaultRange(RangeParams{Kind: model.MarketTick, Active: pricing.MaxTick - 5, Spacing: 60, WidthPercent: decimal.NewFromInt(50)})
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Upper, pricing.MaxTick)
		assert.Zero(t, r.Upper%60)
	})

	t.Run("bin range unsnapped", func(t *testing.T) {
		r, err := DefaultRange(RangeParams{Kind: model.MarketBin, Active: 8388608, BinCount: 11})
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: 8388603, Upper: 8388613}, r)
		assert.Equal(t, 11, r.Steps())

		r, err = DefaultRange(RangeParams{Kind: model.MarketBin, Active: 8388608, BinCount: 10})
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: 8388604, Upper: 8388612}, r)
		assert.Equal(t, 9, r.Steps())

		r, err = DefaultRange(RangeParams{Kind: model.MarketBin, Active: 8388608, BinCount: 1})
		require.NoError(t, err)
		assert.Equal(t, Range{Lower: 8388607, Upper: 8388609}, r)
	})

	t.Run("invalid params", func(t *testing.T) {
		_, err := DefaultRange(RangeParams{Kind: model.MarketTick, Spacing: 0, WidthPercent: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
		_, err = DefaultRange(RangeParams{Kind: model.MarketTick, Spacing: 10})
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
		_, err = DefaultRange(RangeParams{Kind: model.MarketBin, Active: 2, BinCount: 10})
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
		_, err = DefaultRange(RangeParams{Kind: "pool"})
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
	})
}

func TestUniformDistribution(t *testing.T) {
	t.Run("four steps", func(t *testing.T) {
		got, err := UniformDistribution(100, 103)
		require.NoError(t, err)
		assert.Equal(t, []Weight{{2500, 2500}, {2500, 2500}, {2500, 2500}, {2500, 2500}}, got)
	})

	t.Run("three steps remainder on last", func(t *testing.T) {
		got, err := UniformDistribution(100, 102)
		require.NoError(t, err)
		assert.Equal(t, []Weight{{3333, 3333}, {3333, 3333}, {3334, 3334}}, got)
	})

	t.Run("always sums to total", func(t *testing.T) {
		for upper := int32(1); upper < 400; upper++ {
			got, err := UniformDistribution(0, upper)
			require.NoError(t, err)
			require.Len(t, got, int(upper)+1)
			require.NoError(t, ValidateDistribution(got), "upper %d", upper)
		}
	})

	t.Run("rejects empty range", func(t *testing.T) {
		_, err := UniformDistribution(5, 5)
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
		_, err = UniformDistribution(6, 5)
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
	})
}

func TestSplitDistribution(t *testing.T) {
	got, err := SplitDistribution(0, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []Weight{{0, 3333}, {0, 3333}, {3333, 3334}, {3333, 0}, {3334, 0}}, got)
	require.NoError(t, ValidateDistribution(got))

	got, err = SplitDistribution(10, 11, 11)
	require.NoError(t, err)
	assert.Equal(t, []Weight{{0, 5000}, {10000, 5000}}, got)

	_, err = SplitDistribution(0, 4, 5)
	assert.ErrorIs(t, err, model.ErrRangeInvalid)
}

func TestSpacedWeights(t *testing.T) {
	r := Range{Lower: -960, Upper: 960, Spacing: 60}

	t.Run("one weight per spacing step", func(t *testing.T) {
		got, err := UniformWeights(r)
		require.NoError(t, err)
		require.Len(t, got, 33)
		require.NoError(t, ValidateDistribution(got))
		for _, w := range got[:len(got)-1] {
			assert.Equal(t, Weight{X: 303, Y: 303}, w)
		}
		// 10000 - 32*303
		assert.Equal(t, Weight{X: 304, Y: 304}, got[32])
		assert.Equal(t, int32(-960), r.Point(0))
		assert.Equal(t, int32(960), r.Point(32))
	})

	t.Run("remainder stays below one step", func(t *testing.T) {
		for _, spacing := range []int32{1, 10, 60, 200} {
			rr := Range{Lower: -12000, Upper: 12000, Spacing: spacing}
			got, err := UniformWeights(rr)
			require.NoError(t, err)
			require.Len(t, got, rr.Steps())
			last := got[len(got)-1].X - got[0].X
			assert.Less(t, last, uint64(len(got)), "spacing %d", spacing)
		}
	})

	t.Run("split between spacing steps", func(t *testing.T) {
		got, err := SplitWeights(Range{Lower: -120, Upper: 120, Spacing: 60}, 30)
		require.NoError(t, err)
		assert.Equal(t, []Weight{{0, 3333}, {0, 3333}, {3333, 3334}, {3333, 0}, {3334, 0}}, got)
	})

	t.Run("edges off spacing", func(t *testing.T) {
		_, err := UniformWeights(Range{Lower: -950, Upper: 960, Spacing: 60})
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
	})

	t.Run("proposal counts spacing steps", func(t *testing.T) {
		dist, err := UniformWeights(r)
		require.NoError(t, err)
		p, err := NewRangeProposal(r, 0, 50, dist)
		require.NoError(t, err)
		assert.Equal(t, r, p.Range())

		raw, err := UniformDistribution(r.Lower, r.Upper)
		require.NoError(t, err)
		_, err = NewRangeProposal(r, 0, 50, raw)
		assert.ErrorIs(t, err, model.ErrRangeInvalid)
	})
}

func TestValidateDistribution(t *testing.T) {
	assert.ErrorIs(t, ValidateDistribution(nil), model.ErrRangeInvalid)
	assert.ErrorIs(t, ValidateDistribution([]Weight{{5000, 5000}, {4999, 5000}}), model.ErrRangeInvalid)
}

func TestRangeProposal(t *testing.T) {
	dist, err := UniformDistribution(100, 103)
	require.NoError(t, err)

	p, err := NewRangeProposal(Range{Lower: 100, Upper: 103}, 101, 5, dist)
	require.NoError(t, err)
	assert.Equal(t, int32(101), p.DesiredActive)

	data, err := p.EncodedDistribution()
	require.NoError(t, err)
	// two offsets, then length + 4 words per array
	assert.Len(t, data, 64+2*(32+4*32))

	decoded, err := DecodeDistribution(data)
	require.NoError(t, err)
	assert.Equal(t, dist, decoded)

	_, err = NewRangeProposal(Range{Lower: 100, Upper: 104}, 101, 5, dist)
	assert.ErrorIs(t, err, model.ErrRangeInvalid)

	_, err = NewRangeProposal(Range{Lower: 100, Upper: 100}, 100, 5, dist[:1])
	assert.ErrorIs(t, err, model.ErrRangeInvalid)
}

func TestOptimalRatio(t *testing.T) {
	x := mustAmount(t, "10", 18, "WAVAX")
	y := mustAmount(t, "100", 6, "USDC")

	r, err := OptimalRatio(x, y, decimal.NewFromInt(30), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "75.00% / 25.00%", r.String())

	r, err = OptimalRatio(mustAmount(t, "1", 6, "A"), mustAmount(t, "2", 6, "B"), decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, r.X.Equal(decimal.RequireFromString("33.33")))
	assert.True(t, r.X.Add(r.Y).Equal(decimal.NewFromInt(100)))

	_, err = OptimalRatio(mustAmount(t, "0", 6, "A"), mustAmount(t, "0", 6, "B"), decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, model.ErrDivisionByZero)
}

func TestBuildDepositPlan(t *testing.T) {
	idleX := mustAmount(t, "1000", 6, "X")
	idleY := mustAmount(t, "1000", 6, "Y")
	r := Range{Lower: -600, Upper: 600}

	t.Run("straddling range uses both tokens", func(t *testing.T) {
		ctx, err := TickPriceContext(pricing.Q96, r)
		require.NoError(t, err)
		plan, err := BuildDepositPlan(idleX, idleY, DefaultReservePercent, ctx)
		require.NoError(t, err)

		// a range symmetric around price 1 needs equal amounts of each token
		assert.InDelta(t, 900_000_000, plan.AmountX.Raw().Int64(), 10)
		assert.InDelta(t, 900_000_000, plan.AmountY.Raw().Int64(), 10)
		assert.LessOrEqual(t, plan.AmountX.Raw().Int64(), int64(900_000_000))
		assert.LessOrEqual(t, plan.AmountY.Raw().Int64(), int64(900_000_000))
		assertConserved(t, idleX, plan.AmountX, plan.ReserveX)
		assertConserved(t, idleY, plan.AmountY, plan.ReserveY)
	})

	t.Run("range above price takes only X", func(t *testing.T) {
		sqrtP, err := pricing.SqrtRatioAtTick(-1000)
		require.NoError(t, err)
		ctx, err := TickPriceContext(sqrtP, r)
		require.NoError(t, err)
		plan, err := BuildDepositPlan(idleX, idleY, DefaultReservePercent, ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(900_000_000), plan.AmountX.Raw().Int64())
		assert.True(t, plan.AmountY.IsZero())
		assert.Equal(t, int64(1_000_000_000), plan.ReserveY.Raw().Int64())
	})

	t.Run("range below price takes only Y", func(t *testing.T) {
		sqrtP, err := pricing.SqrtRatioAtTick(1000)
		require.NoError(t, err)
		ctx, err := TickPriceContext(sqrtP, r)
		require.NoError(t, err)
		plan, err := BuildDepositPlan(idleX, idleY, 0, ctx)
		require.NoError(t, err)
		assert.True(t, plan.AmountX.IsZero())
		assert.Equal(t, int64(1_000_000_000), plan.AmountY.Raw().Int64())
		assert.True(t, plan.ReserveY.IsZero())
	})

	t.Run("bin context", func(t *testing.T) {
		ctx, err := BinPriceContext(8388608, 25, Range{Lower: 8388603, Upper: 8388613})
		require.NoError(t, err)
		plan, err := BuildDepositPlan(idleX, idleY, 20, ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, plan.AmountX.Raw().Int64(), int64(800_000_000))
		assert.LessOrEqual(t, plan.AmountY.Raw().Int64(), int64(800_000_000))
		assert.False(t, plan.AmountX.IsZero())
		assert.False(t, plan.AmountY.IsZero())
	})

	t.Run("reserve above hundred", func(t *testing.T) {
		ctx, err := TickPriceContext(pricing.Q96, r)
		require.NoError(t, err)
		_, err = BuildDepositPlan(idleX, idleY, 101, ctx)
		assert.ErrorIs(t, err, model.ErrExceedsAvailable)
	})

	t.Run("min shares", func(t *testing.T) {
		ctx, err := TickPriceContext(pricing.Q96, r)
		require.NoError(t, err)
		plan, err := BuildDepositPlan(idleX, idleY, DefaultReservePercent, ctx)
		require.NoError(t, err)
		plan, err = plan.WithMinShares(big.NewInt(1000), 50)
		require.NoError(t, err)
		assert.Equal(t, int64(995), plan.MinShares.Int64())
	})
}

func TestMinShares(t *testing.T) {
	got, err := MinShares(big.NewInt(999), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(998), got.Int64())

	_, err = MinShares(big.NewInt(1), 10_001)
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
}

func mustAmount(t *testing.T, value string, decimals uint8, symbol string) amount.TokenAmount {
	t.Helper()
	a, err := amount.ParseTokenAmount(value, decimals, symbol)
	require.NoError(t, err)
	return a
}

func assertConserved(t *testing.T, idle, used, reserve amount.TokenAmount) {
	t.Helper()
	sum, err := used.Add(reserve)
	require.NoError(t, err)
	assert.Zero(t, idle.Cmp(sum))
}
