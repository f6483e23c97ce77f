package ops

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/accounting"
	"vaultScope/internal/amount"
	"vaultScope/internal/contracts"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/queue"
	"vaultScope/internal/rebalance"
)

var (
	vaultAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	strategyAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	userAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	otherAddr    = common.HexToAddress("0x00000000000000000000000000000000000000c2")

	wavax = model.TokenMeta{Address: "0x00000000000000000000000000000000000000b1", Decimals: 18, Symbol: "WAVAX"}
	usdc  = model.TokenMeta{Address: "0x00000000000000000000000000000000000000b2", Decimals: 6, Symbol: "USDC"}
)

func units(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), amount.Pow10(decimals))
}

func tokenAmount(t *testing.T, n int64, meta model.TokenMeta) amount.TokenAmount {
	t.Helper()
	a, err := amount.FromMeta(units(n, meta.Decimals), meta)
	require.NoError(t, err)
	return a
}

func testState(t *testing.T) contracts.VaultState {
	t.Helper()
	rounds, err := queue.NewRoundSet(1, []queue.Round{
		{
			Index:             0,
			TotalQueuedShares: units(600, 18),
			PerUser:           map[common.Address]*big.Int{userAddr: units(200, 18)},
			ReleasedX:         units(3, 18),
			ReleasedY:         units(90, 6),
			Partial:           true,
		},
		{
			Index:             1,
			TotalQueuedShares: units(100, 18),
			PerUser:           map[common.Address]*big.Int{userAddr: units(100, 18)},
			Partial:           true,
		},
	})
	require.NoError(t, err)

	return contracts.VaultState{
		BlockNumber: 1234,
		TokenX:      wavax,
		TokenY:      usdc,
		Snapshot: accounting.VaultSnapshot{
			BlockNumber:    1234,
			BalanceX:       tokenAmount(t, 10, wavax),
			BalanceY:       tokenAmount(t, 300, usdc),
			TotalShares:    units(2000, 18),
			ShareDecimals:  18,
			PricePerShareX: decimal.RequireFromString("0.01"),
			PricePerShareY: decimal.RequireFromString("0.3"),
		},
		Strategy: contracts.StrategyState{
			Address:   strategyAddr,
			IdleX:     tokenAmount(t, 1, wavax),
			IdleY:     tokenAmount(t, 50, usdc),
			Range:     &rebalance.Range{Lower: -600, Upper: 600},
			AUMFeeBps: 200,
		},
		Market: contracts.MarketState{
			Meta:         model.MarketMeta{Kind: model.MarketTick, ActivePoint: 0, Spacing: 60},
			SqrtPriceX96: new(big.Int).Set(pricing.Q96),
		},
		User: &contracts.UserState{
			Address: userAddr,
			Shares:  units(1000, 18),
			Rounds:  rounds,
			Redeemable: []queue.RedemptionEntry{
				{Round: 0, AmountX: tokenAmount(t, 1, wavax), AmountY: tokenAmount(t, 30, usdc)},
			},
			WalletX:    tokenAmount(t, 5, wavax),
			WalletY:    tokenAmount(t, 1000, usdc),
			AllowanceX: units(10, 18),
			AllowanceY: new(big.Int),
		},
	}
}

// oracleSpot returns the smallest 128.128 price that decodes to yPerX whole
// Y for one whole X.
func oracleSpot(yPerX int64, decimalsX, decimalsY uint8) *big.Int {
	num := new(big.Int).Mul(units(yPerX, decimalsY), pricing.Q128)
	den := amount.Pow10(decimalsX)
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Quo(num, den)
}

func TestValuate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	state := testState(t)
	priceX, err := pricing.NewQuote("WAVAX", "30", now.Add(-10*time.Second), "manual")
	require.NoError(t, err)
	priceY, err := pricing.NewQuote("USDC", "1", now.Add(-90*time.Second), "manual")
	require.NoError(t, err)

	v, err := Valuate(vaultAddr, state, ValuationInput{
		PriceX:            priceX,
		PriceY:            priceY,
		TotalDepositedUSD: decimal.NewFromInt(500),
		Now:               now,
	})
	require.NoError(t, err)

	assert.Equal(t, "600", v.Metrics.TotalTVLUSD.String())
	assert.Equal(t, "600", v.Metrics.UserValueUSD.String())
	assert.Equal(t, "100", v.Metrics.EarningsUSD.String())
	assert.True(t, v.Metrics.ROI.Equal(decimal.NewFromInt(20)), v.Metrics.ROI.String())
	assert.False(t, v.Metrics.PriceXStale)
	assert.True(t, v.Metrics.PriceYStale)
	assert.True(t, v.AUMFeeDailyUSD.IsPositive())
	assert.Nil(t, v.Oracle)

	rec := v.Record(43114, state, now)
	assert.Equal(t, uint64(43114), rec.ChainID)
	assert.Equal(t, "10.000000000000000000", rec.BalanceX)
	assert.Equal(t, "300.000000", rec.BalanceY)
	assert.Equal(t, "2000", rec.TotalShares)
	assert.Equal(t, userAddr.Hex(), rec.User)
	require.NotNil(t, rec.ROI)
	assert.Equal(t, "20", *rec.ROI)

	state.User = nil
	v, err = Valuate(vaultAddr, state, ValuationInput{PriceX: priceX, PriceY: priceY, Now: now})
	require.NoError(t, err)
	rec = v.Record(43114, state, now)
	assert.Empty(t, rec.User)
	assert.Nil(t, rec.UserValueUSD)
}

func TestValuateDerivesMissingQuoteFromOracle(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	state := testState(t)
	spot := oracleSpot(30, 18, 6)
	state.Oracle = &contracts.OracleReading{Spot: spot, TWAP: spot, UpdatedAt: now.Add(-30 * time.Second)}

	priceY, err := pricing.NewQuote("USDC", "1", now.Add(-10*time.Second), "manual")
	require.NoError(t, err)
	v, err := Valuate(vaultAddr, state, ValuationInput{PriceY: priceY, Now: now})
	require.NoError(t, err)

	assert.Equal(t, "30.000000", v.OraclePrice)
	assert.True(t, v.PriceX.USD.Equal(decimal.NewFromInt(30)), v.PriceX.USD.String())
	assert.Equal(t, SourceOracle, v.PriceX.Source)
	assert.Equal(t, "WAVAX", v.PriceX.Symbol)
	assert.Equal(t, now.Add(-30*time.Second), v.PriceX.LastUpdated)
	require.NotNil(t, v.Oracle)
	assert.True(t, v.Oracle.Healthy())

	priceX, err := pricing.NewQuote("WAVAX", "30", now, "manual")
	require.NoError(t, err)
	_, y, err := ResolveQuotes(state, priceX, pricing.Quote{})
	require.NoError(t, err)
	assert.True(t, y.USD.Equal(decimal.NewFromInt(1)), y.USD.String())

	state.Oracle = nil
	_, err = Valuate(vaultAddr, state, ValuationInput{PriceY: priceY, Now: now})
	assert.ErrorIs(t, err, model.ErrPriceUnavailable)
}

func TestQueueStatus(t *testing.T) {
	state := testState(t)
	report, err := QueueStatus(state)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), report.CurrentRound)
	assert.Equal(t, "1000", report.Shares)
	assert.Equal(t, "300", report.Queued)
	assert.Equal(t, "700", report.Available)
	require.Len(t, report.Rounds, 2)
	assert.Equal(t, queue.RoundClosed, report.Rounds[0].Status)
	assert.True(t, report.Rounds[0].Processed)
	assert.Equal(t, queue.RoundOpen, report.Rounds[1].Status)
	assert.Equal(t, "100", report.Rounds[1].UserQueued)
	require.Len(t, report.Preview, 1)
	assert.Equal(t, "1 WAVAX", report.Preview[0].AmountX.String())
	assert.Equal(t, "30 USDC", report.Preview[0].AmountY.String())

	state.User.Shares = units(250, 18)
	_, err = QueueStatus(state)
	assert.ErrorIs(t, err, model.ErrInconsistentState)

	state.User = nil
	_, err = QueueStatus(state)
	assert.Error(t, err)
}

func TestPlanWithdrawal(t *testing.T) {
	state := testState(t)

	plan, err := PlanWithdrawal(vaultAddr, state, "50%", common.Address{})
	require.NoError(t, err)
	assert.Equal(t, units(350, 18), plan.Shares)
	assert.Equal(t, "350", plan.Display)
	assert.Equal(t, uint64(1), plan.Round)
	assert.Equal(t, "queueWithdrawal", plan.Call.Method)
	assert.Equal(t, vaultAddr, plan.Call.To)

	parsed, err := contracts.VaultABI()
	require.NoError(t, err)
	args, err := parsed.Methods["queueWithdrawal"].Inputs.Unpack(plan.Call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, userAddr, args[1])

	plan, err = PlanWithdrawal(vaultAddr, state, "max", otherAddr)
	require.NoError(t, err)
	assert.Equal(t, units(700, 18), plan.Shares)

	_, err = PlanWithdrawal(vaultAddr, state, "800", common.Address{})
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
	_, err = PlanWithdrawal(vaultAddr, state, "abc", common.Address{})
	assert.ErrorIs(t, err, model.ErrParse)
}

func TestPlanCancel(t *testing.T) {
	state := testState(t)

	plan, err := PlanCancel(vaultAddr, state, "max")
	require.NoError(t, err)
	assert.Equal(t, units(100, 18), plan.Shares)
	assert.Equal(t, "cancelQueuedWithdrawal", plan.Call.Method)

	plan, err = PlanCancel(vaultAddr, state, "25.5")
	require.NoError(t, err)
	assert.Equal(t, "25.5", plan.Display)

	_, err = PlanCancel(vaultAddr, state, "150")
	assert.ErrorIs(t, err, model.ErrExceedsQueued)
	var amountErr *model.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, units(100, 18), amountErr.Bound)

	_, err = PlanCancel(vaultAddr, state, "0")
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
}

func TestPlanRedeem(t *testing.T) {
	state := testState(t)

	plan, err := PlanRedeem(vaultAddr, state, 0, common.Address{})
	require.NoError(t, err)
	assert.False(t, plan.Estimated)
	assert.Equal(t, "1 WAVAX", plan.Entry.AmountX.String())
	assert.Equal(t, "redeemQueuedWithdrawal", plan.Call.Method)

	_, err = PlanRedeem(vaultAddr, state, 1, common.Address{})
	assert.ErrorIs(t, err, model.ErrRangeInvalid)
	_, err = PlanRedeem(vaultAddr, state, 5, common.Address{})
	assert.ErrorIs(t, err, model.ErrRangeInvalid)

	state.User.Redeemable = nil
	plan, err = PlanRedeem(vaultAddr, state, 0, otherAddr)
	require.NoError(t, err)
	assert.True(t, plan.Estimated)
	assert.Equal(t, "30 USDC", plan.Entry.AmountY.String())

	state.User.Rounds.Rounds[0].PerUser[userAddr] = new(big.Int)
	_, err = PlanRedeem(vaultAddr, state, 0, common.Address{})
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
}

type fixedPreviewer struct {
	shares *big.Int
	block  uint64
}

func (p *fixedPreviewer) PreviewShares(_ context.Context, block uint64, _, _ *big.Int) (*big.Int, error) {
	p.block = block
	return new(big.Int).Set(p.shares), nil
}

func TestPlanDeposit(t *testing.T) {
	state := testState(t)
	previewer := &fixedPreviewer{shares: units(100, 18)}

	report, err := PlanDeposit(context.Background(), previewer, vaultAddr, state, DepositRequest{AmountX: "1", SlippageBps: 50})
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), previewer.block)
	assert.Equal(t, "1 WAVAX", report.Plan.AmountX.String())
	assert.True(t, report.Plan.AmountY.IsZero())
	assert.Equal(t, "4 WAVAX", report.Plan.ReserveX.String())
	assert.Equal(t, "1000 USDC", report.Plan.ReserveY.String())
	assert.Equal(t, "99500000000000000000", report.Plan.MinShares.String())
	assert.Equal(t, "100", report.ExpectedShares)
	assert.Equal(t, "deposit", report.Call.Method)

	_, err = PlanDeposit(context.Background(), previewer, vaultAddr, state, DepositRequest{AmountY: "10"})
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
	var amountErr *model.AmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, "USDC allowance", amountErr.Field)

	_, err = PlanDeposit(context.Background(), previewer, vaultAddr, state, DepositRequest{AmountX: "6"})
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)

	_, err = PlanDeposit(context.Background(), previewer, vaultAddr, state, DepositRequest{AmountX: "0"})
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)

	_, err = PlanDeposit(context.Background(), previewer, vaultAddr, state, DepositRequest{AmountX: "1", SlippageBps: 10_001})
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
}

func sumWeights(weights []rebalance.Weight) (uint64, uint64) {
	var x, y uint64
	for _, w := range weights {
		x += w.X
		y += w.Y
	}
	return x, y
}

func TestPlanRebalanceTick(t *testing.T) {
	state := testState(t)
	report, err := PlanRebalance(state, RebalanceRequest{
		PriceX: decimal.NewFromInt(30),
		PriceY: decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	assert.True(t, report.Range.Contains(0))
	assert.Zero(t, report.Range.Lower%60)
	assert.Zero(t, report.Range.Upper%60)
	assert.Equal(t, uint32(DefaultTickSlippage), report.Proposal.Slippage)
	assert.True(t, report.Prices.Lower.LessThan(report.Prices.Active))
	assert.True(t, report.Prices.Active.LessThan(report.Prices.Upper))
	require.NotNil(t, report.Ratio)
	assert.Equal(t, "37.50% / 62.50%", report.Ratio.String())
	assert.False(t, report.Plan.AmountX.IsZero())
	assert.False(t, report.Plan.AmountY.IsZero())
	assert.Equal(t, "rebalance", report.Call.Method)
	assert.Equal(t, strategyAddr, report.Call.To)

	x, y := sumWeights(report.Proposal.Distribution)
	assert.Equal(t, uint64(rebalance.TotalWeight), x)
	assert.Equal(t, uint64(rebalance.TotalWeight), y)
	assert.Len(t, report.Proposal.Distribution, report.Range.Steps())
	assert.Equal(t, int32(60), report.Range.Spacing)
	assert.Len(t, report.Proposal.Distribution, int((report.Range.Upper-report.Range.Lower)/60)+1)
	steps := uint64(len(report.Proposal.Distribution))
	first, last := report.Proposal.Distribution[0], report.Proposal.Distribution[steps-1]
	assert.Less(t, last.X-first.X, steps)
	assert.Empty(t, report.RatioError)

	split, err := PlanRebalance(state, RebalanceRequest{ActiveSplit: true})
	require.NoError(t, err)
	assert.Nil(t, split.Ratio)
	assert.Zero(t, split.Proposal.Distribution[0].X)
	assert.Zero(t, split.Proposal.Distribution[len(split.Proposal.Distribution)-1].Y)

	tooMuch := uint32(101)
	_, err = PlanRebalance(state, RebalanceRequest{ReservePercent: &tooMuch})
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
}

func TestPlanRebalanceBin(t *testing.T) {
	state := testState(t)
	state.Market = contracts.MarketState{
		Meta:    model.MarketMeta{Kind: model.MarketBin, ActivePoint: 1 << 23, Spacing: 25},
		BinStep: 25,
	}
	none := uint32(0)
	report, err := PlanRebalance(state, RebalanceRequest{Width: decimal.NewFromInt(11), ReservePercent: &none, Slippage: 3})
	require.NoError(t, err)

	assert.Equal(t, rebalance.Range{Lower: 1<<23 - 5, Upper: 1<<23 + 5}, report.Range)
	assert.Len(t, report.Proposal.Distribution, 11)
	assert.Equal(t, uint32(3), report.Proposal.Slippage)
	assert.Equal(t, int32(1<<23), report.Proposal.DesiredActive)
	assert.True(t, report.Prices.Active.Equal(decimal.New(1, 12)), report.Prices.Active.String())
	assert.False(t, report.Plan.AmountX.IsZero() && report.Plan.AmountY.IsZero())

	state.Market.Meta.Kind = "amm"
	_, err = PlanRebalance(state, RebalanceRequest{})
	assert.ErrorIs(t, err, model.ErrRangeInvalid)
}

func TestPlanRebalanceReportsRatioFailure(t *testing.T) {
	state := testState(t)
	state.Strategy.IdleX = tokenAmount(t, 0, state.TokenX)
	state.Strategy.IdleY = tokenAmount(t, 0, state.TokenY)

	report, err := PlanRebalance(state, RebalanceRequest{
		PriceX: decimal.NewFromInt(30),
		PriceY: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Nil(t, report.Ratio)
	assert.Contains(t, report.RatioError, model.ErrDivisionByZero.Error())

	noPrices, err := PlanRebalance(state, RebalanceRequest{})
	require.NoError(t, err)
	assert.Nil(t, noPrices.Ratio)
	assert.Empty(t, noPrices.RatioError)
}
