package console

import (
	"bytes"
	"context"
	"math/big"
	"strings"
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
	"vaultScope/internal/ops"
	"vaultScope/internal/pricing"
	"vaultScope/internal/queue"
	"vaultScope/internal/rebalance"
)

var (
	vaultAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	userAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c1")

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

type fakeBackend struct {
	state contracts.VaultState
	loads int
}

func (b *fakeBackend) LoadState(context.Context) (contracts.VaultState, error) {
	b.loads++
	return b.state, nil
}

func (b *fakeBackend) PreviewShares(context.Context, uint64, *big.Int, *big.Int) (*big.Int, error) {
	return units(100, 18), nil
}

func newBackend(t *testing.T) *fakeBackend {
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

	return &fakeBackend{state: contracts.VaultState{
		BlockNumber: 77,
		TokenX:      wavax,
		TokenY:      usdc,
		Snapshot: accounting.VaultSnapshot{
			BlockNumber:    77,
			BalanceX:       tokenAmount(t, 10, wavax),
			BalanceY:       tokenAmount(t, 300, usdc),
			TotalShares:    units(2000, 18),
			ShareDecimals:  18,
			PricePerShareX: decimal.RequireFromString("0.01"),
			PricePerShareY: decimal.RequireFromString("0.3"),
		},
		Strategy: contracts.StrategyState{
			IdleX: tokenAmount(t, 1, wavax),
			IdleY: tokenAmount(t, 50, usdc),
			Range: &rebalance.Range{Lower: -600, Upper: 600},
		},
		Market: contracts.MarketState{
			Meta:         model.MarketMeta{Kind: model.MarketTick, Spacing: 60},
			SqrtPriceX96: new(big.Int).Set(pricing.Q96),
		},
		User: &contracts.UserState{
			Address:    userAddr,
			Shares:     units(1000, 18),
			Rounds:     rounds,
			WalletX:    tokenAmount(t, 5, wavax),
			WalletY:    tokenAmount(t, 1000, usdc),
			AllowanceX: units(10, 18),
			AllowanceY: units(1000, 6),
		},
	}}
}

type recorded struct {
	kinds []string
}

func (r *recorded) record(kind string, _ interface{}) error {
	r.kinds = append(r.kinds, kind)
	return nil
}

func quotes(_ context.Context, state contracts.VaultState, now time.Time) (ops.ValuationInput, error) {
	x, err := pricing.NewQuote(state.TokenX.Label(), "30", now, "test")
	if err != nil {
		return ops.ValuationInput{}, err
	}
	y, err := pricing.NewQuote(state.TokenY.Label(), "1", now, "test")
	if err != nil {
		return ops.ValuationInput{}, err
	}
	return ops.ValuationInput{PriceX: x, PriceY: y, TotalDepositedUSD: decimal.NewFromInt(500)}, nil
}

func runScript(t *testing.T, backend Backend, script string, opts Options) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Vault = vaultAddr
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	}
	c, err := New(strings.NewReader(script), &out, backend, opts)
	require.NoError(t, err)
	err = c.Run(context.Background())
	return out.String(), err
}

func TestConsoleScriptedSession(t *testing.T) {
	backend := newBackend(t)
	rec := &recorded{}

	out, err := runScript(t, backend, "2\n9\nabc\n3\nmax\n\n0\n2\n", Options{Record: rec.record})
	require.NoError(t, err)

	assert.Contains(t, out, "available: 700")
	assert.Contains(t, out, "round 1 [open]: 100 queued")
	assert.Contains(t, out, "unknown option 9")
	assert.Contains(t, out, `unknown option "abc"`)
	assert.Contains(t, out, "Queue withdrawal: 700 shares in round 1")
	assert.Contains(t, out, "call queueWithdrawal on "+vaultAddr.Hex())
	assert.Equal(t, []string{"queue", "withdraw"}, rec.kinds)
	assert.Equal(t, 2, backend.loads, "input after exit must not run")
	assert.NotContains(t, out, "Select")
}

func TestConsoleReportsErrorsAndContinues(t *testing.T) {
	backend := newBackend(t)

	out, err := runScript(t, backend, "4\n150\n5\n1\n5\n0\n", Options{})
	require.NoError(t, err)

	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "exceeds queued")
	assert.Contains(t, out, "round 1 is still open")
	assert.Contains(t, out, "Redeem round 0: 1 WAVAX, 30 USDC (local estimate)")
}

func TestConsoleSnapshotDepositAndRebalance(t *testing.T) {
	backend := newBackend(t)
	rec := &recorded{}

	out, err := runScript(t, backend, "1\n6\n1\n\n7\n", Options{
		Quotes:    quotes,
		Rebalance: ops.RebalanceRequest{PriceX: decimal.NewFromInt(30), PriceY: decimal.NewFromInt(1)},
		Record:    rec.record,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "TVL:             $600.00")
	assert.Contains(t, out, "ROI:             20.00%")
	assert.Contains(t, out, "min shares:      99500000000000000000")
	assert.Contains(t, out, "value ratio:    37.50% / 62.50%")
	assert.Contains(t, out, "call rebalance")
	assert.Equal(t, []string{"snapshot", "deposit", "rebalance"}, rec.kinds)
}

func TestConsoleSnapshotNeedsQuotes(t *testing.T) {
	out, err := runScript(t, newBackend(t), "1\n", Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "error: no price source configured")
}

func TestConsolePromptShowsMenu(t *testing.T) {
	out, err := runScript(t, newBackend(t), "", Options{Prompt: true})
	require.NoError(t, err)

	assert.Contains(t, out, "1) Vault snapshot")
	assert.Contains(t, out, "7) Propose rebalance")
	assert.Contains(t, out, "0) Exit")
	assert.True(t, strings.HasSuffix(out, "Select: "))
	assert.Less(t, strings.Index(out, "1) Vault"), strings.Index(out, "2) Withdrawal"))
}

func TestConsoleRegisterAndCancel(t *testing.T) {
	var out bytes.Buffer
	c, err := New(strings.NewReader("8\n8\n"), &out, newBackend(t), Options{Vault: vaultAddr})
	require.NoError(t, err)

	calls := 0
	c.Register(8, Command{Title: "Ping", Run: func(_ context.Context, c *Console) error {
		calls++
		_, err := c.out.Write([]byte("pong\n"))
		return err
	}})
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, "pong\npong\n", out.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err = New(strings.NewReader("2\n"), &out, newBackend(t), Options{Vault: vaultAddr})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
}

func TestNewValidates(t *testing.T) {
	_, err := New(strings.NewReader(""), &bytes.Buffer{}, nil, Options{Vault: vaultAddr})
	assert.Error(t, err)
	_, err = New(strings.NewReader(""), &bytes.Buffer{}, newBackend(t), Options{})
	assert.Error(t, err)
	assert.False(t, IsTerminal(nil))
}
