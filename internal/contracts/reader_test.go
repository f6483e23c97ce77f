package contracts

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultScope/internal/amount"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/rebalance"
)

var (
	vaultAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	strategyAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	poolAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	oracleAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	tokenXAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenYAddr   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	userAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

// fakeBackend answers eth_call from a table keyed by target and calldata and
// records the block of every call.
type fakeBackend struct {
	head uint64

	mu     sync.Mutex
	calls  map[string][]byte
	blocks []*big.Int
}

func newFakeBackend(head uint64) *fakeBackend {
	return &fakeBackend{head: head, calls: make(map[string][]byte)}
}

func callKey(to common.Address, data []byte) string {
	return to.Hex() + ":" + hexutil.Encode(data)
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)
	resp, ok := f.calls[callKey(*msg.To, msg.Data)]
	if !ok {
		return nil, fmt.Errorf("execution reverted: %s", hexutil.Encode(msg.Data))
	}
	return resp, nil
}

func (f *fakeBackend) LatestBlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeBackend) on(t *testing.T, l *lazyABI, to common.Address, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	parsed, err := l.get()
	require.NoError(t, err)
	data, err := parsed.Pack(method, args...)
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(outputs...)
	require.NoError(t, err)
	f.calls[callKey(to, data)] = out
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func units(v, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), pow10(decimals))
}

func seedToken(t *testing.T, f *fakeBackend, token common.Address, decimals uint8, symbol, name string) {
	f.on(t, erc20ABIString, token, "decimals", nil, decimals)
	f.on(t, erc20ABIString, token, "symbol", nil, symbol)
	f.on(t, erc20ABIString, token, "name", nil, name)
}

func seedVault(t *testing.T, f *fakeBackend) {
	seedToken(t, f, tokenXAddr, 18, "WAVAX", "Wrapped AVAX")
	seedToken(t, f, tokenYAddr, 6, "USDC", "USD Coin")

	f.on(t, vaultABI, vaultAddr, "getTokenX", nil, tokenXAddr)
	f.on(t, vaultABI, vaultAddr, "getTokenY", nil, tokenYAddr)
	f.on(t, vaultABI, vaultAddr, "getStrategy", nil, strategyAddr)
	f.on(t, vaultABI, vaultAddr, "getBalances", nil, units(10, 18), units(300, 6))
	f.on(t, vaultABI, vaultAddr, "totalSupply", nil, units(1000, 18))
	f.on(t, vaultABI, vaultAddr, "decimals", nil, uint8(18))
	// 0.01 X and 0.3 Y per share
	f.on(t, vaultABI, vaultAddr, "getPricePerFullShare", nil, units(1, 16), units(3, 5))

	f.on(t, strategyABI, strategyAddr, "getIdleBalances", nil, units(1, 18), units(50, 6))
	f.on(t, strategyABI, strategyAddr, "getRange", nil, big.NewInt(-600), big.NewInt(600))
	f.on(t, strategyABI, strategyAddr, "getAumAnnualFee", nil, big.NewInt(200))
	f.on(t, strategyABI, strategyAddr, "getPair", nil, poolAddr)

	f.on(t, tickPoolABI, poolAddr, "slot0", nil, pricing.Q96, big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true)
	f.on(t, tickPoolABI, poolAddr, "tickSpacing", nil, big.NewInt(60))
}

func seedUser(t *testing.T, f *fakeBackend) {
	f.on(t, vaultABI, vaultAddr, "balanceOf", []interface{}{userAddr}, big.NewInt(1000))
	f.on(t, queueABI, vaultAddr, "getCurrentRound", nil, big.NewInt(1))

	r0, r1 := big.NewInt(0), big.NewInt(1)
	f.on(t, queueABI, vaultAddr, "getTotalQueuedWithdrawal", []interface{}{r0}, big.NewInt(600))
	f.on(t, queueABI, vaultAddr, "getQueuedWithdrawal", []interface{}{r0, userAddr}, big.NewInt(200))
	f.on(t, queueABI, vaultAddr, "getRoundRelease", []interface{}{r0}, units(3, 18), units(90, 6), true)
	f.on(t, queueABI, vaultAddr, "getRedeemableAmounts", []interface{}{r0, userAddr}, units(1, 18), units(30, 6))
	f.on(t, queueABI, vaultAddr, "getTotalQueuedWithdrawal", []interface{}{r1}, big.NewInt(100))
	f.on(t, queueABI, vaultAddr, "getQueuedWithdrawal", []interface{}{r1, userAddr}, big.NewInt(100))

	f.on(t, erc20ABIString, tokenXAddr, "balanceOf", []interface{}{userAddr}, units(2, 18))
	f.on(t, erc20ABIString, tokenYAddr, "balanceOf", []interface{}{userAddr}, units(75, 6))
	f.on(t, erc20ABIString, tokenXAddr, "allowance", []interface{}{userAddr, vaultAddr}, new(big.Int))
	f.on(t, erc20ABIString, tokenYAddr, "allowance", []interface{}{userAddr, vaultAddr}, units(75, 6))
}

func TestLoadStatePinsOneBlock(t *testing.T) {
	f := newFakeBackend(1234)
	seedVault(t, f)
	seedUser(t, f)

	reader, err := NewReader(f, ReaderConfig{Addresses: Addresses{Vault: vaultAddr}, Market: model.MarketTick})
	require.NoError(t, err)

	state, err := reader.LoadState(context.Background(), 0, userAddr)
	require.NoError(t, err)

	assert.Equal(t, uint64(1234), state.BlockNumber)
	for _, b := range f.blocks {
		// token metadata is immutable and read at head
		if b != nil {
			assert.Equal(t, int64(1234), b.Int64())
		}
	}

	assert.Equal(t, "WAVAX", state.TokenX.Symbol)
	assert.Equal(t, uint8(6), state.TokenY.Decimals)
	assert.Equal(t, "10 WAVAX", state.Snapshot.BalanceX.String())
	assert.Equal(t, "300 USDC", state.Snapshot.BalanceY.String())
	assert.Equal(t, "0.01", state.Snapshot.PricePerShareX.String())
	assert.Equal(t, "0.3", state.Snapshot.PricePerShareY.String())

	assert.Equal(t, strategyAddr, state.Strategy.Address)
	require.NotNil(t, state.Strategy.Range)
	assert.Equal(t, rebalance.Range{Lower: -600, Upper: 600}, *state.Strategy.Range)
	assert.Equal(t, uint32(200), state.Strategy.AUMFeeBps)
	assert.Equal(t, "50 USDC", state.Strategy.IdleY.String())

	assert.Equal(t, model.MarketTick, state.Market.Meta.Kind)
	assert.Equal(t, int32(60), state.Market.Meta.Spacing)
	assert.Equal(t, int32(0), state.Market.Meta.ActivePoint)
	assert.Nil(t, state.Oracle)

	require.NotNil(t, state.User)
	user := state.User
	assert.Equal(t, int64(1000), user.Shares.Int64())
	assert.Equal(t, uint64(1), user.Rounds.Current)
	require.Len(t, user.Rounds.Rounds, 2)
	assert.True(t, user.Rounds.Rounds[0].Processed())
	assert.False(t, user.Rounds.Rounds[1].Processed())
	require.Len(t, user.Redeemable, 1)
	assert.Equal(t, "1 WAVAX", user.Redeemable[0].AmountX.String())
	assert.Equal(t, "75 USDC", user.WalletY.String())
	assert.Zero(t, user.AllowanceX.Sign())
}

func TestLoadStateFeedsEngine(t *testing.T) {
	f := newFakeBackend(50)
	seedVault(t, f)
	seedUser(t, f)

	reader, err := NewReader(f, ReaderConfig{Addresses: Addresses{Vault: vaultAddr}, Market: model.MarketTick})
	require.NoError(t, err)
	state, err := reader.LoadState(context.Background(), 0, userAddr)
	require.NoError(t, err)

	preview, err := state.User.Rounds.Redeemable(0, userAddr, state.TokenX, state.TokenY)
	require.NoError(t, err)
	// 200 of 600 queued shares against 3 X / 90 Y released
	assert.Equal(t, "1 WAVAX", preview.AmountX.String())
	assert.Equal(t, "30 USDC", preview.AmountY.String())

	ctx, err := state.Market.PriceContext(*state.Strategy.Range)
	require.NoError(t, err)
	plan, err := rebalance.BuildDepositPlan(state.Strategy.IdleX, state.Strategy.IdleY, rebalance.DefaultReservePercent, ctx)
	require.NoError(t, err)
	assert.False(t, plan.AmountX.IsZero())
	assert.False(t, plan.AmountY.IsZero())

	err = amount.CheckAllowance("allowance", plan.AmountX.Raw(), state.User.AllowanceX)
	assert.ErrorIs(t, err, model.ErrExceedsAvailable)
}

func TestLoadStateAtExplicitBlock(t *testing.T) {
	f := newFakeBackend(999)
	seedVault(t, f)

	reader, err := NewReader(f, ReaderConfig{Addresses: Addresses{Vault: vaultAddr, Pool: poolAddr}, Market: model.MarketTick})
	require.NoError(t, err)
	state, err := reader.LoadState(context.Background(), 77, common.Address{})
	require.NoError(t, err)
	assert.Equal(t, uint64(77), state.BlockNumber)
	assert.Nil(t, state.User)
}

func TestReaderBinMarket(t *testing.T) {
	f := newFakeBackend(10)
	f.on(t, binPairABI, poolAddr, "getActiveId", nil, big.NewInt(8388608))
	f.on(t, binPairABI, poolAddr, "getBinStep", nil, uint16(25))

	reader, err := NewReader(f, ReaderConfig{Addresses: Addresses{Vault: vaultAddr, Pool: poolAddr}, Market: model.MarketBin})
	require.NoError(t, err)
	market, err := reader.Market(context.Background(), 10, strategyAddr)
	require.NoError(t, err)
	assert.Equal(t, int32(8388608), market.Meta.ActivePoint)
	assert.Equal(t, uint16(25), market.BinStep)
	// bin 2^23 is price 1
	assert.Zero(t, market.SqrtPriceX96.Cmp(pricing.Q96))

	ctx, err := market.PriceContext(rebalance.Range{Lower: 8388603, Upper: 8388613})
	require.NoError(t, err)
	assert.Zero(t, ctx.SqrtPrice.Cmp(pricing.Q96))
}

func TestReaderOracle(t *testing.T) {
	f := newFakeBackend(10)
	price := new(big.Int).Lsh(big.NewInt(1), 128)
	f.on(t, oracleABI, oracleAddr, "getPrice", nil, price)
	f.on(t, oracleABI, oracleAddr, "getTwapPrice", nil, price)
	f.on(t, oracleABI, oracleAddr, "getLastUpdate", nil, big.NewInt(1_700_000_000))
	f.on(t, oracleABI, oracleAddr, "getOracleParameters", nil,
		new(big.Int).Rsh(price, 1), new(big.Int).Lsh(price, 1), big.NewInt(3600), big.NewInt(500))

	reader, err := NewReader(f, ReaderConfig{Addresses: Addresses{Vault: vaultAddr, Oracle: oracleAddr}, Market: model.MarketTick})
	require.NoError(t, err)
	reading, err := reader.Oracle(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, reading.Params.Heartbeat)
	assert.Equal(t, uint32(500), reading.Params.DeviationBps)

	status, err := reading.Check(time.Unix(1_700_000_060, 0))
	require.NoError(t, err)
	assert.True(t, status.Healthy())

	status, err = reading.Check(time.Unix(1_700_000_000, 0).Add(2 * time.Hour))
	require.NoError(t, err)
	assert.False(t, status.Fresh)
}

func TestFetchTokenMetaBytes32Fallback(t *testing.T) {
	f := newFakeBackend(1)
	f.on(t, erc20ABIString, tokenXAddr, "decimals", nil, uint8(18))
	var sym, name [32]byte
	copy(sym[:], "MKR")
	copy(name[:], "Maker")
	f.on(t, erc20ABIBytes32, tokenXAddr, "symbol", nil, sym)
	f.on(t, erc20ABIBytes32, tokenXAddr, "name", nil, name)

	meta, err := FetchTokenMeta(context.Background(), f, tokenXAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, "Maker", meta.Name)
	assert.Equal(t, uint8(18), meta.Decimals)

	_, err = FetchTokenMeta(context.Background(), f, tokenYAddr, nil)
	assert.Error(t, err)
}

func TestNewReaderValidation(t *testing.T) {
	_, err := NewReader(nil, ReaderConfig{})
	assert.Error(t, err)
	_, err = NewReader(newFakeBackend(1), ReaderConfig{Market: model.MarketTick})
	assert.Error(t, err)
	_, err = NewReader(newFakeBackend(1), ReaderConfig{Addresses: Addresses{Vault: vaultAddr}, Market: "pool"})
	assert.Error(t, err)
}

func TestPackCalls(t *testing.T) {
	vault, err := VaultABI()
	require.NoError(t, err)

	call, err := PackQueueWithdrawal(vaultAddr, big.NewInt(250), userAddr)
	require.NoError(t, err)
	assert.Equal(t, vaultAddr, call.To)
	assert.Equal(t, vault.Methods["queueWithdrawal"].ID, []byte(call.Data[:4]))
	args, err := vault.Methods["queueWithdrawal"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(250), args[0].(*big.Int).Int64())
	assert.Equal(t, userAddr, args[1].(common.Address))

	_, err = PackQueueWithdrawal(vaultAddr, new(big.Int), userAddr)
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
	_, err = PackCancelQueuedWithdrawal(vaultAddr, big.NewInt(-1))
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)

	call, err = PackRedeem(vaultAddr, 3, userAddr)
	require.NoError(t, err)
	args, err = vault.Methods["redeemQueuedWithdrawal"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), args[0].(*big.Int).Uint64())

	x, err := amount.ParseTokenAmount("1.5", 18, "WAVAX")
	require.NoError(t, err)
	y, err := amount.ParseTokenAmount("0", 6, "USDC")
	require.NoError(t, err)
	call, err = PackDeposit(vaultAddr, rebalance.DepositPlan{AmountX: x, AmountY: y, MinShares: big.NewInt(99)})
	require.NoError(t, err)
	args, err = vault.Methods["deposit"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", args[0].(*big.Int).String())
	assert.Equal(t, int64(99), args[2].(*big.Int).Int64())

	_, err = PackDeposit(vaultAddr, rebalance.DepositPlan{AmountX: y, AmountY: y})
	assert.ErrorIs(t, err, model.ErrNonPositiveAmount)
}

func TestPackRebalance(t *testing.T) {
	dist, err := rebalance.UniformDistribution(-2, 1)
	require.NoError(t, err)
	proposal, err := rebalance.NewRangeProposal(rebalance.Range{Lower: -2, Upper: 1}, 0, 5, dist)
	require.NoError(t, err)

	call, err := PackRebalance(strategyAddr, proposal, big.NewInt(10), nil)
	require.NoError(t, err)

	strategy, err := StrategyABI()
	require.NoError(t, err)
	args, err := strategy.Methods["rebalance"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(-2), args[0].(*big.Int).Int64())
	assert.Equal(t, int64(1), args[1].(*big.Int).Int64())
	assert.Equal(t, int64(5), args[3].(*big.Int).Int64())
	assert.Zero(t, args[5].(*big.Int).Sign())

	decoded, err := rebalance.DecodeDistribution(args[6].([]byte))
	require.NoError(t, err)
	assert.Equal(t, dist, decoded)
}
