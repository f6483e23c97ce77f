package contracts

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultScope/internal/accounting"
	"vaultScope/internal/amount"
	"vaultScope/internal/model"
	"vaultScope/internal/pricing"
	"vaultScope/internal/queue"
	"vaultScope/internal/rebalance"
)

// Addresses locates the contracts a Reader talks to. Only Vault is required.
type Addresses struct {
	Vault common.Address
	// Queue defaults to Vault when zero.
	Queue common.Address
	// Strategy defaults to the vault's getStrategy.
	Strategy common.Address
	// Oracle is optional; without it no oracle reads happen.
	Oracle common.Address
	// Pool defaults to the strategy's getPair.
	Pool common.Address
}

// ReaderConfig holds the Reader's dependencies.
type ReaderConfig struct {
	Addresses Addresses
	Market    model.MarketKind
	Tokens    *TokenMetaCache
	Logger    *zap.Logger
}

// Reader loads every value one computation needs from a single block.
type Reader struct {
	backend Backend
	addrs   Addresses
	market  model.MarketKind
	tokens  *TokenMetaCache
	logger  *zap.Logger
}

// StrategyState is the strategy's idle balances and deployed range.
type StrategyState struct {
	Address   common.Address     `json:"address"`
	IdleX     amount.TokenAmount `json:"idleX"`
	IdleY     amount.TokenAmount `json:"idleY"`
	Range     *rebalance.Range   `json:"range,omitempty"`
	AUMFeeBps uint32             `json:"aumFeeBps"`
}

// MarketState is the live price point of the vault's pool or pair.
type MarketState struct {
	Meta         model.MarketMeta `json:"meta"`
	BinStep      uint16           `json:"binStep,omitempty"`
	SqrtPriceX96 *big.Int         `json:"-"`
}

// PriceContext places r against the current price.
func (m MarketState) PriceContext(r rebalance.Range) (rebalance.PriceContext, error) {
	switch m.Meta.Kind {
	case model.MarketTick:
		if m.SqrtPriceX96 == nil {
			return rebalance.PriceContext{}, fmt.Errorf("%w: pool sqrt price", model.ErrPriceUnavailable)
		}
		return rebalance.TickPriceContext(m.SqrtPriceX96, r)
	case model.MarketBin:
		return rebalance.BinPriceContext(uint32(m.Meta.ActivePoint), m.BinStep, r)
	default:
		return rebalance.PriceContext{}, fmt.Errorf("%w: unknown market kind %q", model.ErrRangeInvalid, m.Meta.Kind)
	}
}

// OracleReading is the raw oracle state. Prices are 128.128 fixed point.
type OracleReading struct {
	Spot      *big.Int
	TWAP      *big.Int
	UpdatedAt time.Time
	Params    pricing.OracleParams
}

// Check runs the oracle sanity checks as of now.
func (o OracleReading) Check(now time.Time) (pricing.OracleStatus, error) {
	return pricing.CheckOracle(o.Spot, o.TWAP, o.UpdatedAt, now, o.Params)
}

// UserState is one user's position read at the same block as the vault.
type UserState struct {
	Address common.Address
	Shares  *big.Int
	Rounds  queue.RoundSet
	// Redeemable is what the queue contract reports for closed rounds.
	Redeemable []queue.RedemptionEntry
	WalletX    amount.TokenAmount
	WalletY    amount.TokenAmount
	AllowanceX *big.Int
	AllowanceY *big.Int
}

// VaultState bundles all reads taken at BlockNumber.
type VaultState struct {
	BlockNumber uint64
	TokenX      model.TokenMeta
	TokenY      model.TokenMeta
	Snapshot    accounting.VaultSnapshot
	Strategy    StrategyState
	Market      MarketState
	Oracle      *OracleReading
	User        *UserState
}

// NewReader builds a Reader over backend.
func NewReader(backend Backend, cfg ReaderConfig) (*Reader, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if cfg.Addresses.Vault == (common.Address{}) {
		return nil, fmt.Errorf("vault address is required")
	}
	if _, ok := model.ParseMarketKind(string(cfg.Market)); !ok {
		return nil, fmt.Errorf("unsupported market kind %q", cfg.Market)
	}
	addrs := cfg.Addresses
	if addrs.Queue == (common.Address{}) {
		addrs.Queue = addrs.Vault
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewTokenMetaCache()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{backend: backend, addrs: addrs, market: cfg.Market, tokens: tokens, logger: logger}, nil
}

// Vault returns the vault address.
func (r *Reader) Vault() common.Address { return r.addrs.Vault }

// PinBlock returns block, or the chain head when block is zero.
func (r *Reader) PinBlock(ctx context.Context, block uint64) (uint64, error) {
	if block != 0 {
		return block, nil
	}
	latest, err := r.backend.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	return latest, nil
}

// LoadState pins a block first and reads everything at it, so no value in
// the result comes from a different block. A zero user skips user reads.
func (r *Reader) LoadState(ctx context.Context, block uint64, user common.Address) (VaultState, error) {
	pinned, err := r.PinBlock(ctx, block)
	if err != nil {
		return VaultState{}, err
	}
	state := VaultState{BlockNumber: pinned}

	if state.TokenX, state.TokenY, err = r.Tokens(ctx, pinned); err != nil {
		return VaultState{}, err
	}
	if state.Snapshot, err = r.Snapshot(ctx, pinned, state.TokenX, state.TokenY); err != nil {
		return VaultState{}, err
	}
	if state.Strategy, err = r.Strategy(ctx, pinned, state.TokenX, state.TokenY); err != nil {
		return VaultState{}, err
	}
	if state.Market, err = r.Market(ctx, pinned, state.Strategy.Address); err != nil {
		return VaultState{}, err
	}
	if r.addrs.Oracle != (common.Address{}) {
		reading, err := r.Oracle(ctx, pinned)
		if err != nil {
			return VaultState{}, err
		}
		state.Oracle = &reading
	}
	if user != (common.Address{}) {
		us, err := r.User(ctx, pinned, user, state.TokenX, state.TokenY)
		if err != nil {
			return VaultState{}, err
		}
		state.User = &us
	}

	r.logger.Debug("vault state loaded",
		zap.Uint64("block", pinned),
		zap.String("vault", r.addrs.Vault.Hex()),
		zap.String("balance_x", state.Snapshot.BalanceX.String()),
		zap.String("balance_y", state.Snapshot.BalanceY.String()),
	)
	return state, nil
}

// Tokens resolves the vault's two tokens and their metadata.
func (r *Reader) Tokens(ctx context.Context, block uint64) (model.TokenMeta, model.TokenMeta, error) {
	parsed, err := VaultABI()
	if err != nil {
		return model.TokenMeta{}, model.TokenMeta{}, fmt.Errorf("parse vault abi: %w", err)
	}
	tokenX, err := callAddress(ctx, r.backend, r.addrs.Vault, parsed, "getTokenX", blockArg(block))
	if err != nil {
		return model.TokenMeta{}, model.TokenMeta{}, err
	}
	tokenY, err := callAddress(ctx, r.backend, r.addrs.Vault, parsed, "getTokenY", blockArg(block))
	if err != nil {
		return model.TokenMeta{}, model.TokenMeta{}, err
	}
	metaX, err := r.tokenMeta(ctx, tokenX)
	if err != nil {
		return model.TokenMeta{}, model.TokenMeta{}, fmt.Errorf("token x metadata: %w", err)
	}
	metaY, err := r.tokenMeta(ctx, tokenY)
	if err != nil {
		return model.TokenMeta{}, model.TokenMeta{}, fmt.Errorf("token y metadata: %w", err)
	}
	return metaX, metaY, nil
}

func (r *Reader) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.backend, token, r.logger)
	if err != nil {
		return model.TokenMeta{}, err
	}
	r.tokens.Set(token, meta)
	return meta, nil
}

// Snapshot reads vault balances, share supply and price-per-share.
func (r *Reader) Snapshot(ctx context.Context, block uint64, metaX, metaY model.TokenMeta) (accounting.VaultSnapshot, error) {
	parsed, err := VaultABI()
	if err != nil {
		return accounting.VaultSnapshot{}, fmt.Errorf("parse vault abi: %w", err)
	}
	at := blockArg(block)

	balances, err := callBigInts(ctx, r.backend, r.addrs.Vault, parsed, "getBalances", at, 2)
	if err != nil {
		return accounting.VaultSnapshot{}, err
	}
	supply, err := callBigInts(ctx, r.backend, r.addrs.Vault, parsed, "totalSupply", at, 1)
	if err != nil {
		return accounting.VaultSnapshot{}, err
	}
	values, err := callMethod(ctx, r.backend, r.addrs.Vault, parsed, "decimals", at)
	if err != nil {
		return accounting.VaultSnapshot{}, err
	}
	shareDecimals, err := asUint8(values[0])
	if err != nil {
		return accounting.VaultSnapshot{}, fmt.Errorf("share decimals: %w", err)
	}
	ppfs, err := callBigInts(ctx, r.backend, r.addrs.Vault, parsed, "getPricePerFullShare", at, 2)
	if err != nil {
		return accounting.VaultSnapshot{}, err
	}

	snap := accounting.VaultSnapshot{
		BlockNumber:    block,
		TotalShares:    supply[0],
		ShareDecimals:  shareDecimals,
		PricePerShareX: accounting.PricePerShareFromRaw(ppfs[0], metaX.Decimals, shareDecimals),
		PricePerShareY: accounting.PricePerShareFromRaw(ppfs[1], metaY.Decimals, shareDecimals),
	}
	if snap.BalanceX, err = amount.FromMeta(balances[0], metaX); err != nil {
		return accounting.VaultSnapshot{}, err
	}
	if snap.BalanceY, err = amount.FromMeta(balances[1], metaY); err != nil {
		return accounting.VaultSnapshot{}, err
	}
	return snap, nil
}

// Strategy reads idle balances, the deployed range and the AUM fee.
func (r *Reader) Strategy(ctx context.Context, block uint64, metaX, metaY model.TokenMeta) (StrategyState, error) {
	at := blockArg(block)
	address := r.addrs.Strategy
	if address == (common.Address{}) {
		vault, err := VaultABI()
		if err != nil {
			return StrategyState{}, fmt.Errorf("parse vault abi: %w", err)
		}
		if address, err = callAddress(ctx, r.backend, r.addrs.Vault, vault, "getStrategy", at); err != nil {
			return StrategyState{}, err
		}
	}
	parsed, err := StrategyABI()
	if err != nil {
		return StrategyState{}, fmt.Errorf("parse strategy abi: %w", err)
	}

	state := StrategyState{Address: address}
	idle, err := callBigInts(ctx, r.backend, address, parsed, "getIdleBalances", at, 2)
	if err != nil {
		return StrategyState{}, err
	}
	if state.IdleX, err = amount.FromMeta(idle[0], metaX); err != nil {
		return StrategyState{}, err
	}
	if state.IdleY, err = amount.FromMeta(idle[1], metaY); err != nil {
		return StrategyState{}, err
	}

	bounds, err := callBigInts(ctx, r.backend, address, parsed, "getRange", at, 2)
	if err != nil {
		return StrategyState{}, err
	}
	lower, err := int32FromBig(bounds[0])
	if err != nil {
		return StrategyState{}, fmt.Errorf("range lower: %w", err)
	}
	upper, err := int32FromBig(bounds[1])
	if err != nil {
		return StrategyState{}, fmt.Errorf("range upper: %w", err)
	}
	// an undeployed strategy reports an empty range
	if lower < upper {
		state.Range = &rebalance.Range{Lower: lower, Upper: upper}
	}

	fee, err := callBigInts(ctx, r.backend, address, parsed, "getAumAnnualFee", at, 1)
	if err != nil {
		return StrategyState{}, err
	}
	if !fee[0].IsUint64() || fee[0].Uint64() > 10_000 {
		return StrategyState{}, fmt.Errorf("aum fee out of range: %s", fee[0])
	}
	state.AUMFeeBps = uint32(fee[0].Uint64())
	return state, nil
}

// Market reads the active tick or bin of the pool behind strategy.
func (r *Reader) Market(ctx context.Context, block uint64, strategy common.Address) (MarketState, error) {
	at := blockArg(block)
	pool := r.addrs.Pool
	if pool == (common.Address{}) {
		parsed, err := StrategyABI()
		if err != nil {
			return MarketState{}, fmt.Errorf("parse strategy abi: %w", err)
		}
		if pool, err = callAddress(ctx, r.backend, strategy, parsed, "getPair", at); err != nil {
			return MarketState{}, err
		}
	}
	state := MarketState{Meta: model.MarketMeta{Kind: r.market, Address: pool.Hex()}}

	switch r.market {
	case model.MarketTick:
		parsed, err := tickPoolABI.get()
		if err != nil {
			return MarketState{}, fmt.Errorf("parse pool abi: %w", err)
		}
		values, err := callMethod(ctx, r.backend, pool, parsed, "slot0", at)
		if err != nil {
			return MarketState{}, err
		}
		if len(values) < 2 {
			return MarketState{}, fmt.Errorf("slot0: short output")
		}
		sqrt, err := asBigInt(values[0])
		if err != nil {
			return MarketState{}, fmt.Errorf("slot0 sqrt price: %w", err)
		}
		tickInt, err := asBigInt(values[1])
		if err != nil {
			return MarketState{}, fmt.Errorf("slot0 tick: %w", err)
		}
		tick, err := int24FromBig(tickInt)
		if err != nil {
			return MarketState{}, fmt.Errorf("slot0 tick: %w", err)
		}
		values, err = callMethod(ctx, r.backend, pool, parsed, "tickSpacing", at)
		if err != nil {
			return MarketState{}, err
		}
		spacingInt, err := asBigInt(values[0])
		if err != nil {
			return MarketState{}, fmt.Errorf("tick spacing: %w", err)
		}
		spacing, err := int24FromBig(spacingInt)
		if err != nil {
			return MarketState{}, fmt.Errorf("tick spacing: %w", err)
		}
		state.SqrtPriceX96 = sqrt
		state.Meta.ActivePoint = tick
		state.Meta.Spacing = spacing
		state.Meta.SqrtPriceX96 = sqrt.String()
	case model.MarketBin:
		parsed, err := binPairABI.get()
		if err != nil {
			return MarketState{}, fmt.Errorf("parse pair abi: %w", err)
		}
		active, err := callBigInts(ctx, r.backend, pool, parsed, "getActiveId", at, 1)
		if err != nil {
			return MarketState{}, err
		}
		step, err := callBigInts(ctx, r.backend, pool, parsed, "getBinStep", at, 1)
		if err != nil {
			return MarketState{}, err
		}
		if !active[0].IsUint64() || active[0].Uint64() > rebalance.MaxBinID {
			return MarketState{}, fmt.Errorf("active id out of range: %s", active[0])
		}
		if !step[0].IsUint64() || step[0].Uint64() == 0 || step[0].Uint64() > 1<<16-1 {
			return MarketState{}, fmt.Errorf("bin step out of range: %s", step[0])
		}
		state.BinStep = uint16(step[0].Uint64())
		state.Meta.ActivePoint = int32(active[0].Uint64())
		state.Meta.Spacing = int32(state.BinStep)
		sqrt, err := pricing.SqrtPriceAtBin(uint32(active[0].Uint64()), state.BinStep)
		if err != nil {
			return MarketState{}, err
		}
		state.SqrtPriceX96 = sqrt
		state.Meta.SqrtPriceX96 = sqrt.String()
	default:
		return MarketState{}, fmt.Errorf("unsupported market kind %q", r.market)
	}
	return state, nil
}

// Oracle reads spot, TWAP, last update and sanity parameters.
func (r *Reader) Oracle(ctx context.Context, block uint64) (OracleReading, error) {
	if r.addrs.Oracle == (common.Address{}) {
		return OracleReading{}, fmt.Errorf("oracle address not configured")
	}
	parsed, err := OracleABI()
	if err != nil {
		return OracleReading{}, fmt.Errorf("parse oracle abi: %w", err)
	}
	at := blockArg(block)
	spot, err := callBigInts(ctx, r.backend, r.addrs.Oracle, parsed, "getPrice", at, 1)
	if err != nil {
		return OracleReading{}, err
	}
	twap, err := callBigInts(ctx, r.backend, r.addrs.Oracle, parsed, "getTwapPrice", at, 1)
	if err != nil {
		return OracleReading{}, err
	}
	updated, err := callBigInts(ctx, r.backend, r.addrs.Oracle, parsed, "getLastUpdate", at, 1)
	if err != nil {
		return OracleReading{}, err
	}
	params, err := callBigInts(ctx, r.backend, r.addrs.Oracle, parsed, "getOracleParameters", at, 4)
	if err != nil {
		return OracleReading{}, err
	}
	if !updated[0].IsInt64() || !params[2].IsInt64() {
		return OracleReading{}, fmt.Errorf("oracle timestamps out of range")
	}
	if !params[3].IsUint64() || params[3].Uint64() > 10_000 {
		return OracleReading{}, fmt.Errorf("oracle deviation threshold out of range: %s", params[3])
	}
	return OracleReading{
		Spot:      spot[0],
		TWAP:      twap[0],
		UpdatedAt: time.Unix(updated[0].Int64(), 0).UTC(),
		Params: pricing.OracleParams{
			MinPrice:     params[0],
			MaxPrice:     params[1],
			Heartbeat:    time.Duration(params[2].Int64()) * time.Second,
			DeviationBps: uint32(params[3].Uint64()),
		},
	}, nil
}

// User reads user's shares, queued withdrawals for rounds 0..current, wallet
// balances and allowances toward the vault.
func (r *Reader) User(ctx context.Context, block uint64, user common.Address, metaX, metaY model.TokenMeta) (UserState, error) {
	vault, err := VaultABI()
	if err != nil {
		return UserState{}, fmt.Errorf("parse vault abi: %w", err)
	}
	at := blockArg(block)
	state := UserState{Address: user}

	shares, err := callBigInts(ctx, r.backend, r.addrs.Vault, vault, "balanceOf", at, 1, user)
	if err != nil {
		return UserState{}, err
	}
	state.Shares = shares[0]

	if state.Rounds, state.Redeemable, err = r.Rounds(ctx, block, user, metaX, metaY); err != nil {
		return UserState{}, err
	}

	tokenX := common.HexToAddress(metaX.Address)
	tokenY := common.HexToAddress(metaY.Address)
	walletX, err := TokenBalance(ctx, r.backend, tokenX, user, at)
	if err != nil {
		return UserState{}, fmt.Errorf("token x balance: %w", err)
	}
	walletY, err := TokenBalance(ctx, r.backend, tokenY, user, at)
	if err != nil {
		return UserState{}, fmt.Errorf("token y balance: %w", err)
	}
	if state.WalletX, err = amount.FromMeta(walletX, metaX); err != nil {
		return UserState{}, err
	}
	if state.WalletY, err = amount.FromMeta(walletY, metaY); err != nil {
		return UserState{}, err
	}
	if state.AllowanceX, err = TokenAllowance(ctx, r.backend, tokenX, user, r.addrs.Vault, at); err != nil {
		return UserState{}, fmt.Errorf("token x allowance: %w", err)
	}
	if state.AllowanceY, err = TokenAllowance(ctx, r.backend, tokenY, user, r.addrs.Vault, at); err != nil {
		return UserState{}, fmt.Errorf("token y allowance: %w", err)
	}
	return state, nil
}

// Rounds reads rounds 0..current for user. Only user's queued shares are
// read, so every round is marked Partial. Redeemable holds the queue
// contract's own figure for each closed round the user queued in.
func (r *Reader) Rounds(ctx context.Context, block uint64, user common.Address, metaX, metaY model.TokenMeta) (queue.RoundSet, []queue.RedemptionEntry, error) {
	parsed, err := QueueABI()
	if err != nil {
		return queue.RoundSet{}, nil, fmt.Errorf("parse queue abi: %w", err)
	}
	at := blockArg(block)

	current, err := callBigInts(ctx, r.backend, r.addrs.Queue, parsed, "getCurrentRound", at, 1)
	if err != nil {
		return queue.RoundSet{}, nil, err
	}
	if !current[0].IsUint64() {
		return queue.RoundSet{}, nil, fmt.Errorf("current round out of range: %s", current[0])
	}
	currentRound := current[0].Uint64()

	rounds := make([]queue.Round, 0, currentRound+1)
	var redeemable []queue.RedemptionEntry
	for i := uint64(0); i <= currentRound; i++ {
		index := new(big.Int).SetUint64(i)
		total, err := callBigInts(ctx, r.backend, r.addrs.Queue, parsed, "getTotalQueuedWithdrawal", at, 1, index)
		if err != nil {
			return queue.RoundSet{}, nil, fmt.Errorf("round %d: %w", i, err)
		}
		queued, err := callBigInts(ctx, r.backend, r.addrs.Queue, parsed, "getQueuedWithdrawal", at, 1, index, user)
		if err != nil {
			return queue.RoundSet{}, nil, fmt.Errorf("round %d: %w", i, err)
		}
		round := queue.Round{
			Index:             i,
			TotalQueuedShares: total[0],
			PerUser:           map[common.Address]*big.Int{user: queued[0]},
			Partial:           true,
		}

		if i < currentRound {
			values, err := callMethod(ctx, r.backend, r.addrs.Queue, parsed, "getRoundRelease", at, index)
			if err != nil {
				return queue.RoundSet{}, nil, fmt.Errorf("round %d: %w", i, err)
			}
			processed, err := asBool(values[2])
			if err != nil {
				return queue.RoundSet{}, nil, fmt.Errorf("round %d processed: %w", i, err)
			}
			if processed {
				if round.ReleasedX, err = asBigInt(values[0]); err != nil {
					return queue.RoundSet{}, nil, fmt.Errorf("round %d released x: %w", i, err)
				}
				if round.ReleasedY, err = asBigInt(values[1]); err != nil {
					return queue.RoundSet{}, nil, fmt.Errorf("round %d released y: %w", i, err)
				}
			}
			if queued[0].Sign() > 0 {
				amounts, err := callBigInts(ctx, r.backend, r.addrs.Queue, parsed, "getRedeemableAmounts", at, 2, index, user)
				if err != nil {
					return queue.RoundSet{}, nil, fmt.Errorf("round %d: %w", i, err)
				}
				entry := queue.RedemptionEntry{Round: i}
				if entry.AmountX, err = amount.FromMeta(amounts[0], metaX); err != nil {
					return queue.RoundSet{}, nil, err
				}
				if entry.AmountY, err = amount.FromMeta(amounts[1], metaY); err != nil {
					return queue.RoundSet{}, nil, err
				}
				if !entry.IsZero() {
					redeemable = append(redeemable, entry)
				}
			}
		}
		rounds = append(rounds, round)
	}

	set, err := queue.NewRoundSet(currentRound, rounds)
	if err != nil {
		return queue.RoundSet{}, nil, err
	}
	return set, redeemable, nil
}

// PreviewShares asks the vault how many shares a deposit would mint.
func (r *Reader) PreviewShares(ctx context.Context, block uint64, amountX, amountY *big.Int) (*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	out, err := callBigInts(ctx, r.backend, r.addrs.Vault, parsed, "previewShares", blockArg(block), 1, amountX, amountY)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
