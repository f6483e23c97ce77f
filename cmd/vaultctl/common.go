package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
	"vaultScope/internal/pricing"
	"vaultScope/internal/storage"
	"vaultScope/internal/storage/postgres"
)

func addCommonFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("rpc", "", "EVM RPC URL")
	flags.String("vault", "", "vault address")
	flags.String("strategy", "", "strategy address, defaults to the vault's getStrategy")
	flags.String("queue", "", "queue handler address, defaults to the vault")
	flags.String("oracle", "", "oracle address, optional")
	flags.String("pool", "", "pool or pair address, defaults to the strategy's getPair")
	flags.String("user", "", "user address")
	flags.String("market", "tick", "market kind (tick or bin)")
	flags.Uint64("block", 0, "block to read at, 0 means latest")
	flags.String("out", "", "append results to this JSONL file")
	flags.String("pg-dsn", "", "Postgres DSN, optional")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addValuationFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("price-x", "", "token X USD price, derived from the oracle when empty")
	flags.String("price-y", "", "token Y USD price, derived from the oracle when empty")
	flags.String("price-updated", "", "when prices were observed (unix seconds or RFC3339), empty means now")
	flags.String("total-deposited", "", "USD deposit basis, defaults to the stored deposit ledger")
	flags.Duration("stale-after", 60*time.Second, "price age after which quotes are flagged stale")
}

func addRebalanceFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("width", "10", "range half width in percent (tick) or total bin count (bin)")
	flags.Uint32("reserve-percent", 10, "percent of idle balances kept out of the range")
	flags.Uint32("slippage", 0, "active point slippage, 0 takes the market default")
	flags.Bool("active-split", false, "put X above and Y below the active point")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

// session is one RPC connection plus a reader bound to the configured vault.
type session struct {
	client  *chain.Client
	reader  *contracts.Reader
	addrs   contracts.Addresses
	user    common.Address
	chainID uint64
}

func openSession(ctx context.Context, cfg config.Common, logger *zap.Logger) (*session, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	addrs, err := cfg.ContractAddresses()
	if err != nil {
		return nil, err
	}
	user, err := cfg.UserAddress()
	if err != nil {
		return nil, err
	}
	market, err := cfg.MarketKind()
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	reader, err := contracts.NewReader(client, contracts.ReaderConfig{
		Addresses: addrs,
		Market:    market,
		Tokens:    contracts.NewTokenMetaCache(),
		Logger:    logger,
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("session open",
		zap.Uint64("chain_id", chainID),
		zap.String("vault", addrs.Vault.Hex()),
		zap.String("market", string(market)),
		zap.String("user", cfg.User),
	)
	return &session{client: client, reader: reader, addrs: addrs, user: user, chainID: chainID}, nil
}

func (s *session) Close() {
	s.client.Close()
}

// pinned adapts a session to console.Backend: every load reads at block, or
// at the head when block is zero.
type pinned struct {
	s     *session
	block uint64
}

func (p pinned) LoadState(ctx context.Context) (contracts.VaultState, error) {
	return p.s.reader.LoadState(ctx, p.block, p.s.user)
}

func (p pinned) PreviewShares(ctx context.Context, block uint64, amountX, amountY *big.Int) (*big.Int, error) {
	return p.s.reader.PreviewShares(ctx, block, amountX, amountY)
}

// openStore connects to Postgres when dsn is set. It returns nil otherwise.
func openStore(ctx context.Context, dsn string, logger *zap.Logger) (*postgres.Store, error) {
	if dsn == "" {
		return nil, nil
	}
	store, err := postgres.NewStore(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

type exportRecord struct {
	Kind       string      `json:"kind"`
	ExportedAt time.Time   `json:"exported_at"`
	Result     interface{} `json:"result"`
}

// exporter appends results to a JSONL file. A nil exporter drops them.
type exporter struct {
	store *storage.JsonlStorage
}

func newExporter(path string) *exporter {
	if path == "" {
		return nil
	}
	return &exporter{store: storage.NewJsonlStorage(path)}
}

func (e *exporter) Record(kind string, result interface{}) error {
	if e == nil {
		return nil
	}
	return e.store.Append(exportRecord{Kind: kind, ExportedAt: time.Now().UTC(), Result: result})
}

// valuationInput resolves the configured quotes against state and picks the
// deposit basis: the override when set, else the stored ledger valued at the
// resolved quotes, else zero.
func valuationInput(ctx context.Context, store *postgres.Store, vault common.Address, state contracts.VaultState, val config.Valuation, override bool, now time.Time) (ops.ValuationInput, error) {
	x, y, err := val.Quotes(state.TokenX.Label(), state.TokenY.Label(), now)
	if err != nil {
		return ops.ValuationInput{}, err
	}
	return valuationFromQuotes(ctx, store, vault, state, x, y, val, override, now)
}

func valuationFromQuotes(ctx context.Context, store *postgres.Store, vault common.Address, state contracts.VaultState, x, y pricing.Quote, val config.Valuation, override bool, now time.Time) (ops.ValuationInput, error) {
	x, y, err := ops.ResolveQuotes(state, x, y)
	if err != nil {
		return ops.ValuationInput{}, err
	}
	in := ops.ValuationInput{PriceX: x, PriceY: y, StaleAfter: val.StaleAfter, Now: now}

	if override {
		basis, ok, err := val.DepositBasis()
		if err != nil {
			return ops.ValuationInput{}, err
		}
		if ok {
			in.TotalDepositedUSD = basis
			return in, nil
		}
	}
	if store == nil || state.User == nil {
		return in, nil
	}
	ledger, _, found, err := store.LoadLedger(ctx, vault.Hex(), state.User.Address.Hex())
	if err != nil {
		return ops.ValuationInput{}, err
	}
	if !found {
		return in, nil
	}
	basis, err := ledger.NetDepositedUSD(state.TokenX, state.TokenY, x.USD, y.USD)
	if err != nil {
		return ops.ValuationInput{}, err
	}
	in.TotalDepositedUSD = basis
	return in, nil
}

func rebalanceRequest(opts config.RebalanceOptions, priceX, priceY string) (ops.RebalanceRequest, error) {
	width, err := decimal.NewFromString(opts.Width)
	if err != nil {
		return ops.RebalanceRequest{}, fmt.Errorf("invalid width %q: %w", opts.Width, err)
	}
	px, err := config.OptionalPrice(priceX)
	if err != nil {
		return ops.RebalanceRequest{}, fmt.Errorf("invalid price-x: %w", err)
	}
	py, err := config.OptionalPrice(priceY)
	if err != nil {
		return ops.RebalanceRequest{}, fmt.Errorf("invalid price-y: %w", err)
	}
	reserve := opts.ReservePercent
	return ops.RebalanceRequest{
		Width:          width,
		ReservePercent: &reserve,
		Slippage:       opts.Slippage,
		ActiveSplit:    opts.ActiveSplit,
		PriceX:         px,
		PriceY:         py,
	}, nil
}
