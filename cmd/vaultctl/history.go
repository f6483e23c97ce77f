package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/config"
	"vaultScope/internal/contracts"
	"vaultScope/internal/history"
	"vaultScope/internal/storage"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadHistory(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	addrs, err := cfg.ContractAddresses()
	if err != nil {
		return err
	}
	user, err := cfg.UserAddress()
	if err != nil {
		return err
	}
	market, err := cfg.MarketKind()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var sinks storage.MultiSink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	store, err := openStore(ctx, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		sinks = append(sinks, store)
	}

	runner, err := history.NewRunner(history.RunConfig{
		Vault:             addrs.Vault,
		User:              user,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, sinks, logger)
	if err != nil {
		return err
	}
	if store != nil {
		runner.WithLedgerStore(store)
	}

	logger.Info("history start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("vault", addrs.Vault.Hex()),
		zap.String("user", cfg.User),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Bool("postgres", store != nil),
	)

	ledger, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	reader, err := contracts.NewReader(chainClient, contracts.ReaderConfig{Addresses: addrs, Market: market, Logger: logger})
	if err != nil {
		return err
	}
	metaX, metaY, err := reader.Tokens(ctx, 0)
	if err != nil {
		return err
	}
	depositedX, depositedY, err := ledger.TotalDeposited(metaX, metaY)
	if err != nil {
		return err
	}
	pending := ledger.PendingShares().String()
	depositedUSD, netUSD := "", ""

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deposit ledger for %s (%d events, blocks %d-%d)\n", displayUser(ledger.User), ledger.Events, ledger.FirstBlock, ledger.LastBlock)
	fmt.Fprintf(out, "  deposited:      %s, %s\n", depositedX, depositedY)
	fmt.Fprintf(out, "  shares minted:  %s\n", ledger.SharesMinted)
	fmt.Fprintf(out, "  pending shares: %s\n", pending)
	redeemedX, redeemedY, err := ledger.TotalRedeemed(metaX, metaY)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  redeemed:       %s, %s\n", redeemedX, redeemedY)

	priceX, err := config.OptionalPrice(cfg.PriceX)
	if err != nil {
		return fmt.Errorf("invalid price-x: %w", err)
	}
	priceY, err := config.OptionalPrice(cfg.PriceY)
	if err != nil {
		return fmt.Errorf("invalid price-y: %w", err)
	}
	if priceX.IsPositive() && priceY.IsPositive() {
		usd, err := ledger.TotalDepositedUSD(metaX, metaY, priceX, priceY)
		if err != nil {
			return err
		}
		depositedUSD = usd.StringFixed(2)
		net, err := ledger.NetDepositedUSD(metaX, metaY, priceX, priceY)
		if err != nil {
			return err
		}
		netUSD = net.StringFixed(2)
		fmt.Fprintf(out, "  deposited USD:  $%s\n", depositedUSD)
		fmt.Fprintf(out, "  net basis USD:  $%s\n", netUSD)
	}

	logger.Info("history complete",
		zap.Uint64("events", ledger.Events),
		zap.String("deposited_x", depositedX.Text()),
		zap.String("deposited_y", depositedY.Text()),
		zap.String("pending_shares", pending),
		zap.String("deposited_usd", depositedUSD),
		zap.String("net_basis_usd", netUSD),
	)
	return nil
}

func displayUser(user string) string {
	if user == "" {
		return "all users"
	}
	return user
}
