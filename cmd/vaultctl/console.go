package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vaultScope/internal/config"
	"vaultScope/internal/console"
	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
)

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConsole(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, err := rebalanceRequest(cfg.Rebalance, cfg.PriceX, cfg.PriceY)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sess, err := openSession(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := openStore(ctx, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	backend := pinned{s: sess, block: cfg.Block}
	c, err := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), backend, console.Options{
		Vault: sess.addrs.Vault,
		Quotes: func(ctx context.Context, state contracts.VaultState, now time.Time) (ops.ValuationInput, error) {
			return valuationInput(ctx, store, sess.addrs.Vault, state, cfg.Valuation, true, now)
		},
		Rebalance: req,
		Record:    newExporter(cfg.Out).Record,
		Prompt:    console.IsTerminal(os.Stdin),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
