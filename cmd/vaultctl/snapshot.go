package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/console"
	"vaultScope/internal/ops"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadSnapshot(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

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

	state, err := sess.reader.LoadState(ctx, cfg.Block, sess.user)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}

	now := time.Now()
	in, err := valuationInput(ctx, store, sess.addrs.Vault, state, cfg.Valuation, true, now)
	if err != nil {
		return err
	}
	v, err := ops.Valuate(sess.addrs.Vault, state, in)
	if err != nil {
		return err
	}
	console.WriteValuation(cmd.OutOrStdout(), state, v)

	if err := newExporter(cfg.Out).Record("snapshot", v); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	if store != nil {
		if err := store.InsertSnapshot(ctx, v.Record(sess.chainID, state, now)); err != nil {
			return err
		}
	}

	logger.Info("snapshot complete",
		zap.Uint64("block", state.BlockNumber),
		zap.String("tvl_usd", v.Metrics.TotalTVLUSD.StringFixed(2)),
		zap.Bool("price_x_stale", v.Metrics.PriceXStale),
		zap.Bool("price_y_stale", v.Metrics.PriceYStale),
	)
	return nil
}
