package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/console"
	"vaultScope/internal/ops"
)

func runDeposit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadDeposit(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.User == "" {
		return fmt.Errorf("user address is required")
	}

	ctx, stop := signalContext()
	defer stop()

	sess, err := openSession(ctx, cfg.Common, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	state, err := sess.reader.LoadState(ctx, cfg.Block, sess.user)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}

	report, err := ops.PlanDeposit(ctx, sess.reader, sess.addrs.Vault, state, ops.DepositRequest{
		AmountX:     cfg.AmountX,
		AmountY:     cfg.AmountY,
		SlippageBps: cfg.SlippageBps,
	})
	if err != nil {
		return err
	}
	console.WriteDeposit(cmd.OutOrStdout(), report)

	if err := newExporter(cfg.Out).Record("deposit", report); err != nil {
		return fmt.Errorf("export deposit: %w", err)
	}
	logger.Info("deposit planned",
		zap.Uint64("block", state.BlockNumber),
		zap.String("amount_x", report.Plan.AmountX.String()),
		zap.String("amount_y", report.Plan.AmountY.String()),
		zap.String("min_shares", report.Plan.MinShares.String()),
	)
	return nil
}
