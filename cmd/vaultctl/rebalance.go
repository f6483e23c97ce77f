package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/console"
	"vaultScope/internal/ops"
)

func runRebalance(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadRebalance(configFile(cmd), cmd.Flags())
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

	state, err := sess.reader.LoadState(ctx, cfg.Block, sess.user)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}

	report, err := ops.PlanRebalance(state, req)
	if err != nil {
		return err
	}
	console.WriteRebalance(cmd.OutOrStdout(), report)
	if report.RatioError != "" {
		logger.Debug("value ratio unavailable", zap.String("reason", report.RatioError))
	}

	if err := newExporter(cfg.Out).Record("rebalance", report); err != nil {
		return fmt.Errorf("export rebalance: %w", err)
	}
	logger.Info("rebalance proposed",
		zap.Uint64("block", report.BlockNumber),
		zap.Int32("lower", report.Range.Lower),
		zap.Int32("upper", report.Range.Upper),
		zap.Int("steps", report.Range.Steps()),
	)
	return nil
}
