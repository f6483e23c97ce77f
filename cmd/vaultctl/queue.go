package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultScope/internal/config"
	"vaultScope/internal/console"
	"vaultScope/internal/contracts"
	"vaultScope/internal/ops"
)

func newQueueCmd() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and plan round-based withdrawals",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show available, queued and redeemable shares",
		RunE:  runQueueStatus,
	}
	addCommonFlags(statusCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Queue shares for withdrawal in the current round",
		RunE:  runQueueWithdraw,
	}
	addCommonFlags(withdrawCmd)
	withdrawCmd.Flags().String("shares", "", "shares to queue (decimal, N%, max or Nwei)")
	withdrawCmd.Flags().String("recipient", "", "recipient, defaults to the user")

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel shares queued in the current round",
		RunE:  runQueueCancel,
	}
	addCommonFlags(cancelCmd)
	cancelCmd.Flags().String("shares", "", "shares to cancel (decimal, N%, max or Nwei)")

	redeemCmd := &cobra.Command{
		Use:   "redeem",
		Short: "Redeem a closed round",
		RunE:  runQueueRedeem,
	}
	addCommonFlags(redeemCmd)
	redeemCmd.Flags().Uint64("round", 0, "closed round to redeem")
	redeemCmd.Flags().String("recipient", "", "recipient, defaults to the user")

	queueCmd.AddCommand(statusCmd, withdrawCmd, cancelCmd, redeemCmd)
	return queueCmd
}

// withQueueState loads the queue config and a user state, then hands both to fn.
func withQueueState(cmd *cobra.Command, fn func(cfg config.QueueConfig, sess *session, state contracts.VaultState) (string, interface{}, error)) error {
	cfg, err := config.LoadQueue(configFile(cmd), cmd.Flags())
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

	kind, result, err := fn(cfg, sess, state)
	if err != nil {
		return err
	}
	if err := newExporter(cfg.Out).Record(kind, result); err != nil {
		return fmt.Errorf("export %s: %w", kind, err)
	}
	logger.Info("queue command complete", zap.String("kind", kind), zap.Uint64("block", state.BlockNumber))
	return nil
}

func runQueueStatus(cmd *cobra.Command, _ []string) error {
	return withQueueState(cmd, func(_ config.QueueConfig, _ *session, state contracts.VaultState) (string, interface{}, error) {
		report, err := ops.QueueStatus(state)
		if err != nil {
			return "", nil, err
		}
		console.WriteQueue(cmd.OutOrStdout(), report)
		return "queue", report, nil
	})
}

func runQueueWithdraw(cmd *cobra.Command, _ []string) error {
	return withQueueState(cmd, func(cfg config.QueueConfig, sess *session, state contracts.VaultState) (string, interface{}, error) {
		recipient, err := config.ParseAddress("recipient", cfg.Recipient)
		if err != nil {
			return "", nil, err
		}
		plan, err := ops.PlanWithdrawal(sess.addrs.Vault, state, cfg.Shares, recipient)
		if err != nil {
			return "", nil, err
		}
		console.WriteSharePlan(cmd.OutOrStdout(), "Queue withdrawal", plan)
		return "withdraw", plan, nil
	})
}

func runQueueCancel(cmd *cobra.Command, _ []string) error {
	return withQueueState(cmd, func(cfg config.QueueConfig, sess *session, state contracts.VaultState) (string, interface{}, error) {
		plan, err := ops.PlanCancel(sess.addrs.Vault, state, cfg.Shares)
		if err != nil {
			return "", nil, err
		}
		console.WriteSharePlan(cmd.OutOrStdout(), "Cancel queued withdrawal", plan)
		return "cancel", plan, nil
	})
}

func runQueueRedeem(cmd *cobra.Command, _ []string) error {
	return withQueueState(cmd, func(cfg config.QueueConfig, sess *session, state contracts.VaultState) (string, interface{}, error) {
		recipient, err := config.ParseAddress("recipient", cfg.Recipient)
		if err != nil {
			return "", nil, err
		}
		plan, err := ops.PlanRedeem(sess.addrs.Vault, state, cfg.Round, recipient)
		if err != nil {
			return "", nil, err
		}
		console.WriteRedeem(cmd.OutOrStdout(), plan)
		return "redeem", plan, nil
	})
}
