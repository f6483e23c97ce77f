package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Dual-token vault inspection and planning tool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Value the vault and a user's position at one block",
		RunE:  runSnapshot,
	}
	addCommonFlags(snapshotCmd)
	addValuationFlags(snapshotCmd)
	root.AddCommand(snapshotCmd)

	root.AddCommand(newQueueCmd())

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Check a deposit against wallet and allowance and build its calldata",
		RunE:  runDeposit,
	}
	addCommonFlags(depositCmd)
	depositCmd.Flags().String("amount-x", "", "token X amount (decimal, N%, max or Nwei)")
	depositCmd.Flags().String("amount-y", "", "token Y amount (decimal, N%, max or Nwei)")
	depositCmd.Flags().Uint32("slippage-bps", 50, "min shares slippage in basis points")
	root.AddCommand(depositCmd)

	rebalanceCmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Propose a range, distribution and deposit for the strategy's idle balances",
		RunE:  runRebalance,
	}
	addCommonFlags(rebalanceCmd)
	addRebalanceFlags(rebalanceCmd)
	rebalanceCmd.Flags().String("price-x", "", "token X USD price for the value ratio")
	rebalanceCmd.Flags().String("price-y", "", "token Y USD price for the value ratio")
	root.AddCommand(rebalanceCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Scan vault deposit and withdrawal logs into a user's deposit ledger",
		RunE:  runHistory,
	}
	addCommonFlags(historyCmd)
	historyCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	historyCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	historyCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	historyCmd.Flags().String("checkpoint", "./data/history_checkpoint.json", "checkpoint file path")
	historyCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	historyCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	historyCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	historyCmd.Flags().String("price-x", "", "token X USD price for the deposit total")
	historyCmd.Flags().String("price-y", "", "token Y USD price for the deposit total")
	root.AddCommand(historyCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh snapshots on an interval and export Prometheus gauges",
		RunE:  runWatch,
	}
	addCommonFlags(watchCmd)
	addValuationFlags(watchCmd)
	watchCmd.Flags().StringSlice("users", nil, "extra users valued at the same block (comma-separated)")
	watchCmd.Flags().Duration("interval", 30*time.Second, "refresh interval")
	watchCmd.Flags().Duration("price-ttl", 30*time.Second, "how long resolved USD quotes are reused")
	watchCmd.Flags().String("metrics-addr", ":9108", "Prometheus listen address, empty disables")
	watchCmd.Flags().Int("iterations", 0, "stop after N refreshes, 0 runs until interrupted")
	root.AddCommand(watchCmd)

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive numbered menu",
		RunE:  runConsole,
	}
	addCommonFlags(consoleCmd)
	addValuationFlags(consoleCmd)
	addRebalanceFlags(consoleCmd)
	root.AddCommand(consoleCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
