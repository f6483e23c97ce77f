package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Valuation holds the external USD prices and the deposit basis used to value
// a snapshot.
type Valuation struct {
	PriceX string
	PriceY string
	// PriceUpdated is when the prices were observed, unix seconds or RFC3339.
	// Empty means now.
	PriceUpdated string
	// TotalDeposited overrides the USD deposit basis. Empty means use the
	// stored deposit ledger when one exists, else zero.
	TotalDeposited string
	StaleAfter     time.Duration
}

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	Common
	Valuation
}

// WatchConfig holds configuration for the watch command.
type WatchConfig struct {
	Common
	Valuation
	// Users are valued alongside User at the same block.
	Users       []string
	Interval    time.Duration
	PriceTTL    time.Duration
	MetricsAddr string
	Iterations  int
}

// ConsoleConfig holds configuration for the interactive console.
type ConsoleConfig struct {
	Common
	Valuation
	Rebalance RebalanceOptions
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, valuationDefaults())
	if err != nil {
		return SnapshotConfig{}, err
	}
	return SnapshotConfig{Common: readCommon(v), Valuation: readValuation(v)}, nil
}

// LoadWatch merges config file, environment variables, and flags into WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	defaults := valuationDefaults()
	defaults["interval"] = 30 * time.Second
	defaults["price-ttl"] = 30 * time.Second
	defaults["metrics-addr"] = ":9108"
	v, err := newViper(cfgFile, flags, defaults)
	if err != nil {
		return WatchConfig{}, err
	}
	return WatchConfig{
		Common:      readCommon(v),
		Valuation:   readValuation(v),
		Users:       getStringSlice(v, "users"),
		Interval:    v.GetDuration("interval"),
		PriceTTL:    v.GetDuration("price-ttl"),
		MetricsAddr: v.GetString("metrics-addr"),
		Iterations:  v.GetInt("iterations"),
	}, nil
}

// LoadConsole merges config file, environment variables, and flags into ConsoleConfig.
func LoadConsole(cfgFile string, flags *pflag.FlagSet) (ConsoleConfig, error) {
	defaults := valuationDefaults()
	for key, value := range rebalanceDefaults() {
		defaults[key] = value
	}
	v, err := newViper(cfgFile, flags, defaults)
	if err != nil {
		return ConsoleConfig{}, err
	}
	return ConsoleConfig{
		Common:    readCommon(v),
		Valuation: readValuation(v),
		Rebalance: readRebalance(v),
	}, nil
}

func valuationDefaults() map[string]interface{} {
	return map[string]interface{}{
		"stale-after": 60 * time.Second,
	}
}

func readValuation(v *viper.Viper) Valuation {
	return Valuation{
		PriceX:         v.GetString("price-x"),
		PriceY:         v.GetString("price-y"),
		PriceUpdated:   v.GetString("price-updated"),
		TotalDeposited: v.GetString("total-deposited"),
		StaleAfter:     v.GetDuration("stale-after"),
	}
}
