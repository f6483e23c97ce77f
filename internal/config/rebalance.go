package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RebalanceOptions tunes range proposals.
type RebalanceOptions struct {
	// Width is a percent for tick markets and a bin count for bin markets.
	Width          string
	ReservePercent uint32
	// Slippage of the desired active point. Zero takes the market default.
	Slippage    uint32
	ActiveSplit bool
}

// RebalanceConfig holds configuration for the rebalance command.
type RebalanceConfig struct {
	Common
	Rebalance RebalanceOptions
	PriceX    string
	PriceY    string
}

// LoadRebalance merges config file, environment variables, and flags into RebalanceConfig.
func LoadRebalance(cfgFile string, flags *pflag.FlagSet) (RebalanceConfig, error) {
	v, err := newViper(cfgFile, flags, rebalanceDefaults())
	if err != nil {
		return RebalanceConfig{}, err
	}
	return RebalanceConfig{
		Common:    readCommon(v),
		Rebalance: readRebalance(v),
		PriceX:    v.GetString("price-x"),
		PriceY:    v.GetString("price-y"),
	}, nil
}

func rebalanceDefaults() map[string]interface{} {
	return map[string]interface{}{
		"width":           "10",
		"reserve-percent": uint32(10),
	}
}

func readRebalance(v *viper.Viper) RebalanceOptions {
	return RebalanceOptions{
		Width:          v.GetString("width"),
		ReservePercent: v.GetUint32("reserve-percent"),
		Slippage:       v.GetUint32("slippage"),
		ActiveSplit:    v.GetBool("active-split"),
	}
}
