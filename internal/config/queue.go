package config

import "github.com/spf13/pflag"

// QueueConfig holds configuration for the queue commands.
type QueueConfig struct {
	Common
	Shares    string
	Round     uint64
	Recipient string
}

// DepositConfig holds configuration for the deposit command.
type DepositConfig struct {
	Common
	AmountX     string
	AmountY     string
	SlippageBps uint32
}

// LoadQueue merges config file, environment variables, and flags into QueueConfig.
func LoadQueue(cfgFile string, flags *pflag.FlagSet) (QueueConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return QueueConfig{}, err
	}
	return QueueConfig{
		Common:    readCommon(v),
		Shares:    v.GetString("shares"),
		Round:     v.GetUint64("round"),
		Recipient: v.GetString("recipient"),
	}, nil
}

// LoadDeposit merges config file, environment variables, and flags into DepositConfig.
func LoadDeposit(cfgFile string, flags *pflag.FlagSet) (DepositConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"slippage-bps": uint32(50),
	})
	if err != nil {
		return DepositConfig{}, err
	}
	return DepositConfig{
		Common:      readCommon(v),
		AmountX:     v.GetString("amount-x"),
		AmountY:     v.GetString("amount-y"),
		SlippageBps: v.GetUint32("slippage-bps"),
	}, nil
}
