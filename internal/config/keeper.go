package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// KeeperConfig holds configuration for the liquidation keeper.
type KeeperConfig struct {
	Config
	Interval     time.Duration
	SlippageBps  uint16
	MaxRetries   int
	RetryBackoff time.Duration
	KeeperState  string
	StateName    string
	MetricsAddr  string
}

// LoadKeeper merges config file, environment variables, and flags into KeeperConfig.
func LoadKeeper(cfgFile string, flags *pflag.FlagSet) (KeeperConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return KeeperConfig{}, err
	}
	v.SetDefault("interval", 30*time.Second)
	v.SetDefault("slippage-bps", 100)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("keeper-state", "./data/keeper.json")
	v.SetDefault("state-name", "keeper")
	v.SetDefault("metrics-addr", ":9464")

	base, err := fromViper(v)
	if err != nil {
		return KeeperConfig{}, err
	}
	// Liquidations redeem against the local pool program, so quotes must
	// come from the same reserves.
	if base.RPCURL != "" {
		return KeeperConfig{}, fmt.Errorf("rpc %q: keeper quotes only the pools it liquidates", base.RPCURL)
	}
	slippage := v.GetUint("slippage-bps")
	if slippage > 10_000 {
		return KeeperConfig{}, fmt.Errorf("slippage-bps %d above 10000", slippage)
	}

	return KeeperConfig{
		Config:       base,
		Interval:     v.GetDuration("interval"),
		SlippageBps:  uint16(slippage),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		KeeperState:  v.GetString("keeper-state"),
		StateName:    v.GetString("state-name"),
		MetricsAddr:  v.GetString("metrics-addr"),
	}, nil
}
