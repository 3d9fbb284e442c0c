package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	AmountIn   string
	AmountOut  string
	ReserveIn  string
	ReserveOut string
	FeeBps     uint64
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"fee-bps": uint64(0),
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		AmountIn:   v.GetString("amount-in"),
		AmountOut:  v.GetString("amount-out"),
		ReserveIn:  v.GetString("reserve-in"),
		ReserveOut: v.GetString("reserve-out"),
		FeeBps:     v.GetUint64("fee-bps"),
	}
	if (cfg.AmountIn == "") == (cfg.AmountOut == "") {
		return QuoteConfig{}, fmt.Errorf("exactly one of --amount-in or --amount-out is required")
	}
	return cfg, nil
}
