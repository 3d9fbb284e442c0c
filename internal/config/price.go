package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// PriceConfig holds configuration for the price command.
type PriceConfig struct {
	StateFile string
	PGDSN     string
	Base      string
	Quote     string
	RPCURL    string
	LogLevel  string
}

// LoadPrice merges config file, environment variables, and flags into PriceConfig.
func LoadPrice(cfgFile string, flags *pflag.FlagSet) (PriceConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"log-level": "info",
	})
	if err != nil {
		return PriceConfig{}, err
	}

	cfg := PriceConfig{
		StateFile: v.GetString("state-file"),
		PGDSN:     v.GetString("pg-dsn"),
		Base:      v.GetString("base"),
		Quote:     v.GetString("quote"),
		RPCURL:    v.GetString("rpc"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.StateFile == "" && cfg.PGDSN == "" {
		return PriceConfig{}, fmt.Errorf("one of --state-file or --pg-dsn is required")
	}
	if cfg.Base == "" || cfg.Quote == "" {
		return PriceConfig{}, fmt.Errorf("--base and --quote are required")
	}
	return cfg, nil
}
