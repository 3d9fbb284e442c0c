package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In           string
	Out          string
	Genesis      string
	StateFile    string
	PGDSN        string
	BatchSize    int
	FeeBps       uint64
	Now          uint64
	RPCURL       string
	MaxRetries   int
	RetryBackoff time.Duration
	MetricsFile  string
	LogLevel     string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":           "./data/results.jsonl",
		"batch-size":    500,
		"fee-bps":       uint64(0),
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	now, err := ParseTimestamp(v.GetString("now"))
	if err != nil {
		return ReplayConfig{}, fmt.Errorf("parse now: %w", err)
	}

	cfg := ReplayConfig{
		In:           v.GetString("in"),
		Out:          v.GetString("out"),
		Genesis:      v.GetString("genesis"),
		StateFile:    v.GetString("state-file"),
		PGDSN:        v.GetString("pg-dsn"),
		BatchSize:    v.GetInt("batch-size"),
		FeeBps:       v.GetUint64("fee-bps"),
		Now:          now,
		RPCURL:       v.GetString("rpc"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MetricsFile:  v.GetString("metrics-file"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.In == "" {
		return ReplayConfig{}, fmt.Errorf("--in is required")
	}
	if cfg.BatchSize <= 0 {
		return ReplayConfig{}, fmt.Errorf("batch-size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.FeeBps >= 10_000 {
		return ReplayConfig{}, fmt.Errorf("fee-bps must be below 10000, got %d", cfg.FeeBps)
	}
	return cfg, nil
}
