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
		Use:          "amm",
		Short:        "Constant-product pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an operation stream against the pool engine",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input operations JSONL")
	replayCmd.Flags().String("out", "./data/results.jsonl", "output results JSONL")
	replayCmd.Flags().String("genesis", "", "genesis balances YAML")
	replayCmd.Flags().String("state-file", "", "local state file for resuming")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN for results and state")
	replayCmd.Flags().Int("batch-size", 500, "operations per batch")
	replayCmd.Flags().Uint64("fee-bps", 0, "swap fee in basis points")
	replayCmd.Flags().String("now", "", "clock value for records without a timestamp (unix seconds or RFC3339)")
	replayCmd.Flags().String("rpc", "", "RPC URL; the latest block timestamp becomes the clock")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("metrics-file", "", "write engine metrics in text exposition format")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Print the spot price of a pool from saved state",
		RunE:  runPrice,
	}

	priceCmd.Flags().String("state-file", "", "local state file")
	priceCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	priceCmd.Flags().String("base", "", "base asset address")
	priceCmd.Flags().String("quote", "", "quote asset address")
	priceCmd.Flags().String("rpc", "", "RPC URL for token decimals")
	priceCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(priceCmd)

	root.AddCommand(newQuoteCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newQuoteCmd() *cobra.Command {
	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate a swap from raw reserves",
		Long:  "Prints the output for --amount-in, or the smallest input that yields --amount-out.",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().String("amount-out", "", "desired output amount")
	quoteCmd.Flags().String("reserve-in", "", "reserve of the input asset")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output asset")
	quoteCmd.Flags().Uint64("fee-bps", 0, "swap fee in basis points")

	return quoteCmd
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
