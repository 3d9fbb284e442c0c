package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/chain"
	"cpamm/internal/config"
	"cpamm/internal/ledger"
	"cpamm/internal/replay"
	"cpamm/internal/storage"
	"cpamm/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	bank, err := loadBank(cfg.Genesis)
	if err != nil {
		return err
	}
	shares := ledger.NewShares()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		base      amm.Clock = amm.SystemClock
		refresher replay.Refresher
	)
	switch {
	case cfg.RPCURL != "":
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		blockClock := chain.NewBlockClock(chainClient, cfg.MaxRetries, cfg.RetryBackoff, logger)
		base, refresher = blockClock, blockClock
	case cfg.Now != 0:
		base = amm.FixedClock(cfg.Now)
	}
	clock := replay.NewClock(base)

	registry := prometheus.NewRegistry()
	engine, err := amm.NewEngine(amm.Config{
		FeeBps:  cfg.FeeBps,
		Clock:   clock,
		Metrics: amm.NewMetrics(registry),
	}, amm.NewRegistry(), bank, shares, logger.Named("engine"))
	if err != nil {
		return err
	}

	sinks := []storage.ResultSink{storage.NewJsonlStorage(cfg.Out)}
	var stateStore replay.StateStore
	if cfg.StateFile != "" {
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
		if stateStore == nil {
			stateStore = &replay.DBStateStore{Store: store, Name: replay.DefaultStateName}
		}
	}

	runner := replay.NewRunner(replay.Config{
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
		Sinks:      sinks,
		Clock:      clock,
		Refresher:  refresher,
	}, engine, bank, shares, logger)

	logger.Info("replay start",
		zap.String("input", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("genesis", cfg.Genesis),
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("fee_bps", cfg.FeeBps),
		zap.String("custody", bank.Custody().Hex()),
	)

	_, runErr := runner.Run(ctx, cfg.In)
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			logger.Error("write metrics", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}
	return runErr
}

func loadBank(genesisPath string) (*ledger.Bank, error) {
	if genesisPath == "" {
		return ledger.NewBank(common.Address{}, false), nil
	}
	genesis, err := ledger.LoadGenesis(genesisPath)
	if err != nil {
		return nil, err
	}
	return genesis.NewBank()
}
