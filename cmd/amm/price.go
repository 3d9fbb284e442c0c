package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/chain"
	"cpamm/internal/config"
	"cpamm/internal/model"
	"cpamm/internal/replay"
	"cpamm/internal/storage/postgres"
)

func runPrice(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrice(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	base, err := model.ParseAddress(cfg.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	quote, err := model.ParseAddress(cfg.Quote)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := loadSnapshot(ctx, cfg)
	if err != nil {
		return err
	}

	registry := amm.NewRegistry()
	pools := make([]amm.PoolState, 0, len(snap.Pools))
	for _, rec := range snap.Pools {
		pool, err := replay.PoolState(rec)
		if err != nil {
			return err
		}
		pools = append(pools, pool)
	}
	if err := registry.Restore(pools); err != nil {
		return err
	}

	price, err := amm.NewPricingOracle(registry).SpotPrice(base, quote)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pair:  %s\n", amm.CanonicalKey(base, quote))
	fmt.Fprintf(out, "price: %s\n", price.Dec())

	if cfg.RPCURL == "" {
		return nil
	}
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	cache := chain.NewTokenMetaCache()
	baseMeta, err := cache.Lookup(ctx, chainClient, base, logger)
	if err != nil {
		return err
	}
	quoteMeta, err := cache.Lookup(ctx, chainClient, quote, logger)
	if err != nil {
		return err
	}
	logger.Debug("token metadata",
		zap.String("base_symbol", baseMeta.Symbol),
		zap.String("quote_symbol", quoteMeta.Symbol),
	)
	fmt.Fprintf(out, "human: %s %s per %s\n",
		model.FormatPrice(price.ToBig(), baseMeta.Decimals, quoteMeta.Decimals),
		quoteMeta.Label(), baseMeta.Label())

	pool, _ := registry.Get(amm.CanonicalKey(base, quote))
	reserveBase, reserveQuote := pool.ReservesFor(base)
	fmt.Fprintf(out, "reserves: %s %s / %s %s\n",
		model.FormatTokenAmount(reserveBase.ToBig(), baseMeta.Decimals), baseMeta.Label(),
		model.FormatTokenAmount(reserveQuote.ToBig(), quoteMeta.Decimals), quoteMeta.Label())
	return nil
}

func loadSnapshot(ctx context.Context, cfg config.PriceConfig) (model.Snapshot, error) {
	var stateStore replay.StateStore
	if cfg.StateFile != "" {
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	} else {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		stateStore = &replay.DBStateStore{Store: store, Name: replay.DefaultStateName}
	}

	snap, ok, err := stateStore.Load(ctx)
	if err != nil {
		return model.Snapshot{}, err
	}
	if !ok {
		return model.Snapshot{}, fmt.Errorf("no saved state found")
	}
	return snap, nil
}
