package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"cpamm/internal/amm"
	"cpamm/internal/config"
	"cpamm/internal/model"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	reserveIn, err := model.ParseAmount(cfg.ReserveIn)
	if err != nil {
		return fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := model.ParseAmount(cfg.ReserveOut)
	if err != nil {
		return fmt.Errorf("reserve-out: %w", err)
	}

	var result *uint256.Int
	if cfg.AmountOut != "" {
		amountOut, err := model.ParseAmount(cfg.AmountOut)
		if err != nil {
			return fmt.Errorf("amount-out: %w", err)
		}
		result, err = amm.QuoteInput(amountOut, reserveIn, reserveOut, cfg.FeeBps)
		if err != nil {
			return err
		}
	} else {
		amountIn, err := model.ParseAmount(cfg.AmountIn)
		if err != nil {
			return fmt.Errorf("amount-in: %w", err)
		}
		result, err = amm.QuoteOutputWithFee(amountIn, reserveIn, reserveOut, cfg.FeeBps)
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Dec())
	return nil
}
