package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/decider/backtest"
	"github.com/rustyeddy/decider/config"
	"github.com/rustyeddy/decider/indicators"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/risk"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the signal pipeline over candle history",
	Long: `Fetch candle history for a symbol and replay it through the same
risk, cooldown and lifecycle stages the live engine runs, against an
isolated in-memory account.

Example:
  decider backtest -f decider.yaml --symbol BTCUSDT`,
	RunE: runBacktest,
}

var (
	backtestConfigPath string
	backtestSymbol     string
	backtestFeeRate    float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestConfigPath, "config", "f", "decider.yaml", "path to config file (YAML or JSON)")
	backtestCmd.Flags().StringVar(&backtestSymbol, "symbol", "", "symbol to replay (default: first configured symbol)")
	backtestCmd.Flags().Float64Var(&backtestFeeRate, "fee", 0, "fee rate charged on entry and exit price, e.g. 0.0004")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	config.LoadEnv()

	cfg, err := config.LoadFromFile(backtestConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	symbol := backtestSymbol
	if symbol == "" {
		symbol = cfg.Data.Symbols[0]
	}

	log := newLogger()
	cache, err := market.NewCache(cfg.Data.CacheDir, cfg.Data.Interval,
		cfg.Data.Lookback, market.NewBinanceFetcher(), log)
	if err != nil {
		return fmt.Errorf("candle cache: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	series, err := cache.Update(ctx, symbol)
	if err != nil {
		return fmt.Errorf("fetch candles for %s: %w", symbol, err)
	}

	cooldown, err := cfg.Signals.ParseCooldown()
	if err != nil {
		return err
	}
	expiry, err := cfg.Lifecycle.ParseMaxHoldingTime()
	if err != nil {
		return err
	}

	res, err := backtest.Run(series, backtest.Options{
		StartEquity: cfg.Account.StartEquity,
		Policy: risk.Policy{
			RiskPct:         cfg.Risk.RiskPct,
			MaxLeverage:     cfg.Risk.MaxLeverage,
			MinStopDistance: cfg.Risk.MinStopDistance,
			DailyLossCapPct: cfg.Account.DailyLossCapPct,
		},
		Cooldown: cooldown,
		Expiry:   expiry,
		Signal:   indicators.Config{ConfThreshold: cfg.Signals.ConfThreshold},
		FeeRate:  backtestFeeRate,
		Log:      log,
	})
	if err != nil {
		return err
	}

	backtest.Print(os.Stdout, res)
	return nil
}
