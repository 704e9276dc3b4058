package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "decider",
	Short: "A periodic crypto trading decision engine with paper execution",
	Long: `Decider polls exchange candles on a schedule and turns them into
paper-trade decisions through a fixed pipeline: candle gate, signal
enrichment, risk evaluation, cooldown and position lifecycle.

It provides tools for:
  - Running a single decision cycle against live Binance candles
  - Serving the engine on a cron schedule with an HTTP status surface
  - Backtesting the signal pipeline over cached candle history
  - Journaling lifecycle events and equity to SQLite or CSV
  - Telegram notifications on position opens and closes`,
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}
