package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single decision cycle",
	Long: `Fetch the latest candles for every configured symbol, run the
decision pipeline once and exit. State is persisted between runs, so
scheduling this command externally (systemd timer, crontab) is
equivalent to 'decider serve'.

Example:
  decider run -f decider.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "decider.yaml", "path to config file (YAML or JSON)")
}

func runRun(cmd *cobra.Command, args []string) error {
	app, err := newApp(runConfigPath)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	report := app.engine.RunCycle(ctx, app.cfg.Data.Symbols)

	for _, o := range report.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Printf("  %-12s ERROR: %v\n", o.Symbol, o.Err)
		case o.Skipped:
			fmt.Printf("  %-12s skipped (%s)\n", o.Symbol, o.Reason)
		case o.Event != nil:
			fmt.Printf("  %-12s %s %s\n", o.Symbol, o.Event.State, o.Event.Reason)
		case o.Reason != "":
			fmt.Printf("  %-12s no action (%s)\n", o.Symbol, o.Reason)
		default:
			fmt.Printf("  %-12s no action\n", o.Symbol)
		}
	}

	snap := app.ledger.Snapshot()
	fmt.Printf("\nEquity: %.2f  PnL today: %.2f  Open positions: %d\n",
		snap.Equity, snap.RealizedPnLToday, snap.OpenPositions)

	if errs := report.Errors(); len(errs) > 0 {
		return fmt.Errorf("%d of %d symbols failed", len(errs), len(report.Outcomes))
	}
	return nil
}
