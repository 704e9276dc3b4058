package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the account ledger and open positions",
	Long: `Load the persisted state and print the account snapshot and any
open positions without running a cycle.

Example:
  decider status -f decider.yaml`,
	RunE: runStatus,
}

var statusConfigPath string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusConfigPath, "config", "f", "decider.yaml", "path to config file (YAML or JSON)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(statusConfigPath)
	if err != nil {
		return err
	}
	defer app.close()

	snap := app.ledger.Snapshot()
	fmt.Println("Account")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Day:            %s\n", snap.Day)
	fmt.Printf("Equity:         %.2f\n", snap.Equity)
	fmt.Printf("PnL today:      %.2f\n", snap.RealizedPnLToday)
	fmt.Printf("Total PnL:      %.2f\n", snap.TotalPnL)
	fmt.Printf("Open positions: %d\n", snap.OpenPositions)

	positions := app.manager.Positions()
	if len(positions) == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("Open Positions")
	fmt.Println("--------------------------------------------------")
	for sym, pos := range positions {
		dir := "LONG"
		if pos.Direction < 0 {
			dir = "SHORT"
		}
		stop := "-"
		if pos.StopLoss != nil {
			stop = fmt.Sprintf("%.4f", *pos.StopLoss)
		}
		fmt.Printf("%-12s %-5s entry=%.4f stop=%s opened=%s\n",
			sym, dir, pos.EntryPrice, stop, pos.EntryTime.Format(time.RFC3339))
	}
	return nil
}
