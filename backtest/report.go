package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/decider/lifecycle"
)

// Print writes a plain-text summary of the run.
func Print(w io.Writer, r *Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate())

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Equity:  %.2f\n", r.StartEquity)
	fmt.Fprintf(w, "End Equity:    %.2f\n", r.EndEquity)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.NetPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	if r.Fees > 0 {
		fmt.Fprintf(w, "Fees:          %.2f\n", r.Fees)
	}
	if r.OpenAtEnd != nil {
		fmt.Fprintf(w, "Open at end:   %s entry=%.4f unrealized=%.2f\n",
			r.OpenAtEnd.Symbol, r.OpenAtEnd.EntryPrice, r.Unrealized)
	}
	if r.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	}

	if len(r.Events) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Events")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, ev := range r.Events {
			line := fmt.Sprintf("%s  %-7s %s", ev.Timestamp.Format("2006-01-02 15:04"), ev.State, ev.Symbol)
			if ev.State == lifecycle.EventClosed && ev.Position != nil && ev.Position.Exit != nil {
				line += fmt.Sprintf("  %s pnl=%.2f", ev.Reason, ev.Position.Exit.PnL)
			} else if ev.Reason != "" {
				line += "  " + ev.Reason
			}
			fmt.Fprintln(w, line)
		}
	}
}
