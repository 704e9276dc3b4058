package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSV struct {
	events *csv.Writer
	equity *csv.Writer
	evf    *os.File
	eqf    *os.File
}

func NewCSV(eventsPath, equityPath string) (*CSV, error) {
	evf, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	eqf, err := os.Create(equityPath)
	if err != nil {
		evf.Close()
		return nil, err
	}

	ev := csv.NewWriter(evf)
	eq := csv.NewWriter(eqf)

	if err := ev.Write([]string{"event_id", "symbol", "state", "reason", "direction", "entry_price", "exit_price", "pnl", "time"}); err != nil {
		return nil, err
	}
	if err := eq.Write([]string{"time", "equity", "realized_pnl_today", "total_pnl", "open_positions"}); err != nil {
		return nil, err
	}

	ev.Flush()
	if err := ev.Error(); err != nil {
		return nil, err
	}
	eq.Flush()
	if err := eq.Error(); err != nil {
		return nil, err
	}

	return &CSV{events: ev, equity: eq, evf: evf, eqf: eqf}, nil
}

func (j *CSV) RecordEvent(e EventRecord) error {
	err := j.events.Write([]string{
		e.EventID,
		e.Symbol,
		e.State,
		e.Reason,
		strconv.Itoa(e.Direction),
		f(e.EntryPrice),
		f(e.ExitPrice),
		f(e.PnL),
		e.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.events.Flush()
	return j.events.Error()
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.RealizedPnLToday),
		f(e.TotalPnL),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	j.events.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.evf.Close(); err != nil {
		return err
	}
	return j.eqf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
