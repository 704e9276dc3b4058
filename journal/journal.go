// Package journal records lifecycle events and equity snapshots for
// post-hoc analysis, to SQLite or CSV.
package journal

import "time"

// EventRecord is one lifecycle outcome as written to the journal.
type EventRecord struct {
	EventID    string
	Symbol     string
	State      string // OPEN | CLOSED | BLOCKED
	Reason     string // exit reason or block reason, empty for OPEN
	Direction  int
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	Time       time.Time
}

// EquitySnapshot is the account ledger as of the end of a cycle.
type EquitySnapshot struct {
	Time             time.Time
	Equity           float64
	RealizedPnLToday float64
	TotalPnL         float64
	OpenPositions    int
}

type Journal interface {
	RecordEvent(EventRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything; used when journaling is disabled.
type Nop struct{}

func (Nop) RecordEvent(EventRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }
