// Package account holds the persisted trading ledger: equity, realized PnL
// and the open-position count, plus the portfolio-level gates every entry
// must pass.
package account

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/store"
)

const (
	// DefaultMaxConcurrent caps simultaneously open positions across all symbols.
	DefaultMaxConcurrent = 3

	// DefaultDailyLossCapPct blocks new entries once today's realized loss
	// reaches this fraction of equity.
	DefaultDailyLossCapPct = 0.03

	// DefaultEquity is the paper starting balance on first run.
	DefaultEquity = 10_000
)

// Gate rejection reasons. These are decision outcomes, not errors.
const (
	ReasonMaxConcurrent = "max_concurrent_positions"
	ReasonDailyLossCap  = "daily_loss_cap"
)

type ledgerDoc struct {
	Day              string  `json:"day"`
	Equity           float64 `json:"equity"`
	RealizedPnLToday float64 `json:"realized_pnl_today"`
	TotalPnL         float64 `json:"total_pnl"`
	OpenPositions    int     `json:"open_positions"`
}

// Snapshot is a read-only copy of the ledger for status surfaces.
type Snapshot struct {
	Day              string  `json:"day"`
	Equity           float64 `json:"equity"`
	RealizedPnLToday float64 `json:"realized_pnl_today"`
	TotalPnL         float64 `json:"total_pnl"`
	OpenPositions    int     `json:"open_positions"`
}

// Ledger is the single shared account document. It is constructed
// explicitly and passed to the lifecycle and risk callers by reference;
// there is no process-wide singleton, so tests get isolated instances.
type Ledger struct {
	repo  store.Repository
	log   zerolog.Logger
	now   func() time.Time
	state ledgerDoc

	MaxConcurrent   int
	DailyLossCapPct float64
}

// Open loads the ledger from the repository, seeding the default paper
// document on first run.
func Open(repo store.Repository, log zerolog.Logger, startEquity float64) (*Ledger, error) {
	l := &Ledger{
		repo:            repo,
		log:             log.With().Str("component", "account").Logger(),
		now:             time.Now,
		MaxConcurrent:   DefaultMaxConcurrent,
		DailyLossCapPct: DefaultDailyLossCapPct,
	}
	if startEquity <= 0 {
		startEquity = DefaultEquity
	}

	found, err := l.repo.Load(&l.state)
	if err != nil {
		return nil, fmt.Errorf("load account ledger: %w", err)
	}
	if !found {
		l.state = ledgerDoc{
			Day:    l.today(),
			Equity: startEquity,
		}
		if err := l.repo.Save(&l.state); err != nil {
			return nil, fmt.Errorf("seed account ledger: %w", err)
		}
		l.log.Info().Float64("equity", startEquity).Msg("ledger initialized")
		return l, nil
	}

	l.rolloverIfNewDay()
	return l, nil
}

// SetClock overrides the wall clock, for tests.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// rolloverIfNewDay resets the daily PnL accumulator exactly once per UTC
// calendar day, lazily, before any cap is evaluated.
func (l *Ledger) rolloverIfNewDay() {
	today := l.today()
	if l.state.Day == today {
		return
	}
	l.log.Info().Str("from", l.state.Day).Str("to", today).Msg("day rollover")
	l.state.Day = today
	l.state.RealizedPnLToday = 0
}

// CanOpen reports whether a new position may be opened. The reason is one
// of the gate constants when denied, empty when allowed.
func (l *Ledger) CanOpen() (bool, string) {
	l.rolloverIfNewDay()

	if l.state.OpenPositions >= l.MaxConcurrent {
		return false, ReasonMaxConcurrent
	}
	if l.state.RealizedPnLToday <= -l.DailyLossCapPct*l.state.Equity {
		return false, ReasonDailyLossCap
	}
	return true, ""
}

// OnPositionOpen increments the open-position count and persists.
func (l *Ledger) OnPositionOpen() error {
	l.state.OpenPositions++
	if err := l.repo.Save(&l.state); err != nil {
		return fmt.Errorf("persist ledger on open: %w", err)
	}
	return nil
}

// OnPositionClose applies realized pnl (account currency) to the day,
// lifetime and equity totals and persists. The position count is floored
// at zero to stay sane if a close is ever double-applied.
func (l *Ledger) OnPositionClose(pnl float64) error {
	l.rolloverIfNewDay()

	if l.state.OpenPositions > 0 {
		l.state.OpenPositions--
	}
	l.state.RealizedPnLToday += pnl
	l.state.TotalPnL += pnl
	l.state.Equity += pnl

	if err := l.repo.Save(&l.state); err != nil {
		return fmt.Errorf("persist ledger on close: %w", err)
	}
	return nil
}

func (l *Ledger) Equity() float64           { return l.state.Equity }
func (l *Ledger) RealizedPnLToday() float64 { return l.state.RealizedPnLToday }
func (l *Ledger) OpenPositions() int        { return l.state.OpenPositions }
func (l *Ledger) TotalPnL() float64         { return l.state.TotalPnL }

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		Day:              l.state.Day,
		Equity:           l.state.Equity,
		RealizedPnLToday: l.state.RealizedPnLToday,
		TotalPnL:         l.state.TotalPnL,
		OpenPositions:    l.state.OpenPositions,
	}
}
