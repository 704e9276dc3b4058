// Package lifecycle is the per-symbol position state machine. Each symbol
// moves NONE → OPEN → NONE; entries consult the account ledger, exits
// settle realized PnL back into it.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/pkg/id"
	"github.com/rustyeddy/decider/store"
)

// DefaultExpiry closes a position after this much wall-clock time in the
// market regardless of price action.
const DefaultExpiry = 48 * time.Hour

// Manager owns the live open-positions map exclusively. The ledger only
// ever sees aggregate counts and PnL, never position identity.
type Manager struct {
	repo      store.Repository
	ledger    *account.Ledger
	log       zerolog.Logger
	expiry    time.Duration
	positions map[string]*Position
}

func Open(repo store.Repository, ledger *account.Ledger, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		repo:      repo,
		ledger:    ledger,
		log:       log.With().Str("component", "lifecycle").Logger(),
		expiry:    DefaultExpiry,
		positions: make(map[string]*Position),
	}
	if _, err := m.repo.Load(&m.positions); err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	if m.positions == nil {
		m.positions = make(map[string]*Position)
	}
	return m, nil
}

// SetExpiry overrides the time-based exit ceiling.
func (m *Manager) SetExpiry(d time.Duration) { m.expiry = d }

// Update evaluates exactly one transition for the symbol against the
// latest enriched bar: an entry when flat, an exit check when in a
// position. A bar that closes a position never reopens in the same cycle;
// re-entry needs a later bar to find the symbol flat again.
func (m *Manager) Update(bar market.Bar, symbol string) (*Event, error) {
	pos, open := m.positions[symbol]
	if !open {
		return m.tryOpen(bar, symbol)
	}

	reason := m.checkExit(pos, bar)
	if reason == "" {
		return nil, nil
	}
	return m.close(pos, bar, reason)
}

func (m *Manager) tryOpen(bar market.Bar, symbol string) (*Event, error) {
	if bar.FinalSignal == 0 {
		return nil, nil
	}

	allowed, reason := m.ledger.CanOpen()
	if !allowed {
		m.log.Info().Str("symbol", symbol).Str("reason", reason).Msg("entry blocked")
		return &Event{
			State:     EventBlocked,
			Symbol:    symbol,
			Reason:    reason,
			Timestamp: bar.Time,
		}, nil
	}

	pos := &Position{
		ID:         id.New(),
		Symbol:     symbol,
		Direction:  bar.FinalSignal,
		EntryPrice: bar.Close,
		EntryTime:  bar.Time,
		StopLoss:   bar.StopLoss,
		State:      StateOpen,
	}
	m.positions[symbol] = pos

	if err := m.ledger.OnPositionOpen(); err != nil {
		delete(m.positions, symbol)
		return nil, err
	}
	if err := m.repo.Save(&m.positions); err != nil {
		return nil, fmt.Errorf("persist positions on open: %w", err)
	}

	m.log.Info().Str("symbol", symbol).Int("direction", pos.Direction).
		Float64("entry", pos.EntryPrice).Msg("position opened")

	snapshot := *pos
	return &Event{
		State:     EventOpen,
		Symbol:    symbol,
		Timestamp: bar.Time,
		Position:  &snapshot,
	}, nil
}

// checkExit returns the exit reason for the bar, or "" to stay in the
// position. Priority: stop breach, then opposite signal, then time expiry.
func (m *Manager) checkExit(pos *Position, bar market.Bar) string {
	if pos.stopHit(bar.Close) {
		return ExitStop
	}
	if bar.FinalSignal == -pos.Direction {
		return ExitOppositeSignal
	}
	if bar.Time.Sub(pos.EntryTime) >= m.expiry {
		return ExitTimeExpiry
	}
	return ""
}

func (m *Manager) close(pos *Position, bar market.Bar, reason string) (*Event, error) {
	price := bar.Close
	pnl := (price - pos.EntryPrice) * float64(pos.Direction)

	delete(m.positions, pos.Symbol)

	pos.State = StateClosed
	pos.Exit = &Exit{
		ExitPrice:  price,
		ExitTime:   bar.Time,
		ExitReason: reason,
		PnL:        pnl,
	}

	if err := m.ledger.OnPositionClose(pnl); err != nil {
		return nil, err
	}
	if err := m.repo.Save(&m.positions); err != nil {
		return nil, fmt.Errorf("persist positions on close: %w", err)
	}

	m.log.Info().Str("symbol", pos.Symbol).Str("reason", reason).
		Float64("exit", price).Float64("pnl", pnl).Msg("position closed")

	return &Event{
		State:     EventClosed,
		Symbol:    pos.Symbol,
		Reason:    reason,
		Timestamp: bar.Time,
		Position:  pos,
	}, nil
}

// Count returns the number of live positions.
func (m *Manager) Count() int { return len(m.positions) }

// Get returns the live position for symbol, if any.
func (m *Manager) Get(symbol string) (*Position, bool) {
	p, ok := m.positions[symbol]
	return p, ok
}

// Positions returns a copy of the live map for status surfaces.
func (m *Manager) Positions() map[string]Position {
	out := make(map[string]Position, len(m.positions))
	for sym, p := range m.positions {
		out[sym] = *p
	}
	return out
}
