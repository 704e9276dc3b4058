// Package gate implements the per-symbol candle idempotency filter: a bar,
// identified by its timestamp, is acted on at most once across runs.
package gate

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/store"
)

// Allow outcomes.
const (
	ReasonSameCandle = "SAME_CANDLE"
	ReasonNewCandle  = "NEW_CANDLE"
)

// Audit is the most recent Allow check, kept for post-hoc debugging of why
// a symbol was or was not acted on.
type Audit struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	LoggedAt  time.Time `json:"logged_at"`
}

type gateDoc struct {
	// Symbols maps symbol to the last fully-processed candle timestamp.
	Symbols map[string]time.Time `json:"symbols"`
	Audit   *Audit               `json:"audit,omitempty"`
}

// Gate persists one document holding the per-symbol high-water marks plus
// the single most recent audit record.
type Gate struct {
	repo  store.Repository
	log   zerolog.Logger
	now   func() time.Time
	state gateDoc
}

func Open(repo store.Repository, log zerolog.Logger) (*Gate, error) {
	g := &Gate{
		repo: repo,
		log:  log.With().Str("component", "gate").Logger(),
		now:  time.Now,
	}
	if _, err := g.repo.Load(&g.state); err != nil {
		return nil, fmt.Errorf("load candle gate: %w", err)
	}
	if g.state.Symbols == nil {
		g.state.Symbols = make(map[string]time.Time)
	}
	return g, nil
}

// SetClock overrides the wall clock, for tests.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// Allow reports whether the candle at ts may be processed for symbol. It
// denies only on exact timestamp equality with the stored mark: a different
// but older timestamp is allowed, so re-processing historical gaps is never
// silently blocked. Every check overwrites the persisted audit record.
func (g *Gate) Allow(symbol string, ts time.Time) (bool, string) {
	allowed := true
	reason := ReasonNewCandle

	if last, ok := g.state.Symbols[symbol]; ok && last.Equal(ts) {
		allowed = false
		reason = ReasonSameCandle
	}

	g.state.Audit = &Audit{
		Symbol:    symbol,
		Timestamp: ts,
		Allowed:   allowed,
		Reason:    reason,
		LoggedAt:  g.now().UTC(),
	}
	if err := g.repo.Save(&g.state); err != nil {
		g.log.Error().Err(err).Str("symbol", symbol).Msg("persist gate audit")
	}

	return allowed, reason
}

// Mark records ts as processed for symbol. Call it only after the candle's
// processing has fully completed: a crash mid-cycle then retries the same
// candle on the next run instead of silently skipping it. Marks never move
// a symbol's timestamp backwards.
func (g *Gate) Mark(symbol string, ts time.Time) error {
	if last, ok := g.state.Symbols[symbol]; ok && ts.Before(last) {
		g.log.Debug().Str("symbol", symbol).Time("ts", ts).Time("last", last).
			Msg("historical candle processed, mark unchanged")
		return nil
	}
	g.state.Symbols[symbol] = ts.UTC()
	if err := g.repo.Save(&g.state); err != nil {
		return fmt.Errorf("persist candle gate: %w", err)
	}
	return nil
}

// LastAudit returns the most recent check record, or nil before any check.
func (g *Gate) LastAudit() *Audit { return g.state.Audit }
