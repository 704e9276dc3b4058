// Package signals persists per-symbol signal state and enforces the
// cooldown window: once a signal is emitted for a symbol, no further signal
// (same direction or reversed) may be emitted until the window expires.
// This gates signal emission only; it is independent of whether a position
// is actually opened.
package signals

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/store"
)

// DefaultCooldown is how long a symbol stays locked after an emission.
const DefaultCooldown = 6 * time.Hour

// Record is the persisted state for one symbol's last emitted signal.
type Record struct {
	Timestamp     time.Time         `json:"timestamp"`
	Direction     int               `json:"direction"`
	CooldownUntil time.Time         `json:"cooldown_until"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// Store decides whether a directional signal should be emitted.
type Store struct {
	repo     store.Repository
	log      zerolog.Logger
	cooldown time.Duration
	state    map[string]Record
}

func Open(repo store.Repository, log zerolog.Logger, cooldown time.Duration) (*Store, error) {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	s := &Store{
		repo:     repo,
		log:      log.With().Str("component", "signals").Logger(),
		cooldown: cooldown,
		state:    make(map[string]Record),
	}
	if _, err := s.repo.Load(&s.state); err != nil {
		return nil, fmt.Errorf("load signal store: %w", err)
	}
	if s.state == nil {
		s.state = make(map[string]Record)
	}
	return s, nil
}

// ShouldEmit applies the emission rules in order: flat is never a signal;
// a first-ever signal for the symbol emits and starts a cooldown; inside
// the cooldown window everything is suppressed, including reversals (the
// anti-flip-flop rule); past expiry the signal emits and the window is
// re-anchored at ts.
func (s *Store) ShouldEmit(symbol string, direction int, ts time.Time, meta map[string]string) (bool, error) {
	if direction == 0 {
		return false, nil
	}

	ts = normalize(ts)

	rec, ok := s.state[symbol]
	if ok && !ts.After(rec.CooldownUntil) {
		s.log.Debug().Str("symbol", symbol).Int("direction", direction).
			Time("cooldown_until", rec.CooldownUntil).Msg("signal suppressed by cooldown")
		return false, nil
	}

	s.state[symbol] = Record{
		Timestamp:     ts,
		Direction:     direction,
		CooldownUntil: ts.Add(s.cooldown),
		Meta:          meta,
	}
	if err := s.repo.Save(&s.state); err != nil {
		return false, fmt.Errorf("persist signal store: %w", err)
	}
	return true, nil
}

// Last returns the stored record for symbol, if any.
func (s *Store) Last(symbol string) (Record, bool) {
	rec, ok := s.state[symbol]
	return rec, ok
}

// normalize pins every comparison to UTC. Timestamps arriving without
// useful location information are taken as UTC already.
func normalize(ts time.Time) time.Time {
	return ts.UTC()
}
