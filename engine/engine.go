// Package engine orchestrates one decision cycle: for each symbol, refresh
// data, pass the candle gate, enrich, evaluate risk, check the signal
// cooldown and run the position lifecycle, then mark the candle processed.
// The stage order is a contract: gate → risk → cooldown → lifecycle → mark.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/gate"
	"github.com/rustyeddy/decider/indicators"
	"github.com/rustyeddy/decider/journal"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/metrics"
	"github.com/rustyeddy/decider/notify"
	"github.com/rustyeddy/decider/pkg/id"
	"github.com/rustyeddy/decider/risk"
	"github.com/rustyeddy/decider/signals"
)

// DataSource produces an up-to-date bar series for a symbol.
type DataSource interface {
	Update(ctx context.Context, symbol string) (*market.Series, error)
}

// Enricher writes signal fields into a series. The default wraps the
// indicators package; tests and backtests may substitute their own.
type Enricher func(*market.Series)

// Options wires an Engine. Data, Gate, Signals, Ledger and Positions are
// required; the rest default to no-ops.
type Options struct {
	Data      DataSource
	Gate      *gate.Gate
	Signals   *signals.Store
	Ledger    *account.Ledger
	Positions *lifecycle.Manager

	Policy   risk.Policy
	Enrich   Enricher
	Notifier notify.Notifier
	Journal  journal.Journal
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

type Engine struct {
	data      DataSource
	gate      *gate.Gate
	signals   *signals.Store
	ledger    *account.Ledger
	positions *lifecycle.Manager

	policy   risk.Policy
	enrich   Enricher
	notifier notify.Notifier
	journal  journal.Journal
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Data == nil:
		return nil, fmt.Errorf("engine: Data is required")
	case opts.Gate == nil:
		return nil, fmt.Errorf("engine: Gate is required")
	case opts.Signals == nil:
		return nil, fmt.Errorf("engine: Signals is required")
	case opts.Ledger == nil:
		return nil, fmt.Errorf("engine: Ledger is required")
	case opts.Positions == nil:
		return nil, fmt.Errorf("engine: Positions is required")
	}

	if opts.Policy == (risk.Policy{}) {
		opts.Policy = risk.DefaultPolicy()
	}
	if opts.Enrich == nil {
		opts.Enrich = func(s *market.Series) { indicators.Enrich(s, indicators.Config{}) }
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Journal == nil {
		opts.Journal = journal.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Engine{
		data:      opts.Data,
		gate:      opts.Gate,
		signals:   opts.Signals,
		ledger:    opts.Ledger,
		positions: opts.Positions,
		policy:    opts.Policy,
		enrich:    opts.Enrich,
		notifier:  opts.Notifier,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		log:       opts.Log.With().Str("component", "engine").Logger(),
	}, nil
}

// Outcome is what happened to one symbol in a cycle.
type Outcome struct {
	Symbol  string
	Skipped bool   // candle already processed
	Reason  string // skip or no-action detail
	Event   *lifecycle.Event
	Err     error
}

// Report summarizes one cycle.
type Report struct {
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Errors returns the outcomes that failed.
func (r Report) Errors() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// RunCycle processes all symbols sequentially. A failure in one symbol is
// caught, logged and reported without aborting the rest; no exception from
// the core may take the loop down.
func (e *Engine) RunCycle(ctx context.Context, symbols []string) Report {
	report := Report{Started: time.Now().UTC()}

	e.log.Info().Int("symbols", len(symbols)).Msg("cycle start")

	for _, symbol := range symbols {
		outcome := e.processSymbol(ctx, symbol)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Err != nil {
			e.metrics.SymbolErrors.WithLabelValues(symbol).Inc()
			e.log.Error().Err(outcome.Err).Str("symbol", symbol).Msg("symbol failed, no action taken")
		}
	}

	e.metrics.CyclesTotal.Inc()
	e.updateGauges()
	e.snapshotEquity()

	report.Finished = time.Now().UTC()
	e.log.Info().Int("outcomes", len(report.Outcomes)).
		Int("errors", len(report.Errors())).Msg("cycle complete")
	return report
}

// processSymbol runs the full stage pipeline for one symbol. Any panic is
// converted into the symbol's error so one poisoned dataset cannot abort
// the remaining symbols.
func (e *Engine) processSymbol(ctx context.Context, symbol string) (outcome Outcome) {
	outcome.Symbol = symbol

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("panic processing %s: %v", symbol, r)
		}
	}()

	series, err := e.data.Update(ctx, symbol)
	if err != nil {
		outcome.Err = fmt.Errorf("data update: %w", err)
		return outcome
	}
	if series.Empty() {
		outcome.Err = fmt.Errorf("empty series for %s", symbol)
		return outcome
	}

	candleTime := series.LastTime()

	allowed, reason := e.gate.Allow(symbol, candleTime)
	if !allowed {
		e.metrics.GateSkips.Inc()
		e.log.Debug().Str("symbol", symbol).Time("candle", candleTime).Msg("same candle, skipped")
		outcome.Skipped = true
		outcome.Reason = reason
		return outcome
	}

	e.enrich(series)
	bar := series.Last()

	// Entry gating only applies when the symbol is flat: an open position
	// must still see the raw signal so opposite-signal exits fire.
	if _, open := e.positions.Get(symbol); !open && bar.FinalSignal != 0 {
		decision := risk.Evaluate(bar, e.ledger.Equity(), e.ledger.RealizedPnLToday(), e.policy)
		if !decision.Allowed {
			e.log.Info().Str("symbol", symbol).Str("reason", decision.Reason).Msg("risk rejected")
			outcome.Reason = decision.Reason
			bar.FinalSignal = 0
		} else {
			emit, err := e.signals.ShouldEmit(symbol, bar.FinalSignal, candleTime, signalMeta(decision))
			if err != nil {
				outcome.Err = err
				return outcome
			}
			if !emit {
				e.log.Debug().Str("symbol", symbol).Msg("signal in cooldown")
				outcome.Reason = "cooldown"
				bar.FinalSignal = 0
			}
		}
	}

	ev, err := e.positions.Update(bar, symbol)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Event = ev

	if ev != nil {
		e.dispatch(*ev)
	}

	// Mark only after processing fully completed: a crash above retries
	// this candle on the next run instead of silently skipping it.
	if err := e.gate.Mark(symbol, candleTime); err != nil {
		outcome.Err = err
		return outcome
	}

	return outcome
}

func (e *Engine) dispatch(ev lifecycle.Event) {
	e.metrics.EventsTotal.WithLabelValues(ev.State, ev.Reason).Inc()
	e.notifier.Notify(ev)

	rec := journal.EventRecord{
		EventID: id.New(),
		Symbol:  ev.Symbol,
		State:   ev.State,
		Reason:  ev.Reason,
		Time:    ev.Timestamp,
	}
	if p := ev.Position; p != nil {
		rec.Direction = p.Direction
		rec.EntryPrice = p.EntryPrice
		if p.Exit != nil {
			rec.ExitPrice = p.Exit.ExitPrice
			rec.PnL = p.Exit.PnL
		}
	}
	if err := e.journal.RecordEvent(rec); err != nil {
		e.log.Warn().Err(err).Str("symbol", ev.Symbol).Msg("journal event failed")
	}
}

func (e *Engine) updateGauges() {
	snap := e.ledger.Snapshot()
	e.metrics.OpenPositions.Set(float64(snap.OpenPositions))
	e.metrics.Equity.Set(snap.Equity)
	e.metrics.DailyPnL.Set(snap.RealizedPnLToday)
}

func (e *Engine) snapshotEquity() {
	snap := e.ledger.Snapshot()
	err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:             time.Now().UTC(),
		Equity:           snap.Equity,
		RealizedPnLToday: snap.RealizedPnLToday,
		TotalPnL:         snap.TotalPnL,
		OpenPositions:    snap.OpenPositions,
	})
	if err != nil {
		e.log.Warn().Err(err).Msg("journal equity failed")
	}
}

func signalMeta(d risk.Decision) map[string]string {
	meta := map[string]string{
		"entry_price": strconv.FormatFloat(d.EntryPrice, 'f', -1, 64),
		"leverage":    strconv.FormatFloat(d.Leverage, 'f', 4, 64),
	}
	if d.Confidence != nil {
		meta["confidence"] = strconv.FormatFloat(*d.Confidence, 'f', 2, 64)
	}
	if d.TradeQuality != nil {
		meta["trade_quality"] = strconv.FormatFloat(*d.TradeQuality, 'f', 4, 64)
	}
	return meta
}
