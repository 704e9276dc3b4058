// Package backtest replays a historical bar series through the same risk,
// cooldown and lifecycle stages the live engine runs, against in-memory
// state so a run never touches the live ledger.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/indicators"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/risk"
	"github.com/rustyeddy/decider/signals"
	"github.com/rustyeddy/decider/store"
)

// Options configures a run. Zero values fall back to the live defaults.
type Options struct {
	StartEquity float64
	Policy      risk.Policy
	Cooldown    time.Duration
	Expiry      time.Duration
	Signal      indicators.Config
	Enrich      func(*market.Series)
	// FeeRate is charged on entry and exit price per closed trade,
	// e.g. 0.0004 for 4 bps taker fees.
	FeeRate float64
	Log     zerolog.Logger
}

// Result summarizes one backtest run over a single symbol.
type Result struct {
	Symbol string
	Bars   int
	Start  time.Time
	End    time.Time

	Trades int
	Wins   int
	Losses int
	Fees   float64

	StartEquity    float64
	EndEquity      float64
	NetPnL         float64
	ReturnPct      float64
	MaxDrawdownPct float64

	// OpenAtEnd is a position still live when the data ran out; its
	// unrealized PnL against the last close is folded into EndEquity.
	OpenAtEnd  *lifecycle.Position
	Unrealized float64

	Events []lifecycle.Event
}

// WinRate returns wins over closed trades as a percentage.
func (r Result) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return 100 * float64(r.Wins) / float64(r.Trades)
}

// Run replays the series bar by bar. The indicator pass is causal, so the
// whole series is enriched once up front and each bar sees only signal
// fields derived from its own past.
func Run(series *market.Series, opts Options) (*Result, error) {
	if series == nil || series.Empty() {
		return nil, fmt.Errorf("backtest: empty series")
	}
	if opts.StartEquity <= 0 {
		opts.StartEquity = account.DefaultEquity
	}
	if opts.Policy == (risk.Policy{}) {
		opts.Policy = risk.DefaultPolicy()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = signals.DefaultCooldown
	}
	if opts.Expiry <= 0 {
		opts.Expiry = lifecycle.DefaultExpiry
	}
	if opts.Enrich == nil {
		cfg := opts.Signal
		opts.Enrich = func(s *market.Series) { indicators.Enrich(s, cfg) }
	}

	log := opts.Log.With().Str("component", "backtest").Logger()

	ledger, err := account.Open(store.NewMemory(), log, opts.StartEquity)
	if err != nil {
		return nil, err
	}
	sigs, err := signals.Open(store.NewMemory(), log, opts.Cooldown)
	if err != nil {
		return nil, err
	}
	mgr, err := lifecycle.Open(store.NewMemory(), ledger, log)
	if err != nil {
		return nil, err
	}
	mgr.SetExpiry(opts.Expiry)

	opts.Enrich(series)

	res := &Result{
		Symbol:      series.Symbol,
		Bars:        series.Len(),
		Start:       series.Bars[0].Time,
		End:         series.LastTime(),
		StartEquity: opts.StartEquity,
	}

	peak := opts.StartEquity
	for _, bar := range series.Bars {
		// Pin the ledger clock to bar time so the daily loss cap rolls
		// over on historical days, not wall-clock today.
		barTime := bar.Time
		ledger.SetClock(func() time.Time { return barTime })

		if _, open := mgr.Get(series.Symbol); !open && bar.FinalSignal != 0 {
			decision := risk.Evaluate(bar, ledger.Equity(), ledger.RealizedPnLToday(), opts.Policy)
			if !decision.Allowed {
				bar.FinalSignal = 0
			} else {
				emit, err := sigs.ShouldEmit(series.Symbol, bar.FinalSignal, bar.Time, nil)
				if err != nil {
					return nil, err
				}
				if !emit {
					bar.FinalSignal = 0
				}
			}
		}

		ev, err := mgr.Update(bar, series.Symbol)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		res.Events = append(res.Events, *ev)

		if ev.State == lifecycle.EventClosed && ev.Position != nil && ev.Position.Exit != nil {
			res.Trades++
			if ev.Position.Exit.PnL > 0 {
				res.Wins++
			} else {
				res.Losses++
			}
			res.Fees += opts.FeeRate * (ev.Position.EntryPrice + ev.Position.Exit.ExitPrice)
		}

		equity := ledger.Equity()
		peak = math.Max(peak, equity)
		if peak > 0 {
			dd := 100 * (peak - equity) / peak
			res.MaxDrawdownPct = math.Max(res.MaxDrawdownPct, dd)
		}
	}

	if pos, open := mgr.Get(series.Symbol); open {
		snapshot := *pos
		res.OpenAtEnd = &snapshot
		last := series.Last().Close
		res.Unrealized = (last - pos.EntryPrice) * float64(pos.Direction)
	}

	res.EndEquity = ledger.Equity() + res.Unrealized - res.Fees
	res.NetPnL = res.EndEquity - res.StartEquity
	res.ReturnPct = 100 * res.NetPnL / res.StartEquity
	return res, nil
}
