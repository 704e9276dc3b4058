// Package metrics exposes the engine's Prometheus instrumentation, served
// at /metrics in the text exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors around one registry so tests and
// multiple engines never fight over a global default.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal  prometheus.Counter
	SymbolErrors *prometheus.CounterVec
	EventsTotal  *prometheus.CounterVec
	GateSkips    prometheus.Counter

	OpenPositions prometheus.Gauge
	Equity        prometheus.Gauge
	DailyPnL      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decider_cycles_total",
			Help: "Decision cycles executed",
		}),
		SymbolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decider_symbol_errors_total",
			Help: "Per-symbol cycle failures",
		}, []string{"symbol"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "decider_lifecycle_events_total",
			Help: "Lifecycle events split by state and reason",
		}, []string{"state", "reason"}),
		GateSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "decider_gate_skips_total",
			Help: "Symbols skipped because the candle was already processed",
		}),

		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "decider_open_positions",
			Help: "Live open positions across all symbols",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "decider_equity",
			Help: "Account equity in quote currency",
		}),
		DailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "decider_realized_pnl_today",
			Help: "Realized PnL accumulated today",
		}),
	}

	m.Registry.MustRegister(
		m.CyclesTotal,
		m.SymbolErrors,
		m.EventsTotal,
		m.GateSkips,
		m.OpenPositions,
		m.Equity,
		m.DailyPnL,
	)
	return m
}
