package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/decider/account"
	"github.com/rustyeddy/decider/config"
	"github.com/rustyeddy/decider/engine"
	"github.com/rustyeddy/decider/gate"
	"github.com/rustyeddy/decider/indicators"
	"github.com/rustyeddy/decider/journal"
	"github.com/rustyeddy/decider/lifecycle"
	"github.com/rustyeddy/decider/market"
	"github.com/rustyeddy/decider/metrics"
	"github.com/rustyeddy/decider/notify"
	"github.com/rustyeddy/decider/risk"
	"github.com/rustyeddy/decider/signals"
	"github.com/rustyeddy/decider/store"
)

// app bundles everything a command needs once the config is loaded.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	engine  *engine.Engine
	ledger  *account.Ledger
	manager *lifecycle.Manager
	metrics *metrics.Metrics
	journal journal.Journal
}

// newApp wires the full engine from a config file. The caller must call
// close when done so the journal flushes.
func newApp(configPath string) (*app, error) {
	config.LoadEnv()

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := newLogger()

	cache, err := market.NewCache(cfg.Data.CacheDir, cfg.Data.Interval,
		cfg.Data.Lookback, market.NewBinanceFetcher(), log)
	if err != nil {
		return nil, fmt.Errorf("candle cache: %w", err)
	}

	statePath := func(name string) store.Repository {
		return store.NewFile(filepath.Join(cfg.Account.StateDir, name), log)
	}

	ledger, err := account.Open(statePath("account.json"), log, cfg.Account.StartEquity)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	ledger.MaxConcurrent = cfg.Account.MaxConcurrent
	ledger.DailyLossCapPct = cfg.Account.DailyLossCapPct

	g, err := gate.Open(statePath("candle_gate.json"), log)
	if err != nil {
		return nil, fmt.Errorf("candle gate: %w", err)
	}

	cooldown, err := cfg.Signals.ParseCooldown()
	if err != nil {
		return nil, err
	}
	sigs, err := signals.Open(statePath("signals.json"), log, cooldown)
	if err != nil {
		return nil, fmt.Errorf("signals: %w", err)
	}

	manager, err := lifecycle.Open(statePath("positions.json"), ledger, log)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if hold, err := cfg.Lifecycle.ParseMaxHoldingTime(); err == nil && hold > 0 {
		manager.SetExpiry(hold)
	}

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
	}

	m := metrics.New()
	sigCfg := indicators.Config{ConfThreshold: cfg.Signals.ConfThreshold}

	eng, err := engine.New(engine.Options{
		Data:      cache,
		Gate:      g,
		Signals:   sigs,
		Ledger:    ledger,
		Positions: manager,
		Policy: risk.Policy{
			RiskPct:         cfg.Risk.RiskPct,
			MaxLeverage:     cfg.Risk.MaxLeverage,
			MinStopDistance: cfg.Risk.MinStopDistance,
			DailyLossCapPct: cfg.Account.DailyLossCapPct,
		},
		Enrich:   func(s *market.Series) { indicators.Enrich(s, sigCfg) },
		Notifier: notifier,
		Journal:  jnl,
		Metrics:  m,
		Log:      log,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		engine:  eng,
		ledger:  ledger,
		manager: manager,
		metrics: m,
		journal: jnl,
	}, nil
}

func (a *app) close() {
	if err := a.journal.Close(); err != nil {
		a.log.Warn().Err(err).Msg("journal close")
	}
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "sqlite":
		return journal.NewSQLite(cfg.DBPath)
	case "csv":
		return journal.NewCSV(cfg.EventsFile, cfg.EquityFile)
	default:
		return journal.Nop{}, nil
	}
}
