// Package config holds the engine configuration, loadable from YAML or
// JSON files with environment overrides for credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Risk      RiskConfig      `json:"risk" yaml:"risk"`
	Data      DataConfig      `json:"data" yaml:"data"`
	Signals   SignalsConfig   `json:"signals" yaml:"signals"`
	Lifecycle LifecycleConfig `json:"lifecycle" yaml:"lifecycle"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	StartEquity     float64 `json:"start_equity" yaml:"start_equity"`
	MaxConcurrent   int     `json:"max_concurrent" yaml:"max_concurrent"`
	DailyLossCapPct float64 `json:"daily_loss_cap_pct" yaml:"daily_loss_cap_pct"`
	StateDir        string  `json:"state_dir" yaml:"state_dir"`
}

// RiskConfig contains position sizing parameters
type RiskConfig struct {
	RiskPct         float64 `json:"risk_pct" yaml:"risk_pct"`
	MaxLeverage     float64 `json:"max_leverage" yaml:"max_leverage"`
	MinStopDistance float64 `json:"min_stop_distance" yaml:"min_stop_distance"`
}

// DataConfig contains market data parameters
type DataConfig struct {
	Symbols  []string `json:"symbols" yaml:"symbols"`
	Interval string   `json:"interval" yaml:"interval"`
	Lookback int      `json:"lookback" yaml:"lookback"`
	CacheDir string   `json:"cache_dir" yaml:"cache_dir"`
}

// SignalsConfig contains signal emission parameters
type SignalsConfig struct {
	Cooldown      string  `json:"cooldown" yaml:"cooldown"` // e.g. "6h", "30m"
	ConfThreshold float64 `json:"conf_threshold" yaml:"conf_threshold"`
}

// ParseCooldown converts the cooldown string to time.Duration
func (s SignalsConfig) ParseCooldown() (time.Duration, error) {
	if s.Cooldown == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Cooldown)
}

// LifecycleConfig contains position lifecycle parameters
type LifecycleConfig struct {
	MaxHoldingTime string `json:"max_holding_time" yaml:"max_holding_time"` // e.g. "48h"
}

// ParseMaxHoldingTime converts the holding time string to time.Duration
func (l LifecycleConfig) ParseMaxHoldingTime() (time.Duration, error) {
	if l.MaxHoldingTime == "" {
		return 0, nil
	}
	return time.ParseDuration(l.MaxHoldingTime)
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// TelegramConfig contains notification parameters. Token and ChatID come
// from the environment, never the config file.
type TelegramConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Token   string `json:"-" yaml:"-"`
	ChatID  int64  `json:"-" yaml:"-"`
}

// ServerConfig contains HTTP server and scheduler parameters
type ServerConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Schedule string `json:"schedule" yaml:"schedule"` // cron expression, e.g. "@hourly"
}

// LoadFromFile loads configuration from a file (JSON or YAML based on
// content), applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnv reads a .env file if present; missing files are fine.
func LoadEnv() {
	_ = godotenv.Load()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		var id int64
		if _, err := fmt.Sscan(v, &id); err == nil {
			c.Telegram.ChatID = id
		}
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.StartEquity <= 0 {
		return fmt.Errorf("account.start_equity must be positive")
	}
	if c.Account.MaxConcurrent <= 0 {
		return fmt.Errorf("account.max_concurrent must be positive")
	}
	if c.Account.DailyLossCapPct <= 0 || c.Account.DailyLossCapPct >= 1 {
		return fmt.Errorf("account.daily_loss_cap_pct must be between 0 and 1")
	}
	if c.Risk.RiskPct <= 0 || c.Risk.RiskPct > 1 {
		return fmt.Errorf("risk.risk_pct must be between 0 and 1")
	}
	if c.Risk.MaxLeverage <= 0 {
		return fmt.Errorf("risk.max_leverage must be positive")
	}
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols is required")
	}
	if c.Data.Lookback <= 0 {
		return fmt.Errorf("data.lookback must be positive")
	}
	if _, err := c.Signals.ParseCooldown(); err != nil {
		return fmt.Errorf("signals.cooldown: %w", err)
	}
	if _, err := c.Lifecycle.ParseMaxHoldingTime(); err != nil {
		return fmt.Errorf("lifecycle.max_holding_time: %w", err)
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.EventsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal events_file and equity_file required for CSV type")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("telegram enabled but TELEGRAM_BOT_TOKEN is not set")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			StartEquity:     10000,
			MaxConcurrent:   3,
			DailyLossCapPct: 0.03,
			StateDir:        "./state",
		},
		Risk: RiskConfig{
			RiskPct:         0.01,
			MaxLeverage:     5,
			MinStopDistance: 1e-6,
		},
		Data: DataConfig{
			Symbols:  []string{"BTCUSDT", "ETHUSDT"},
			Interval: "1h",
			Lookback: 800,
			CacheDir: "./state/candles",
		},
		Signals: SignalsConfig{
			Cooldown:      "6h",
			ConfThreshold: 20,
		},
		Lifecycle: LifecycleConfig{
			MaxHoldingTime: "48h",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./state/journal.db",
		},
		Server: ServerConfig{
			Addr:     ":8080",
			Schedule: "5 * * * *",
		},
	}
}
