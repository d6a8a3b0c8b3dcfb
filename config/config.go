// Package config loads and validates the full backtester configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"backtester/backtest"
	"backtester/sizing"
)

// Config represents the complete backtest run configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Rules    RulesConfig    `json:"rules" yaml:"rules"`
	Sizing   SizingConfig   `json:"sizing" yaml:"sizing"`
	Costs    CostsConfig    `json:"costs" yaml:"costs"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// RulesConfig contains the exit-policy fractions and the shorting switch.
// A zero fraction disables that rule.
type RulesConfig struct {
	StopLoss     float64 `json:"stop_loss" yaml:"stop_loss"`
	TakeProfit   float64 `json:"take_profit" yaml:"take_profit"`
	TrailingStop float64 `json:"trailing_stop,omitempty" yaml:"trailing_stop,omitempty"`
	AllowShort   *bool   `json:"allow_short,omitempty" yaml:"allow_short,omitempty"`
}

// SizingConfig contains the allocation policy: a flat fraction, or a
// per-ticker table (unlisted tickers get no allocation).
type SizingConfig struct {
	Fraction  float64            `json:"fraction" yaml:"fraction"`
	PerTicker map[string]float64 `json:"per_ticker,omitempty" yaml:"per_ticker,omitempty"`
}

// CostsConfig contains the commission and slippage rates. They are carried
// through to the engine's fill hook but not applied to fills.
type CostsConfig struct {
	Commission float64 `json:"commission" yaml:"commission"`
	Slippage   float64 `json:"slippage" yaml:"slippage"`
}

// StrategyConfig selects a builtin strategy and its parameters.
type StrategyConfig struct {
	Name        string `json:"name" yaml:"name"`
	Fast        int    `json:"fast,omitempty" yaml:"fast,omitempty"`
	Slow        int    `json:"slow,omitempty" yaml:"slow,omitempty"`
	SignalsFile string `json:"signals_file,omitempty" yaml:"signals_file,omitempty"`
}

// DataConfig locates the daily-bar files.
type DataConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgPath    string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (format chosen by extension).
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

// Validate checks the configuration eagerly so a bad run never starts.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Rules.StopLoss < 0 || c.Rules.StopLoss >= 1 {
		return fmt.Errorf("rules.stop_loss must be in [0, 1)")
	}
	if c.Rules.TakeProfit < 0 {
		return fmt.Errorf("rules.take_profit must be non-negative")
	}
	if c.Rules.TrailingStop < 0 || c.Rules.TrailingStop >= 1 {
		return fmt.Errorf("rules.trailing_stop must be in [0, 1)")
	}
	if c.Sizing.Fraction < 0 || c.Sizing.Fraction > 1 {
		return fmt.Errorf("sizing.fraction must be in [0, 1]")
	}
	for ticker, frac := range c.Sizing.PerTicker {
		if frac < 0 || frac > 1 {
			return fmt.Errorf("sizing.per_ticker.%s must be in [0, 1]", ticker)
		}
	}
	if c.Costs.Commission < 0 || c.Costs.Slippage < 0 {
		return fmt.Errorf("costs must be non-negative")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

// AllowShort resolves the shorting switch, defaulting to enabled.
func (c *Config) AllowShort() bool {
	if c.Rules.AllowShort == nil {
		return true
	}
	return *c.Rules.AllowShort
}

// EngineConfig converts the file representation into the engine's Config.
func (c *Config) EngineConfig() backtest.Config {
	return backtest.Config{
		InitialCapital: c.Account.InitialCapital,
		Exits: backtest.ExitPolicy{
			StopLoss:     c.Rules.StopLoss,
			TakeProfit:   c.Rules.TakeProfit,
			TrailingStop: c.Rules.TrailingStop,
		},
		Sizing: sizing.Model{
			Fraction:  c.Sizing.Fraction,
			PerTicker: c.Sizing.PerTicker,
		},
		AllowShort: c.AllowShort(),
		Commission: c.Costs.Commission,
		Slippage:   c.Costs.Slippage,
	}
}

// Default returns a configuration with the standard defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialCapital: 100000,
		},
		Rules: RulesConfig{
			StopLoss:   0.05,
			TakeProfit: 0.10,
			// TrailingStop disabled; AllowShort nil means enabled
		},
		Sizing: SizingConfig{
			Fraction: 0.1,
		},
		Strategy: StrategyConfig{
			Name: "sma-cross",
			Fast: 10,
			Slow: 30,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Journal: JournalConfig{
			Type: "none",
		},
	}
}
