// Package config loads engine configuration from a YAML file with
// environment-variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"agent-funding-engine/internal/evaluation"
	"agent-funding-engine/internal/ledger"
	"agent-funding-engine/internal/tradegate"
)

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Risk     RiskConfig     `yaml:"risk"`
	Gate     GateConfig     `yaml:"gate"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// ServerConfig holds the HTTP listen settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects and configures the persistence backends.
type StorageConfig struct {
	// UseMemory runs on in-memory stores, for development and tests.
	UseMemory bool `yaml:"use_memory"`

	PostgresDSN string `yaml:"postgres_dsn"`

	// ClickhouseDSN configures the analytics sink. Empty disables analytics.
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// ExchangeConfig holds the exchange endpoints.
type ExchangeConfig struct {
	BaseURL string `yaml:"base_url"`

	// WSEndpoint is the settlement stream endpoint. Empty disables the
	// settlement runner.
	WSEndpoint string `yaml:"ws_endpoint"`
}

// RiskConfig holds the onboarding risk-gate thresholds.
type RiskConfig struct {
	MinTrades        int     `yaml:"min_trades"`
	MinWinRate       float64 `yaml:"min_win_rate"`
	MinTotalPnl      float64 `yaml:"min_total_pnl"`
	MaxDrawdown      float64 `yaml:"max_drawdown"`
	DisplayPrecision int     `yaml:"display_precision"`

	// BypassRiskGate admits agents whose history fails the gate.
	BypassRiskGate bool `yaml:"bypass_risk_gate"`
}

// GateConfig holds the per-trade authorization limits.
type GateConfig struct {
	MaxDailyTrades int     `yaml:"max_daily_trades"`
	DrawdownKill   float64 `yaml:"drawdown_kill"`
}

// LedgerConfig holds the profit split fractions.
type LedgerConfig struct {
	AgentShare float64 `yaml:"agent_share"`
	FirmShare  float64 `yaml:"firm_share"`
}

// Default returns the configuration with standard limits and local endpoints.
func Default() Config {
	thresholds := evaluation.DefaultThresholds()
	gate := tradegate.DefaultConfig()
	shares := ledger.DefaultShares()

	return Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			UseMemory: false,
		},
		Exchange: ExchangeConfig{
			BaseURL: "http://localhost:9010",
		},
		Risk: RiskConfig{
			MinTrades:        thresholds.MinTrades,
			MinWinRate:       thresholds.MinWinRate,
			MinTotalPnl:      thresholds.MinTotalPnl,
			MaxDrawdown:      thresholds.MaxDrawdown,
			DisplayPrecision: thresholds.DisplayPrecision,
		},
		Gate: GateConfig{
			MaxDailyTrades: gate.MaxDailyTrades,
			DrawdownKill:   gate.DrawdownKill,
		},
		Ledger: LedgerConfig{
			AgentShare: shares.Agent,
			FirmShare:  shares.Firm,
		},
	}
}

// LoadFile reads path over the defaults. A missing file is an error; use
// Default directly when no file is expected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides deployment-specific values from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("USE_MEMORY_STORAGE"); v != "" {
		c.Storage.UseMemory = isTrue(v)
	}
	if v := os.Getenv("EXCHANGE_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := os.Getenv("EXCHANGE_WS_ENDPOINT"); v != "" {
		c.Exchange.WSEndpoint = v
	}
	if v := os.Getenv("BYPASS_RISK_GATE"); v != "" {
		c.Risk.BypassRiskGate = isTrue(v)
	}
	if v := os.Getenv("MAX_DAILY_TRADES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gate.MaxDailyTrades = n
		}
	}
	if v := os.Getenv("DRAWDOWN_KILL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gate.DrawdownKill = f
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required unless use_memory is set")
	}
	if c.Gate.MaxDailyTrades < 1 {
		return fmt.Errorf("max_daily_trades must be at least 1, got %d", c.Gate.MaxDailyTrades)
	}
	if c.Gate.DrawdownKill <= 0 || c.Gate.DrawdownKill > 1 {
		return fmt.Errorf("drawdown_kill must be in (0, 1], got %v", c.Gate.DrawdownKill)
	}
	if c.Ledger.AgentShare < 0 || c.Ledger.FirmShare < 0 {
		return fmt.Errorf("profit shares must not be negative")
	}
	if c.Risk.MinWinRate < 0 || c.Risk.MinWinRate > 1 {
		return fmt.Errorf("min_win_rate must be in [0, 1], got %v", c.Risk.MinWinRate)
	}
	return nil
}

// Thresholds converts the risk section to analyzer thresholds.
func (c *Config) Thresholds() evaluation.Thresholds {
	return evaluation.Thresholds{
		MinTrades:        c.Risk.MinTrades,
		MinWinRate:       c.Risk.MinWinRate,
		MinTotalPnl:      c.Risk.MinTotalPnl,
		MaxDrawdown:      c.Risk.MaxDrawdown,
		DisplayPrecision: c.Risk.DisplayPrecision,
	}
}

// GateSettings converts the gate section to trade gate configuration.
func (c *Config) GateSettings() tradegate.Config {
	return tradegate.Config{
		MaxDailyTrades: c.Gate.MaxDailyTrades,
		DrawdownKill:   c.Gate.DrawdownKill,
	}
}

// Shares converts the ledger section to profit split fractions.
func (c *Config) Shares() ledger.Shares {
	return ledger.Shares{
		Agent: c.Ledger.AgentShare,
		Firm:  c.Ledger.FirmShare,
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
