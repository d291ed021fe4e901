// Package config provides configuration management for the decision pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Pipeline    PipelineConfig `mapstructure:"pipeline"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Executor    ExecutorConfig `mapstructure:"executor"`
	Watch       WatchConfig    `mapstructure:"watch"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately
	Analysts    AnalystsConfig `mapstructure:"-"` // Loaded separately
}

// PipelineConfig holds aggregation and scheduling configuration. None of the
// decision-critical numbers carry defaults; a config that omits them is
// rejected by Validate.
type PipelineConfig struct {
	QuorumMin           int                `mapstructure:"quorum_min"`
	QuantWeight         float64            `mapstructure:"quant_weight"`
	TeamWeights         map[string]float64 `mapstructure:"team_weights"`
	BuyThreshold        float64            `mapstructure:"buy_threshold"`
	SellThreshold       float64            `mapstructure:"sell_threshold"`
	StrongBuyThreshold  float64            `mapstructure:"strong_buy_threshold"`
	StrongSellThreshold float64            `mapstructure:"strong_sell_threshold"`
	PerCallTimeout      time.Duration      `mapstructure:"per_call_timeout"`
	PoolDeadline        time.Duration      `mapstructure:"pool_deadline"`
	FreshnessPolicy     string             `mapstructure:"freshness_policy"` // "queue", "drop"
	HistoryWindow       int                `mapstructure:"history_window"`   // bars fed to the factor engine
}

// RiskConfig holds risk gate configuration.
type RiskConfig struct {
	MaxPositionPct      float64       `mapstructure:"max_position_pct"`
	MaxConcentrationPct float64       `mapstructure:"max_concentration_pct"`
	MaxDrawdownPct      float64       `mapstructure:"max_drawdown_pct"`
	CoolDownPeriod      time.Duration `mapstructure:"cool_down_period"`
	BasePositionPct     float64       `mapstructure:"base_position_pct"` // sizing base before clamping
}

// ExecutorConfig holds trade executor retry configuration.
type ExecutorConfig struct {
	RetryLimit        int           `mapstructure:"retry_limit"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
}

// WatchConfig holds the periodic trigger loop configuration.
type WatchConfig struct {
	Symbols  []string      `mapstructure:"symbols"`
	Interval time.Duration `mapstructure:"interval"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds LLM API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// UnitSpec describes one analyst unit. Roster membership is configuration
// data, not code: adding an analyst is a new table entry, not a new type.
type UnitSpec struct {
	ID     string `mapstructure:"id"`
	Team   string `mapstructure:"team"`
	Prompt string `mapstructure:"prompt"`
}

// AnalystsConfig holds the analyst roster.
type AnalystsConfig struct {
	Units []UnitSpec `mapstructure:"units"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/agent-trader"
	}
	return filepath.Join(home, ".config", "agent-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	if err := loadAnalysts(configDir, &cfg.Analysts); err != nil {
		return nil, fmt.Errorf("loading analysts.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func loadAnalysts(configDir string, analysts *AnalystsConfig) error {
	v := viper.New()
	v.SetConfigName("analysts")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateAnalysts(configDir)
		}
		return err
	}

	return v.Unmarshal(analysts)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Credentials.OpenAI.Model = v
	}
}

// Validate validates the configuration. Decision thresholds, quorum, and
// weights must be supplied explicitly; there are no normative defaults.
func (c *Config) Validate() error {
	p := &c.Pipeline

	if p.QuorumMin < 1 {
		return fmt.Errorf("pipeline.quorum_min must be >= 1, got %d", p.QuorumMin)
	}
	if p.QuantWeight < 0 || p.QuantWeight > 1 {
		return fmt.Errorf("pipeline.quant_weight must be in [0,1], got %f", p.QuantWeight)
	}
	if len(p.TeamWeights) == 0 {
		return fmt.Errorf("pipeline.team_weights must not be empty")
	}
	for team, w := range p.TeamWeights {
		if w < 0 {
			return fmt.Errorf("pipeline.team_weights[%s] must be >= 0, got %f", team, w)
		}
	}
	if p.BuyThreshold <= 0 || p.BuyThreshold >= 1 {
		return fmt.Errorf("pipeline.buy_threshold must be in (0,1), got %f", p.BuyThreshold)
	}
	if p.SellThreshold >= 0 || p.SellThreshold <= -1 {
		return fmt.Errorf("pipeline.sell_threshold must be in (-1,0), got %f", p.SellThreshold)
	}
	if p.StrongBuyThreshold < p.BuyThreshold {
		return fmt.Errorf("pipeline.strong_buy_threshold must be >= buy_threshold")
	}
	if p.StrongSellThreshold > p.SellThreshold {
		return fmt.Errorf("pipeline.strong_sell_threshold must be <= sell_threshold")
	}
	if p.PerCallTimeout <= 0 {
		return fmt.Errorf("pipeline.per_call_timeout must be positive")
	}
	if p.PoolDeadline < p.PerCallTimeout {
		return fmt.Errorf("pipeline.pool_deadline must be >= per_call_timeout")
	}
	switch p.FreshnessPolicy {
	case "queue", "drop":
	default:
		return fmt.Errorf("pipeline.freshness_policy must be 'queue' or 'drop', got %q", p.FreshnessPolicy)
	}
	if p.HistoryWindow < 2 {
		return fmt.Errorf("pipeline.history_window must be >= 2, got %d", p.HistoryWindow)
	}

	r := &c.Risk
	if r.MaxPositionPct <= 0 || r.MaxPositionPct > 100 {
		return fmt.Errorf("risk.max_position_pct must be in (0,100], got %f", r.MaxPositionPct)
	}
	if r.MaxConcentrationPct <= 0 || r.MaxConcentrationPct > 100 {
		return fmt.Errorf("risk.max_concentration_pct must be in (0,100], got %f", r.MaxConcentrationPct)
	}
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct > 100 {
		return fmt.Errorf("risk.max_drawdown_pct must be in (0,100], got %f", r.MaxDrawdownPct)
	}
	if r.CoolDownPeriod < 0 {
		return fmt.Errorf("risk.cool_down_period must be non-negative")
	}
	if r.BasePositionPct <= 0 || r.BasePositionPct > r.MaxPositionPct {
		return fmt.Errorf("risk.base_position_pct must be in (0, max_position_pct]")
	}

	e := &c.Executor
	if e.RetryLimit < 1 {
		return fmt.Errorf("executor.retry_limit must be >= 1, got %d", e.RetryLimit)
	}
	if e.RetryInitialDelay <= 0 || e.RetryMaxDelay < e.RetryInitialDelay {
		return fmt.Errorf("executor retry delays misconfigured")
	}

	if len(c.Analysts.Units) > 0 {
		seen := make(map[string]bool, len(c.Analysts.Units))
		for _, u := range c.Analysts.Units {
			if u.ID == "" || u.Team == "" {
				return fmt.Errorf("analyst unit requires id and team: %+v", u)
			}
			if seen[u.ID] {
				return fmt.Errorf("duplicate analyst unit id: %s", u.ID)
			}
			seen[u.ID] = true
			if _, ok := p.TeamWeights[u.Team]; !ok {
				return fmt.Errorf("analyst unit %s references team %q with no weight entry", u.ID, u.Team)
			}
		}
	}

	return nil
}
