package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Agent Trader Configuration
# The pipeline section has no built-in defaults: every value below is an
# example you must review, not a recommendation.

[pipeline]
# Minimum count of usable analyst opinions required to proceed past scoring
quorum_min = 3
# Weight of the quant factor stance in the composite score
quant_weight = 0.3
# Composite score thresholds, all in [-1,1]
buy_threshold = 0.5
strong_buy_threshold = 0.75
sell_threshold = -0.5
strong_sell_threshold = -0.75
# Per analyst-unit call timeout and pool-wide deadline
per_call_timeout = "20s"
pool_deadline = "45s"
# What to do with a trigger while a cycle is in flight: "queue" or "drop"
freshness_policy = "queue"
# Number of history bars fed to the factor engine
history_window = 60

[pipeline.team_weights]
macro = 0.10
fundamental = 0.20
technical = 0.25
news = 0.15
risk_scan = 0.15
stock_pick = 0.15

[risk]
# Maximum single-position size as percentage of portfolio value
max_position_pct = 10.0
# Maximum portfolio concentration in one symbol
max_concentration_pct = 25.0
# Maximum account drawdown before new orders are rejected
max_drawdown_pct = 20.0
# Minimum wait since the last order for the same symbol
cool_down_period = "30m"
# Sizing base before risk clamping
base_position_pct = 5.0

[executor]
# Bounded retry for order persistence
retry_limit = 3
retry_initial_delay = "100ms"
retry_max_delay = "5s"

[watch]
symbols = ["600519", "000858"]
interval = "5m"
`

const credentialsTemplate = `# Agent Trader Credentials
# Keep this file private (chmod 600)

[openai]
api_key = ""
model = "gpt-4o-mini"
`

const analystsTemplate = `# Analyst roster. Each unit is one LLM-backed analyst; team membership and
# prompt are data, not code. Teams must have a weight in pipeline.team_weights.

[[units]]
id = "macro-1"
team = "macro"
prompt = "You are a macro strategist. Judge how the current macro backdrop affects {symbol} ({name}, {industry})."

[[units]]
id = "fundamental-1"
team = "fundamental"
prompt = "You are a fundamental analyst covering {industry}. Assess the outlook for {symbol} ({name})."

[[units]]
id = "technical-1"
team = "technical"
prompt = "You are a technical analyst. Interpret the factor readings for {symbol} and judge the short-term direction."

[[units]]
id = "news-1"
team = "news"
prompt = "You are a market news analyst. Weigh the recent documents about {symbol} ({name}) for sentiment."

[[units]]
id = "risk-scan-1"
team = "risk_scan"
prompt = "You are a risk scanner. Look for red flags around {symbol} ({name}) that argue against taking a position."

[[units]]
id = "stock-pick-1"
team = "stock_pick"
prompt = "You are a stock picker. Decide whether {symbol} ({name}) is attractive at the current price."
`

// WriteTemplates creates any missing configuration files from templates.
// Existing files are never overwritten.
func WriteTemplates(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	files := []struct {
		name    string
		content string
		perm    os.FileMode
	}{
		{"config.toml", configTemplate, 0644},
		{"credentials.toml", credentialsTemplate, 0600},
		{"analysts.toml", analystsTemplate, 0644},
	}
	for _, f := range files {
		path := filepath.Join(configDir, f.name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(f.content), f.perm); err != nil {
			return fmt.Errorf("writing %s template: %w", f.name, err)
		}
	}
	return nil
}

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config.toml", configTemplate, 0644)
}

func createTemplateCredentials(configDir string) error {
	return writeTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
}

func createTemplateAnalysts(configDir string) error {
	return writeTemplate(configDir, "analysts.toml", analystsTemplate, 0644)
}

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return fmt.Errorf("%s not found; template created at %s, edit it and retry", name, path)
}
