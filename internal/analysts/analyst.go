// Package analysts provides the LLM-backed analyst units and the fan-out pool
// that collects their opinions for a decision cycle.
package analysts

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
)

// Request bundles everything an analyst unit may consult for one cycle.
type Request struct {
	Symbol   string
	Meta     models.SymbolMeta
	Factors  models.FactorVector
	News     []models.NewsItem
	RefPrice float64
}

// Analyst is the single capability every analyst unit implements. Identity,
// team membership, and prompt are configuration data on the unit, not a type
// hierarchy.
type Analyst interface {
	ID() string
	Team() string
	ProduceOpinion(ctx context.Context, req Request) (models.Opinion, error)
}

// LLMAnalyst is an analyst unit backed by an LLM prompt template.
type LLMAnalyst struct {
	spec   config.UnitSpec
	client LLMClient
}

// NewLLMAnalyst creates an analyst unit from its roster entry.
func NewLLMAnalyst(spec config.UnitSpec, client LLMClient) *LLMAnalyst {
	return &LLMAnalyst{spec: spec, client: client}
}

// FromRoster builds the full analyst pool roster from configuration.
func FromRoster(roster config.AnalystsConfig, client LLMClient) []Analyst {
	units := make([]Analyst, 0, len(roster.Units))
	for _, spec := range roster.Units {
		units = append(units, NewLLMAnalyst(spec, client))
	}
	return units
}

func (a *LLMAnalyst) ID() string {
	return a.spec.ID
}

func (a *LLMAnalyst) Team() string {
	return a.spec.Team
}

const systemPrompt = `You are one analyst on an investment committee.
Read the context and answer with your own judgement only.
Your response must be in the following exact format:
STANCE: <number between -1 (strongly bearish) and 1 (strongly bullish)>
CONFIDENCE: <number between 0 and 1>
RATIONALE: <your reasoning in one paragraph>`

// ProduceOpinion renders the unit's prompt, calls the LLM, and parses the
// structured reply. Transport and parse failures are returned as errors; the
// pool converts them into excluded opinions.
func (a *LLMAnalyst) ProduceOpinion(ctx context.Context, req Request) (models.Opinion, error) {
	start := time.Now()

	userPrompt := a.buildPrompt(req)

	response, err := a.client.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return models.Opinion{}, errors.NewAgentError(a.spec.ID, a.spec.Team, "completion", err)
	}

	stance, confidence, rationale, err := parseOpinion(response)
	if err != nil {
		return models.Opinion{}, errors.NewAgentError(a.spec.ID, a.spec.Team, "parse", err)
	}

	return models.Opinion{
		UnitID:     a.spec.ID,
		Team:       a.spec.Team,
		Symbol:     req.Symbol,
		Stance:     stance,
		Confidence: confidence,
		Rationale:  rationale,
		Latency:    time.Since(start),
		Outcome:    models.OutcomeOk,
	}, nil
}

// buildPrompt fills the roster template and appends the shared context block.
func (a *LLMAnalyst) buildPrompt(req Request) string {
	r := strings.NewReplacer(
		"{symbol}", req.Symbol,
		"{name}", req.Meta.Name,
		"{industry}", req.Meta.Industry,
	)

	var sb strings.Builder
	sb.WriteString(r.Replace(a.spec.Prompt))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Symbol: %s (%s)\n", req.Symbol, req.Meta.Name))
	sb.WriteString(fmt.Sprintf("Reference Price: %.2f\n\n", req.RefPrice))

	sb.WriteString("Factor Readings:\n")
	names := make([]string, 0, len(req.Factors.Factors))
	for name := range req.Factors.Factors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v, ok := req.Factors.Get(name); ok {
			sb.WriteString(fmt.Sprintf("  - %s: %.2f\n", name, v))
		}
	}
	if v := req.Factors.QuantStance; v.Defined {
		sb.WriteString(fmt.Sprintf("  - quant stance (%s): %.2f\n", req.Factors.ScoreVersion, v.Value))
	}
	sb.WriteString("\n")

	if len(req.News) > 0 {
		sb.WriteString("Recent Documents:\n")
		for i, n := range req.News {
			if i >= 5 {
				break
			}
			sb.WriteString(fmt.Sprintf("  - [%s] %s: %s\n", n.Source, n.Title, excerpt(n.Content, 200)))
		}
	}

	return sb.String()
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// parseOpinion parses the STANCE/CONFIDENCE/RATIONALE line protocol.
func parseOpinion(response string) (stance, confidence float64, rationale string, err error) {
	var haveStance, haveConfidence bool

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "STANCE:"):
			v, perr := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "STANCE:")), 64)
			if perr != nil {
				return 0, 0, "", fmt.Errorf("bad stance: %w", perr)
			}
			stance = quant.Clamp(v, -1, 1)
			haveStance = true
		case strings.HasPrefix(line, "CONFIDENCE:"):
			v, perr := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64)
			if perr != nil {
				return 0, 0, "", fmt.Errorf("bad confidence: %w", perr)
			}
			confidence = quant.Clamp(v, 0, 1)
			haveConfidence = true
		case strings.HasPrefix(line, "RATIONALE:"):
			rationale = strings.TrimSpace(strings.TrimPrefix(line, "RATIONALE:"))
		}
	}

	if !haveStance || !haveConfidence {
		return 0, 0, "", fmt.Errorf("response missing STANCE or CONFIDENCE: %q", excerpt(response, 120))
	}
	return stance, confidence, rationale, nil
}
