// Package decision implements opinion aggregation, the per-cycle state
// machine, and the pipeline that drives a symbol from trigger to terminal
// state.
package decision

import (
	"sort"
	"time"

	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
)

// Aggregator folds the quant stance and analyst opinions into one bounded
// composite score. Aggregation is deterministic: the same opinions, factors,
// and weights always produce the same value.
type Aggregator struct {
	cfg config.PipelineConfig
}

// NewAggregator creates an aggregator with the given pipeline weights.
func NewAggregator(cfg config.PipelineConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the composite score for one epoch. Opinions that did not
// complete with outcome OK are excluded from every mean and every denominator.
// Fewer usable opinions than the quorum is a hard stop.
func (a *Aggregator) Aggregate(symbol, epochID string, vec models.FactorVector, opinions []models.Opinion, refPrice float64) (*models.CompositeScore, error) {
	usable := 0
	for _, op := range opinions {
		if op.Usable() {
			usable++
		}
	}
	if usable < a.cfg.QuorumMin {
		return nil, errors.Wrapf(errors.ErrQuorumNotMet, "%d usable of %d required", usable, a.cfg.QuorumMin)
	}

	teamStances, used := a.teamStances(opinions)

	// Renormalize over present contributors only. A team with no usable
	// opinions, or an undefined quant stance, contributes neither signal nor
	// denominator weight.
	var weighted, totalWeight float64
	if vec.QuantStance.Defined && a.cfg.QuantWeight > 0 {
		weighted += a.cfg.QuantWeight * vec.QuantStance.Value
		totalWeight += a.cfg.QuantWeight
	}
	for _, team := range sortedTeams(teamStances) {
		w := a.cfg.TeamWeights[team]
		if w <= 0 {
			continue
		}
		weighted += w * teamStances[team]
		totalWeight += w
	}

	if totalWeight == 0 {
		return nil, errors.Wrap(errors.ErrQuorumNotMet, "no weighted contributor present")
	}

	value := quant.Clamp(weighted/totalWeight, -1, 1)

	return &models.CompositeScore{
		Symbol:       symbol,
		EpochID:      epochID,
		Value:        value,
		Action:       a.Action(value),
		OpinionsUsed: used,
		TeamStances:  teamStances,
		Factors:      vec,
		RefPrice:     refPrice,
		Timestamp:    time.Now(),
	}, nil
}

// teamStances computes the confidence-weighted mean stance per team over
// usable opinions. The denominator counts only opinions that are present;
// absent units do not dilute their team.
func (a *Aggregator) teamStances(opinions []models.Opinion) (map[string]float64, []models.WeightedOpinion) {
	type acc struct {
		sum    float64
		weight float64
	}
	byTeam := make(map[string]*acc)
	var used []models.WeightedOpinion

	for _, op := range opinions {
		if !op.Usable() || op.Confidence <= 0 {
			continue
		}
		t, ok := byTeam[op.Team]
		if !ok {
			t = &acc{}
			byTeam[op.Team] = t
		}
		t.sum += op.Stance * op.Confidence
		t.weight += op.Confidence
	}

	stances := make(map[string]float64, len(byTeam))
	for team, t := range byTeam {
		stances[team] = t.sum / t.weight
	}

	for _, op := range opinions {
		if !op.Usable() || op.Confidence <= 0 {
			continue
		}
		t := byTeam[op.Team]
		used = append(used, models.WeightedOpinion{
			Opinion: op,
			Weight:  op.Confidence / t.weight,
		})
	}

	return stances, used
}

// Action maps a composite value to an action candidate via the configured
// thresholds. Values inside (sell_threshold, buy_threshold) hold.
func (a *Aggregator) Action(value float64) models.Action {
	switch {
	case value >= a.cfg.StrongBuyThreshold:
		return models.ActionStrongBuy
	case value >= a.cfg.BuyThreshold:
		return models.ActionBuy
	case value <= a.cfg.StrongSellThreshold:
		return models.ActionStrongSell
	case value <= a.cfg.SellThreshold:
		return models.ActionSell
	}
	return models.ActionHold
}

// sortedTeams returns team names in stable order so aggregation over a map
// stays deterministic.
func sortedTeams(stances map[string]float64) []string {
	teams := make([]string, 0, len(stances))
	for team := range stances {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}
