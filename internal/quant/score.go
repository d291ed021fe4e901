package quant

import "agent-trader/internal/models"

// ScoreVersion identifies the scoring formula. Bump when the weight table or
// a normalization changes.
const ScoreVersion = "v1"

// scoreWeights is the v1 weight table over directional factors. Volatility is
// deliberately absent: it has no sign.
var scoreWeights = []struct {
	name      string
	weight    float64
	normalize func(v float64) float64
}{
	{"momentum_5", 0.20, func(v float64) float64 { return v / 20 }},
	{"momentum_10", 0.10, func(v float64) float64 { return v / 20 }},
	{"money_flow_rate_5", 0.25, func(v float64) float64 { return v / 50 }},
	{"volume_ratio_5", 0.10, func(v float64) float64 { return (v - 1) / 2 }},
	{"price_position_20", 0.20, func(v float64) float64 { return (v - 50) / 50 }},
	{"ma_gap_20", 0.15, func(v float64) float64 { return v / 10 }},
}

// Score reduces a factor vector to a single quant stance in [-1,1]. Weights
// are renormalized over the factors actually present and defined, so partial
// vectors keep the stance bounded. Returns Undefined when no directional
// factor could be computed.
func Score(vec models.FactorVector) models.FactorValue {
	var score, total float64

	for _, w := range scoreWeights {
		v, ok := vec.Get(w.name)
		if !ok {
			continue
		}
		score += Clamp(w.normalize(v), -1, 1) * w.weight
		total += w.weight
	}

	if total == 0 {
		return models.Undefined
	}
	return models.DefinedValue(Clamp(score/total, -1, 1))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
