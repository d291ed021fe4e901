package quant

import (
	"agent-trader/internal/errors"
	"agent-trader/internal/models"
)

// Engine computes a FactorVector from a bounded history window. The registry
// order is fixed at construction so repeated calls over the same window yield
// bit-identical vectors.
type Engine struct {
	factors []Factor
}

// NewEngine creates an engine with the standard factor set.
func NewEngine() *Engine {
	return &Engine{
		factors: []Factor{
			NewMomentum(5),
			NewMomentum(10),
			NewMomentum(20),
			NewVolatility(20),
			NewMoneyFlowRate(5),
			NewVolumeRatio(5),
			NewPricePosition(20),
			NewMAGap(20),
		},
	}
}

// NewEngineWithFactors creates an engine with a custom factor set.
func NewEngineWithFactors(factors []Factor) *Engine {
	return &Engine{factors: factors}
}

// Compute calculates all registered factors for the window. A factor whose
// minimum window is not met is omitted rather than aborting the computation;
// partial vectors are legal. An empty window is a data error.
func (e *Engine) Compute(symbol string, window []models.MarketSnapshot) (models.FactorVector, error) {
	if len(window) == 0 {
		return models.FactorVector{}, errors.NewDataError("history", symbol, "empty window", nil)
	}

	vec := models.FactorVector{
		Symbol:    symbol,
		Timestamp: window[len(window)-1].Timestamp,
		Factors:   make(map[string]models.FactorValue, len(e.factors)),
	}

	for _, f := range e.factors {
		if len(window) < f.MinWindow() {
			continue
		}
		vec.Factors[f.Name()] = f.Compute(window)
	}

	vec.QuantStance = Score(vec)
	vec.ScoreVersion = ScoreVersion

	return vec, nil
}
