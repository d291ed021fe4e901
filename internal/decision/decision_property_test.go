package decision

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/models"
)

func opinionGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Opinion{}), map[string]gopter.Gen{
		"UnitID":     gen.Identifier(),
		"Team":       gen.OneConstOf("technical", "fundamental", "macro"),
		"Symbol":     gen.Const("600519"),
		"Stance":     gen.Float64Range(-1, 1),
		"Confidence": gen.Float64Range(0, 1),
		"Outcome":    gen.OneConstOf(models.OutcomeOk, models.OutcomeTimeout, models.OutcomeError),
	})
}

func propertyConfig() config.PipelineConfig {
	return config.PipelineConfig{
		QuorumMin:   1,
		QuantWeight: 0.3,
		TeamWeights: map[string]float64{
			"technical":   0.3,
			"fundamental": 0.2,
			"macro":       0.2,
		},
		BuyThreshold:        0.5,
		StrongBuyThreshold:  0.75,
		SellThreshold:       -0.5,
		StrongSellThreshold: -0.75,
	}
}

// Property: the composite score is always in [-1,1] for any mix of opinions
// and any quant stance, or the aggregation stops with a quorum error.
func TestProperty_CompositeScoreBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	agg := NewAggregator(propertyConfig())

	properties.Property("composite stays in [-1,1]", prop.ForAll(
		func(opinions []models.Opinion, quant float64) bool {
			vec := models.FactorVector{QuantStance: models.DefinedValue(quant)}
			score, err := agg.Aggregate("600519", "epoch", vec, opinions, 100)
			if err != nil {
				return errors.Is(err, errors.ErrQuorumNotMet)
			}
			return score.Value >= -1 && score.Value <= 1
		},
		gen.SliceOf(opinionGen()),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

// Property: aggregation is deterministic over identical inputs.
func TestProperty_AggregationDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	agg := NewAggregator(propertyConfig())

	properties.Property("same opinions, same composite", prop.ForAll(
		func(opinions []models.Opinion) bool {
			vec := models.FactorVector{QuantStance: models.DefinedValue(0.4)}
			a, errA := agg.Aggregate("600519", "epoch", vec, opinions, 100)
			b, errB := agg.Aggregate("600519", "epoch", vec, opinions, 100)
			if errA != nil || errB != nil {
				return (errA == nil) == (errB == nil)
			}
			return a.Value == b.Value && a.Action == b.Action
		},
		gen.SliceOf(opinionGen()),
	))

	properties.TestingRun(t)
}

// Property: fewer usable opinions than the quorum always stops aggregation,
// regardless of how strong the usable opinions are.
func TestProperty_QuorumHardStop(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	cfg := propertyConfig()
	cfg.QuorumMin = 5
	agg := NewAggregator(cfg)

	properties.Property("under-quorum always inconclusive", prop.ForAll(
		func(opinions []models.Opinion) bool {
			usable := 0
			for _, op := range opinions {
				if op.Usable() {
					usable++
				}
			}
			if usable >= cfg.QuorumMin {
				return true
			}
			_, err := agg.Aggregate("600519", "epoch", models.FactorVector{}, opinions, 100)
			return errors.Is(err, errors.ErrQuorumNotMet)
		},
		gen.SliceOfN(4, opinionGen()),
	))

	properties.TestingRun(t)
}
