package models

import "time"

// FactorValue is a single computed factor. Degenerate inputs (zero volume,
// identical high/low, division by zero) yield Defined=false rather than an
// error or a silent zero.
type FactorValue struct {
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Undefined is the sentinel for a factor that could not be computed.
var Undefined = FactorValue{}

// Defined wraps a computed value.
func DefinedValue(v float64) FactorValue {
	return FactorValue{Value: v, Defined: true}
}

// FactorVector holds the numeric factors computed for a symbol from a bounded
// history window. Factors whose minimum window was not met are absent from the
// map; factors that hit degenerate inputs are present but undefined.
type FactorVector struct {
	Symbol       string                 `json:"symbol"`
	Timestamp    time.Time              `json:"timestamp"`
	Factors      map[string]FactorValue `json:"factors"`
	QuantStance  FactorValue            `json:"quant_stance"` // [-1,1], produced by the versioned scoring formula
	ScoreVersion string                 `json:"score_version"`
}

// Get returns the factor value and whether it is both present and defined.
func (v FactorVector) Get(name string) (float64, bool) {
	fv, ok := v.Factors[name]
	if !ok || !fv.Defined {
		return 0, false
	}
	return fv.Value, true
}
