// Package quant computes deterministic numeric factors from market history
// and reduces them to a single bounded stance value.
package quant

import (
	"fmt"
	"math"

	"agent-trader/internal/models"
)

// Factor is a single named computation over a history window. Compute must be
// a pure function of its window: no clocks, no randomness, no hidden state.
// Degenerate inputs yield the Undefined sentinel, never an error.
type Factor interface {
	Name() string
	MinWindow() int
	Compute(window []models.MarketSnapshot) models.FactorValue
}

func closes(window []models.MarketSnapshot) []float64 {
	out := make([]float64, len(window))
	for i, s := range window {
		out[i] = s.Close
	}
	return out
}

// Momentum is the percentage return over the trailing period.
type Momentum struct {
	period int
}

// NewMomentum creates a momentum factor over the given period.
func NewMomentum(period int) *Momentum {
	return &Momentum{period: period}
}

func (m *Momentum) Name() string {
	return fmt.Sprintf("momentum_%d", m.period)
}

func (m *Momentum) MinWindow() int {
	return m.period + 1
}

func (m *Momentum) Compute(window []models.MarketSnapshot) models.FactorValue {
	c := closes(window)
	base := c[len(c)-1-m.period]
	if base == 0 {
		return models.Undefined
	}
	return models.DefinedValue((c[len(c)-1] - base) / base * 100)
}

// Volatility is the standard deviation of daily returns over the period,
// in percent.
type Volatility struct {
	period int
}

// NewVolatility creates a volatility factor over the given period.
func NewVolatility(period int) *Volatility {
	return &Volatility{period: period}
}

func (v *Volatility) Name() string {
	return fmt.Sprintf("volatility_%d", v.period)
}

func (v *Volatility) MinWindow() int {
	return v.period + 1
}

func (v *Volatility) Compute(window []models.MarketSnapshot) models.FactorValue {
	c := closes(window)
	c = c[len(c)-1-v.period:]

	returns := make([]float64, 0, v.period)
	for i := 1; i < len(c); i++ {
		if c[i-1] == 0 {
			return models.Undefined
		}
		returns = append(returns, (c[i]-c[i-1])/c[i-1])
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	return models.DefinedValue(math.Sqrt(sq/float64(len(returns))) * 100)
}

// MoneyFlowRate is the signed net turnover over the period as a percentage of
// total turnover. Up bars contribute positive flow, down bars negative.
type MoneyFlowRate struct {
	period int
}

// NewMoneyFlowRate creates a money-flow factor over the given period.
func NewMoneyFlowRate(period int) *MoneyFlowRate {
	return &MoneyFlowRate{period: period}
}

func (f *MoneyFlowRate) Name() string {
	return fmt.Sprintf("money_flow_rate_%d", f.period)
}

func (f *MoneyFlowRate) MinWindow() int {
	return f.period
}

func (f *MoneyFlowRate) Compute(window []models.MarketSnapshot) models.FactorValue {
	bars := window[len(window)-f.period:]

	var net, total float64
	for _, b := range bars {
		amount := b.Turnover
		if amount == 0 {
			amount = b.Close * float64(b.Volume)
		}
		total += amount
		switch {
		case b.Close > b.PrevClose:
			net += amount
		case b.Close < b.PrevClose:
			net -= amount
		}
	}
	if total == 0 {
		return models.Undefined
	}
	return models.DefinedValue(net / total * 100)
}

// VolumeRatio compares the latest volume against the period average.
type VolumeRatio struct {
	period int
}

// NewVolumeRatio creates a volume-ratio factor over the given period.
func NewVolumeRatio(period int) *VolumeRatio {
	return &VolumeRatio{period: period}
}

func (f *VolumeRatio) Name() string {
	return fmt.Sprintf("volume_ratio_%d", f.period)
}

func (f *VolumeRatio) MinWindow() int {
	return f.period
}

func (f *VolumeRatio) Compute(window []models.MarketSnapshot) models.FactorValue {
	bars := window[len(window)-f.period:]

	var sum float64
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	avg := sum / float64(f.period)
	if avg == 0 {
		return models.Undefined
	}
	return models.DefinedValue(float64(bars[len(bars)-1].Volume) / avg)
}

// PricePosition locates the latest close inside the period's high/low range,
// 0 at the low, 100 at the high.
type PricePosition struct {
	period int
}

// NewPricePosition creates a price-position factor over the given period.
func NewPricePosition(period int) *PricePosition {
	return &PricePosition{period: period}
}

func (f *PricePosition) Name() string {
	return fmt.Sprintf("price_position_%d", f.period)
}

func (f *PricePosition) MinWindow() int {
	return f.period
}

func (f *PricePosition) Compute(window []models.MarketSnapshot) models.FactorValue {
	bars := window[len(window)-f.period:]

	lo := bars[0].Low
	hi := bars[0].High
	for _, b := range bars {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	if hi == lo {
		// Flat range, position is meaningless
		return models.Undefined
	}
	return models.DefinedValue((bars[len(bars)-1].Close - lo) / (hi - lo) * 100)
}

// MAGap is the percentage distance between the latest close and the period
// simple moving average.
type MAGap struct {
	period int
}

// NewMAGap creates a moving-average gap factor over the given period.
func NewMAGap(period int) *MAGap {
	return &MAGap{period: period}
}

func (f *MAGap) Name() string {
	return fmt.Sprintf("ma_gap_%d", f.period)
}

func (f *MAGap) MinWindow() int {
	return f.period
}

func (f *MAGap) Compute(window []models.MarketSnapshot) models.FactorValue {
	c := closes(window)
	c = c[len(c)-f.period:]

	var sum float64
	for _, v := range c {
		sum += v
	}
	ma := sum / float64(f.period)
	if ma == 0 {
		return models.Undefined
	}
	return models.DefinedValue((c[len(c)-1] - ma) / ma * 100)
}
