package models

import "time"

// Position is a held instrument inside a portfolio snapshot.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  int64   `json:"quantity"`
	AvgCost   float64 `json:"avg_cost"`
	MarketVal float64 `json:"market_val"`
}

// PortfolioState is a consistent read-only snapshot of the portfolio taken at
// risk-gate entry. It is never shared mutably across cycles.
type PortfolioState struct {
	TotalValue    float64              `json:"total_value"`
	AvailableCash float64              `json:"available_cash"`
	Positions     map[string]Position  `json:"positions,omitempty"`
	DrawdownPct   float64              `json:"drawdown_pct"` // realized+unrealized drawdown from peak, percent
	LastOrderAt   map[string]time.Time `json:"last_order_at,omitempty"`
	TakenAt       time.Time            `json:"taken_at"`
}

// PositionValue returns the market value currently held in symbol.
func (p *PortfolioState) PositionValue(symbol string) float64 {
	if pos, ok := p.Positions[symbol]; ok {
		return pos.MarketVal
	}
	return 0
}

// ConcentrationPct returns the share of portfolio value held in symbol.
func (p *PortfolioState) ConcentrationPct(symbol string) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	return p.PositionValue(symbol) / p.TotalValue * 100
}
