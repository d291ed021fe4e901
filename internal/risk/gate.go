// Package risk implements the risk control gate between aggregation and
// order emission. Every action candidate passes through Evaluate; the trade
// executor's only input type is the RiskDecision produced here.
package risk

import (
	"time"

	"agent-trader/internal/config"
	"agent-trader/internal/models"
)

// Check names recorded on RiskDecision.Checks.
const (
	CheckHalted        = "instrument_halted"
	CheckPriceLimit    = "price_limit"
	CheckCoolDown      = "cool_down"
	CheckMaxDrawdown   = "max_drawdown"
	CheckConcentration = "max_concentration"
	CheckNoPosition    = "no_position"
	CheckMaxPosition   = "max_position_pct"
)

// Instrument carries the tradability context for the symbol under decision.
type Instrument struct {
	Meta    models.SymbolMeta
	LastBar models.MarketSnapshot
}

// Gate evaluates an ordered list of checks against a portfolio snapshot.
// Hard failures short-circuit to Rejected; the sizing cap is a soft limit
// that clamps the quantity instead.
type Gate struct {
	cfg config.RiskConfig
	now func() time.Time
}

// NewGate creates a gate with the given limits.
func NewGate(cfg config.RiskConfig) *Gate {
	return &Gate{cfg: cfg, now: time.Now}
}

// Evaluate rules on one composite score. The portfolio snapshot is read-only
// and must have been taken at gate entry.
func (g *Gate) Evaluate(score *models.CompositeScore, pf *models.PortfolioState, inst Instrument) *models.RiskDecision {
	d := &models.RiskDecision{
		Score:        score,
		Verdict:      models.VerdictApproved,
		PortfolioVal: pf.TotalValue,
		Timestamp:    g.now(),
	}

	side := score.Action.Side()

	// Hard checks, in order. The first failure wins.
	if inst.Meta.Halted {
		return reject(d, CheckHalted)
	}
	if side == models.SideBuy && inst.LastBar.IsLimitUp() {
		return reject(d, CheckPriceLimit)
	}
	if side == models.SideSell && inst.LastBar.IsLimitDown() {
		return reject(d, CheckPriceLimit)
	}

	if last, ok := pf.LastOrderAt[score.Symbol]; ok && g.cfg.CoolDownPeriod > 0 {
		if g.now().Sub(last) < g.cfg.CoolDownPeriod {
			return reject(d, CheckCoolDown)
		}
	}

	if pf.DrawdownPct >= g.cfg.MaxDrawdownPct {
		return reject(d, CheckMaxDrawdown)
	}

	if side == models.SideSell {
		return g.sizeSell(d, score, pf)
	}
	return g.sizeBuy(d, score, pf)
}

func (g *Gate) sizeBuy(d *models.RiskDecision, score *models.CompositeScore, pf *models.PortfolioState) *models.RiskDecision {
	if pf.ConcentrationPct(score.Symbol) >= g.cfg.MaxConcentrationPct {
		return reject(d, CheckConcentration)
	}

	d.Quantity = g.requestedQty(score, pf)
	if d.Quantity == 0 {
		return reject(d, CheckMaxPosition)
	}

	// Soft sizing cap: the resulting position may not exceed max_position_pct
	// of portfolio value. Excess is clamped, not rejected.
	maxValue := pf.TotalValue * g.cfg.MaxPositionPct / 100
	newValue := pf.PositionValue(score.Symbol) + float64(d.Quantity)*score.RefPrice
	if newValue > maxValue {
		allowed := maxValue - pf.PositionValue(score.Symbol)
		clamped := roundLot(int64(allowed / score.RefPrice))
		if clamped <= 0 {
			return reject(d, CheckMaxPosition)
		}
		d.Verdict = models.VerdictClamped
		d.Checks = append(d.Checks, CheckMaxPosition)
		d.AdjustedQty = clamped
	}

	return d
}

func (g *Gate) sizeSell(d *models.RiskDecision, score *models.CompositeScore, pf *models.PortfolioState) *models.RiskDecision {
	pos, ok := pf.Positions[score.Symbol]
	if !ok || pos.Quantity == 0 {
		return reject(d, CheckNoPosition)
	}
	// Sells exit the held position; sizing caps do not apply.
	d.Quantity = pos.Quantity
	return d
}

// requestedQty derives the order size from the configured sizing base; strong
// actions request double the base. Quantities are whole round lots.
func (g *Gate) requestedQty(score *models.CompositeScore, pf *models.PortfolioState) int64 {
	if score.RefPrice <= 0 || pf.TotalValue <= 0 {
		return 0
	}

	value := pf.TotalValue * g.cfg.BasePositionPct / 100
	if score.Action == models.ActionStrongBuy || score.Action == models.ActionStrongSell {
		value *= 2
	}
	return roundLot(int64(value / score.RefPrice))
}

// roundLot truncates to the exchange round lot of 100 shares.
func roundLot(qty int64) int64 {
	return qty / 100 * 100
}

func reject(d *models.RiskDecision, check string) *models.RiskDecision {
	d.Verdict = models.VerdictRejected
	d.Checks = append(d.Checks, check)
	d.Quantity = 0
	d.AdjustedQty = 0
	return d
}
