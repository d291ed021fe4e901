package risk

import (
	"testing"
	"time"

	"agent-trader/internal/config"
	"agent-trader/internal/models"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPct:      10,
		MaxConcentrationPct: 25,
		MaxDrawdownPct:      20,
		CoolDownPeriod:      30 * time.Minute,
		BasePositionPct:     5,
	}
}

func buyScore(symbol string, refPrice float64) *models.CompositeScore {
	return &models.CompositeScore{
		Symbol:   symbol,
		EpochID:  "epoch-1",
		Value:    0.6,
		Action:   models.ActionBuy,
		RefPrice: refPrice,
	}
}

func cashPortfolio(total float64) *models.PortfolioState {
	return &models.PortfolioState{
		TotalValue:    total,
		AvailableCash: total,
		Positions:     map[string]models.Position{},
		LastOrderAt:   map[string]time.Time{},
	}
}

func normalInstrument(symbol string) Instrument {
	return Instrument{
		Meta: models.SymbolMeta{Symbol: symbol, Name: "Test Co"},
		LastBar: models.MarketSnapshot{
			Symbol:    symbol,
			Close:     100,
			PrevClose: 99,
		},
	}
}

func TestGateApprovesPlainBuy(t *testing.T) {
	gate := NewGate(testRiskConfig())

	d := gate.Evaluate(buyScore("600519", 100), cashPortfolio(1_000_000), normalInstrument("600519"))
	if d.Verdict != models.VerdictApproved {
		t.Fatalf("verdict = %v (checks %v), want APPROVED", d.Verdict, d.Checks)
	}
	// 5% of 1,000,000 at price 100 is 500 shares, already a round lot.
	if d.Quantity != 500 {
		t.Errorf("quantity = %d, want 500", d.Quantity)
	}
}

func TestGateHaltedRejectsFirst(t *testing.T) {
	gate := NewGate(testRiskConfig())

	inst := normalInstrument("600519")
	inst.Meta.Halted = true
	// Pile on other violations; halted must be the recorded check.
	pf := cashPortfolio(1_000_000)
	pf.DrawdownPct = 50

	d := gate.Evaluate(buyScore("600519", 100), pf, inst)
	if d.Verdict != models.VerdictRejected {
		t.Fatalf("verdict = %v, want REJECTED", d.Verdict)
	}
	if len(d.Checks) != 1 || d.Checks[0] != CheckHalted {
		t.Errorf("checks = %v, want [%s]", d.Checks, CheckHalted)
	}
}

func TestGateRejectsBuyIntoLimitUp(t *testing.T) {
	gate := NewGate(testRiskConfig())

	inst := normalInstrument("600519")
	inst.LastBar.PrevClose = 100
	inst.LastBar.Close = 110

	d := gate.Evaluate(buyScore("600519", 110), cashPortfolio(1_000_000), inst)
	if d.Verdict != models.VerdictRejected || d.Checks[0] != CheckPriceLimit {
		t.Errorf("verdict = %v checks = %v, want price limit rejection", d.Verdict, d.Checks)
	}
}

func TestGateAllowsSellIntoLimitUp(t *testing.T) {
	gate := NewGate(testRiskConfig())

	inst := normalInstrument("600519")
	inst.LastBar.PrevClose = 100
	inst.LastBar.Close = 110

	pf := cashPortfolio(1_000_000)
	pf.Positions["600519"] = models.Position{Symbol: "600519", Quantity: 300, MarketVal: 33000}

	score := buyScore("600519", 110)
	score.Action = models.ActionSell
	score.Value = -0.6

	d := gate.Evaluate(score, pf, inst)
	if d.Verdict != models.VerdictApproved {
		t.Fatalf("verdict = %v (checks %v), want APPROVED", d.Verdict, d.Checks)
	}
	if d.Quantity != 300 {
		t.Errorf("sell quantity = %d, want full position 300", d.Quantity)
	}
}

func TestGateCoolDownRejects(t *testing.T) {
	gate := NewGate(testRiskConfig())

	pf := cashPortfolio(1_000_000)
	pf.LastOrderAt["600519"] = time.Now().Add(-5 * time.Minute)

	d := gate.Evaluate(buyScore("600519", 100), pf, normalInstrument("600519"))
	if d.Verdict != models.VerdictRejected || d.Checks[0] != CheckCoolDown {
		t.Errorf("verdict = %v checks = %v, want cool-down rejection", d.Verdict, d.Checks)
	}
}

func TestGateCoolDownExpired(t *testing.T) {
	gate := NewGate(testRiskConfig())

	pf := cashPortfolio(1_000_000)
	pf.LastOrderAt["600519"] = time.Now().Add(-2 * time.Hour)

	d := gate.Evaluate(buyScore("600519", 100), pf, normalInstrument("600519"))
	if d.Verdict != models.VerdictApproved {
		t.Errorf("verdict = %v (checks %v), want APPROVED after cool-down", d.Verdict, d.Checks)
	}
}

func TestGateDrawdownRejects(t *testing.T) {
	gate := NewGate(testRiskConfig())

	pf := cashPortfolio(1_000_000)
	pf.DrawdownPct = 25

	d := gate.Evaluate(buyScore("600519", 100), pf, normalInstrument("600519"))
	if d.Verdict != models.VerdictRejected || d.Checks[0] != CheckMaxDrawdown {
		t.Errorf("verdict = %v checks = %v, want drawdown rejection", d.Verdict, d.Checks)
	}
}

func TestGateConcentrationRejectsBuy(t *testing.T) {
	gate := NewGate(testRiskConfig())

	pf := cashPortfolio(1_000_000)
	pf.Positions["600519"] = models.Position{Symbol: "600519", Quantity: 3000, MarketVal: 300_000}

	d := gate.Evaluate(buyScore("600519", 100), pf, normalInstrument("600519"))
	if d.Verdict != models.VerdictRejected || d.Checks[0] != CheckConcentration {
		t.Errorf("verdict = %v checks = %v, want concentration rejection", d.Verdict, d.Checks)
	}
}

func TestGateClampsOversizedBuy(t *testing.T) {
	cfg := testRiskConfig()
	cfg.BasePositionPct = 10
	cfg.MaxPositionPct = 10
	gate := NewGate(cfg)

	// Strong buy doubles the base request to 20%, which must clamp back to
	// the 10% position cap instead of rejecting.
	score := buyScore("600519", 100)
	score.Action = models.ActionStrongBuy
	score.Value = 0.9

	d := gate.Evaluate(score, cashPortfolio(1_000_000), normalInstrument("600519"))
	if d.Verdict != models.VerdictClamped {
		t.Fatalf("verdict = %v (checks %v), want CLAMPED", d.Verdict, d.Checks)
	}
	if d.Quantity != 2000 {
		t.Errorf("requested quantity = %d, want 2000", d.Quantity)
	}
	if d.AdjustedQty != 1000 {
		t.Errorf("adjusted quantity = %d, want 1000", d.AdjustedQty)
	}
	if d.FinalQuantity() != 1000 {
		t.Errorf("final quantity = %d, want 1000", d.FinalQuantity())
	}
}

func TestGateSellWithoutPositionRejects(t *testing.T) {
	gate := NewGate(testRiskConfig())

	score := buyScore("600519", 100)
	score.Action = models.ActionSell
	score.Value = -0.6

	d := gate.Evaluate(score, cashPortfolio(1_000_000), normalInstrument("600519"))
	if d.Verdict != models.VerdictRejected || d.Checks[0] != CheckNoPosition {
		t.Errorf("verdict = %v checks = %v, want no-position rejection", d.Verdict, d.Checks)
	}
}

func TestGateZeroQuantityRejects(t *testing.T) {
	gate := NewGate(testRiskConfig())

	// Portfolio too small to afford one round lot at this price.
	d := gate.Evaluate(buyScore("600519", 100), cashPortfolio(10_000), normalInstrument("600519"))
	if d.Verdict != models.VerdictRejected {
		t.Errorf("verdict = %v, want REJECTED for sub-lot sizing", d.Verdict)
	}
}
