package decision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"agent-trader/internal/analysts"
	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/executor"
	"agent-trader/internal/marketdata"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
	"agent-trader/internal/risk"
	"agent-trader/internal/store"
)

func scenarioConfig() config.PipelineConfig {
	return config.PipelineConfig{
		QuorumMin:   2,
		QuantWeight: 0,
		TeamWeights: map[string]float64{
			"technical":   0.5,
			"fundamental": 0.5,
		},
		BuyThreshold:        0.5,
		StrongBuyThreshold:  0.75,
		SellThreshold:       -0.5,
		StrongSellThreshold: -0.75,
		PerCallTimeout:      time.Second,
		PoolDeadline:        2 * time.Second,
		FreshnessPolicy:     "queue",
		HistoryWindow:       30,
	}
}

func risingBars(symbol string, n int) []models.MarketSnapshot {
	bars := make([]models.MarketSnapshot, n)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	price := 90.0
	for i := range bars {
		prev := price
		price += 0.4
		bars[i] = models.MarketSnapshot{
			Symbol:    symbol,
			Open:      prev,
			High:      price * 1.01,
			Low:       prev * 0.99,
			Close:     price,
			PrevClose: prev,
			Volume:    10_000,
			Turnover:  price * 10_000,
			Timestamp: ts.AddDate(0, 0, i),
		}
	}
	return bars
}

type fixture struct {
	pipeline *Pipeline
	store    *store.MemoryStore
	provider *marketdata.StaticProvider
}

func newFixture(t *testing.T, cfg config.PipelineConfig, client analysts.LLMClient, pf models.PortfolioState) *fixture {
	t.Helper()

	memStore := store.NewMemoryStore()
	provider := &marketdata.StaticProvider{
		Bars:  map[string][]models.MarketSnapshot{"600519": risingBars("600519", 30)},
		Metas: map[string]models.SymbolMeta{"600519": {Symbol: "600519", Name: "Kweichow Moutai", Industry: "Beverages"}},
	}

	units := []analysts.Analyst{
		analysts.NewLLMAnalyst(config.UnitSpec{ID: "t-1", Team: "technical", Prompt: "Assess {symbol}."}, client),
		analysts.NewLLMAnalyst(config.UnitSpec{ID: "f-1", Team: "fundamental", Prompt: "Assess {symbol}."}, client),
	}
	pool := analysts.NewPool(units, cfg.PerCallTimeout, cfg.PoolDeadline, zerolog.Nop())

	riskCfg := config.RiskConfig{
		MaxPositionPct:      10,
		MaxConcentrationPct: 25,
		MaxDrawdownPct:      20,
		BasePositionPct:     5,
	}
	execCfg := config.ExecutorConfig{
		RetryLimit:        3,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}

	pipeline := NewPipeline(
		cfg,
		quant.NewEngine(),
		pool,
		provider,
		risk.NewGate(riskCfg),
		executor.New(memStore, execCfg, zerolog.Nop()),
		&StaticPortfolio{State: pf},
		memStore,
		zerolog.Nop(),
	)
	return &fixture{pipeline: pipeline, store: memStore, provider: provider}
}

func cashState(total float64) models.PortfolioState {
	return models.PortfolioState{TotalValue: total, AvailableCash: total}
}

func TestCycleEmitsOrderOnStrongConsensus(t *testing.T) {
	client := &analysts.MockClient{Scripts: map[string]string{
		"600519": analysts.ScriptedReply(0.8, 0.9, "clear uptrend"),
	}}
	f := newFixture(t, scenarioConfig(), client, cashState(1_000_000))

	result, err := f.pipeline.RunCycle(context.Background(), "600519", "test")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateOrderEmitted {
		t.Fatalf("state = %v, want ORDER_EMITTED (err %s)", result.State, result.Err)
	}
	if result.Score == nil || result.Score.Action != models.ActionStrongBuy {
		t.Errorf("action = %+v, want STRONG_BUY", result.Score)
	}
	if result.Order == nil {
		t.Fatal("expected an emitted order")
	}
	wantKey := fmt.Sprintf("600519:%s", result.EpochID)
	if result.Order.IdempotencyKey != wantKey {
		t.Errorf("key = %q, want %q", result.Order.IdempotencyKey, wantKey)
	}

	persisted, err := f.store.GetOrderByKey(context.Background(), wantKey)
	if err != nil || persisted == nil {
		t.Fatalf("order not persisted: %v", err)
	}

	cycles, err := f.store.ListCycles(context.Background(), "600519", 10)
	if err != nil || len(cycles) != 1 {
		t.Fatalf("cycle audit missing: %v (%d)", err, len(cycles))
	}
}

func TestCycleInconclusiveWithoutQuorum(t *testing.T) {
	client := &analysts.MockClient{Err: fmt.Errorf("model unavailable")}
	f := newFixture(t, scenarioConfig(), client, cashState(1_000_000))

	result, err := f.pipeline.RunCycle(context.Background(), "600519", "test")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateInconclusive {
		t.Fatalf("state = %v, want INCONCLUSIVE", result.State)
	}
	if result.Order != nil {
		t.Error("no order may be emitted from an inconclusive cycle")
	}
	orders, _ := f.store.ListOrders(context.Background(), 10)
	if len(orders) != 0 {
		t.Errorf("persisted orders = %d, want 0", len(orders))
	}
}

func TestCycleHoldTerminatesBeforeRiskGate(t *testing.T) {
	client := &analysts.MockClient{Scripts: map[string]string{
		"600519": analysts.ScriptedReply(0.0, 0.9, "no edge"),
	}}
	f := newFixture(t, scenarioConfig(), client, cashState(1_000_000))

	result, err := f.pipeline.RunCycle(context.Background(), "600519", "test")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateTerminated {
		t.Fatalf("state = %v, want TERMINATED", result.State)
	}
	if result.Score.Action != models.ActionHold {
		t.Errorf("action = %v, want HOLD", result.Score.Action)
	}
	if result.Risk != nil || result.Order != nil {
		t.Error("hold must not reach the risk gate or the executor")
	}
}

func TestCycleRejectedByRiskGate(t *testing.T) {
	client := &analysts.MockClient{Scripts: map[string]string{
		"600519": analysts.ScriptedReply(0.8, 0.9, "uptrend"),
	}}
	f := newFixture(t, scenarioConfig(), client, cashState(1_000_000))
	meta := f.provider.Metas["600519"]
	meta.Halted = true
	f.provider.Metas["600519"] = meta

	result, err := f.pipeline.RunCycle(context.Background(), "600519", "test")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateRejected {
		t.Fatalf("state = %v, want REJECTED", result.State)
	}
	if result.Risk == nil || result.Risk.Verdict != models.VerdictRejected {
		t.Errorf("risk = %+v, want REJECTED verdict", result.Risk)
	}
	if result.Order != nil {
		t.Error("no order may follow a rejection")
	}
}

func TestCycleFailsWithoutHistory(t *testing.T) {
	client := analysts.NewMockClient()
	f := newFixture(t, scenarioConfig(), client, cashState(1_000_000))
	delete(f.provider.Bars, "600519")

	result, err := f.pipeline.RunCycle(context.Background(), "600519", "test")
	if !errors.Is(err, errors.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if result == nil || result.State != models.StateTerminated {
		t.Errorf("result = %+v, want TERMINATED", result)
	}
}

func TestCycleDropPolicyRefusesConcurrentTrigger(t *testing.T) {
	cfg := scenarioConfig()
	cfg.FreshnessPolicy = "drop"

	client := &analysts.MockClient{
		Delay:   200 * time.Millisecond,
		Scripts: map[string]string{"600519": analysts.ScriptedReply(0.0, 0.9, "slow")},
	}
	f := newFixture(t, cfg, client, cashState(1_000_000))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.pipeline.RunCycle(context.Background(), "600519", "first")
	}()

	// Wait until the first cycle holds the slot, then trigger again.
	time.Sleep(50 * time.Millisecond)
	_, err := f.pipeline.RunCycle(context.Background(), "600519", "second")
	if !errors.Is(err, errors.ErrCycleInFlight) {
		t.Errorf("expected ErrCycleInFlight, got %v", err)
	}
	<-done
}

func TestCycleCancellationStopsPipeline(t *testing.T) {
	client := &analysts.MockClient{Delay: 5 * time.Second}
	cfg := scenarioConfig()
	f := newFixture(t, cfg, client, cashState(1_000_000))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result, err := f.pipeline.RunCycle(ctx, "600519", "test")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if result != nil && result.Order != nil {
		t.Error("cancelled cycle must not emit an order")
	}
}
