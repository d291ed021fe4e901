// Package integration exercises the full decision pipeline end to end against
// a real SQLite store and the deterministic mock analyst client.
package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"agent-trader/internal/analysts"
	"agent-trader/internal/config"
	"agent-trader/internal/decision"
	"agent-trader/internal/executor"
	"agent-trader/internal/marketdata"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
	"agent-trader/internal/risk"
	"agent-trader/internal/store"
)

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		QuorumMin:   3,
		QuantWeight: 0.2,
		TeamWeights: map[string]float64{
			"technical":   0.3,
			"fundamental": 0.3,
			"news":        0.2,
		},
		BuyThreshold:        0.4,
		StrongBuyThreshold:  0.7,
		SellThreshold:       -0.4,
		StrongSellThreshold: -0.7,
		PerCallTimeout:      time.Second,
		PoolDeadline:        3 * time.Second,
		FreshnessPolicy:     "queue",
		HistoryWindow:       30,
	}
}

func seedStore(t *testing.T, s store.DataStore) {
	t.Helper()
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var bars []models.MarketSnapshot
	price := 95.0
	for i := 0; i < 30; i++ {
		prev := price
		price += 0.5
		bars = append(bars, models.MarketSnapshot{
			Symbol:    "600519",
			Open:      prev,
			High:      price * 1.01,
			Low:       prev * 0.99,
			Close:     price,
			PrevClose: prev,
			Volume:    20_000,
			Turnover:  price * 20_000,
			Timestamp: ts.AddDate(0, 0, i),
		})
	}
	if err := s.SaveSnapshots(ctx, bars); err != nil {
		t.Fatalf("seeding snapshots: %v", err)
	}
	if err := s.SaveMeta(ctx, models.SymbolMeta{
		Symbol: "600519", Name: "Kweichow Moutai", Industry: "Beverages",
	}); err != nil {
		t.Fatalf("seeding meta: %v", err)
	}
	if err := s.SaveNews(ctx, "600519", []models.NewsItem{
		{Title: "Earnings beat", Source: "wire", Content: "Quarterly profit up.", PublishedAt: time.Now()},
	}); err != nil {
		t.Fatalf("seeding news: %v", err)
	}
}

func buildPipeline(t *testing.T, s store.DataStore, client analysts.LLMClient, pf models.PortfolioState) *decision.Pipeline {
	t.Helper()
	cfg := pipelineConfig()

	roster := config.AnalystsConfig{Units: []config.UnitSpec{
		{ID: "t-1", Team: "technical", Prompt: "Assess {symbol} technicals."},
		{ID: "f-1", Team: "fundamental", Prompt: "Assess {symbol} fundamentals."},
		{ID: "n-1", Team: "news", Prompt: "Assess {symbol} news flow."},
	}}
	pool := analysts.NewPool(analysts.FromRoster(roster, client),
		cfg.PerCallTimeout, cfg.PoolDeadline, zerolog.Nop())

	gate := risk.NewGate(config.RiskConfig{
		MaxPositionPct:      10,
		MaxConcentrationPct: 25,
		MaxDrawdownPct:      20,
		CoolDownPeriod:      30 * time.Minute,
		BasePositionPct:     5,
	})
	exec := executor.New(s, config.ExecutorConfig{
		RetryLimit:        3,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}, zerolog.Nop())

	return decision.NewPipeline(cfg, quant.NewEngine(), pool,
		marketdata.NewStoreProvider(s), gate, exec,
		&decision.StaticPortfolio{State: pf}, s, zerolog.Nop())
}

func TestEndToEndBuyCycle(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()
	seedStore(t, s)

	client := &analysts.MockClient{Scripts: map[string]string{
		"600519": analysts.ScriptedReply(0.8, 0.9, "uptrend with strong flows"),
	}}
	pipeline := buildPipeline(t, s, client, models.PortfolioState{
		TotalValue:    1_000_000,
		AvailableCash: 1_000_000,
	})

	result, err := pipeline.RunCycle(context.Background(), "600519", "integration")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateOrderEmitted {
		t.Fatalf("state = %v (err %s), want ORDER_EMITTED", result.State, result.Err)
	}

	// The order must be durably persisted under the cycle's idempotency key.
	order, err := s.GetOrderByKey(context.Background(), "600519:"+result.EpochID)
	if err != nil || order == nil {
		t.Fatalf("persisted order missing: %v", err)
	}
	if order.Side != models.SideBuy || order.Quantity == 0 {
		t.Errorf("order = %+v, want a sized BUY", order)
	}

	// The cycle audit trail must be queryable.
	cycles, err := s.ListCycles(context.Background(), "600519", 5)
	if err != nil || len(cycles) != 1 {
		t.Fatalf("cycle audit: %v (%d)", err, len(cycles))
	}
	if cycles[0].State != models.StateOrderEmitted {
		t.Errorf("audited state = %v", cycles[0].State)
	}
}

func TestEndToEndCoolDownBlocksSecondCycle(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()
	seedStore(t, s)

	client := &analysts.MockClient{Scripts: map[string]string{
		"600519": analysts.ScriptedReply(0.8, 0.9, "uptrend"),
	}}
	pipeline := buildPipeline(t, s, client, models.PortfolioState{
		TotalValue:    1_000_000,
		AvailableCash: 1_000_000,
		LastOrderAt:   map[string]time.Time{"600519": time.Now().Add(-time.Minute)},
	})

	result, err := pipeline.RunCycle(context.Background(), "600519", "integration")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateRejected {
		t.Fatalf("state = %v, want REJECTED inside cool-down", result.State)
	}
	orders, _ := s.ListOrders(context.Background(), 10)
	if len(orders) != 0 {
		t.Errorf("orders = %d, want 0", len(orders))
	}
}

func TestEndToEndMixedOpinions(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer s.Close()
	seedStore(t, s)

	// Technical bullish, fundamental bearish, news neutral: the composite
	// should land inside the hold band and terminate without an order.
	client := &analysts.MockClient{Scripts: map[string]string{
		"technicals":   analysts.ScriptedReply(0.6, 0.8, "bullish chart"),
		"fundamentals": analysts.ScriptedReply(-0.6, 0.8, "rich valuation"),
		"news flow":    analysts.ScriptedReply(0.0, 0.5, "nothing notable"),
	}}
	pipeline := buildPipeline(t, s, client, models.PortfolioState{
		TotalValue:    1_000_000,
		AvailableCash: 1_000_000,
	})

	result, err := pipeline.RunCycle(context.Background(), "600519", "integration")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.State != models.StateTerminated {
		t.Fatalf("state = %v, want TERMINATED on hold", result.State)
	}
	if result.Score == nil || result.Score.Action != models.ActionHold {
		t.Errorf("score = %+v, want HOLD", result.Score)
	}
}
