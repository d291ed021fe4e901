package analysts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"agent-trader/internal/config"
	"agent-trader/internal/models"
)

func rosterSpec(id, team string) config.UnitSpec {
	return config.UnitSpec{
		ID:     id,
		Team:   team,
		Prompt: "Assess {symbol} ({name}, {industry}).",
	}
}

func testRequest() Request {
	return Request{
		Symbol:   "600519",
		Meta:     models.SymbolMeta{Symbol: "600519", Name: "Kweichow Moutai", Industry: "Beverages"},
		Factors:  models.FactorVector{QuantStance: models.DefinedValue(0.4), ScoreVersion: "v1"},
		RefPrice: 1700,
	}
}

func TestParseOpinionWellFormed(t *testing.T) {
	stance, confidence, rationale, err := parseOpinion(
		"STANCE: 0.6\nCONFIDENCE: 0.8\nRATIONALE: strong momentum with supportive flows")
	if err != nil {
		t.Fatalf("parseOpinion: %v", err)
	}
	if stance != 0.6 || confidence != 0.8 {
		t.Errorf("stance=%v confidence=%v, want 0.6 / 0.8", stance, confidence)
	}
	if rationale == "" {
		t.Error("rationale should be captured")
	}
}

func TestParseOpinionClampsOutOfRange(t *testing.T) {
	stance, confidence, _, err := parseOpinion("STANCE: 3.5\nCONFIDENCE: 1.7\nRATIONALE: x")
	if err != nil {
		t.Fatalf("parseOpinion: %v", err)
	}
	if stance != 1 {
		t.Errorf("stance = %v, want clamped 1", stance)
	}
	if confidence != 1 {
		t.Errorf("confidence = %v, want clamped 1", confidence)
	}
}

func TestParseOpinionMissingFieldsFails(t *testing.T) {
	if _, _, _, err := parseOpinion("I think this stock looks good."); err == nil {
		t.Error("expected parse failure for free-form reply")
	}
	if _, _, _, err := parseOpinion("STANCE: 0.5\nRATIONALE: no confidence line"); err == nil {
		t.Error("expected parse failure for missing confidence")
	}
}

func TestLLMAnalystProducesOpinion(t *testing.T) {
	client := &MockClient{Scripts: map[string]string{
		"600519": ScriptedReply(0.7, 0.9, "bullish"),
	}}
	unit := NewLLMAnalyst(rosterSpec("tech-1", "technical"), client)

	op, err := unit.ProduceOpinion(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ProduceOpinion: %v", err)
	}
	if op.UnitID != "tech-1" || op.Team != "technical" {
		t.Errorf("identity = %s/%s, want tech-1/technical", op.UnitID, op.Team)
	}
	if op.Stance != 0.7 || op.Confidence != 0.9 {
		t.Errorf("stance=%v confidence=%v, want 0.7 / 0.9", op.Stance, op.Confidence)
	}
	if !op.Usable() {
		t.Error("opinion should be usable")
	}
}

func TestPoolCollectsAllUnits(t *testing.T) {
	client := NewMockClient()
	units := []Analyst{
		NewLLMAnalyst(rosterSpec("a-1", "technical"), client),
		NewLLMAnalyst(rosterSpec("a-2", "fundamental"), client),
		NewLLMAnalyst(rosterSpec("a-3", "macro"), client),
	}
	pool := NewPool(units, time.Second, 2*time.Second, zerolog.Nop())

	opinions := pool.Collect(context.Background(), testRequest())
	if len(opinions) != pool.Size() {
		t.Fatalf("opinions = %d, want %d", len(opinions), pool.Size())
	}
	for i, op := range opinions {
		if op.UnitID != units[i].ID() {
			t.Errorf("opinion %d from %s, want roster order %s", i, op.UnitID, units[i].ID())
		}
		if !op.Usable() {
			t.Errorf("opinion %s outcome = %v, want OK", op.UnitID, op.Outcome)
		}
	}
}

func TestPoolTimesOutSlowUnit(t *testing.T) {
	slow := &MockClient{Delay: 500 * time.Millisecond}
	fast := NewMockClient()
	units := []Analyst{
		NewLLMAnalyst(rosterSpec("slow-1", "technical"), slow),
		NewLLMAnalyst(rosterSpec("fast-1", "fundamental"), fast),
	}
	pool := NewPool(units, 50*time.Millisecond, time.Second, zerolog.Nop())

	opinions := pool.Collect(context.Background(), testRequest())
	if len(opinions) != 2 {
		t.Fatalf("opinions = %d, want 2", len(opinions))
	}
	if opinions[0].Outcome != models.OutcomeTimeout {
		t.Errorf("slow unit outcome = %v, want TIMEOUT", opinions[0].Outcome)
	}
	if opinions[1].Outcome != models.OutcomeOk {
		t.Errorf("fast unit outcome = %v, want OK", opinions[1].Outcome)
	}
}

func TestPoolRecordsErrors(t *testing.T) {
	failing := &MockClient{Err: fmt.Errorf("transport down")}
	units := []Analyst{NewLLMAnalyst(rosterSpec("err-1", "news"), failing)}
	pool := NewPool(units, time.Second, 2*time.Second, zerolog.Nop())

	opinions := pool.Collect(context.Background(), testRequest())
	if opinions[0].Outcome != models.OutcomeError {
		t.Fatalf("outcome = %v, want ERROR", opinions[0].Outcome)
	}
	if opinions[0].Err == "" {
		t.Error("error cause should be recorded on the opinion")
	}
	if opinions[0].Usable() {
		t.Error("errored opinion must not be usable")
	}
}

func TestPoolDeadlineBoundsCollection(t *testing.T) {
	slow := &MockClient{Delay: 5 * time.Second}
	units := []Analyst{
		NewLLMAnalyst(rosterSpec("slow-1", "technical"), slow),
		NewLLMAnalyst(rosterSpec("slow-2", "fundamental"), slow),
	}
	pool := NewPool(units, 10*time.Second, 100*time.Millisecond, zerolog.Nop())

	start := time.Now()
	opinions := pool.Collect(context.Background(), testRequest())
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("Collect took %s, pool deadline not honored", elapsed)
	}
	if len(opinions) != 2 {
		t.Fatalf("opinions = %d, want complete accounting", len(opinions))
	}
	for _, op := range opinions {
		if op.Outcome != models.OutcomeTimeout {
			t.Errorf("unit %s outcome = %v, want TIMEOUT", op.UnitID, op.Outcome)
		}
	}
}
