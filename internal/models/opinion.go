package models

import "time"

// OpinionOutcome tags how an analyst unit call ended.
type OpinionOutcome string

const (
	OutcomeOk      OpinionOutcome = "OK"
	OutcomeTimeout OpinionOutcome = "TIMEOUT"
	OutcomeError   OpinionOutcome = "ERROR"
)

// Opinion is the output of exactly one analyst unit for one decision cycle.
// Never mutated after creation.
type Opinion struct {
	UnitID     string         `json:"unit_id"`
	Team       string         `json:"team"`
	Symbol     string         `json:"symbol"`
	Stance     float64        `json:"stance"`     // [-1,1], bearish to bullish
	Confidence float64        `json:"confidence"` // [0,1]
	Rationale  string         `json:"rationale,omitempty"`
	Latency    time.Duration  `json:"latency"`
	Outcome    OpinionOutcome `json:"outcome"`
	Err        string         `json:"err,omitempty"` // cause when Outcome is ERROR
}

// Usable reports whether the opinion participates in aggregation.
func (o Opinion) Usable() bool {
	return o.Outcome == OutcomeOk
}
