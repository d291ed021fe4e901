package models

import "time"

// CycleState is the decision state machine position of a cycle.
type CycleState string

const (
	StateIdle             CycleState = "IDLE"
	StateScoring          CycleState = "SCORING"
	StateInconclusive     CycleState = "INCONCLUSIVE"
	StateDecided          CycleState = "DECIDED"
	StatePendingRiskCheck CycleState = "PENDING_RISK_CHECK"
	StateApproved         CycleState = "APPROVED"
	StateRejected         CycleState = "REJECTED"
	StateClamped          CycleState = "CLAMPED"
	StateOrderEmitted     CycleState = "ORDER_EMITTED"
	StateTerminated       CycleState = "TERMINATED"
)

// Terminal reports whether the cycle has finished.
func (s CycleState) Terminal() bool {
	switch s {
	case StateInconclusive, StateRejected, StateOrderEmitted, StateTerminated:
		return true
	}
	return false
}

// Action is the candidate derived from the composite score.
type Action string

const (
	ActionStrongSell Action = "STRONG_SELL"
	ActionSell       Action = "SELL"
	ActionHold       Action = "HOLD"
	ActionBuy        Action = "BUY"
	ActionStrongBuy  Action = "STRONG_BUY"
)

// Side returns the order side for a non-hold action.
func (a Action) Side() OrderSide {
	switch a {
	case ActionBuy, ActionStrongBuy:
		return SideBuy
	case ActionSell, ActionStrongSell:
		return SideSell
	}
	return ""
}

// WeightedOpinion records an opinion together with the renormalized weight it
// carried inside its team during aggregation.
type WeightedOpinion struct {
	Opinion Opinion `json:"opinion"`
	Weight  float64 `json:"weight"`
}

// CompositeScore is the single aggregated signal for one decision epoch.
// Value is a deterministic function of (weights, opinions used, factor score).
type CompositeScore struct {
	Symbol       string             `json:"symbol"`
	EpochID      string             `json:"epoch_id"`
	Value        float64            `json:"value"` // [-1,1]
	Action       Action             `json:"action"`
	OpinionsUsed []WeightedOpinion  `json:"opinions_used,omitempty"`
	TeamStances  map[string]float64 `json:"team_stances,omitempty"`
	Factors      FactorVector       `json:"factors"`
	RefPrice     float64            `json:"ref_price"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Verdict is the risk gate's ruling on a composite score.
type Verdict string

const (
	VerdictApproved Verdict = "APPROVED"
	VerdictRejected Verdict = "REJECTED"
	VerdictClamped  Verdict = "CLAMPED"
)

// RiskDecision references exactly one CompositeScore. Created once per cycle.
type RiskDecision struct {
	Score        *CompositeScore `json:"score"`
	Verdict      Verdict         `json:"verdict"`
	Checks       []string        `json:"checks,omitempty"` // violated hard checks or triggered soft limits
	Quantity     int64           `json:"quantity"`         // requested quantity
	AdjustedQty  int64           `json:"adjusted_qty"`     // final quantity after clamping
	PortfolioVal float64         `json:"portfolio_val"`
	Timestamp    time.Time       `json:"timestamp"`
}

// FinalQuantity returns the quantity the executor should emit.
func (d *RiskDecision) FinalQuantity() int64 {
	if d.Verdict == VerdictClamped {
		return d.AdjustedQty
	}
	return d.Quantity
}

// OrderSide is the direction of a trade order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderStatus is the persistence status of a trade order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPersisted OrderStatus = "PERSISTED"
	OrderFailed    OrderStatus = "FAILED"
)

// TradeOrder is an idempotent trade emission. At most one persisted order
// exists per idempotency key, enforced even under retries.
type TradeOrder struct {
	ID             string      `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Quantity       int64       `json:"quantity"`
	RefPrice       float64     `json:"ref_price"`
	IdempotencyKey string      `json:"idempotency_key"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

// CycleResult is the typed outcome of one RunCycle invocation.
type CycleResult struct {
	Symbol    string          `json:"symbol"`
	EpochID   string          `json:"epoch_id"`
	Reason    string          `json:"reason"`
	State     CycleState      `json:"state"`
	Score     *CompositeScore `json:"score,omitempty"`
	Risk      *RiskDecision   `json:"risk,omitempty"`
	Order     *TradeOrder     `json:"order,omitempty"`
	Opinions  []Opinion       `json:"opinions,omitempty"`
	Err       string          `json:"err,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Elapsed   time.Duration   `json:"elapsed"`
}
