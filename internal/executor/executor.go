// Package executor turns approved risk decisions into persisted trade orders.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/logging"
	"agent-trader/internal/models"
	"agent-trader/internal/store"
	"agent-trader/pkg/utils"
)

// Executor emits trade orders from risk decisions. It is the only component
// that writes orders, and a RiskDecision is its only input type. Emission is
// idempotent: at most one persisted order exists per (symbol, epoch) pair no
// matter how many times the same decision is replayed.
type Executor struct {
	orders store.OrderStore
	cfg    config.ExecutorConfig
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an executor over the given order store.
func New(orders store.OrderStore, cfg config.ExecutorConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		orders: orders,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// IdempotencyKey derives the stable key for one decision epoch.
func IdempotencyKey(symbol, epochID string) string {
	return fmt.Sprintf("%s:%s", symbol, epochID)
}

// Emit persists the order described by an approved or clamped decision.
// Rejected decisions are refused outright. Persistence is retried with
// exponential backoff; exhaustion yields a PersistError and no order.
func (e *Executor) Emit(ctx context.Context, decision *models.RiskDecision) (*models.TradeOrder, error) {
	if decision == nil || decision.Score == nil {
		return nil, errors.Wrap(errors.ErrRiskRejected, "nil decision")
	}
	if decision.Verdict == models.VerdictRejected {
		return nil, errors.Wrapf(errors.ErrRiskRejected, "decision for %s", decision.Score.Symbol)
	}

	qty := decision.FinalQuantity()
	if qty <= 0 {
		return nil, errors.Wrapf(errors.ErrRiskRejected, "zero quantity for %s", decision.Score.Symbol)
	}

	key := IdempotencyKey(decision.Score.Symbol, decision.Score.EpochID)
	order := &models.TradeOrder{
		ID:             uuid.NewString(),
		Symbol:         decision.Score.Symbol,
		Side:           decision.Score.Action.Side(),
		Quantity:       qty,
		RefPrice:       decision.Score.RefPrice,
		IdempotencyKey: key,
		Status:         models.OrderPending,
		CreatedAt:      e.now(),
	}

	retryCfg := utils.RetryConfig{
		MaxAttempts:   e.cfg.RetryLimit,
		InitialDelay:  e.cfg.RetryInitialDelay,
		MaxDelay:      e.cfg.RetryMaxDelay,
		BackoffFactor: 2.0,
	}

	attempts := 0
	type putResult struct {
		order   *models.TradeOrder
		created bool
	}
	result, err := utils.RetryWithResult(ctx, retryCfg, func() (putResult, error) {
		attempts++
		persisted, created, perr := e.orders.PutOrderIfAbsent(ctx, order)
		if perr != nil {
			return putResult{}, perr
		}
		return putResult{order: persisted, created: created}, nil
	})
	if err != nil {
		return nil, errors.NewPersistError(key, attempts, err)
	}

	if result.created {
		logging.LogOrder(e.logger, result.order.ID, result.order.Symbol,
			string(result.order.Side), result.order.Quantity, result.order.RefPrice)
	} else {
		e.logger.Info().
			Str("event", "order").
			Str("key", key).
			Str("order_id", result.order.ID).
			Msg("Order already persisted, returning existing")
	}

	return result.order, nil
}
