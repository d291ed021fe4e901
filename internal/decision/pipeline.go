package decision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agent-trader/internal/analysts"
	"agent-trader/internal/config"
	"agent-trader/internal/errors"
	"agent-trader/internal/executor"
	"agent-trader/internal/logging"
	"agent-trader/internal/marketdata"
	"agent-trader/internal/models"
	"agent-trader/internal/quant"
	"agent-trader/internal/risk"
	"agent-trader/internal/store"
)

// newsLookback bounds how far back cycle context documents reach.
const newsLookback = 3 * 24 * time.Hour

// PortfolioSource supplies the read-only portfolio snapshot taken at risk
// gate entry.
type PortfolioSource interface {
	Snapshot(ctx context.Context) (*models.PortfolioState, error)
}

// StaticPortfolio serves a fixed snapshot, for tests and paper runs.
type StaticPortfolio struct {
	State models.PortfolioState
}

func (s *StaticPortfolio) Snapshot(ctx context.Context) (*models.PortfolioState, error) {
	st := s.State
	st.TakenAt = time.Now()
	return &st, nil
}

// Pipeline drives one symbol from trigger to a terminal cycle state. At most
// one cycle per symbol is in flight; concurrent triggers for the same symbol
// either queue or drop depending on the freshness policy.
type Pipeline struct {
	cfg        config.PipelineConfig
	engine     *quant.Engine
	pool       *analysts.Pool
	provider   marketdata.Provider
	aggregator *Aggregator
	gate       *risk.Gate
	exec       *executor.Executor
	portfolio  PortfolioSource
	cycles     store.CycleStore
	logger     zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(
	cfg config.PipelineConfig,
	engine *quant.Engine,
	pool *analysts.Pool,
	provider marketdata.Provider,
	gate *risk.Gate,
	exec *executor.Executor,
	portfolio PortfolioSource,
	cycles store.CycleStore,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		engine:     engine,
		pool:       pool,
		provider:   provider,
		aggregator: NewAggregator(cfg),
		gate:       gate,
		exec:       exec,
		portfolio:  portfolio,
		cycles:     cycles,
		logger:     logger,
		inFlight:   make(map[string]chan struct{}),
	}
}

// RunCycle executes one decision cycle. The returned result always carries a
// terminal state; the error is non-nil only when the cycle could not run or
// failed abnormally (data unavailable, persistence exhausted, cancelled).
// Quorum misses, holds, and risk rejections are normal terminal outcomes.
func (p *Pipeline) RunCycle(ctx context.Context, symbol, reason string) (*models.CycleResult, error) {
	release, err := p.acquire(ctx, symbol)
	if err != nil {
		return nil, err
	}
	defer release()

	epochID := uuid.NewString()
	logger := logging.WithCycle(p.logger, symbol, epochID)

	result := &models.CycleResult{
		Symbol:    symbol,
		EpochID:   epochID,
		Reason:    reason,
		State:     models.StateIdle,
		StartedAt: time.Now(),
	}
	logger.Info().Str("reason", reason).Msg("Cycle started")

	defer func() {
		result.Elapsed = time.Since(result.StartedAt)
		p.saveCycle(logger, result)
		composite := 0.0
		if result.Score != nil {
			composite = result.Score.Value
		}
		logging.LogCycle(logger, symbol, epochID, string(result.State), composite, result.Elapsed)
	}()

	meta, err := p.provider.Meta(ctx, symbol)
	if err != nil {
		return p.fail(result, err)
	}

	history, err := p.provider.History(ctx, symbol, p.cfg.HistoryWindow)
	if err != nil {
		return p.fail(result, err)
	}
	lastBar := history[len(history)-1]

	advance(result, models.StateScoring)

	vec, err := p.engine.Compute(symbol, history)
	if err != nil {
		return p.fail(result, err)
	}

	news, err := p.provider.News(ctx, symbol, time.Now().Add(-newsLookback))
	if err != nil {
		// Missing documents degrade the cycle, they do not stop it.
		logger.Warn().Err(err).Msg("News unavailable, proceeding without")
		news = nil
	}

	if ctx.Err() != nil {
		return p.fail(result, ctx.Err())
	}

	result.Opinions = p.pool.Collect(ctx, analysts.Request{
		Symbol:   symbol,
		Meta:     meta,
		Factors:  vec,
		News:     news,
		RefPrice: lastBar.Close,
	})
	if ctx.Err() != nil {
		return p.fail(result, ctx.Err())
	}

	score, err := p.aggregator.Aggregate(symbol, epochID, vec, result.Opinions, lastBar.Close)
	if err != nil {
		if errors.Is(err, errors.ErrQuorumNotMet) {
			advance(result, models.StateInconclusive)
			logger.Warn().Err(err).Msg("Cycle inconclusive")
			return result, nil
		}
		return p.fail(result, err)
	}
	result.Score = score
	advance(result, models.StateDecided)

	if score.Action == models.ActionHold {
		advance(result, models.StateTerminated)
		return result, nil
	}

	if ctx.Err() != nil {
		return p.fail(result, ctx.Err())
	}

	advance(result, models.StatePendingRiskCheck)
	pf, err := p.portfolio.Snapshot(ctx)
	if err != nil {
		return p.fail(result, err)
	}

	result.Risk = p.gate.Evaluate(score, pf, risk.Instrument{Meta: meta, LastBar: lastBar})
	switch result.Risk.Verdict {
	case models.VerdictRejected:
		advance(result, models.StateRejected)
		logger.Info().Strs("checks", result.Risk.Checks).Msg("Risk gate rejected")
		return result, nil
	case models.VerdictClamped:
		advance(result, models.StateClamped)
	default:
		advance(result, models.StateApproved)
	}

	order, err := p.exec.Emit(ctx, result.Risk)
	if err != nil {
		return p.fail(result, err)
	}
	result.Order = order
	advance(result, models.StateOrderEmitted)

	return result, nil
}

// Watch runs cycles for every configured symbol on each tick until the
// context is cancelled.
func (p *Pipeline) Watch(ctx context.Context, symbols []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, symbol := range symbols {
			if _, err := p.RunCycle(ctx, symbol, "watch_tick"); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.Warn().Err(err).Str("symbol", symbol).Msg("Watch cycle failed")
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// acquire takes the per-symbol slot. Under the queue policy a second trigger
// waits for the running cycle; under drop it fails fast with ErrCycleInFlight.
func (p *Pipeline) acquire(ctx context.Context, symbol string) (func(), error) {
	p.mu.Lock()
	slot, ok := p.inFlight[symbol]
	if !ok {
		slot = make(chan struct{}, 1)
		p.inFlight[symbol] = slot
	}
	p.mu.Unlock()

	if p.cfg.FreshnessPolicy == "drop" {
		select {
		case slot <- struct{}{}:
		default:
			return nil, errors.Wrapf(errors.ErrCycleInFlight, "symbol %s", symbol)
		}
	} else {
		select {
		case slot <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return func() { <-slot }, nil
}

func (p *Pipeline) fail(result *models.CycleResult, err error) (*models.CycleResult, error) {
	result.State = models.StateTerminated
	result.Err = err.Error()
	return result, err
}

func (p *Pipeline) saveCycle(logger zerolog.Logger, result *models.CycleResult) {
	// Audit writes use a fresh context so a cancelled cycle is still recorded.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cycles.SaveCycle(saveCtx, result); err != nil {
		logger.Warn().Err(err).Msg("Cycle audit write failed")
	}
}

func advance(result *models.CycleResult, next models.CycleState) {
	result.State = next
}
