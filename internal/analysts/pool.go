package analysts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"agent-trader/internal/logging"
	"agent-trader/internal/models"
)

// Pool fans a request out to every analyst unit and collects whatever
// opinions complete in time. A unit exceeding its per-call timeout yields an
// Opinion with outcome TIMEOUT; a transport or parse failure yields ERROR.
// Collect returns once all units have reported or the pool deadline elapses,
// whichever is first.
type Pool struct {
	units          []Analyst
	perCallTimeout time.Duration
	poolDeadline   time.Duration
	logger         zerolog.Logger
}

// NewPool creates a pool over the given units.
func NewPool(units []Analyst, perCallTimeout, poolDeadline time.Duration, logger zerolog.Logger) *Pool {
	return &Pool{
		units:          units,
		perCallTimeout: perCallTimeout,
		poolDeadline:   poolDeadline,
		logger:         logger,
	}
}

// Size returns the number of units in the pool.
func (p *Pool) Size() int {
	return len(p.units)
}

// Collect runs every unit concurrently and returns one Opinion per unit.
// Units that never report before the deadline are recorded as TIMEOUT so the
// returned slice always has Size() entries, in roster order.
func (p *Pool) Collect(ctx context.Context, req Request) []models.Opinion {
	poolCtx, cancel := context.WithTimeout(ctx, p.poolDeadline)
	defer cancel()

	type indexed struct {
		idx     int
		opinion models.Opinion
	}
	results := make(chan indexed, len(p.units))

	var wg sync.WaitGroup
	for i, unit := range p.units {
		wg.Add(1)
		go func(idx int, a Analyst) {
			defer wg.Done()
			results <- indexed{idx: idx, opinion: p.callUnit(poolCtx, a, req)}
		}(i, unit)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	opinions := make([]models.Opinion, len(p.units))
	reported := make([]bool, len(p.units))

collect:
	for range p.units {
		select {
		case r, ok := <-results:
			if !ok {
				break collect
			}
			opinions[r.idx] = r.opinion
			reported[r.idx] = true
			logging.LogOpinion(p.logger, r.opinion.UnitID, r.opinion.Team,
				r.opinion.Stance, r.opinion.Confidence, string(r.opinion.Outcome))
		case <-poolCtx.Done():
			break collect
		}
	}

	// Units that missed the deadline still get an accounting entry.
	for i, unit := range p.units {
		if !reported[i] {
			opinions[i] = timeoutOpinion(unit, req.Symbol, p.poolDeadline)
		}
	}

	return opinions
}

// callUnit invokes one analyst under the per-call timeout. The call runs in
// its own goroutine so a unit that ignores cancellation cannot stall the pool.
func (p *Pool) callUnit(ctx context.Context, a Analyst, req Request) models.Opinion {
	callCtx, cancel := context.WithTimeout(ctx, p.perCallTimeout)
	defer cancel()

	start := time.Now()

	type outcome struct {
		opinion models.Opinion
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		op, err := a.ProduceOpinion(callCtx, req)
		done <- outcome{opinion: op, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if callCtx.Err() != nil {
				return timeoutOpinion(a, req.Symbol, time.Since(start))
			}
			return models.Opinion{
				UnitID:  a.ID(),
				Team:    a.Team(),
				Symbol:  req.Symbol,
				Latency: time.Since(start),
				Outcome: models.OutcomeError,
				Err:     o.err.Error(),
			}
		}
		return o.opinion
	case <-callCtx.Done():
		return timeoutOpinion(a, req.Symbol, time.Since(start))
	}
}

func timeoutOpinion(a Analyst, symbol string, latency time.Duration) models.Opinion {
	return models.Opinion{
		UnitID:  a.ID(),
		Team:    a.Team(),
		Symbol:  symbol,
		Latency: latency,
		Outcome: models.OutcomeTimeout,
	}
}
