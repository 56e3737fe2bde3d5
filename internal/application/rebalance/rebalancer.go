// Package rebalance recenters drifted liquidity positions. A rebalance is
// close-then-reopen: the old position is fully closed (fees collected,
// liquidity withdrawn) before a new one opens around the current price. Both
// halves retry independently with exponential backoff; exhausting the retry
// budget leaves the position stuck and surfaces to the operator instead of
// looping forever.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/infrastructure/venue"
)

// ErrRebalanceStuck marks a position whose close or reopen exhausted the
// retry budget. Liquidity may be withdrawn but not redeployed; operator
// intervention is required.
var ErrRebalanceStuck = errors.New("rebalance stuck: retry budget exhausted")

// Observer receives rebalance telemetry (metrics).
type Observer interface {
	RebalanceAttempt(pool string)
	RebalanceStuck(pool string)
}

// Rebalancer checks open positions for drift and recenters them.
type Rebalancer struct {
	cfg   config.RebalanceConfig
	venue venue.Venue
	obs   Observer

	mu    sync.Mutex
	stuck map[string]error // position mint → terminal error
}

// New creates a rebalancer. obs may be nil.
func New(cfg config.RebalanceConfig, v venue.Venue, obs Observer) *Rebalancer {
	return &Rebalancer{
		cfg:   cfg,
		venue: v,
		obs:   obs,
		stuck: make(map[string]error),
	}
}

// CheckAll inspects every open position concurrently (reads only) and
// rebalances the drifted ones sequentially, so at most one position mutates
// at a time. Returns the reports of successful rebalances.
func (r *Rebalancer) CheckAll(ctx context.Context) ([]domain.RebalanceReport, error) {
	positions, err := r.venue.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	type verdict struct {
		pos   domain.Position
		drift bool
	}
	verdicts := make([]verdict, len(positions))

	var wg sync.WaitGroup
	for i, pos := range positions {
		wg.Add(1)
		go func(i int, pos domain.Position) {
			defer wg.Done()
			verdicts[i] = verdict{pos: pos, drift: r.NeedsRebalance(pos)}
		}(i, pos)
	}
	wg.Wait()

	var reports []domain.RebalanceReport
	for _, v := range verdicts {
		if !v.drift {
			continue
		}
		if r.IsStuck(v.pos.PositionMint) {
			log.Warn().Str("position", v.pos.PositionMint).
				Msg("skipping stuck position, waiting for operator")
			continue
		}
		report, err := r.Rebalance(ctx, v.pos)
		if err != nil {
			log.Error().Err(err).Str("position", v.pos.PositionMint).
				Str("pool", v.pos.Pool).Msg("rebalance failed")
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// NeedsRebalance reports whether a position drifted beyond the threshold. A
// position out of its range always qualifies.
func (r *Rebalancer) NeedsRebalance(pos domain.Position) bool {
	if !pos.InRange {
		return true
	}
	return pos.DistanceFromTargetBps > r.cfg.DriftThresholdBps
}

// Rebalance closes pos and reopens it centered on the current pool price.
// The close must fully succeed before the open starts; each half retries
// with backoff and fresh price bounds per attempt, since the pool keeps
// moving while we retry.
func (r *Rebalancer) Rebalance(ctx context.Context, pos domain.Position) (domain.RebalanceReport, error) {
	width := pos.WidthBps
	if width <= 0 {
		width = r.cfg.DefaultWidthBps
	}

	closed, err := r.closeWithRetry(ctx, pos)
	if err != nil {
		r.markStuck(pos, fmt.Errorf("close: %w", err))
		return domain.RebalanceReport{}, fmt.Errorf("close %s: %w", pos.PositionMint, err)
	}

	opened, err := r.openWithRetry(ctx, pos.Pool, width, closed.WithdrawnLiquidity)
	if err != nil {
		// Liquidity is out of the pool and not redeployed. This is the
		// dangerous half of a stuck rebalance.
		r.markStuck(pos, fmt.Errorf("reopen after close %s: %w", closed.TxID, err))
		return domain.RebalanceReport{}, fmt.Errorf("reopen %s in %s: %w", pos.PositionMint, pos.Pool, err)
	}

	r.clearStuck(pos.PositionMint)
	log.Info().Str("pool", pos.Pool).Str("old_position", pos.PositionMint).
		Str("new_position", opened.Position.PositionMint).
		Str("close_tx", closed.TxID).Str("open_tx", opened.TxID).
		Msg("position rebalanced")

	return domain.RebalanceReport{
		OldPosition: pos,
		NewPosition: opened.Position,
		CloseTxID:   closed.TxID,
		OpenTxID:    opened.TxID,
	}, nil
}

func (r *Rebalancer) closeWithRetry(ctx context.Context, pos domain.Position) (venue.CloseResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if r.obs != nil {
			r.obs.RebalanceAttempt(pos.Pool)
		}
		closed, err := r.venue.ClosePosition(ctx, pos)
		if err == nil {
			return closed, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("position", pos.PositionMint).
			Int("attempt", attempt).Int("max_attempts", r.cfg.MaxAttempts).
			Msg("close attempt failed")
		if err := r.backoff(ctx, attempt); err != nil {
			return venue.CloseResult{}, err
		}
	}
	return venue.CloseResult{}, fmt.Errorf("%w: %v", ErrRebalanceStuck, lastErr)
}

func (r *Rebalancer) openWithRetry(ctx context.Context, pool string, widthBps int, liquidity float64) (venue.OpenResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if r.obs != nil {
			r.obs.RebalanceAttempt(pool)
		}
		// Re-fetch the price every attempt: bounds computed before a
		// backoff sleep may already be off-center.
		price, err := r.venue.PoolPrice(ctx, pool)
		if err != nil {
			lastErr = fmt.Errorf("pool price: %w", err)
		} else {
			bounds := domain.BoundsAround(price, widthBps)
			opened, err := r.venue.OpenPosition(ctx, pool, bounds, liquidity)
			if err == nil {
				return opened, nil
			}
			lastErr = err
		}
		log.Warn().Err(lastErr).Str("pool", pool).
			Int("attempt", attempt).Int("max_attempts", r.cfg.MaxAttempts).
			Msg("open attempt failed")
		if err := r.backoff(ctx, attempt); err != nil {
			return venue.OpenResult{}, err
		}
	}
	return venue.OpenResult{}, fmt.Errorf("%w: %v", ErrRebalanceStuck, lastErr)
}

// backoff sleeps base·2^(attempt-1) capped at the ceiling, honoring ctx.
func (r *Rebalancer) backoff(ctx context.Context, attempt int) error {
	delay := r.cfg.BackoffBase.Std() << uint(attempt-1)
	if ceiling := r.cfg.BackoffCeiling.Std(); delay > ceiling {
		delay = ceiling
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// IsStuck reports whether a position previously exhausted its retry budget.
func (r *Rebalancer) IsStuck(positionMint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stuck[positionMint]
	return ok
}

// Stuck returns the stuck positions and their terminal errors.
func (r *Rebalancer) Stuck() map[string]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]error, len(r.stuck))
	for k, v := range r.stuck {
		out[k] = v
	}
	return out
}

// ClearStuck removes a position from the stuck set after operator
// intervention.
func (r *Rebalancer) ClearStuck(positionMint string) {
	r.clearStuck(positionMint)
}

func (r *Rebalancer) markStuck(pos domain.Position, err error) {
	r.mu.Lock()
	r.stuck[pos.PositionMint] = err
	r.mu.Unlock()
	if r.obs != nil {
		r.obs.RebalanceStuck(pos.Pool)
	}
	log.Error().Err(err).Str("position", pos.PositionMint).Str("pool", pos.Pool).
		Msg("position stuck, operator intervention required")
}

func (r *Rebalancer) clearStuck(positionMint string) {
	r.mu.Lock()
	delete(r.stuck, positionMint)
	r.mu.Unlock()
}
