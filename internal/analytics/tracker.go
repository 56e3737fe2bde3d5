// Package analytics maintains the portfolio high-water mark / drawdown
// series and slippage-impact statistics.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/persistence"
)

const highWaterMarkKey = "analytics:high_water_mark"

// Tracker owns the high-water mark and records slippage impact per trade.
type Tracker struct {
	mu       sync.Mutex
	hwm      float64
	kv       persistence.KVStore
	slippage persistence.SlippageRepo
}

// NewTracker restores the persisted high-water mark and returns a tracker.
// A missing key starts the series at zero.
func NewTracker(ctx context.Context, kv persistence.KVStore, slippage persistence.SlippageRepo) (*Tracker, error) {
	t := &Tracker{kv: kv, slippage: slippage}

	raw, err := kv.GetValue(ctx, highWaterMarkKey)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("restore high-water mark: %w", err)
	default:
		hwm, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return nil, fmt.Errorf("corrupt high-water mark %q: %w", raw, parseErr)
		}
		t.hwm = hwm
	}
	return t, nil
}

// CalculateDrawdown returns the fractional decline of value from the
// high-water mark, in [0,1], and raises the mark when value exceeds it. The
// mark is persisted on every update; it never decreases.
func (t *Tracker) CalculateDrawdown(ctx context.Context, portfolioValue float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if portfolioValue > t.hwm {
		t.hwm = portfolioValue
		if err := t.kv.SetValue(ctx, highWaterMarkKey,
			strconv.FormatFloat(t.hwm, 'f', -1, 64)); err != nil {
			log.Error().Err(err).Float64("hwm", t.hwm).Msg("failed to persist high-water mark")
		}
	}

	if t.hwm <= 0 {
		return 0
	}
	dd := (t.hwm - portfolioValue) / t.hwm
	if dd < 0 {
		return 0
	}
	return dd
}

// HighWaterMark returns the current mark.
func (t *Tracker) HighWaterMark() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hwm
}

// RecordSlippage stores the realized-vs-expected output of one trade.
// Recording failures are logged, never propagated: analytics must not fail a
// confirmed trade.
func (t *Tracker) RecordSlippage(ctx context.Context, rec persistence.SlippageRecord) {
	if err := t.slippage.Insert(ctx, rec); err != nil {
		log.Error().Err(err).Str("token", rec.Token).Str("side", rec.Side).
			Msg("failed to record slippage impact")
	}
}

// SlippageSummary aggregates recent realized slippage per side. Records with
// no expected output (quote unavailable pre-trade) are excluded.
type SlippageSummary struct {
	Side          string  `json:"side"`
	Trades        int     `json:"trades"`
	AvgShortfall  float64 `json:"avg_shortfall"`   // mean fractional shortfall vs expected
	AvgBpsBudget  float64 `json:"avg_bps_budget"`  // mean slippage tolerance used
}

// SummarizeSlippage computes per-side summaries over the latest limit
// records.
func (t *Tracker) SummarizeSlippage(ctx context.Context, limit int) ([]SlippageSummary, error) {
	recs, err := t.slippage.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list slippage records: %w", err)
	}

	type agg struct {
		trades    int
		shortfall float64
		bps       float64
	}
	bySide := map[string]*agg{}
	for _, rec := range recs {
		if rec.ExpectedOut <= 0 {
			continue
		}
		a := bySide[rec.Side]
		if a == nil {
			a = &agg{}
			bySide[rec.Side] = a
		}
		a.trades++
		a.shortfall += (rec.ExpectedOut - rec.ActualOut) / rec.ExpectedOut
		a.bps += float64(rec.SlippageBpsUsed)
	}

	summaries := make([]SlippageSummary, 0, len(bySide))
	for _, side := range []string{"buy", "sell"} {
		a, ok := bySide[side]
		if !ok {
			continue
		}
		summaries = append(summaries, SlippageSummary{
			Side:         side,
			Trades:       a.trades,
			AvgShortfall: a.shortfall / float64(a.trades),
			AvgBpsBudget: a.bps / float64(a.trades),
		})
	}
	return summaries, nil
}
