// Package agent wires the pipeline stages to the job queue: signal
// generation produces buy tasks, buy/sell tasks drive the execution service,
// and the wallet-sync cycle recomputes drawdown and recenters drifted
// positions. All wallet-mutating work runs through the worker's single lane.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/analytics"
	"github.com/degenrun/degenrun/internal/application/execution"
	"github.com/degenrun/degenrun/internal/application/rebalance"
	"github.com/degenrun/degenrun/internal/application/scheduler"
	"github.com/degenrun/degenrun/internal/application/worker"
	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/data/aggregator"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/domain/scoring"
	"github.com/degenrun/degenrun/internal/infrastructure/venue"
)

// Observer receives pipeline telemetry (metrics).
type Observer interface {
	CandidatesScored(count int)
	DrawdownUpdated(drawdown float64)
}

// Agent owns the decision pipeline and its schedule.
type Agent struct {
	cfg        *config.Config
	aggregator *aggregator.Aggregator
	engine     *scoring.Engine
	exec       *execution.Service
	rebalancer *rebalance.Rebalancer
	scheduler  *scheduler.Scheduler
	venue      venue.Venue
	tracker    *analytics.Tracker
	obs        Observer
}

// New assembles the agent. obs may be nil.
func New(cfg *config.Config, agg *aggregator.Aggregator, engine *scoring.Engine,
	exec *execution.Service, reb *rebalance.Rebalancer, sched *scheduler.Scheduler,
	v venue.Venue, tracker *analytics.Tracker, obs Observer) *Agent {
	return &Agent{
		cfg:        cfg,
		aggregator: agg,
		engine:     engine,
		exec:       exec,
		rebalancer: reb,
		scheduler:  sched,
		venue:      v,
		tracker:    tracker,
		obs:        obs,
	}
}

// Register binds every job type to its handler and installs the recurring
// cadences from config.
func (a *Agent) Register() {
	a.scheduler.RegisterHandler(domain.JobExecuteBuy, a.handleBuy, validateBuy)
	a.scheduler.RegisterHandler(domain.JobExecuteSell, a.handleSell, validateSell)
	a.scheduler.RegisterHandler(domain.JobGenerateBuySignal, a.handleGenerateSignals, nil)
	a.scheduler.RegisterHandler(domain.JobSyncWallet, a.handleSyncWallet, nil)

	a.scheduler.RegisterRecurring(domain.JobSyncWallet,
		a.cfg.Scheduler.MonitorInterval.Std(), nil, "monitor")
	a.scheduler.RegisterRecurring(domain.JobGenerateBuySignal,
		a.cfg.Scheduler.OptimizeInterval.Std(), nil, "optimize")
	a.scheduler.RegisterRecurringFunc("PERFORMANCE_ANALYSIS",
		a.cfg.Scheduler.PerformanceInterval.Std(), a.performanceCycle)
}

func validateBuy(job worker.Job) error {
	p, ok := job.Payload.(domain.BuyPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if p.Signal.PositionID == "" {
		return errors.New("buy signal missing position id")
	}
	if p.Signal.TokenAddress == "" {
		return errors.New("buy signal missing token address")
	}
	return nil
}

func validateSell(job worker.Job) error {
	p, ok := job.Payload.(domain.SellPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if p.Signal.PositionID == "" {
		return errors.New("sell signal missing position id")
	}
	if p.Signal.TokenAddress == "" {
		return errors.New("sell signal missing token address")
	}
	return nil
}

func (a *Agent) handleBuy(ctx context.Context, job worker.Job) error {
	p := job.Payload.(domain.BuyPayload)
	if p.TradeAmount > 0 && p.Signal.TradeAmount == 0 {
		p.Signal.TradeAmount = p.TradeAmount
	}
	result := a.exec.ExecuteBuy(ctx, p.Signal)
	if !result.Success {
		return fmt.Errorf("buy %s: %s (state %s)", p.Signal.TokenAddress, result.Error, result.State)
	}
	return nil
}

func (a *Agent) handleSell(ctx context.Context, job worker.Job) error {
	p := job.Payload.(domain.SellPayload)
	result := a.exec.ExecuteSell(ctx, p.Signal)
	if !result.Success {
		return fmt.Errorf("sell %s: %s (state %s)", p.Signal.TokenAddress, result.Error, result.State)
	}
	return nil
}

// handleGenerateSignals runs one aggregate→score pass and enqueues a buy task
// per surviving candidate. Candidates that fail the filter never produce
// tasks; the execution gate revalidates each survivor before spending.
func (a *Agent) handleGenerateSignals(ctx context.Context, _ worker.Job) error {
	candidates := a.Scan(ctx)
	if a.obs != nil {
		a.obs.CandidatesScored(len(candidates))
	}

	for _, c := range candidates {
		payload := domain.BuyPayload{Signal: domain.BuySignalMessage{
			PositionID:   uuid.NewString(),
			TokenAddress: c.Address,
			EntityID:     c.Symbol,
		}}
		if err := a.scheduler.Enqueue(ctx, domain.JobExecuteBuy, payload, "signal"); err != nil {
			log.Error().Err(err).Str("token", c.Address).Msg("failed to enqueue buy task")
		}
	}
	log.Info().Int("candidates", len(candidates)).Msg("signal generation cycle complete")
	return nil
}

// Scan runs one aggregate→score pass and returns the ranked candidates.
func (a *Agent) Scan(ctx context.Context) []scoring.Candidate {
	signals := a.aggregator.CollectSignals(ctx)
	return a.engine.Score(ctx, signals)
}

// handleSyncWallet refreshes the portfolio view, updates the drawdown series
// and recenters drifted positions. Runs on the wallet lane so rebalance
// transactions never overlap a trade.
func (a *Agent) handleSyncWallet(ctx context.Context, _ worker.Job) error {
	value, err := a.portfolioValue(ctx)
	if err != nil {
		return fmt.Errorf("sync wallet: %w", err)
	}

	drawdown := a.tracker.CalculateDrawdown(ctx, value)
	if a.obs != nil {
		a.obs.DrawdownUpdated(drawdown)
	}
	log.Info().Float64("portfolio_value", value).
		Float64("drawdown", drawdown).
		Float64("high_water_mark", a.tracker.HighWaterMark()).
		Msg("wallet synced")

	if _, err := a.rebalancer.CheckAll(ctx); err != nil {
		return fmt.Errorf("rebalance check: %w", err)
	}
	return nil
}

// portfolioValue is spendable balance plus deployed liquidity.
func (a *Agent) portfolioValue(ctx context.Context) (float64, error) {
	balance, err := a.venue.WalletBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	positions, err := a.venue.OpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("open positions: %w", err)
	}
	value := balance
	for _, pos := range positions {
		value += pos.Liquidity
	}
	return value, nil
}

// performanceCycle logs the recent slippage summaries and the drawdown
// state. Read-only; never touches the wallet lane.
func (a *Agent) performanceCycle(ctx context.Context) {
	summaries, err := a.tracker.SummarizeSlippage(ctx, 500)
	if err != nil {
		log.Error().Err(err).Msg("performance analysis failed")
		return
	}
	for _, s := range summaries {
		log.Info().Str("side", s.Side).Int("trades", s.Trades).
			Float64("avg_shortfall", s.AvgShortfall).
			Float64("avg_bps_budget", s.AvgBpsBudget).
			Msg("slippage summary")
	}
	for mint, stuckErr := range a.rebalancer.Stuck() {
		log.Warn().Str("position", mint).Err(stuckErr).
			Msg("position still stuck, operator action required")
	}
	log.Info().Float64("high_water_mark", a.tracker.HighWaterMark()).
		Msg("performance analysis cycle complete")
}
