package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenrun/degenrun/internal/analytics"
	"github.com/degenrun/degenrun/internal/application/execution"
	"github.com/degenrun/degenrun/internal/application/rebalance"
	"github.com/degenrun/degenrun/internal/application/scheduler"
	"github.com/degenrun/degenrun/internal/application/worker"
	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/data/aggregator"
	"github.com/degenrun/degenrun/internal/data/cache"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/domain/gates"
	"github.com/degenrun/degenrun/internal/domain/scoring"
	"github.com/degenrun/degenrun/internal/infrastructure/providers"
	"github.com/degenrun/degenrun/internal/infrastructure/venue"
	"github.com/degenrun/degenrun/internal/persistence/memory"
)

type fakeFeed struct {
	signals []domain.TokenSignal
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Fetch(context.Context) ([]domain.TokenSignal, error) {
	return f.signals, nil
}

type fakeSource struct {
	byAddr map[string]domain.MarketData
}

func (f *fakeSource) GetTokenMarketData(_ context.Context, addr string) (domain.MarketData, error) {
	return f.byAddr[addr], nil
}

func (f *fakeSource) GetTokenMetadata(context.Context, string) (domain.TokenMetadata, error) {
	return domain.TokenMetadata{Verified: true}, nil
}

type fakeQuotes struct{}

func (fakeQuotes) GetQuote(context.Context, string, string, float64, int) (providers.Quote, error) {
	return providers.Quote{OutAmount: 1}, nil
}

type fakeVenue struct {
	venue.Venue
	mu        sync.Mutex
	buyOrders []venue.BuyOrder
}

func (f *fakeVenue) WalletBalance(context.Context) (float64, error) { return 1000, nil }

func (f *fakeVenue) OpenPositions(context.Context) ([]domain.Position, error) { return nil, nil }

func (f *fakeVenue) SubmitBuy(_ context.Context, order venue.BuyOrder) (venue.SwapReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyOrders = append(f.buyOrders, order)
	return venue.SwapReceipt{OutAmount: 1, Signature: "sig"}, nil
}

type fakeRunner struct {
	mu        sync.Mutex
	submitted []domain.Task
	handlers  map[domain.JobType]worker.Handler
}

func (f *fakeRunner) Submit(task domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, task)
	return nil
}

func (f *fakeRunner) Register(jt domain.JobType, h worker.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[domain.JobType]worker.Handler)
	}
	f.handlers[jt] = h
}

// strong scores 100 and passes every floor; weak scores 55 with ample
// liquidity and volume.
func testSignals() ([]domain.TokenSignal, map[string]domain.MarketData) {
	strong := domain.TokenSignal{
		Address: "strong", Symbol: "STR",
		MarketCap: 2_000_000, Volume24h: 2_000_000, Liquidity: 600_000,
		Technical: &domain.TechnicalSignals{Momentum1h: 0.05, Momentum24h: 0.2, RSI: 55, MACDSignal: 1},
		Social:    &domain.SocialMetrics{Mentions: 100, Sentiment: 1, InfluencerHits: 5},
	}
	weak := domain.TokenSignal{
		Address: "weak", Symbol: "WEAK",
		MarketCap: 2_000_000, Volume24h: 2_000_000, Liquidity: 600_000,
		Social: &domain.SocialMetrics{Mentions: 100, Sentiment: 0.5, InfluencerHits: 5},
	}
	market := map[string]domain.MarketData{
		"strong": {Price: 1, Liquidity: 600_000, Volume24h: 2_000_000},
		"weak":   {Price: 1, Liquidity: 600_000, Volume24h: 2_000_000},
	}
	return []domain.TokenSignal{strong, weak}, market
}

func newTestAgent(t *testing.T, runner *fakeRunner) (*Agent, *fakeVenue) {
	t.Helper()

	signals, market := testSignals()
	source := &fakeSource{byAddr: market}
	agg := aggregator.New([]providers.SignalFeed{&fakeFeed{signals: signals}},
		source, cache.NewTTLCache(100), time.Minute)

	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{
			MonitorInterval:     config.Duration(time.Hour),
			OptimizeInterval:    config.Duration(time.Hour),
			PerformanceInterval: config.Duration(time.Hour),
		},
		Scoring:    config.ScoringConfig{MinScore: 60, MinLiquidity: 50_000, MinVolume24h: 100_000},
		Validation: config.ValidationConfig{MinLiquidity: 50_000, MinVolume24h: 100_000},
		Execution: config.ExecutionConfig{
			MaxPositionPct: 0.1, MinTradeAmount: 0.001,
			BaseSlippageBps: 50, MaxSlippageBps: 500,
			SizeImpactCoeff: 2000, VolImpactCoeff: 1000,
		},
		Rebalance: config.RebalanceConfig{
			DriftThresholdBps: 300, DefaultWidthBps: 400, MaxAttempts: 2,
			BackoffBase: config.Duration(time.Millisecond), BackoffCeiling: config.Duration(time.Millisecond),
		},
	}

	engine := scoring.NewEngine(scoring.Thresholds{
		MinScore: 60, MinLiquidity: 50_000, MinVolume24h: 100_000,
	}, agg.GetTokenMarketData)
	gate := gates.New(gates.Floors{MinLiquidity: 50_000, MinVolume24h: 100_000}, source)

	v := &fakeVenue{}
	tracker, err := analytics.NewTracker(context.Background(), memory.NewKVStore(), memory.NewSlippageRepo())
	require.NoError(t, err)

	exec := execution.New(cfg.Execution, gate, agg, fakeQuotes{}, v, tracker)
	reb := rebalance.New(cfg.Rebalance, v, nil)
	sched := scheduler.New(memory.NewTaskRepo(), runner)

	a := New(cfg, agg, engine, exec, reb, sched, v, tracker, nil)
	a.Register()
	return a, v
}

// A full signal-generation cycle enqueues a buy task for the candidate that
// clears every floor and nothing for the 55-score token.
func TestGenerateSignalsEnqueuesOnlyCandidates(t *testing.T) {
	runner := &fakeRunner{}
	_, _ = newTestAgent(t, runner)

	h := runner.handlers[domain.JobGenerateBuySignal]
	require.NotNil(t, h)
	require.NoError(t, h(context.Background(), worker.Job{Type: domain.JobGenerateBuySignal}))

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.submitted, 1)

	task := runner.submitted[0]
	assert.Equal(t, string(domain.JobExecuteBuy), task.Name)

	var payload domain.BuyPayload
	require.NoError(t, json.Unmarshal(task.Metadata, &payload))
	assert.Equal(t, "strong", payload.Signal.TokenAddress)
	assert.NotEmpty(t, payload.Signal.PositionID)
}

// Driving the enqueued buy task through the buy handler completes the
// decision→execution pipeline against the venue.
func TestBuyTaskExecutesAgainstVenue(t *testing.T) {
	runner := &fakeRunner{}
	a, v := newTestAgent(t, runner)
	_ = a

	gen := runner.handlers[domain.JobGenerateBuySignal]
	require.NoError(t, gen(context.Background(), worker.Job{Type: domain.JobGenerateBuySignal}))

	runner.mu.Lock()
	task := runner.submitted[0]
	runner.mu.Unlock()

	payload, err := domain.DecodeJobPayload(domain.JobExecuteBuy, task.Metadata)
	require.NoError(t, err)

	buy := runner.handlers[domain.JobExecuteBuy]
	require.NotNil(t, buy)
	require.NoError(t, buy(context.Background(), worker.Job{
		Type: domain.JobExecuteBuy, Payload: payload,
	}))

	v.mu.Lock()
	defer v.mu.Unlock()
	require.Len(t, v.buyOrders, 1)
	assert.Equal(t, "strong", v.buyOrders[0].TokenAddress)
	assert.Equal(t, 100.0, v.buyOrders[0].AmountIn)
}

func TestSyncWalletUpdatesDrawdown(t *testing.T) {
	runner := &fakeRunner{}
	a, _ := newTestAgent(t, runner)

	h := runner.handlers[domain.JobSyncWallet]
	require.NotNil(t, h)
	require.NoError(t, h(context.Background(), worker.Job{Type: domain.JobSyncWallet}))

	// Wallet balance 1000, no positions: the mark is set on first sync.
	dd := a.tracker.CalculateDrawdown(context.Background(), 1000)
	assert.Equal(t, 0.0, dd)
	assert.Equal(t, 1000.0, a.tracker.HighWaterMark())
}

func TestValidateBuyRejectsMalformedJob(t *testing.T) {
	err := validateBuy(worker.Job{Payload: domain.BuyPayload{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position id")

	err = validateBuy(worker.Job{Payload: domain.BuyPayload{
		Signal: domain.BuySignalMessage{PositionID: "p1"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token address")

	err = validateBuy(worker.Job{Payload: "wrong type"})
	assert.Error(t, err)
}
