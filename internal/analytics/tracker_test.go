package analytics

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenrun/degenrun/internal/persistence"
	"github.com/degenrun/degenrun/internal/persistence/memory"
)

func newTestTracker(t *testing.T) (*Tracker, *memory.KVStore, *memory.SlippageRepo) {
	t.Helper()
	kv := memory.NewKVStore()
	slip := memory.NewSlippageRepo()
	tracker, err := NewTracker(context.Background(), kv, slip)
	require.NoError(t, err)
	return tracker, kv, slip
}

// The canonical drawdown series: the mark ratchets up and never down, and
// drawdown is the fractional decline from the mark.
func TestDrawdownSeries(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	values := []float64{100, 120, 90, 130}
	wantHWM := []float64{100, 120, 120, 130}
	wantDD := []float64{0, 0, 0.25, 0}

	for i, v := range values {
		dd := tracker.CalculateDrawdown(ctx, v)
		assert.InDelta(t, wantDD[i], dd, 1e-9, "value %v", v)
		assert.InDelta(t, wantHWM[i], tracker.HighWaterMark(), 1e-9, "value %v", v)
	}
}

func TestDrawdownZeroHWM(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	assert.Equal(t, 0.0, tracker.CalculateDrawdown(context.Background(), 0))
}

func TestHighWaterMarkPersistedAndRestored(t *testing.T) {
	kv := memory.NewKVStore()
	slip := memory.NewSlippageRepo()
	ctx := context.Background()

	tracker, err := NewTracker(ctx, kv, slip)
	require.NoError(t, err)
	tracker.CalculateDrawdown(ctx, 250)

	stored, err := kv.GetValue(ctx, "analytics:high_water_mark")
	require.NoError(t, err)
	parsed, err := strconv.ParseFloat(stored, 64)
	require.NoError(t, err)
	assert.Equal(t, 250.0, parsed)

	// A fresh tracker over the same store resumes the mark.
	restored, err := NewTracker(ctx, kv, slip)
	require.NoError(t, err)
	assert.Equal(t, 250.0, restored.HighWaterMark())
	assert.InDelta(t, 0.2, restored.CalculateDrawdown(ctx, 200), 1e-9)
}

func TestCorruptHighWaterMarkFailsStartup(t *testing.T) {
	kv := memory.NewKVStore()
	require.NoError(t, kv.SetValue(context.Background(), "analytics:high_water_mark", "not-a-number"))

	_, err := NewTracker(context.Background(), kv, memory.NewSlippageRepo())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt high-water mark")
}

func TestSummarizeSlippage(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	ctx := context.Background()

	tracker.RecordSlippage(ctx, persistence.SlippageRecord{
		Token: "tok1", Side: "buy", ExpectedOut: 100, ActualOut: 98, SlippageBpsUsed: 50,
	})
	tracker.RecordSlippage(ctx, persistence.SlippageRecord{
		Token: "tok2", Side: "buy", ExpectedOut: 200, ActualOut: 192, SlippageBpsUsed: 150,
	})
	tracker.RecordSlippage(ctx, persistence.SlippageRecord{
		Token: "tok3", Side: "sell", ExpectedOut: 50, ActualOut: 50, SlippageBpsUsed: 80,
	})
	// Quote was unavailable pre-trade: excluded from the summary.
	tracker.RecordSlippage(ctx, persistence.SlippageRecord{
		Token: "tok4", Side: "sell", ExpectedOut: 0, ActualOut: 10, SlippageBpsUsed: 60,
	})

	summaries, err := tracker.SummarizeSlippage(ctx, 100)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	buy := summaries[0]
	assert.Equal(t, "buy", buy.Side)
	assert.Equal(t, 2, buy.Trades)
	assert.InDelta(t, 0.03, buy.AvgShortfall, 1e-9) // (0.02 + 0.04) / 2
	assert.InDelta(t, 100.0, buy.AvgBpsBudget, 1e-9)

	sell := summaries[1]
	assert.Equal(t, "sell", sell.Side)
	assert.Equal(t, 1, sell.Trades)
	assert.InDelta(t, 0.0, sell.AvgShortfall, 1e-9)
}
