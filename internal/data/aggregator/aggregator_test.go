package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenrun/degenrun/internal/data/cache"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/infrastructure/providers"
)

type fakeFeed struct {
	name    string
	signals []domain.TokenSignal
	err     error
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) Fetch(context.Context) ([]domain.TokenSignal, error) {
	return f.signals, f.err
}

type fakeSource struct {
	md    domain.MarketData
	err   error
	calls int
}

func (f *fakeSource) GetTokenMarketData(context.Context, string) (domain.MarketData, error) {
	f.calls++
	return f.md, f.err
}

func (f *fakeSource) GetTokenMetadata(context.Context, string) (domain.TokenMetadata, error) {
	return domain.TokenMetadata{}, nil
}

func TestCollectSignalsFansIn(t *testing.T) {
	feeds := []providers.SignalFeed{
		&fakeFeed{name: "trending", signals: []domain.TokenSignal{{Address: "tok1"}}},
		&fakeFeed{name: "social", signals: []domain.TokenSignal{{Address: "tok2"}, {Address: "tok3"}}},
	}
	agg := New(feeds, &fakeSource{}, cache.NewTTLCache(10), time.Minute)

	signals := agg.CollectSignals(context.Background())
	assert.Len(t, signals, 3)
}

// One dead feed must not poison the cycle: the others still contribute.
func TestCollectSignalsDegradesFailedFeed(t *testing.T) {
	feeds := []providers.SignalFeed{
		&fakeFeed{name: "trending", err: errors.New("http 503")},
		&fakeFeed{name: "social", signals: []domain.TokenSignal{{Address: "tok2"}}},
	}
	agg := New(feeds, &fakeSource{}, cache.NewTTLCache(10), time.Minute)

	signals := agg.CollectSignals(context.Background())
	require.Len(t, signals, 1)
	assert.Equal(t, "tok2", signals[0].Address)
}

func TestGetTokenMarketDataCaches(t *testing.T) {
	source := &fakeSource{md: domain.MarketData{Price: 2.5, Liquidity: 100_000}}
	agg := New(nil, source, cache.NewTTLCache(10), time.Minute)
	ctx := context.Background()

	first, err := agg.GetTokenMarketData(ctx, "tok1")
	require.NoError(t, err)
	second, err := agg.GetTokenMarketData(ctx, "tok1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls, "second lookup served from cache")
}

func TestGetTokenMarketDataSurfacesLookupFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("rate limited")}
	agg := New(nil, source, cache.NewTTLCache(10), time.Minute)

	_, err := agg.GetTokenMarketData(context.Background(), "tok1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGetTokenMarketDataExpiredEntryRefetches(t *testing.T) {
	source := &fakeSource{md: domain.MarketData{Price: 2.5}}
	agg := New(nil, source, cache.NewTTLCache(10), 10*time.Millisecond)
	ctx := context.Background()

	_, err := agg.GetTokenMarketData(ctx, "tok1")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = agg.GetTokenMarketData(ctx, "tok1")
	require.NoError(t, err)

	assert.Equal(t, 2, source.calls)
}
