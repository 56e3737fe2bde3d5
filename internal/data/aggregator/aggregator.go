// Package aggregator pulls candidate-token signals from the configured feeds
// and serves per-token market data through an injected TTL cache.
package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/data/cache"
	"github.com/degenrun/degenrun/internal/domain"
	"github.com/degenrun/degenrun/internal/infrastructure/providers"
)

// Aggregator fans in the signal feeds and caches market-data lookups.
type Aggregator struct {
	feeds  []providers.SignalFeed
	source providers.MarketDataSource
	cache  cache.Cache
	ttl    time.Duration
}

// New creates an aggregator. The cache is injected so scoring passes share
// lookups without a module-level singleton.
func New(feeds []providers.SignalFeed, source providers.MarketDataSource, c cache.Cache, ttl time.Duration) *Aggregator {
	return &Aggregator{
		feeds:  feeds,
		source: source,
		cache:  c,
		ttl:    ttl,
	}
}

// CollectSignals pulls every feed concurrently and returns the combined
// signal list for this cycle. A failing feed degrades to an empty
// contribution with a warning; signal collection is read-only and safe to
// fan out.
func (a *Aggregator) CollectSignals(ctx context.Context) []domain.TokenSignal {
	var mu sync.Mutex
	var all []domain.TokenSignal
	var wg sync.WaitGroup

	for _, feed := range a.feeds {
		wg.Add(1)
		go func(f providers.SignalFeed) {
			defer wg.Done()
			signals, err := f.Fetch(ctx)
			if err != nil {
				log.Warn().Err(err).Str("feed", f.Name()).Msg("signal feed unavailable, skipping this cycle")
				return
			}
			mu.Lock()
			all = append(all, signals...)
			mu.Unlock()
		}(feed)
	}
	wg.Wait()

	log.Debug().Int("signals", len(all)).Int("feeds", len(a.feeds)).Msg("signal collection complete")
	return all
}

// GetTokenMarketData returns market data for address, served from cache when
// fresh. Lookup failures surface to the caller; they are never silently
// replaced with stale or empty data.
func (a *Aggregator) GetTokenMarketData(ctx context.Context, address string) (domain.MarketData, error) {
	key := "market:" + address

	if cached, ok := a.cache.Get(key); ok {
		if md, ok := decodeMarketData(cached); ok {
			return md, nil
		}
	}

	md, err := a.source.GetTokenMarketData(ctx, address)
	if err != nil {
		return domain.MarketData{}, err
	}
	a.cache.Set(key, md, a.ttl)
	return md, nil
}

// decodeMarketData handles both in-memory caches (which hand the struct back
// unchanged) and serialized backends like Redis (which hand back raw JSON).
func decodeMarketData(v interface{}) (domain.MarketData, bool) {
	switch val := v.(type) {
	case domain.MarketData:
		return val, true
	case json.RawMessage:
		var md domain.MarketData
		if err := json.Unmarshal(val, &md); err != nil {
			return domain.MarketData{}, false
		}
		return md, true
	default:
		return domain.MarketData{}, false
	}
}
