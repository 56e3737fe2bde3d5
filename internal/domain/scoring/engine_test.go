package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenrun/degenrun/internal/domain"
)

func defaultThresholds() Thresholds {
	return Thresholds{MinScore: 60, MinLiquidity: 50_000, MinVolume24h: 100_000}
}

// strongSignal scores 100: technical 40, social 30, market 30.
func strongSignal(address string) domain.TokenSignal {
	return domain.TokenSignal{
		Address:   address,
		Symbol:    "STRONG",
		MarketCap: 2_000_000,
		Volume24h: 2_000_000,
		Liquidity: 600_000,
		Technical: &domain.TechnicalSignals{
			Momentum1h:  0.05,
			Momentum24h: 0.20,
			RSI:         55,
			MACDSignal:  1,
		},
		Social: &domain.SocialMetrics{
			Mentions:       100,
			Sentiment:      1.0,
			InfluencerHits: 5,
		},
	}
}

func TestMerge(t *testing.T) {
	signals := []domain.TokenSignal{
		{Address: "tokA", Score: 10, Reasons: []string{"trending: hot"}},
		{Address: "tokB", Score: 5, Reasons: []string{"social: buzz"}},
		{Address: "tokA", Score: 7, Reasons: []string{"ranking: top 10"}, Volume24h: 500_000},
	}

	merged := Merge(signals)
	require.Len(t, merged, 2)

	// First-seen order preserved, duplicates folded into the first entry.
	assert.Equal(t, "tokA", merged[0].Address)
	assert.Equal(t, "tokB", merged[1].Address)
	assert.Equal(t, 17.0, merged[0].Score)
	assert.Equal(t, []string{"trending: hot", "ranking: top 10"}, merged[0].Reasons)
	assert.Equal(t, 500_000.0, merged[0].Volume24h)
}

func TestMergeKeepsLargerMarketObservation(t *testing.T) {
	merged := Merge([]domain.TokenSignal{
		{Address: "tok", Liquidity: 80_000, Volume24h: 300_000},
		{Address: "tok", Liquidity: 120_000, Volume24h: 250_000},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, 120_000.0, merged[0].Liquidity)
	assert.Equal(t, 300_000.0, merged[0].Volume24h)
}

func TestScoreFilterRequiresAllFloors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.TokenSignal)
		kept   bool
	}{
		{name: "all floors pass", mutate: func(s *domain.TokenSignal) {}, kept: true},
		{name: "liquidity below floor", mutate: func(s *domain.TokenSignal) {
			s.Liquidity = 10_000
		}, kept: false},
		{name: "volume below floor", mutate: func(s *domain.TokenSignal) {
			s.Volume24h = 50_000
		}, kept: false},
		{name: "score below floor", mutate: func(s *domain.TokenSignal) {
			s.Technical = nil
			s.Social = &domain.SocialMetrics{Mentions: 100, Sentiment: 0.5, InfluencerHits: 5}
		}, kept: false},
	}

	engine := NewEngine(defaultThresholds(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := strongSignal("tok1")
			tt.mutate(&sig)
			candidates := engine.Score(context.Background(), []domain.TokenSignal{sig})
			if tt.kept {
				require.Len(t, candidates, 1)
			} else {
				assert.Empty(t, candidates)
			}
		})
	}
}

// A token scoring 55 with ample liquidity and volume never becomes a
// candidate: the score floor is independent of the market floors.
func TestScoreFiftyFiveExcluded(t *testing.T) {
	sig := strongSignal("tok55")
	sig.Technical = nil // social 30 + market 30 = 60... trim social to land at 55
	sig.Social = &domain.SocialMetrics{Mentions: 100, Sentiment: 0.5, InfluencerHits: 5}

	b := Breakdown{
		Technical: TechnicalSubScore(sig.Technical),
		Social:    SocialSubScore(sig.Social),
		Market:    MarketSubScore(sig.MarketCap, sig.Volume24h, sig.Liquidity),
	}
	require.Equal(t, 55.0, b.Technical+b.Social+b.Market)

	engine := NewEngine(defaultThresholds(), nil)
	assert.Empty(t, engine.Score(context.Background(), []domain.TokenSignal{sig}))
}

func TestScoreOrdering(t *testing.T) {
	a := strongSignal("aaa")
	b := strongSignal("bbb")
	c := strongSignal("ccc")
	// Same composite for all three (volume tier identical above 1M), so
	// ordering falls through to volume desc, then address asc.
	a.Volume24h = 1_500_000
	b.Volume24h = 2_000_000
	c.Volume24h = 1_500_000

	engine := NewEngine(defaultThresholds(), nil)
	candidates := engine.Score(context.Background(), []domain.TokenSignal{c, a, b})
	require.Len(t, candidates, 3)

	assert.Equal(t, "bbb", candidates[0].Address)
	assert.Equal(t, "aaa", candidates[1].Address)
	assert.Equal(t, "ccc", candidates[2].Address)
}

func TestScoreEnrichesFromLookup(t *testing.T) {
	lookup := func(ctx context.Context, address string) (domain.MarketData, error) {
		return domain.MarketData{
			Price: 1.5, MarketCap: 2_000_000, Liquidity: 600_000, Volume24h: 2_000_000,
		}, nil
	}
	sig := strongSignal("tok1")
	sig.MarketCap, sig.Volume24h, sig.Liquidity = 0, 0, 0

	engine := NewEngine(defaultThresholds(), lookup)
	candidates := engine.Score(context.Background(), []domain.TokenSignal{sig})
	require.Len(t, candidates, 1)
	assert.Equal(t, 600_000.0, candidates[0].Liquidity)
	assert.Equal(t, 100.0, candidates[0].Composite)
}

func TestScoreLookupFailureScoresFeedFieldsOnly(t *testing.T) {
	lookup := func(ctx context.Context, address string) (domain.MarketData, error) {
		return domain.MarketData{}, errors.New("provider down")
	}
	sig := strongSignal("tok1")
	sig.MarketCap, sig.Volume24h, sig.Liquidity = 0, 0, 0

	engine := NewEngine(defaultThresholds(), lookup)
	// Market fields stay zero, so the liquidity floor excludes the token.
	assert.Empty(t, engine.Score(context.Background(), []domain.TokenSignal{sig}))
}

func TestSubScoreRanges(t *testing.T) {
	t.Run("technical nil is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, TechnicalSubScore(nil))
	})
	t.Run("technical caps at 40", func(t *testing.T) {
		score := TechnicalSubScore(&domain.TechnicalSignals{
			Momentum1h: 5, Momentum24h: 5, RSI: 60, MACDSignal: 10,
		})
		assert.Equal(t, 40.0, score)
	})
	t.Run("overbought rsi earns nothing", func(t *testing.T) {
		withRSI := TechnicalSubScore(&domain.TechnicalSignals{RSI: 71})
		assert.Equal(t, 0.0, withRSI)
	})
	t.Run("social caps at 30", func(t *testing.T) {
		score := SocialSubScore(&domain.SocialMetrics{
			Mentions: 1000, Sentiment: 5, InfluencerHits: 50,
		})
		assert.Equal(t, 30.0, score)
	})
	t.Run("market tiers", func(t *testing.T) {
		assert.Equal(t, 30.0, MarketSubScore(1_000_000, 1_000_000, 500_000))
		assert.Equal(t, 16.0, MarketSubScore(300_000, 120_000, 60_000))
		assert.Equal(t, 0.0, MarketSubScore(0, 0, 0))
	})
}
