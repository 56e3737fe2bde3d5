package scoring

import "github.com/degenrun/degenrun/internal/domain"

// TechnicalSubScore maps indicator signals onto 0-40. Missing technical data
// contributes zero rather than disqualifying the token.
func TechnicalSubScore(t *domain.TechnicalSignals) float64 {
	if t == nil {
		return 0
	}

	var score float64

	// 24h momentum: one point per percent, capped at 15.
	if t.Momentum24h > 0 {
		score += clamp(t.Momentum24h*100, 0, 15)
	}

	// 1h momentum: short-window moves weigh double, capped at 10.
	if t.Momentum1h > 0 {
		score += clamp(t.Momentum1h*200, 0, 10)
	}

	// RSI: reward healthy momentum, nothing for overbought (>70).
	switch {
	case t.RSI >= 45 && t.RSI <= 70:
		score += 10
	case t.RSI >= 30 && t.RSI < 45:
		score += 5
	}

	if t.MACDSignal > 0 {
		score += 5
	}

	return clamp(score, 0, 40)
}

// SocialSubScore maps mention/sentiment metrics onto 0-30.
func SocialSubScore(s *domain.SocialMetrics) float64 {
	if s == nil {
		return 0
	}

	var score float64
	score += clamp(float64(s.Mentions)/10, 0, 10)
	if s.Sentiment > 0 {
		score += clamp(s.Sentiment*10, 0, 10)
	}
	score += clamp(float64(s.InfluencerHits)*2, 0, 10)

	return clamp(score, 0, 30)
}

// MarketSubScore maps market cap, 24h volume and liquidity onto 0-30, ten
// points per dimension in coarse tiers.
func MarketSubScore(marketCap, volume24h, liquidity float64) float64 {
	var score float64

	switch {
	case marketCap >= 1_000_000:
		score += 10
	case marketCap >= 250_000:
		score += 7
	case marketCap >= 50_000:
		score += 4
	}

	switch {
	case volume24h >= 1_000_000:
		score += 10
	case volume24h >= 500_000:
		score += 7
	case volume24h >= 100_000:
		score += 5
	}

	switch {
	case liquidity >= 500_000:
		score += 10
	case liquidity >= 100_000:
		score += 7
	case liquidity >= 50_000:
		score += 4
	}

	return score
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
