package domain

import "time"

// TokenSignal is one candidate-token observation from a single data source
// (trending feed, social-mention feed, or ranking feed). Address is the merge
// key: signals for the same address are combined before scoring, reasons
// concatenated and raw scores summed. Signals live for one aggregation cycle
// and are not persisted.
type TokenSignal struct {
	Address   string   `json:"address"`
	Symbol    string   `json:"symbol"`
	MarketCap float64  `json:"market_cap"`
	Volume24h float64  `json:"volume_24h"`
	Price     float64  `json:"price"`
	Liquidity float64  `json:"liquidity"`
	Score     float64  `json:"score"`
	Reasons   []string `json:"reasons"`

	Technical *TechnicalSignals `json:"technical,omitempty"`
	Social    *SocialMetrics    `json:"social,omitempty"`
}

// TechnicalSignals carries indicator inputs for the technical sub-score.
// Momentum values are fractional price changes over the window.
type TechnicalSignals struct {
	Momentum1h  float64 `json:"momentum_1h"`
	Momentum24h float64 `json:"momentum_24h"`
	RSI         float64 `json:"rsi"`
	MACDSignal  float64 `json:"macd_signal"`
}

// SocialMetrics carries mention/sentiment inputs for the social sub-score.
type SocialMetrics struct {
	Mentions       int     `json:"mentions"`
	Sentiment      float64 `json:"sentiment"` // -1..1
	InfluencerHits int     `json:"influencer_hits"`
}

// MarketData is the per-token snapshot returned by the market-data
// collaborator and cached between scoring passes.
type MarketData struct {
	Price        float64   `json:"price"`
	MarketCap    float64   `json:"market_cap"`
	Liquidity    float64   `json:"liquidity"`
	Volume24h    float64   `json:"volume_24h"`
	PriceHistory []float64 `json:"price_history"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Volatility returns the mean absolute fractional move across the price
// history, used by the dynamic slippage model. Returns 0 when the history is
// too short to say anything.
func (m MarketData) Volatility() float64 {
	if len(m.PriceHistory) < 2 {
		return 0
	}
	var sum float64
	var n int
	for i := 1; i < len(m.PriceHistory); i++ {
		prev := m.PriceHistory[i-1]
		if prev <= 0 {
			continue
		}
		d := (m.PriceHistory[i] - prev) / prev
		if d < 0 {
			d = -d
		}
		sum += d
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TokenMetadata is the safety-relevant metadata checked by the validation
// gate before any funds move.
type TokenMetadata struct {
	Address              string   `json:"address"`
	Symbol               string   `json:"symbol"`
	Verified             bool     `json:"verified"`
	SuspiciousAttributes []string `json:"suspicious_attributes"`
}
