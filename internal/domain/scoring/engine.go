// Package scoring turns raw token signals into a ranked, filtered candidate
// list. Signals are merged per token address, scored 0-100 from technical,
// social and market sub-scores, then filtered by the configured floors.
package scoring

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/degenrun/degenrun/internal/domain"
)

// Thresholds is the candidate filter policy. All three floors must pass.
type Thresholds struct {
	MinScore     float64
	MinLiquidity float64
	MinVolume24h float64
}

// MarketLookup enriches merged signals that arrived without market fields.
type MarketLookup func(ctx context.Context, address string) (domain.MarketData, error)

// Breakdown records how a composite score was assembled, for audit logging.
type Breakdown struct {
	Technical float64 `json:"technical"` // 0-40
	Social    float64 `json:"social"`    // 0-30
	Market    float64 `json:"market"`    // 0-30
	PreScore  float64 `json:"pre_score"` // summed raw feed scores before compositing
}

// Candidate is a scored, merged token signal.
type Candidate struct {
	domain.TokenSignal
	Composite float64   `json:"composite"`
	Breakdown Breakdown `json:"breakdown"`
}

// Engine computes composite scores.
type Engine struct {
	thresholds Thresholds
	lookup     MarketLookup
}

// NewEngine creates a scoring engine. lookup may be nil when signals always
// carry their own market fields.
func NewEngine(thresholds Thresholds, lookup MarketLookup) *Engine {
	return &Engine{thresholds: thresholds, lookup: lookup}
}

// Score merges, scores, filters and ranks one cycle's signals. Output is
// sorted by composite descending; equal scores order by 24h volume
// descending, then address ascending, so ranking is deterministic.
func (e *Engine) Score(ctx context.Context, signals []domain.TokenSignal) []Candidate {
	merged := Merge(signals)

	candidates := make([]Candidate, 0, len(merged))
	for _, sig := range merged {
		if sig.Liquidity == 0 && sig.Volume24h == 0 && e.lookup != nil {
			if md, err := e.lookup(ctx, sig.Address); err == nil {
				sig.Price = md.Price
				sig.MarketCap = md.MarketCap
				sig.Liquidity = md.Liquidity
				sig.Volume24h = md.Volume24h
			} else {
				log.Warn().Err(err).Str("token", sig.Address).Msg("market enrichment failed, scoring with feed fields only")
			}
		}

		b := Breakdown{
			Technical: TechnicalSubScore(sig.Technical),
			Social:    SocialSubScore(sig.Social),
			Market:    MarketSubScore(sig.MarketCap, sig.Volume24h, sig.Liquidity),
			PreScore:  sig.Score,
		}
		composite := b.Technical + b.Social + b.Market

		if composite < e.thresholds.MinScore ||
			sig.Liquidity < e.thresholds.MinLiquidity ||
			sig.Volume24h < e.thresholds.MinVolume24h {
			continue
		}
		candidates = append(candidates, Candidate{TokenSignal: sig, Composite: composite, Breakdown: b})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Composite != candidates[j].Composite {
			return candidates[i].Composite > candidates[j].Composite
		}
		if candidates[i].Volume24h != candidates[j].Volume24h {
			return candidates[i].Volume24h > candidates[j].Volume24h
		}
		return candidates[i].Address < candidates[j].Address
	})

	return candidates
}

// Merge combines signals that share a token address: reasons are
// concatenated, raw scores summed, and the first non-nil technical/social
// block wins. First-seen order is preserved.
func Merge(signals []domain.TokenSignal) []domain.TokenSignal {
	index := make(map[string]int, len(signals))
	merged := make([]domain.TokenSignal, 0, len(signals))

	for _, sig := range signals {
		i, seen := index[sig.Address]
		if !seen {
			index[sig.Address] = len(merged)
			merged = append(merged, sig)
			continue
		}

		merged[i].Score += sig.Score
		merged[i].Reasons = append(merged[i].Reasons, sig.Reasons...)
		if merged[i].Symbol == "" {
			merged[i].Symbol = sig.Symbol
		}
		if merged[i].Technical == nil {
			merged[i].Technical = sig.Technical
		}
		if merged[i].Social == nil {
			merged[i].Social = sig.Social
		}
		// Market fields: keep the larger observation, sources lag unevenly.
		if sig.MarketCap > merged[i].MarketCap {
			merged[i].MarketCap = sig.MarketCap
		}
		if sig.Volume24h > merged[i].Volume24h {
			merged[i].Volume24h = sig.Volume24h
		}
		if sig.Liquidity > merged[i].Liquidity {
			merged[i].Liquidity = sig.Liquidity
		}
		if merged[i].Price == 0 {
			merged[i].Price = sig.Price
		}
	}

	return merged
}
