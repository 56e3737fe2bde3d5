// Package gates implements the final pre-spend safety check. It runs
// immediately before execution and is independent of scoring: a token that
// ranked well can still be rejected here.
package gates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/degenrun/degenrun/internal/domain"
)

// TokenLookup is the slice of the market-data collaborator the gate needs.
type TokenLookup interface {
	GetTokenMarketData(ctx context.Context, address string) (domain.MarketData, error)
	GetTokenMetadata(ctx context.Context, address string) (domain.TokenMetadata, error)
}

// CheckReason records one gate check with its outcome.
type CheckReason struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Result is the overall gate outcome. Reason carries the first failure in
// human-readable form; Checks retains every check for transparency.
type Result struct {
	Valid     bool          `json:"valid"`
	Reason    string        `json:"reason,omitempty"`
	Checks    []CheckReason `json:"checks"`
	Token     string        `json:"token"`
	Timestamp time.Time     `json:"timestamp"`
}

// Floors holds the configured validation minimums.
type Floors struct {
	MinLiquidity float64
	MinVolume24h float64
}

// Gate validates a token against the safety floors and metadata flags.
type Gate struct {
	floors Floors
	lookup TokenLookup
}

// New creates a validation gate.
func New(floors Floors, lookup TokenLookup) *Gate {
	return &Gate{floors: floors, lookup: lookup}
}

// Validate runs every check and returns the combined result. Any lookup
// failure is treated as a validation failure carrying the error message: an
// unvalidated token never passes.
func (g *Gate) Validate(ctx context.Context, address string) Result {
	result := Result{Token: address, Timestamp: time.Now()}

	md, err := g.lookup.GetTokenMarketData(ctx, address)
	if err != nil {
		return g.fail(result, "market_data_lookup", fmt.Sprintf("market data lookup failed: %v", err))
	}

	liqCheck := CheckReason{Name: "liquidity_floor", Passed: md.Liquidity >= g.floors.MinLiquidity}
	if liqCheck.Passed {
		liqCheck.Message = fmt.Sprintf("liquidity %.0f >= %.0f", md.Liquidity, g.floors.MinLiquidity)
	} else {
		liqCheck.Message = fmt.Sprintf("liquidity %.0f below minimum %.0f", md.Liquidity, g.floors.MinLiquidity)
	}
	result.Checks = append(result.Checks, liqCheck)

	volCheck := CheckReason{Name: "volume_floor", Passed: md.Volume24h >= g.floors.MinVolume24h}
	if volCheck.Passed {
		volCheck.Message = fmt.Sprintf("24h volume %.0f >= %.0f", md.Volume24h, g.floors.MinVolume24h)
	} else {
		volCheck.Message = fmt.Sprintf("24h volume %.0f below minimum %.0f", md.Volume24h, g.floors.MinVolume24h)
	}
	result.Checks = append(result.Checks, volCheck)

	meta, err := g.lookup.GetTokenMetadata(ctx, address)
	if err != nil {
		return g.fail(result, "metadata_lookup", fmt.Sprintf("metadata lookup failed: %v", err))
	}

	verifiedCheck := CheckReason{Name: "verified", Passed: meta.Verified}
	if meta.Verified {
		verifiedCheck.Message = "token metadata verified"
	} else {
		verifiedCheck.Message = "token metadata unverified"
	}
	result.Checks = append(result.Checks, verifiedCheck)

	suspiciousCheck := CheckReason{Name: "suspicious_attributes", Passed: len(meta.SuspiciousAttributes) == 0}
	if suspiciousCheck.Passed {
		suspiciousCheck.Message = "no suspicious attributes"
	} else {
		suspiciousCheck.Message = "suspicious attributes: " + strings.Join(meta.SuspiciousAttributes, ", ")
	}
	result.Checks = append(result.Checks, suspiciousCheck)

	for _, c := range result.Checks {
		if !c.Passed {
			result.Valid = false
			result.Reason = c.Message
			return result
		}
	}
	result.Valid = true
	return result
}

func (g *Gate) fail(result Result, name, message string) Result {
	result.Checks = append(result.Checks, CheckReason{Name: name, Passed: false, Message: message})
	result.Valid = false
	result.Reason = message
	return result
}
