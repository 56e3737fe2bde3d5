package gates

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/degenrun/degenrun/internal/domain"
)

type fakeLookup struct {
	md      domain.MarketData
	mdErr   error
	meta    domain.TokenMetadata
	metaErr error
}

func (f *fakeLookup) GetTokenMarketData(context.Context, string) (domain.MarketData, error) {
	return f.md, f.mdErr
}

func (f *fakeLookup) GetTokenMetadata(context.Context, string) (domain.TokenMetadata, error) {
	return f.meta, f.metaErr
}

func testFloors() Floors {
	return Floors{MinLiquidity: 50_000, MinVolume24h: 100_000}
}

func healthyLookup() *fakeLookup {
	return &fakeLookup{
		md:   domain.MarketData{Liquidity: 80_000, Volume24h: 200_000},
		meta: domain.TokenMetadata{Verified: true},
	}
}

func TestValidatePasses(t *testing.T) {
	gate := New(testFloors(), healthyLookup())
	result := gate.Validate(context.Background(), "tok1")

	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
	require.Len(t, result.Checks, 4)
	for _, c := range result.Checks {
		assert.True(t, c.Passed, c.Name)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name       string
		lookup     *fakeLookup
		failedName string
	}{
		{
			name: "liquidity below floor",
			lookup: func() *fakeLookup {
				l := healthyLookup()
				l.md.Liquidity = 49_999
				return l
			}(),
			failedName: "liquidity_floor",
		},
		{
			name: "volume below floor",
			lookup: func() *fakeLookup {
				l := healthyLookup()
				l.md.Volume24h = 99_999
				return l
			}(),
			failedName: "volume_floor",
		},
		{
			name: "unverified metadata",
			lookup: func() *fakeLookup {
				l := healthyLookup()
				l.meta.Verified = false
				return l
			}(),
			failedName: "verified",
		},
		{
			name: "suspicious attributes",
			lookup: func() *fakeLookup {
				l := healthyLookup()
				l.meta.SuspiciousAttributes = []string{"mint_authority_retained"}
				return l
			}(),
			failedName: "suspicious_attributes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := New(testFloors(), tt.lookup)
			result := gate.Validate(context.Background(), "tok1")

			assert.False(t, result.Valid)
			assert.NotEmpty(t, result.Reason)

			var failed *CheckReason
			for i := range result.Checks {
				if result.Checks[i].Name == tt.failedName {
					failed = &result.Checks[i]
				}
			}
			require.NotNil(t, failed)
			assert.False(t, failed.Passed)
			assert.Equal(t, failed.Message, result.Reason)
		})
	}
}

// A lookup failure never passes: the error text becomes the rejection reason.
func TestValidateLookupFailures(t *testing.T) {
	t.Run("market data lookup", func(t *testing.T) {
		l := healthyLookup()
		l.mdErr = errors.New("provider timeout")
		result := New(testFloors(), l).Validate(context.Background(), "tok1")
		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "provider timeout")
	})
	t.Run("metadata lookup", func(t *testing.T) {
		l := healthyLookup()
		l.metaErr = errors.New("not indexed")
		result := New(testFloors(), l).Validate(context.Background(), "tok1")
		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "not indexed")
	})
}

func TestValidateBoundaryValuesPass(t *testing.T) {
	l := healthyLookup()
	l.md.Liquidity = 50_000
	l.md.Volume24h = 100_000
	result := New(testFloors(), l).Validate(context.Background(), "tok1")
	assert.True(t, result.Valid)
}
