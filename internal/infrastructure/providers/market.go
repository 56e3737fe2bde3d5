package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/domain"
)

// MarketDataSource fetches per-token market data and safety metadata.
type MarketDataSource interface {
	GetTokenMarketData(ctx context.Context, address string) (domain.MarketData, error)
	GetTokenMetadata(ctx context.Context, address string) (domain.TokenMetadata, error)
}

// MarketDataClient implements MarketDataSource over the market-data HTTP API.
type MarketDataClient struct {
	baseURL string
	client  *http.Client
	guard   *Guard
}

// NewMarketDataClient builds a guarded market-data client.
func NewMarketDataClient(cfg config.ProvidersConfig, guards *GuardSet) *MarketDataClient {
	return &MarketDataClient{
		baseURL: cfg.MarketURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		guard:   guards.For("market_data"),
	}
}

// GetTokenMarketData returns the current market snapshot for a token.
func (c *MarketDataClient) GetTokenMarketData(ctx context.Context, address string) (domain.MarketData, error) {
	result, err := c.guard.Do(ctx, func() (interface{}, error) {
		var md domain.MarketData
		endpoint := fmt.Sprintf("%s/tokens/%s/market", c.baseURL, url.PathEscape(address))
		if err := getJSON(ctx, c.client, endpoint, &md); err != nil {
			return nil, err
		}
		return md, nil
	})
	if err != nil {
		return domain.MarketData{}, err
	}
	md := result.(domain.MarketData)
	md.FetchedAt = time.Now()
	return md, nil
}

// GetTokenMetadata returns verification status and suspicious-attribute flags.
func (c *MarketDataClient) GetTokenMetadata(ctx context.Context, address string) (domain.TokenMetadata, error) {
	result, err := c.guard.Do(ctx, func() (interface{}, error) {
		var meta domain.TokenMetadata
		endpoint := fmt.Sprintf("%s/tokens/%s/metadata", c.baseURL, url.PathEscape(address))
		if err := getJSON(ctx, c.client, endpoint, &meta); err != nil {
			return nil, err
		}
		return meta, nil
	})
	if err != nil {
		return domain.TokenMetadata{}, err
	}
	return result.(domain.TokenMetadata), nil
}
