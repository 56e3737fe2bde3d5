package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/degenrun/degenrun/internal/config"
)

// Quote is an off-chain price quote for a prospective swap.
type Quote struct {
	OutAmount float64 `json:"out_amount"`
}

// QuoteSource fetches swap quotes.
type QuoteSource interface {
	GetQuote(ctx context.Context, inputToken, outputToken string, amount float64, slippageBps int) (Quote, error)
}

// QuoteClient implements QuoteSource over the quote HTTP API.
type QuoteClient struct {
	baseURL string
	client  *http.Client
	guard   *Guard
}

// NewQuoteClient builds a guarded quote client.
func NewQuoteClient(cfg config.ProvidersConfig, guards *GuardSet) *QuoteClient {
	return &QuoteClient{
		baseURL: cfg.QuoteURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		guard:   guards.For("quote"),
	}
}

// GetQuote returns the expected output amount for swapping amount of
// inputToken into outputToken at the given slippage tolerance.
func (c *QuoteClient) GetQuote(ctx context.Context, inputToken, outputToken string, amount float64, slippageBps int) (Quote, error) {
	params := url.Values{}
	params.Set("input", inputToken)
	params.Set("output", outputToken)
	params.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	params.Set("slippage_bps", strconv.Itoa(slippageBps))
	endpoint := fmt.Sprintf("%s/quote?%s", c.baseURL, params.Encode())

	result, err := c.guard.Do(ctx, func() (interface{}, error) {
		var q Quote
		if err := getJSON(ctx, c.client, endpoint, &q); err != nil {
			return nil, err
		}
		return q, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return result.(Quote), nil
}
