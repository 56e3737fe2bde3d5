package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/domain"
)

// Client implements Venue over the venue's HTTP API. When a price stream is
// attached, PoolPrice prefers its latest tick over a REST round-trip.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stream  *PriceStream
}

// NewClient creates a venue client. stream may be nil.
func NewClient(cfg config.VenueConfig, stream *PriceStream) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		stream:  stream,
	}
}

// SubmitBuy submits a buy swap and waits for confirmation.
func (c *Client) SubmitBuy(ctx context.Context, order BuyOrder) (SwapReceipt, error) {
	var receipt SwapReceipt
	if err := c.post(ctx, "/swaps/buy", order, &receipt); err != nil {
		return SwapReceipt{}, fmt.Errorf("submit buy %s: %w", order.TokenAddress, err)
	}
	return receipt, nil
}

// SubmitSell submits a sell swap and waits for confirmation.
func (c *Client) SubmitSell(ctx context.Context, order SellOrder) (SwapReceipt, error) {
	var receipt SwapReceipt
	if err := c.post(ctx, "/swaps/sell", order, &receipt); err != nil {
		return SwapReceipt{}, fmt.Errorf("submit sell %s: %w", order.TokenAddress, err)
	}
	return receipt, nil
}

// WalletBalance returns the spendable base-currency balance.
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := c.get(ctx, "/wallet/balance", &out); err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	return out.Balance, nil
}

// TokenBalance returns the wallet's holding of a specific token.
func (c *Client) TokenBalance(ctx context.Context, address string) (float64, error) {
	var out struct {
		Balance float64 `json:"balance"`
	}
	if err := c.get(ctx, "/wallet/tokens/"+url.PathEscape(address), &out); err != nil {
		return 0, fmt.Errorf("token balance %s: %w", address, err)
	}
	return out.Balance, nil
}

// OpenPositions lists the wallet's open liquidity positions.
func (c *Client) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	var out []domain.Position
	if err := c.get(ctx, "/positions", &out); err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	return out, nil
}

// GetPosition fetches a fresh view of one position.
func (c *Client) GetPosition(ctx context.Context, positionMint string) (domain.Position, error) {
	var out domain.Position
	if err := c.get(ctx, "/positions/"+url.PathEscape(positionMint), &out); err != nil {
		return domain.Position{}, fmt.Errorf("get position %s: %w", positionMint, err)
	}
	return out, nil
}

// PoolPrice returns the current pool price, preferring the websocket stream
// when it has a recent tick.
func (c *Client) PoolPrice(ctx context.Context, pool string) (float64, error) {
	if c.stream != nil {
		if price, ok := c.stream.Latest(pool); ok {
			return price, nil
		}
	}
	var out struct {
		Price float64 `json:"price"`
	}
	if err := c.get(ctx, "/pools/"+url.PathEscape(pool)+"/price", &out); err != nil {
		return 0, fmt.Errorf("pool price %s: %w", pool, err)
	}
	return out.Price, nil
}

// ClosePosition collects fees, removes liquidity and closes the position.
func (c *Client) ClosePosition(ctx context.Context, pos domain.Position) (CloseResult, error) {
	var out CloseResult
	body := struct {
		Pool         string `json:"pool"`
		PositionMint string `json:"position_mint"`
	}{Pool: pos.Pool, PositionMint: pos.PositionMint}
	if err := c.post(ctx, "/positions/close", body, &out); err != nil {
		return CloseResult{}, fmt.Errorf("close position %s: %w", pos.PositionMint, err)
	}
	return out, nil
}

// OpenPosition opens a new position at the given bounds.
func (c *Client) OpenPosition(ctx context.Context, pool string, bounds domain.PriceBounds, liquidity float64) (OpenResult, error) {
	var out OpenResult
	body := struct {
		Pool      string  `json:"pool"`
		Lower     float64 `json:"lower"`
		Upper     float64 `json:"upper"`
		Liquidity float64 `json:"liquidity"`
	}{Pool: pool, Lower: bounds.Lower, Upper: bounds.Upper, Liquidity: liquidity}
	if err := c.post(ctx, "/positions/open", body, &out); err != nil {
		return OpenResult{}, fmt.Errorf("open position in %s: %w", pool, err)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
