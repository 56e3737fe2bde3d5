package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/domain"
)

// SignalFeed is one source of candidate-token observations.
type SignalFeed interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.TokenSignal, error)
}

// HTTPFeed fetches token signals from a JSON endpoint. The three concrete
// feeds (trending, social, ranking) differ only in URL and attribution.
type HTTPFeed struct {
	name   string
	url    string
	client *http.Client
	guard  *Guard
}

// NewHTTPFeed builds a guarded feed client.
func NewHTTPFeed(name, url string, guards *GuardSet) *HTTPFeed {
	return &HTTPFeed{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		guard:  guards.For(name),
	}
}

// NewFeeds builds the standard trending/social/ranking feed set from config.
func NewFeeds(cfg config.ProvidersConfig, guards *GuardSet) []SignalFeed {
	return []SignalFeed{
		NewHTTPFeed("trending", cfg.TrendingURL, guards),
		NewHTTPFeed("social", cfg.SocialURL, guards),
		NewHTTPFeed("ranking", cfg.RankingURL, guards),
	}
}

// Name returns the feed's attribution name.
func (f *HTTPFeed) Name() string { return f.name }

// Fetch pulls the current signal list from the feed.
func (f *HTTPFeed) Fetch(ctx context.Context) ([]domain.TokenSignal, error) {
	result, err := f.guard.Do(ctx, func() (interface{}, error) {
		var signals []domain.TokenSignal
		if err := getJSON(ctx, f.client, f.url, &signals); err != nil {
			return nil, err
		}
		return signals, nil
	})
	if err != nil {
		return nil, err
	}
	signals := result.([]domain.TokenSignal)

	// Stamp attribution so merged reasons stay traceable to their source.
	for i := range signals {
		for j, r := range signals[i].Reasons {
			signals[i].Reasons[j] = f.name + ": " + r
		}
	}
	return signals, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}
