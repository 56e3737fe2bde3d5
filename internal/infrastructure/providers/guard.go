// Package providers implements the external data collaborators: trending,
// social and ranking feeds, per-token market data, and swap quotes. Every
// call passes a per-provider rate limiter and circuit breaker.
package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Guard combines a token-bucket rate limiter with a circuit breaker for one
// named upstream provider.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard creates a guard allowing rps requests per second with the given
// burst. The breaker trips after 5 consecutive failures or a 60% error rate
// and half-opens after 30s.
func NewGuard(name string, rps float64, burst int) *Guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 5 {
				return true
			}
			if counts.Requests >= 10 {
				errorRate := float64(counts.TotalFailures) / float64(counts.Requests)
				return errorRate >= 0.6
			}
			return false
		},
	}
	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Do waits for rate-limit headroom then runs fn inside the breaker.
func (g *Guard) Do(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", g.name, err)
	}
	result, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", g.name, err)
	}
	return result, nil
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// GuardSet manages the guards for all configured providers.
type GuardSet struct {
	mu     sync.RWMutex
	guards map[string]*Guard
	rps    float64
	burst  int
}

// NewGuardSet creates an empty guard registry with shared defaults.
func NewGuardSet(rps float64, burst int) *GuardSet {
	return &GuardSet{
		guards: make(map[string]*Guard),
		rps:    rps,
		burst:  burst,
	}
}

// For returns the guard for name, creating it on first use.
func (s *GuardSet) For(name string) *Guard {
	s.mu.RLock()
	g, ok := s.guards[name]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.guards[name]; ok {
		return g
	}
	g = NewGuard(name, s.rps, s.burst)
	s.guards[name] = g
	return g
}
