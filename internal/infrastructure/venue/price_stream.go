package venue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// PriceStream keeps the latest pool prices from the venue's websocket feed.
// Ticks older than staleAfter are ignored so a dead connection cannot serve
// stale prices to the rebalancer.
type PriceStream struct {
	url        string
	pools      []string
	staleAfter time.Duration

	mu     sync.RWMutex
	latest map[string]tick

	cancel context.CancelFunc
	done   chan struct{}
}

type tick struct {
	price float64
	at    time.Time
}

type priceMessage struct {
	Pool  string  `json:"pool"`
	Price float64 `json:"price"`
}

// NewPriceStream creates a stream for the given pools.
func NewPriceStream(url string, pools []string) *PriceStream {
	return &PriceStream{
		url:        url,
		pools:      pools,
		staleAfter: 30 * time.Second,
		latest:     make(map[string]tick),
		done:       make(chan struct{}),
	}
}

// Start dials the feed and consumes ticks until Stop. Reconnects with a
// fixed delay on any error.
func (s *PriceStream) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		for {
			if ctx.Err() != nil {
				return
			}
			if err := s.consume(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("url", s.url).Msg("price stream disconnected, reconnecting")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()
}

// Stop terminates the stream and waits for the consumer to exit.
func (s *PriceStream) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Latest returns the most recent unexpired price for pool.
func (s *PriceStream) Latest(pool string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.latest[pool]
	if !ok || time.Since(t.at) > s.staleAfter {
		return 0, false
	}
	return t.price, true
}

func (s *PriceStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := struct {
		Op    string   `json:"op"`
		Pools []string `json:"pools"`
	}{Op: "subscribe", Pools: s.pools}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	// Unblock ReadMessage when the context is canceled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg priceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("skipping malformed price tick")
			continue
		}
		s.mu.Lock()
		s.latest[msg.Pool] = tick{price: msg.Price, at: time.Now()}
		s.mu.Unlock()
	}
}
