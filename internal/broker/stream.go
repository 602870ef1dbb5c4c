package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PriceStream consumes the market-data websocket and keeps the most recent
// trade price per symbol so LastPrice lookups avoid a REST round trip.
type PriceStream struct {
	url       string
	keyID     string
	secretKey string
	symbols   []string
	log       zerolog.Logger

	mu    sync.RWMutex
	last  map[string]float64
	seen  map[string]time.Time
	stale time.Duration
}

// NewPriceStream builds a stream for the given symbols. Prices older than
// staleAfter are not served from the cache.
func NewPriceStream(url, keyID, secretKey string, symbols []string, staleAfter time.Duration, log zerolog.Logger) *PriceStream {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &PriceStream{
		url:       url,
		keyID:     keyID,
		secretKey: secretKey,
		symbols:   symbols,
		log:       log,
		last:      make(map[string]float64),
		seen:      make(map[string]time.Time),
		stale:     staleAfter,
	}
}

// Last returns the cached price for symbol if fresh.
func (s *PriceStream) Last(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	px, ok := s.last[symbol]
	if !ok || time.Since(s.seen[symbol]) > s.stale {
		return 0, false
	}
	return px, true
}

type streamAuth struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type streamSubscribe struct {
	Action string   `json:"action"`
	Trades []string `json:"trades"`
}

type streamEvent struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S"`
	Price  float64 `json:"p"`
}

// Run consumes the stream until the context is canceled, reconnecting with
// exponential backoff on failure.
func (s *PriceStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("price stream requires at least one symbol")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Dur("backoff", backoff).Msg("price stream disconnected, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

func (s *PriceStream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// Scope the closer goroutine to this connection so reconnects do not
	// accumulate watchers for dead conns.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	if err := conn.WriteJSON(streamAuth{Action: "auth", Key: s.keyID, Secret: s.secretKey}); err != nil {
		return fmt.Errorf("auth stream: %w", err)
	}
	if err := conn.WriteJSON(streamSubscribe{Action: "subscribe", Trades: s.symbols}); err != nil {
		return fmt.Errorf("subscribe stream: %w", err)
	}
	s.log.Info().Strs("symbols", s.symbols).Msg("price stream subscribed")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		var events []streamEvent
		if err := json.Unmarshal(payload, &events); err != nil {
			continue
		}
		now := time.Now()
		s.mu.Lock()
		for _, ev := range events {
			if ev.Type != "t" || ev.Symbol == "" || ev.Price <= 0 {
				continue
			}
			s.last[ev.Symbol] = ev.Price
			s.seen[ev.Symbol] = now
		}
		s.mu.Unlock()
	}
}

// Observe records a price directly, bypassing the websocket. Used by tests
// and warm-up paths.
func (s *PriceStream) Observe(symbol string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.last[symbol] = price
	s.seen[symbol] = time.Now()
	s.mu.Unlock()
}
