package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/engine"
	"github.com/Cikle/Alpatrader/internal/execution"
	"github.com/Cikle/Alpatrader/internal/risk"
	"github.com/Cikle/Alpatrader/internal/signal"
	"github.com/Cikle/Alpatrader/internal/sources"
	"github.com/Cikle/Alpatrader/internal/strategy"
)

// swappableSource lets the test change what a feed returns between cycles.
type swappableSource struct {
	mu      sync.Mutex
	kind    signal.SourceKind
	records []signal.Record
}

func (s *swappableSource) Fetch(ctx context.Context) ([]signal.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, nil
}

func (s *swappableSource) Kind() signal.SourceKind { return s.kind }

func (s *swappableSource) set(records []signal.Record) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

func TestFullTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	newsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No per-ticker sentiment: every decision comes from single feeds.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"symbol":%q,"sentiment":{"bullishPercent":0,"bearishPercent":0},"buzz":{}}`,
			r.URL.Query().Get("symbol"))
	}))
	defer newsSrv.Close()

	paper := broker.NewPaper(100_000)
	paper.SetMarketOpen(true)
	paper.SetPrice("AAPL", 100)

	congress := &swappableSource{kind: signal.SourceCongress}
	insider := &swappableSource{kind: signal.SourceInsider}

	eng := engine.New(engine.Config{
		CycleInterval:       time.Hour,
		StrongNewsThreshold: 0.7,
	}, engine.Deps{
		Gateway:  paper,
		Insider:  insider,
		Congress: congress,
		News:     sources.NewNews(newsSrv.URL, "token", nil, log),
		Aggregator: signal.NewAggregator(
			signal.Multipliers{Strong: 1.5, Congress: 1.0, Insider: 0.5},
			signal.NewGate(false, 10, nil), log),
		Modes: strategy.Modes{
			signal.SourceInsider:  strategy.ModeInverse,
			signal.SourceCongress: strategy.ModeInverse,
			signal.SourceNews:     strategy.ModeInverse,
		},
		Reconciler: strategy.NewReconciler(strategy.SizingConfig{
			MinConfidence:      0.6,
			MaxPositionSizePct: 5,
			MaxLeverage:        1,
			MinOrderValue:      100,
		}, log),
		Executor: execution.NewExecutor(paper, time.Second, false, log),
		Exits: risk.NewEngine(risk.Config{
			UseStopLoss: true, StopLossPct: -10,
		}, risk.NewStateStore(), paper, log),
	}, log)

	// Cycle 1: a congress buy, inverted, opens a short.
	// 100000 * 5% / 100 = 50 shares.
	congress.set([]signal.Record{{
		Ticker: "AAPL", Source: signal.SourceCongress, Direction: signal.Bullish,
		Confidence: 0.7, Actor: "Jane Roe", Time: time.Now(),
	}})
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	pos, ok, _ := paper.GetPosition(ctx, "AAPL")
	if !ok || pos.Qty != -50 {
		t.Fatalf("after cycle 1: position = %+v ok=%v, want short 50", pos, ok)
	}

	// Cycle 2: price rises 12%, the short is down past the stop. The exit
	// fires before the still-live signal, and the slated symbol gets no
	// fresh entry the same cycle.
	paper.SetPrice("AAPL", 112)
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if _, ok, _ := paper.GetPosition(ctx, "AAPL"); ok {
		t.Fatal("after cycle 2: stop loss should have flattened the short")
	}
	if paper.RealizedPnL() >= 0 {
		t.Fatalf("realized pnl = %v, want a loss from the stopped short", paper.RealizedPnL())
	}

	// Cycle 3: the signal flips to a congress sale; inverted, the engine
	// goes long at the new price.
	congress.set([]signal.Record{{
		Ticker: "AAPL", Source: signal.SourceCongress, Direction: signal.Bearish,
		Confidence: 0.8, Actor: "Jane Roe", Time: time.Now(),
	}})
	if err := eng.Cycle(ctx); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	pos, ok, _ = paper.GetPosition(ctx, "AAPL")
	if !ok || pos.Qty <= 0 {
		t.Fatalf("after cycle 3: position = %+v ok=%v, want long", pos, ok)
	}
}
