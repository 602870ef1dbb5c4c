// Package engine runs the trading cycle: exits first, then signal
// collection, aggregation, and order reconciliation.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/execution"
	"github.com/Cikle/Alpatrader/internal/metrics"
	"github.com/Cikle/Alpatrader/internal/risk"
	"github.com/Cikle/Alpatrader/internal/signal"
	"github.com/Cikle/Alpatrader/internal/sources"
	"github.com/Cikle/Alpatrader/internal/strategy"
)

// Config holds the engine's cycle parameters.
type Config struct {
	CycleInterval       time.Duration
	StrongNewsThreshold float64
	OptionsEnabled      bool
	OptionsMaxDayRange  int
}

// Deps wires the engine's collaborators. All fields are required except
// Overlay, which may be nil when the options overlay is disabled.
type Deps struct {
	Gateway    broker.Gateway
	Insider    sources.Source
	Congress   sources.Source
	News       *sources.News
	Aggregator *signal.Aggregator
	Modes      strategy.Modes
	Reconciler *strategy.Reconciler
	Executor   *execution.Executor
	Exits      *risk.Engine
	Overlay    *strategy.Overlay
}

// Engine drives the periodic decision loop.
type Engine struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New builds an engine.
func New(cfg Config, deps Deps, log zerolog.Logger) *Engine {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Hour
	}
	return &Engine{cfg: cfg, deps: deps, log: log, now: time.Now}
}

// Run executes cycles at the configured interval until the context is
// cancelled. The first cycle runs immediately.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	if err := e.Cycle(ctx); err != nil {
		e.log.Error().Err(err).Msg("cycle failed")
	}
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("engine stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := e.Cycle(ctx); err != nil {
				e.log.Error().Err(err).Msg("cycle failed")
			}
		}
	}
}

// Cycle performs one pass: portfolio snapshot, exit evaluation, signal
// collection, aggregation, and order reconciliation. Broker
// unavailability aborts the whole cycle; positions are never touched on
// partial information.
func (e *Engine) Cycle(ctx context.Context) error {
	metrics.CyclesTotal.Inc()
	now := e.now()

	account, err := e.deps.Gateway.GetAccount(ctx)
	if err != nil {
		metrics.CyclesSkipped.WithLabelValues("broker_unavailable").Inc()
		return err
	}
	metrics.AccountEquity.Set(account.Equity)

	positions, err := e.deps.Gateway.GetPositions(ctx)
	if err != nil {
		metrics.CyclesSkipped.WithLabelValues("broker_unavailable").Inc()
		return err
	}
	e.logPortfolio(account, positions)

	// Exits run before any new entries so freed capital and slated
	// symbols are known to the reconciler.
	exitSlated := e.runExits(ctx, positions, now)

	open, err := e.deps.Gateway.IsMarketOpen(ctx)
	if err != nil {
		metrics.CyclesSkipped.WithLabelValues("broker_unavailable").Inc()
		return err
	}

	insider, congress := e.collect(ctx)
	if !open {
		// Data refresh keeps the cache warm; no orders off-hours.
		metrics.CyclesSkipped.WithLabelValues("market_closed").Inc()
		e.log.Info().Msg("market closed, data refreshed only")
		return nil
	}

	news := e.collectNews(ctx, insider, congress)
	strong := signal.Strong(news, e.cfg.StrongNewsThreshold)
	decisions := e.deps.Aggregator.Aggregate(now, insider, congress, strong)

	for _, d := range decisions {
		applied, ok := e.deps.Modes.Apply(d)
		if !ok {
			continue
		}
		e.act(ctx, applied, account, exitSlated, now)
	}
	return nil
}

// runExits evaluates and submits exit closures, returning the set of
// symbols slated to close this cycle.
func (e *Engine) runExits(ctx context.Context, positions []broker.Position, now time.Time) map[string]bool {
	slated := make(map[string]bool)
	for _, closure := range e.deps.Exits.Evaluate(ctx, positions, now) {
		pos := closure.Position
		slated[pos.Symbol] = true

		intent := execution.Intent{
			Symbol:  pos.Symbol,
			Side:    pos.ClosingSide(),
			Qty:     math.Abs(pos.Qty),
			Kind:    execution.Exit,
			Reasons: closure.Reasons,
		}
		if _, err := e.deps.Executor.Submit(ctx, intent); err != nil {
			e.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("exit order failed")
			continue
		}
		e.deps.Exits.Forget(pos.Symbol)
		for _, rule := range closure.Rules {
			metrics.ExitsTotal.WithLabelValues(string(rule)).Inc()
		}
		e.log.Info().
			Str("symbol", pos.Symbol).
			Strs("reasons", closure.Reasons).
			Float64("pl_pct", pos.UnrealizedPLPct).
			Msg("position closed by exit rule")
	}
	return slated
}

// collect fetches the insider and congress feeds concurrently. A failed
// feed contributes nothing; the cycle continues with what arrived.
func (e *Engine) collect(ctx context.Context) (insider, congress []signal.Record) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		records, err := e.deps.Insider.Fetch(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("insider feed failed")
			return
		}
		insider = records
	}()
	go func() {
		defer wg.Done()
		records, err := e.deps.Congress.Fetch(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("congress feed failed")
			return
		}
		congress = records
	}()
	wg.Wait()
	return insider, congress
}

// collectNews queries sentiment only for tickers the other feeds surfaced.
func (e *Engine) collectNews(ctx context.Context, insider, congress []signal.Record) []signal.Record {
	seen := make(map[string]bool)
	var tickers []string
	for _, batch := range [][]signal.Record{insider, congress} {
		for _, r := range batch {
			if r.Ticker == "" || seen[r.Ticker] {
				continue
			}
			seen[r.Ticker] = true
			tickers = append(tickers, r.Ticker)
		}
	}
	if len(tickers) == 0 {
		return nil
	}
	news, err := e.deps.News.FetchFor(ctx, tickers)
	if err != nil {
		e.log.Warn().Err(err).Msg("news feed failed")
		return nil
	}
	return news
}

// act reconciles one decision against the live position and submits the
// resulting intents in order. A failed flip close aborts the reopen.
func (e *Engine) act(ctx context.Context, d signal.Decision, account broker.Account, exitSlated map[string]bool, now time.Time) {
	tradable, err := e.deps.Gateway.ValidateSymbol(ctx, d.Ticker)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", d.Ticker).Msg("symbol validation failed")
		tradable = false
	}

	price, err := e.deps.Gateway.LastPrice(ctx, d.Ticker)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", d.Ticker).Msg("no price, skipping decision")
		metrics.OrdersRejected.WithLabelValues("price_unavailable").Inc()
		return
	}

	pos, has, err := e.deps.Gateway.GetPosition(ctx, d.Ticker)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", d.Ticker).Msg("position lookup failed, skipping decision")
		return
	}

	intents := e.deps.Reconciler.Plan(strategy.PlanInput{
		Decision:    d,
		Account:     account,
		Position:    pos,
		HasPosition: has,
		Price:       price,
		Tradable:    tradable,
		ExitSlated:  exitSlated[d.Ticker],
	})
	for _, intent := range intents {
		if _, err := e.deps.Executor.Submit(ctx, intent); err != nil {
			e.log.Error().Err(err).
				Str("symbol", intent.Symbol).
				Str("kind", string(intent.Kind)).
				Msg("order failed, abandoning remaining intents for symbol")
			return
		}
	}

	e.overlay(ctx, d, account, now)
}

// overlay selects and logs the inverse option pick for high-confidence
// decisions. Contracts are reported, not traded: the brokerage paper API
// does not accept option orders.
func (e *Engine) overlay(ctx context.Context, d signal.Decision, account broker.Account, now time.Time) {
	if !e.cfg.OptionsEnabled || e.deps.Overlay == nil {
		return
	}

	var chain []broker.OptionContract
	for _, expiry := range broker.WeeklyExpiries(now, e.cfg.OptionsMaxDayRange) {
		contracts, err := e.deps.Gateway.OptionChain(ctx, d.Ticker, expiry)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", d.Ticker).Msg("option chain unavailable")
			return
		}
		chain = append(chain, contracts...)
	}

	pick, ok := e.deps.Overlay.Select(d, chain, account.Equity, now)
	if !ok {
		return
	}
	e.log.Info().
		Str("symbol", pick.Contract.Symbol).
		Str("type", string(pick.Contract.Type)).
		Float64("strike", pick.Contract.Strike).
		Time("expiry", pick.Contract.Expiry).
		Int("contracts", pick.Contracts).
		Msg("inverse option overlay selected")
}

func (e *Engine) logPortfolio(account broker.Account, positions []broker.Position) {
	ev := e.log.Info().
		Float64("equity", account.Equity).
		Float64("buying_power", account.BuyingPower).
		Int("positions", len(positions))
	for _, p := range positions {
		ev = ev.Str(p.Symbol, sideWord(p))
	}
	ev.Msg("portfolio")
}

func sideWord(p broker.Position) string {
	if p.IsLong() {
		return "long"
	}
	return "short"
}
