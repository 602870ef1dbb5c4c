// Package risk evaluates open positions against the configured exit rules:
// stop loss, take profit, time-based exit, and stateful trailing stop.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
)

// Config enumerates the exit rules. Each rule is independently optional.
type Config struct {
	UseStopLoss     bool
	StopLossPct     float64 // negative threshold, e.g. -10.0
	UseTakeProfit   bool
	TakeProfitPct   float64 // positive threshold, e.g. 20.0
	UseTimeBased    bool
	MaxHoldDays     int
	UseTrailing     bool
	TrailingStopPct float64 // decline from peak that forces the exit
	MarketHoursOnly bool
}

// Rule identifies an exit rule. The values are stable and form a small
// fixed set, so they are safe to use as metric label values.
type Rule string

const (
	RuleStopLoss   Rule = "stop_loss"
	RuleTakeProfit Rule = "take_profit"
	RuleTimeBased  Rule = "time_based"
	RuleTrailing   Rule = "trailing_stop"
)

// Closure pairs a position with the union of exit rules that fired.
// Rules and Reasons run parallel: Rules carries the identifiers, Reasons
// the formatted explanations for logs. A position with at least one rule
// must be closed entirely.
type Closure struct {
	Position broker.Position
	Rules    []Rule
	Reasons  []string
}

// Engine evaluates every open position each cycle. It owns the per-symbol
// trailing state exclusively.
type Engine struct {
	cfg   Config
	store *StateStore
	gw    broker.Gateway
	log   zerolog.Logger
}

// NewEngine builds an exit engine around the supplied state store.
func NewEngine(cfg Config, store *StateStore, gw broker.Gateway, log zerolog.Logger) *Engine {
	if store == nil {
		store = NewStateStore()
	}
	return &Engine{cfg: cfg, store: store, gw: gw, log: log}
}

// Evaluate checks all open positions and returns the ones that must close.
// Outside market hours (when so configured) no evaluation happens at all.
// Per-position errors are isolated: one failure never aborts the rest.
func (e *Engine) Evaluate(ctx context.Context, positions []broker.Position, now time.Time) []Closure {
	if e.cfg.MarketHoursOnly {
		open, err := e.gw.IsMarketOpen(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("market clock unavailable, skipping exit evaluation")
			return nil
		}
		if !open {
			return nil
		}
	}

	var closures []Closure
	for _, pos := range positions {
		rules, reasons := e.evaluatePosition(ctx, pos, now)
		if len(rules) > 0 {
			closures = append(closures, Closure{Position: pos, Rules: rules, Reasons: reasons})
		}
	}
	return closures
}

func (e *Engine) evaluatePosition(ctx context.Context, pos broker.Position, now time.Time) ([]Rule, []string) {
	var rules []Rule
	var reasons []string
	fired := func(rule Rule, reason string) {
		rules = append(rules, rule)
		reasons = append(reasons, reason)
	}
	pl := pos.UnrealizedPLPct

	// Threshold comparisons are inclusive: hitting the line triggers.
	if e.cfg.UseStopLoss && pl <= e.cfg.StopLossPct {
		fired(RuleStopLoss, fmt.Sprintf("Stop Loss (%.2f%% <= %.2f%%)", pl, e.cfg.StopLossPct))
	}
	if e.cfg.UseTakeProfit && pl >= e.cfg.TakeProfitPct {
		fired(RuleTakeProfit, fmt.Sprintf("Take Profit (%.2f%% >= %.2f%%)", pl, e.cfg.TakeProfitPct))
	}
	if e.cfg.UseTimeBased && e.cfg.MaxHoldDays > 0 {
		days := e.estimateHoldDays(ctx, pos, now)
		if days >= e.cfg.MaxHoldDays {
			fired(RuleTimeBased, fmt.Sprintf("Time-based Exit (%d days >= %d days)", days, e.cfg.MaxHoldDays))
		}
	}
	if e.cfg.UseTrailing {
		if reason, ok := e.checkTrailing(pos); ok {
			fired(RuleTrailing, reason)
		}
	}
	return rules, reasons
}

// estimateHoldDays derives holding age from the most recent filled opening
// order for the symbol. Undiscoverable history defaults to age 0 so the
// rule never closes a position it cannot date. The estimate is transient;
// it is re-derived every cycle and does not survive restarts.
func (e *Engine) estimateHoldDays(ctx context.Context, pos broker.Position, now time.Time) int {
	orders, err := e.gw.RecentClosedOrders(ctx, pos.Symbol, 10)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("order history unavailable for age estimate")
		return 0
	}
	openingSide := broker.Buy
	if !pos.IsLong() {
		openingSide = broker.Sell
	}
	for _, o := range orders {
		if o.Side != openingSide {
			continue
		}
		days := int(now.Sub(o.FilledAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		return days
	}
	return 0
}

// checkTrailing runs the stateful trailing-stop rule. First observation
// seeds the state and never triggers. The peak only ratchets upward, and
// the trigger is gated on the peak being profitable: a position that was
// never in profit cannot trail out no matter how it swings.
func (e *Engine) checkTrailing(pos broker.Position) (string, bool) {
	current := pos.UnrealizedPLPct
	st, tracked := e.store.Get(pos.Symbol)
	if !tracked {
		e.store.Put(pos.Symbol, ExitState{BestPrice: pos.CurrentPrice, BestPLPct: current})
		return "", false
	}

	if current > st.BestPLPct {
		st.BestPLPct = current
		st.BestPrice = pos.CurrentPrice
	}
	e.store.Put(pos.Symbol, st)

	if st.BestPLPct > 0 {
		decline := st.BestPLPct - current
		if decline >= e.cfg.TrailingStopPct {
			return fmt.Sprintf("Trailing Stop (declined %.2f%% from best %.2f%%)", decline, st.BestPLPct), true
		}
	}
	return "", false
}

// Forget removes trailing state for a symbol after its position closes.
func (e *Engine) Forget(symbol string) {
	e.store.Delete(symbol)
}

// TrackedStates exposes a copy of the trailing state for status tooling.
func (e *Engine) TrackedStates() map[string]ExitState {
	return e.store.Snapshot()
}
