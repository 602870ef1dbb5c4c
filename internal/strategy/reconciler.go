package strategy

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/execution"
	"github.com/Cikle/Alpatrader/internal/signal"
)

// SizingConfig bounds how much capital one decision may claim.
type SizingConfig struct {
	MinConfidence      float64 // decisions below are rejected
	MaxPositionSizePct float64 // percent of equity per base position
	MaxLeverage        float64 // buying power cap as a multiple of equity
	MinOrderValue      float64 // notional floor below which orders are skipped
}

// PlanInput gathers everything the reconciler needs for one decision.
// "No position" and "price known" are explicit fields, not error paths.
type PlanInput struct {
	Decision    signal.Decision
	Account     broker.Account
	Position    broker.Position
	HasPosition bool
	Price       float64
	Tradable    bool
	ExitSlated  bool // symbol already closing this cycle; exits take precedence
}

// Reconciler turns one decision plus account state into the minimal set of
// order intents that reach the target size. Planning is pure: identical
// inputs always produce identical intents, so replaying a cycle against an
// already-sized position yields nothing.
type Reconciler struct {
	cfg SizingConfig
	log zerolog.Logger
}

// NewReconciler builds a reconciler with the given sizing bounds.
func NewReconciler(cfg SizingConfig, log zerolog.Logger) *Reconciler {
	return &Reconciler{cfg: cfg, log: log}
}

// Plan produces zero, one, or two intents for the decision. Two intents
// only occur on a direction flip: close the old position in full, then
// open the new one. The pair is never netted into one order.
func (r *Reconciler) Plan(in PlanInput) []execution.Intent {
	d := in.Decision
	if d.Confidence < r.cfg.MinConfidence {
		r.log.Debug().Str("ticker", d.Ticker).Float64("confidence", d.Confidence).Msg("skipping low confidence decision")
		return nil
	}
	if !in.Tradable {
		r.log.Info().Str("ticker", d.Ticker).Msg("symbol failed tradability validation, dropping decision")
		return nil
	}
	if in.ExitSlated {
		r.log.Info().Str("ticker", d.Ticker).Msg("symbol slated for exit this cycle, skipping entry")
		return nil
	}
	if in.Price <= 0 {
		return nil
	}

	targetShares := r.targetShares(d, in.Account, in.Price)
	if targetShares <= 0 {
		r.log.Debug().Str("ticker", d.Ticker).Msg("target position too small, skipping")
		return nil
	}

	side := broker.Buy
	if d.Direction == signal.Bearish {
		side = broker.Sell
	}

	if !in.HasPosition {
		return []execution.Intent{{
			Symbol:  d.Ticker,
			Side:    side,
			Qty:     targetShares,
			Kind:    execution.Entry,
			Reasons: []string{d.Description},
		}}
	}

	currentLong := in.Position.IsLong()
	wantLong := d.Direction == signal.Bullish
	currentShares := math.Abs(in.Position.Qty)

	if currentLong == wantLong {
		// Same direction: top up to target only; already-sized positions
		// produce no order.
		if currentShares >= targetShares {
			return nil
		}
		return []execution.Intent{{
			Symbol:  d.Ticker,
			Side:    side,
			Qty:     targetShares - currentShares,
			Kind:    execution.Add,
			Reasons: []string{d.Description},
		}}
	}

	// Opposite direction: close in full, then open fresh. Two orders by
	// contract even when the share counts match.
	return []execution.Intent{
		{
			Symbol:  d.Ticker,
			Side:    in.Position.ClosingSide(),
			Qty:     currentShares,
			Kind:    execution.FlipClose,
			Reasons: []string{"direction flip: " + d.Description},
		},
		{
			Symbol:  d.Ticker,
			Side:    side,
			Qty:     targetShares,
			Kind:    execution.FlipOpen,
			Reasons: []string{d.Description},
		},
	}
}

// targetShares computes the whole-share target from equity, the per-tier
// multiplier, and the buying-power cap.
func (r *Reconciler) targetShares(d signal.Decision, account broker.Account, price float64) float64 {
	maxPositionValue := account.Equity * (r.cfg.MaxPositionSizePct / 100)
	notional := maxPositionValue * d.PositionMultiplier

	powerCap := account.BuyingPower
	if r.cfg.MaxLeverage > 0 {
		if capped := account.Equity * r.cfg.MaxLeverage; capped < powerCap {
			powerCap = capped
		}
	}
	if notional > powerCap {
		notional = powerCap
	}
	if notional < r.cfg.MinOrderValue {
		return 0
	}
	return math.Floor(notional / price)
}
