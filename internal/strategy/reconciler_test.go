package strategy

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/execution"
	"github.com/Cikle/Alpatrader/internal/signal"
)

var testSizing = SizingConfig{
	MinConfidence:      0.6,
	MaxPositionSizePct: 5,
	MaxLeverage:        1,
	MinOrderValue:      100,
}

func testAccount() broker.Account {
	return broker.Account{Equity: 100_000, BuyingPower: 100_000, Cash: 100_000}
}

func decision(dir signal.Direction, conf, mult float64) signal.Decision {
	return signal.Decision{
		Ticker:             "AAPL",
		Direction:          dir,
		Confidence:         conf,
		PositionMultiplier: mult,
		SourceCount:        1,
		Description:        "test decision",
	}
}

func planInput(d signal.Decision, price float64) PlanInput {
	return PlanInput{Decision: d, Account: testAccount(), Price: price, Tradable: true}
}

func TestPlanOpensNewPosition(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())

	intents := r.Plan(planInput(decision(signal.Bearish, 0.8, 1.5), 150))
	if len(intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(intents))
	}
	got := intents[0]
	// 100000 * 5% * 1.5 = 7500 notional; 7500/150 = 50 shares.
	if got.Side != broker.Sell || got.Qty != 50 || got.Kind != execution.Entry {
		t.Fatalf("intent = %+v, want sell 50 entry", got)
	}
}

func TestPlanIdempotentOnSizedPosition(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())

	in := planInput(decision(signal.Bearish, 0.8, 1.5), 150)
	in.HasPosition = true
	in.Position = broker.Position{Symbol: "AAPL", Qty: -50}
	if intents := r.Plan(in); intents != nil {
		t.Fatalf("already-sized position must plan nothing, got %+v", intents)
	}
}

func TestPlanTopsUpShortfall(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())

	in := planInput(decision(signal.Bullish, 0.8, 1.5), 150)
	in.HasPosition = true
	in.Position = broker.Position{Symbol: "AAPL", Qty: 30}
	intents := r.Plan(in)
	if len(intents) != 1 {
		t.Fatalf("intents = %d, want 1", len(intents))
	}
	if intents[0].Kind != execution.Add || intents[0].Qty != 20 {
		t.Fatalf("intent = %+v, want add 20", intents[0])
	}
}

func TestPlanFlipEmitsCloseThenOpen(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())

	in := planInput(decision(signal.Bearish, 0.8, 1.5), 150)
	in.HasPosition = true
	in.Position = broker.Position{Symbol: "AAPL", Qty: 50} // long, signal says short
	intents := r.Plan(in)
	if len(intents) != 2 {
		t.Fatalf("intents = %d, want 2 (close then open, never netted)", len(intents))
	}
	if intents[0].Kind != execution.FlipClose || intents[0].Side != broker.Sell || intents[0].Qty != 50 {
		t.Fatalf("first intent = %+v, want flip close sell 50", intents[0])
	}
	if intents[1].Kind != execution.FlipOpen || intents[1].Side != broker.Sell || intents[1].Qty != 50 {
		t.Fatalf("second intent = %+v, want flip open sell 50", intents[1])
	}
}

func TestPlanRejectsLowConfidence(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	if intents := r.Plan(planInput(decision(signal.Bullish, 0.59, 1.0), 150)); intents != nil {
		t.Fatalf("confidence below minimum must plan nothing, got %+v", intents)
	}
}

func TestPlanRejectsUntradableSymbol(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	in := planInput(decision(signal.Bullish, 0.8, 1.0), 150)
	in.Tradable = false
	if intents := r.Plan(in); intents != nil {
		t.Fatalf("untradable symbol must plan nothing, got %+v", intents)
	}
}

func TestPlanRejectsExitSlatedSymbol(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	in := planInput(decision(signal.Bullish, 0.8, 1.0), 150)
	in.ExitSlated = true
	if intents := r.Plan(in); intents != nil {
		t.Fatalf("exit takes precedence over entry, got %+v", intents)
	}
}

func TestPlanRejectsBelowMinOrderValue(t *testing.T) {
	cfg := testSizing
	cfg.MinOrderValue = 10_000
	r := NewReconciler(cfg, zerolog.Nop())
	// 5% * 1.0 = 5000 notional, under the 10000 floor.
	if intents := r.Plan(planInput(decision(signal.Bullish, 0.8, 1.0), 150)); intents != nil {
		t.Fatalf("notional under the order floor must plan nothing, got %+v", intents)
	}
}

func TestPlanCapsAtBuyingPower(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	in := planInput(decision(signal.Bullish, 0.8, 1.5), 150)
	in.Account.BuyingPower = 3000
	intents := r.Plan(in)
	if len(intents) != 1 || intents[0].Qty != 20 {
		t.Fatalf("intents = %+v, want 20 shares (3000/150, power-capped)", intents)
	}
}

func TestPlanSharesAreWhole(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	// 7500 / 157 = 47.77 -> 47 whole shares.
	intents := r.Plan(planInput(decision(signal.Bullish, 0.8, 1.5), 157))
	if len(intents) != 1 || intents[0].Qty != 47 {
		t.Fatalf("intents = %+v, want 47 whole shares", intents)
	}
}

func TestPlanZeroPrice(t *testing.T) {
	r := NewReconciler(testSizing, zerolog.Nop())
	if intents := r.Plan(planInput(decision(signal.Bullish, 0.8, 1.0), 0)); intents != nil {
		t.Fatalf("unknown price must plan nothing, got %+v", intents)
	}
}
