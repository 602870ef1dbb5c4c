package strategy

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/signal"
)

// OverlayConfig tunes the inverse options overlay.
type OverlayConfig struct {
	MinConfidence  float64 // decisions below produce no overlay
	TargetDelta    float64 // absolute delta to aim for, e.g. 0.30
	TargetDays     int     // preferred days to expiry
	MaxDayRange    int     // how far out to search weekly expiries
	MaxPositionPct float64 // percent of equity allotted to contracts
}

// OverlayPick is a selected contract with its sized count.
type OverlayPick struct {
	Contract  broker.OptionContract
	Contracts int
}

// Overlay picks a single-leg option strictly inverse to the equity
// decision: a put against Bullish signals being faded, a call against
// Bearish ones. It is a leveraged inverse bet layered on the stock trade.
type Overlay struct {
	cfg OverlayConfig
	log zerolog.Logger
}

// NewOverlay builds the selector.
func NewOverlay(cfg OverlayConfig, log zerolog.Logger) *Overlay {
	return &Overlay{cfg: cfg, log: log}
}

// Select searches the chain for the contract whose delta is nearest the
// target, breaking ties by nearest expiry to the target day count. The
// chain must span the weekly expiries within MaxDayRange. Contract count
// is floor(notional / (mid * 100)), floored to 1 once a contract is
// selected at all.
func (o *Overlay) Select(decision signal.Decision, chain []broker.OptionContract, equity float64, now time.Time) (OverlayPick, bool) {
	if decision.Confidence < o.cfg.MinConfidence {
		return OverlayPick{}, false
	}

	var want broker.OptionType
	switch decision.Direction {
	case signal.Bullish:
		want = broker.Put
	case signal.Bearish:
		want = broker.Call
	default:
		return OverlayPick{}, false
	}

	var (
		best      broker.OptionContract
		bestDelta float64
		bestDays  float64
		found     bool
	)
	for _, c := range chain {
		if c.Type != want {
			continue
		}
		days := c.Expiry.Sub(now).Hours() / 24
		if days <= 0 || days > float64(o.cfg.MaxDayRange) {
			continue
		}
		deltaDist := math.Abs(math.Abs(c.Delta) - o.cfg.TargetDelta)
		dayDist := math.Abs(days - float64(o.cfg.TargetDays))
		if !found || deltaDist < bestDelta || (deltaDist == bestDelta && dayDist < bestDays) {
			best, bestDelta, bestDays, found = c, deltaDist, dayDist, true
		}
	}
	if !found {
		return OverlayPick{}, false
	}

	mid := best.Mid()
	if mid <= 0 {
		return OverlayPick{}, false
	}
	notional := equity * (o.cfg.MaxPositionPct / 100)
	contracts := int(math.Floor(notional / (mid * 100)))
	if contracts < 1 {
		contracts = 1
	}

	o.log.Info().
		Str("ticker", decision.Ticker).
		Str("contract", best.Symbol).
		Float64("delta", best.Delta).
		Int("contracts", contracts).
		Msg("selected inverse options overlay")
	return OverlayPick{Contract: best, Contracts: contracts}, true
}
