package broker

import (
	"fmt"
	"math"
	"time"
)

// SimulateChain synthesizes a single-expiry option chain around the
// underlying price: strikes from -20% to +20% in 5% steps, deltas decaying
// with distance from the money. Used where the venue exposes no options
// endpoint; the paper gateway shares it.
func SimulateChain(symbol string, price float64, expiry time.Time) []OptionContract {
	if price <= 0 {
		return nil
	}
	contracts := make([]OptionContract, 0, 18)
	for i := 0; i < 9; i++ {
		strike := round2(price * (1 - 0.20 + 0.05*float64(i)))
		moneyness := (price - strike) / price

		callPrice := math.Max(0.05, round2(price-strike+2))
		if price <= strike {
			callPrice = round2(0.05 + (price/strike)*2)
		}
		putPrice := math.Max(0.05, round2(strike-price+2))
		if strike <= price {
			putPrice = round2(0.05 + (strike/price)*2)
		}

		callDelta := 0.5 + moneyness*1.2
		callDelta = math.Min(0.95, math.Max(0.05, callDelta))
		putDelta := callDelta - 1 // put-call delta parity for synthetic chain

		exp := expiry.Format("060102")
		contracts = append(contracts,
			OptionContract{
				Symbol: fmt.Sprintf("%s%sC%08d", symbol, exp, int(strike*1000)),
				Type:   Call,
				Strike: strike,
				Expiry: expiry,
				Bid:    round2(callPrice * 0.95),
				Ask:    round2(callPrice * 1.05),
				Delta:  round2(callDelta),
			},
			OptionContract{
				Symbol: fmt.Sprintf("%s%sP%08d", symbol, exp, int(strike*1000)),
				Type:   Put,
				Strike: strike,
				Expiry: expiry,
				Bid:    round2(putPrice * 0.95),
				Ask:    round2(putPrice * 1.05),
				Delta:  round2(putDelta),
			},
		)
	}
	return contracts
}

// WeeklyExpiries returns the upcoming Friday expiration dates within
// maxDays of now.
func WeeklyExpiries(now time.Time, maxDays int) []time.Time {
	var fridays []time.Time
	for i := 1; i <= maxDays; i++ {
		day := now.AddDate(0, 0, i)
		if day.Weekday() == time.Friday {
			fridays = append(fridays, day)
		}
	}
	return fridays
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
