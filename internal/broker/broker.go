// Package broker defines the brokerage gateway boundary: explicit value
// types for account and position state plus the interface the engine
// trades through. The core never sees broker-SDK shapes.
package broker

import (
	"context"
	"errors"
	"time"
)

// Side enumerates order directions.
type Side string

const (
	// Buy opens or adds to a long, or covers a short.
	Buy Side = "buy"
	// Sell closes a long or opens a short.
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates supported order types.
type OrderType string

// Market is the only order type the engine submits.
const Market OrderType = "market"

// TimeInForce enumerates supported order lifetimes.
type TimeInForce string

// Day expires unfilled orders at the session close.
const Day TimeInForce = "day"

var (
	// ErrPriceUnavailable means no last trade is known for the symbol.
	ErrPriceUnavailable = errors.New("broker: price unavailable")
	// ErrFillTimeout means the order did not fill inside the wait window.
	// It must be treated as "trade did not happen", never as success.
	ErrFillTimeout = errors.New("broker: order fill timed out")
	// ErrNotShortable means the venue rejected a short sale for the symbol.
	ErrNotShortable = errors.New("broker: symbol not shortable")
)

// Account is a point-in-time snapshot of buying capacity.
type Account struct {
	Equity      float64
	BuyingPower float64
	Cash        float64
}

// Position is the broker-neutral view of one open position. Qty is signed:
// positive long, negative short.
type Position struct {
	Symbol          string
	Qty             float64
	CostBasis       float64
	CurrentPrice    float64
	MarketValue     float64
	UnrealizedPL    float64
	UnrealizedPLPct float64 // percent units: 5.0 means +5%
}

// IsLong reports whether the position is held long.
func (p Position) IsLong() bool { return p.Qty > 0 }

// EntryPrice derives the average entry price from cost basis.
func (p Position) EntryPrice() float64 {
	if p.Qty == 0 {
		return 0
	}
	return p.CostBasis / abs(p.Qty)
}

// ClosingSide returns the side that flattens the position.
func (p Position) ClosingSide() Side {
	if p.IsLong() {
		return Sell
	}
	return Buy
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Order is a placement request.
type Order struct {
	Symbol string
	Qty    float64
	Side   Side
	Type   OrderType
	TIF    TimeInForce
}

// Fill reports a completed order.
type Fill struct {
	OrderID  string
	Symbol   string
	Side     Side
	Qty      float64
	AvgPrice float64
	FilledAt time.Time
}

// ClosedOrder is a historical filled order, used to estimate holding age.
type ClosedOrder struct {
	ID          string
	Symbol      string
	Side        Side
	Qty         float64
	SubmittedAt time.Time
	FilledAt    time.Time
}

// OptionType enumerates option contract kinds.
type OptionType string

const (
	// Call grants the right to buy the underlying.
	Call OptionType = "call"
	// Put grants the right to sell the underlying.
	Put OptionType = "put"
)

// OptionContract describes one listed single-leg contract.
type OptionContract struct {
	Symbol string
	Type   OptionType
	Strike float64
	Expiry time.Time
	Bid    float64
	Ask    float64
	Delta  float64
}

// Mid returns the bid/ask midpoint.
func (c OptionContract) Mid() float64 { return (c.Bid + c.Ask) / 2 }

// Gateway is the brokerage boundary the engine trades through. All calls
// are bounded by the supplied context; implementations never block
// indefinitely.
type Gateway interface {
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetPosition treats "no position" as an ordinary branch, not an error.
	GetPosition(ctx context.Context, symbol string) (Position, bool, error)
	LastPrice(ctx context.Context, symbol string) (float64, error)
	IsMarketOpen(ctx context.Context) (bool, error)
	SubmitOrder(ctx context.Context, order Order) (string, error)
	// WaitForFill blocks up to timeout for the order to fill and returns
	// ErrFillTimeout otherwise.
	WaitForFill(ctx context.Context, orderID string, timeout time.Duration) (Fill, error)
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
	// RecentClosedOrders returns the most recent filled orders for the
	// symbol, newest first.
	RecentClosedOrders(ctx context.Context, symbol string, limit int) ([]ClosedOrder, error)
	OptionChain(ctx context.Context, symbol string, expiry time.Time) ([]OptionContract, error)
}
