// Package execution turns order intents into broker submissions with
// bounded fill waits. A timeout means the trade did not happen; it is
// never treated as success.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/metrics"
)

// Kind labels why an intent exists.
type Kind string

const (
	// Entry opens a fresh position.
	Entry Kind = "entry"
	// Add grows an existing same-direction position to target size.
	Add Kind = "add"
	// FlipClose flattens a position before reversing direction.
	FlipClose Kind = "flip_close"
	// FlipOpen opens the reversed position after a FlipClose.
	FlipOpen Kind = "flip_open"
	// Exit closes a position because an exit rule fired.
	Exit Kind = "exit"
)

// Intent is an ephemeral order instruction produced by the reconciler or
// the exit engine.
type Intent struct {
	Symbol  string
	Side    broker.Side
	Qty     float64
	Kind    Kind
	Reasons []string
}

// Executor submits intents as market day orders.
type Executor struct {
	gw            broker.Gateway
	fillTimeout   time.Duration
	shortFallback bool
	log           zerolog.Logger
}

// NewExecutor builds an executor. When shortFallback is set, short-sale
// rejections are resubmitted as buys instead of abandoned.
func NewExecutor(gw broker.Gateway, fillTimeout time.Duration, shortFallback bool, log zerolog.Logger) *Executor {
	if fillTimeout <= 0 {
		fillTimeout = 30 * time.Second
	}
	return &Executor{gw: gw, fillTimeout: fillTimeout, shortFallback: shortFallback, log: log}
}

// Submit places the intent and waits for its fill. Errors never corrupt
// state: an unfilled or rejected order leaves positions untouched.
func (e *Executor) Submit(ctx context.Context, intent Intent) (broker.Fill, error) {
	if intent.Qty <= 0 {
		return broker.Fill{}, fmt.Errorf("submit %s: quantity must be positive", intent.Symbol)
	}

	order := broker.Order{
		Symbol: intent.Symbol,
		Qty:    intent.Qty,
		Side:   intent.Side,
		Type:   broker.Market,
		TIF:    broker.Day,
	}

	orderID, err := e.gw.SubmitOrder(ctx, order)
	if errors.Is(err, broker.ErrNotShortable) {
		if !e.shortFallback || intent.Side != broker.Sell {
			metrics.OrdersRejected.WithLabelValues("not_shortable").Inc()
			return broker.Fill{}, fmt.Errorf("submit %s: %w", intent.Symbol, err)
		}
		// Venue refuses the short; policy says take the opposite side
		// instead of abandoning the signal.
		e.log.Warn().Str("symbol", intent.Symbol).Msg("short sale rejected, resubmitting as buy")
		order.Side = broker.Buy
		orderID, err = e.gw.SubmitOrder(ctx, order)
	}
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("submit_error").Inc()
		return broker.Fill{}, fmt.Errorf("submit %s: %w", intent.Symbol, err)
	}

	fill, err := e.gw.WaitForFill(ctx, orderID, e.fillTimeout)
	if err != nil {
		if errors.Is(err, broker.ErrFillTimeout) {
			metrics.OrdersRejected.WithLabelValues("fill_timeout").Inc()
			e.log.Warn().Str("symbol", intent.Symbol).Str("order_id", orderID).Msg("order not filled inside wait window")
		}
		return broker.Fill{}, fmt.Errorf("wait for fill %s: %w", intent.Symbol, err)
	}

	metrics.OrdersTotal.WithLabelValues(fill.Symbol, string(fill.Side)).Inc()
	e.log.Info().
		Str("symbol", fill.Symbol).
		Str("side", string(fill.Side)).
		Str("kind", string(intent.Kind)).
		Float64("qty", fill.Qty).
		Float64("price", fill.AvgPrice).
		Strs("reasons", intent.Reasons).
		Msg("order filled")
	return fill, nil
}
