package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const epsilon = 1e-9

type paperPosition struct {
	qty     float64 // signed
	avgCost float64
}

// Paper is an in-memory Gateway for offline runs and tests. Fills are
// immediate at the marked price; shorts are allowed unless the symbol is
// marked non-shortable.
type Paper struct {
	mu           sync.Mutex
	cash         float64
	realizedPnL  float64
	marketOpen   bool
	prices       map[string]float64
	positions    map[string]paperPosition
	notShortable map[string]bool
	invalid      map[string]bool
	fills        map[string]Fill
	history      []ClosedOrder
	nextID       int
}

// NewPaper builds a paper gateway seeded with starting cash. The market
// starts open.
func NewPaper(startingCash float64) *Paper {
	return &Paper{
		cash:         startingCash,
		marketOpen:   true,
		prices:       make(map[string]float64),
		positions:    make(map[string]paperPosition),
		notShortable: make(map[string]bool),
		invalid:      make(map[string]bool),
		fills:        make(map[string]Fill),
	}
}

// SetPrice marks a symbol at the given price.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	p.prices[symbol] = price
	p.mu.Unlock()
}

// SetMarketOpen toggles the simulated venue clock.
func (p *Paper) SetMarketOpen(open bool) {
	p.mu.Lock()
	p.marketOpen = open
	p.mu.Unlock()
}

// MarkNotShortable makes sell orders that would open a short fail with
// ErrNotShortable.
func (p *Paper) MarkNotShortable(symbol string) {
	p.mu.Lock()
	p.notShortable[symbol] = true
	p.mu.Unlock()
}

// MarkInvalid makes the symbol fail tradability validation.
func (p *Paper) MarkInvalid(symbol string) {
	p.mu.Lock()
	p.invalid[symbol] = true
	p.mu.Unlock()
}

// SeedPosition installs a pre-existing position for scenario setup.
func (p *Paper) SeedPosition(symbol string, qty, avgCost float64, openedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[symbol] = paperPosition{qty: qty, avgCost: avgCost}
	side := Buy
	if qty < 0 {
		side = Sell
	}
	p.nextID++
	p.history = append([]ClosedOrder{{
		ID:          fmt.Sprintf("paper-%d", p.nextID),
		Symbol:      symbol,
		Side:        side,
		Qty:         abs(qty),
		SubmittedAt: openedAt,
		FilledAt:    openedAt,
	}}, p.history...)
}

// GetAccount reports cash plus marked position value as equity.
func (p *Paper) GetAccount(ctx context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	equity := p.cash
	for sym, pos := range p.positions {
		equity += pos.qty * p.prices[sym]
	}
	return Account{Equity: equity, BuyingPower: equity * 2, Cash: p.cash}, nil
}

// GetPositions lists open positions marked to the current prices.
func (p *Paper) GetPositions(ctx context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for sym, pos := range p.positions {
		out = append(out, p.view(sym, pos))
	}
	return out, nil
}

// GetPosition returns the position for symbol; flat is an ordinary branch.
func (p *Paper) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{}, false, nil
	}
	return p.view(symbol, pos), true, nil
}

func (p *Paper) view(symbol string, pos paperPosition) Position {
	price := p.prices[symbol]
	unrealized := (price - pos.avgCost) * pos.qty
	plPct := 0.0
	if pos.avgCost > 0 {
		if pos.qty >= 0 {
			plPct = (price - pos.avgCost) / pos.avgCost * 100
		} else {
			plPct = (pos.avgCost - price) / pos.avgCost * 100
		}
	}
	return Position{
		Symbol:          symbol,
		Qty:             pos.qty,
		CostBasis:       pos.avgCost * abs(pos.qty),
		CurrentPrice:    price,
		MarketValue:     pos.qty * price,
		UnrealizedPL:    unrealized,
		UnrealizedPLPct: plPct,
	}
}

// LastPrice returns the marked price.
func (p *Paper) LastPrice(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[symbol]
	if !ok || px <= 0 {
		return 0, ErrPriceUnavailable
	}
	return px, nil
}

// IsMarketOpen reports the simulated clock.
func (p *Paper) IsMarketOpen(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marketOpen, nil
}

// SubmitOrder fills immediately at the marked price.
func (p *Paper) SubmitOrder(ctx context.Context, order Order) (string, error) {
	if order.Qty <= 0 {
		return "", errors.New("paper: quantity must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[order.Symbol]
	if !ok || price <= 0 {
		return "", ErrPriceUnavailable
	}

	pos := p.positions[order.Symbol]
	if order.Side == Sell && pos.qty-order.Qty < -epsilon && p.notShortable[order.Symbol] {
		return "", ErrNotShortable
	}

	signed := order.Qty
	if order.Side == Sell {
		signed = -order.Qty
	}
	newQty := pos.qty + signed

	// Realize PnL on the closing part of the fill.
	if pos.qty > 0 && signed < 0 {
		closed := minFloat(order.Qty, pos.qty)
		p.realizedPnL += (price - pos.avgCost) * closed
	} else if pos.qty < 0 && signed > 0 {
		closed := minFloat(order.Qty, -pos.qty)
		p.realizedPnL += (pos.avgCost - price) * closed
	}

	switch {
	case abs(newQty) <= epsilon:
		delete(p.positions, order.Symbol)
	case pos.qty == 0 || sameSign(pos.qty, newQty) && abs(newQty) > abs(pos.qty):
		// opening or adding: blend average cost
		added := abs(newQty) - abs(pos.qty)
		avg := (pos.avgCost*abs(pos.qty) + price*added) / abs(newQty)
		p.positions[order.Symbol] = paperPosition{qty: newQty, avgCost: avg}
	case sameSign(pos.qty, newQty):
		// partial close keeps the cost basis
		p.positions[order.Symbol] = paperPosition{qty: newQty, avgCost: pos.avgCost}
	default:
		// crossed through flat: remainder opens at the fill price
		p.positions[order.Symbol] = paperPosition{qty: newQty, avgCost: price}
	}
	p.cash -= signed * price

	p.nextID++
	id := fmt.Sprintf("paper-%d", p.nextID)
	now := time.Now()
	p.fills[id] = Fill{OrderID: id, Symbol: order.Symbol, Side: order.Side, Qty: order.Qty, AvgPrice: price, FilledAt: now}
	p.history = append([]ClosedOrder{{
		ID: id, Symbol: order.Symbol, Side: order.Side, Qty: order.Qty,
		SubmittedAt: now, FilledAt: now,
	}}, p.history...)
	return id, nil
}

// WaitForFill returns the already-recorded fill.
func (p *Paper) WaitForFill(ctx context.Context, orderID string, timeout time.Duration) (Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fill, ok := p.fills[orderID]
	if !ok {
		return Fill{}, ErrFillTimeout
	}
	return fill, nil
}

// ValidateSymbol reports tradability.
func (p *Paper) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.invalid[symbol], nil
}

// RecentClosedOrders returns filled orders for the symbol, newest first.
func (p *Paper) RecentClosedOrders(ctx context.Context, symbol string, limit int) ([]ClosedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ClosedOrder
	for _, o := range p.history {
		if o.Symbol != symbol {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// OptionChain synthesizes a chain around the marked price.
func (p *Paper) OptionChain(ctx context.Context, symbol string, expiry time.Time) ([]OptionContract, error) {
	price, err := p.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return SimulateChain(symbol, price, expiry), nil
}

// RealizedPnL reports total closed-trade profit and loss.
func (p *Paper) RealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realizedPnL
}

func sameSign(a, b float64) bool { return (a > 0) == (b > 0) }

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

