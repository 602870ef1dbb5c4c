package broker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func submit(t *testing.T, p *Paper, symbol string, side Side, qty float64) Fill {
	t.Helper()
	id, err := p.SubmitOrder(context.Background(), Order{Symbol: symbol, Qty: qty, Side: side, Type: Market, TIF: Day})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	fill, err := p.WaitForFill(context.Background(), id, time.Second)
	if err != nil {
		t.Fatalf("WaitForFill: %v", err)
	}
	return fill
}

func TestPaperBuyThenClose(t *testing.T) {
	p := NewPaper(10_000)
	p.SetPrice("AAPL", 100)
	ctx := context.Background()

	submit(t, p, "AAPL", Buy, 10)
	pos, ok, _ := p.GetPosition(ctx, "AAPL")
	if !ok || pos.Qty != 10 || pos.EntryPrice() != 100 {
		t.Fatalf("position = %+v ok=%v, want 10 @ 100", pos, ok)
	}

	p.SetPrice("AAPL", 110)
	submit(t, p, "AAPL", Sell, 10)
	if _, ok, _ := p.GetPosition(ctx, "AAPL"); ok {
		t.Fatal("position should be flat after full close")
	}
	if pnl := p.RealizedPnL(); pnl != 100 {
		t.Fatalf("realized pnl = %v, want 100", pnl)
	}
}

func TestPaperAverageCostBlending(t *testing.T) {
	p := NewPaper(100_000)
	p.SetPrice("MSFT", 100)
	ctx := context.Background()

	submit(t, p, "MSFT", Buy, 10)
	p.SetPrice("MSFT", 120)
	submit(t, p, "MSFT", Buy, 10)

	pos, _, _ := p.GetPosition(ctx, "MSFT")
	if pos.Qty != 20 || pos.EntryPrice() != 110 {
		t.Fatalf("position = %+v, want 20 @ 110 blended", pos)
	}
}

func TestPaperShortLifecycle(t *testing.T) {
	p := NewPaper(100_000)
	p.SetPrice("GME", 50)
	ctx := context.Background()

	submit(t, p, "GME", Sell, 20)
	pos, _, _ := p.GetPosition(ctx, "GME")
	if pos.Qty != -20 || pos.IsLong() {
		t.Fatalf("position = %+v, want short 20", pos)
	}
	if pos.ClosingSide() != Buy {
		t.Fatalf("closing side = %s, want buy", pos.ClosingSide())
	}

	// Price falls, short profits.
	p.SetPrice("GME", 40)
	pos, _, _ = p.GetPosition(ctx, "GME")
	if pos.UnrealizedPLPct != 20 {
		t.Fatalf("pl pct = %v, want 20", pos.UnrealizedPLPct)
	}
	submit(t, p, "GME", Buy, 20)
	if pnl := p.RealizedPnL(); pnl != 200 {
		t.Fatalf("realized pnl = %v, want 200", pnl)
	}
}

func TestPaperNotShortable(t *testing.T) {
	p := NewPaper(10_000)
	p.SetPrice("AMC", 10)
	p.MarkNotShortable("AMC")

	_, err := p.SubmitOrder(context.Background(), Order{Symbol: "AMC", Qty: 5, Side: Sell, Type: Market, TIF: Day})
	if !errors.Is(err, ErrNotShortable) {
		t.Fatalf("err = %v, want ErrNotShortable", err)
	}
}

func TestPaperCrossThroughFlat(t *testing.T) {
	p := NewPaper(100_000)
	p.SetPrice("TSLA", 200)
	ctx := context.Background()

	submit(t, p, "TSLA", Buy, 10)
	p.SetPrice("TSLA", 220)
	// Sell 25: closes the 10 long (+200 realized), opens 15 short at 220.
	submit(t, p, "TSLA", Sell, 25)

	pos, _, _ := p.GetPosition(ctx, "TSLA")
	if pos.Qty != -15 || pos.EntryPrice() != 220 {
		t.Fatalf("position = %+v, want short 15 @ 220", pos)
	}
	if pnl := p.RealizedPnL(); pnl != 200 {
		t.Fatalf("realized pnl = %v, want 200", pnl)
	}
}

func TestPaperNoPriceNoFill(t *testing.T) {
	p := NewPaper(10_000)
	_, err := p.SubmitOrder(context.Background(), Order{Symbol: "ZZZZ", Qty: 1, Side: Buy, Type: Market, TIF: Day})
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestPaperRecentClosedOrdersNewestFirst(t *testing.T) {
	p := NewPaper(100_000)
	p.SetPrice("NVDA", 100)

	submit(t, p, "NVDA", Buy, 1)
	submit(t, p, "NVDA", Buy, 2)
	submit(t, p, "NVDA", Buy, 3)

	orders, err := p.RecentClosedOrders(context.Background(), "NVDA", 2)
	if err != nil {
		t.Fatalf("RecentClosedOrders: %v", err)
	}
	if len(orders) != 2 || orders[0].Qty != 3 || orders[1].Qty != 2 {
		t.Fatalf("orders = %+v, want newest first limited to 2", orders)
	}
}

func TestPaperEquityMarksPositions(t *testing.T) {
	p := NewPaper(10_000)
	p.SetPrice("AAPL", 100)
	submit(t, p, "AAPL", Buy, 10)
	p.SetPrice("AAPL", 150)

	account, _ := p.GetAccount(context.Background())
	// 9000 cash + 10 shares at 150.
	if account.Equity != 10_500 {
		t.Fatalf("equity = %v, want 10500", account.Equity)
	}
}

func TestPaperValidateSymbol(t *testing.T) {
	p := NewPaper(10_000)
	p.MarkInvalid("BAD")
	if ok, _ := p.ValidateSymbol(context.Background(), "BAD"); ok {
		t.Fatal("marked-invalid symbol must fail validation")
	}
	if ok, _ := p.ValidateSymbol(context.Background(), "GOOD"); !ok {
		t.Fatal("unmarked symbol must validate")
	}
}
