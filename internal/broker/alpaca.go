package broker

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultRequestTimeout = 10 * time.Second

// AlpacaConfig carries connectivity parameters for the Alpaca REST API.
type AlpacaConfig struct {
	BaseURL   string
	DataURL   string
	KeyID     string
	SecretKey string
}

// Alpaca implements Gateway against the Alpaca trading REST API. Money
// fields arrive as JSON strings and are parsed with decimal before being
// narrowed to float64 at this boundary.
type Alpaca struct {
	trading *resty.Client
	data    *resty.Client
	stream  *PriceStream
	log     zerolog.Logger
}

// NewAlpaca builds a REST-backed gateway. The optional stream, when set,
// answers LastPrice from its cache before falling back to the data API.
func NewAlpaca(cfg AlpacaConfig, stream *PriceStream, log zerolog.Logger) *Alpaca {
	newClient := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimSuffix(base, "/")).
			SetHeader("APCA-API-KEY-ID", cfg.KeyID).
			SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey).
			SetTimeout(defaultRequestTimeout)
	}
	return &Alpaca{
		trading: newClient(cfg.BaseURL),
		data:    newClient(cfg.DataURL),
		stream:  stream,
		log:     log,
	}
}

type alpacaAccount struct {
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
	Cash        string `json:"cash"`
}

type alpacaPosition struct {
	Symbol          string `json:"symbol"`
	Qty             string `json:"qty"`
	CostBasis       string `json:"cost_basis"`
	CurrentPrice    string `json:"current_price"`
	MarketValue     string `json:"market_value"`
	UnrealizedPL    string `json:"unrealized_pl"`
	UnrealizedPLPct string `json:"unrealized_plpc"`
}

type alpacaOrder struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Status         string `json:"status"`
	Qty            string `json:"qty"`
	FilledQty      string `json:"filled_qty"`
	FilledAvgPrice string `json:"filled_avg_price"`
	SubmittedAt    string `json:"submitted_at"`
	FilledAt       string `json:"filled_at"`
}

type alpacaClock struct {
	IsOpen bool `json:"is_open"`
}

type alpacaAsset struct {
	Tradable bool `json:"tradable"`
}

type alpacaLatestTrade struct {
	Trade struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

// money parses an Alpaca string-encoded amount, treating blanks as zero.
func money(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// GetAccount fetches the current equity and buying power snapshot.
func (a *Alpaca) GetAccount(ctx context.Context) (Account, error) {
	var body alpacaAccount
	resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/account")
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	if resp.IsError() {
		return Account{}, fmt.Errorf("get account: status %d", resp.StatusCode())
	}
	return Account{
		Equity:      money(body.Equity),
		BuyingPower: money(body.BuyingPower),
		Cash:        money(body.Cash),
	}, nil
}

// GetPositions lists open positions converted to boundary value types.
func (a *Alpaca) GetPositions(ctx context.Context) ([]Position, error) {
	var body []alpacaPosition
	resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/positions")
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get positions: status %d", resp.StatusCode())
	}
	positions := make([]Position, 0, len(body))
	for _, p := range body {
		positions = append(positions, convertPosition(p))
	}
	return positions, nil
}

// GetPosition fetches one position; a 404 means flat, not an error.
func (a *Alpaca) GetPosition(ctx context.Context, symbol string) (Position, bool, error) {
	var body alpacaPosition
	resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/positions/" + symbol)
	if err != nil {
		return Position{}, false, fmt.Errorf("get position %s: %w", symbol, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return Position{}, false, nil
	}
	if resp.IsError() {
		return Position{}, false, fmt.Errorf("get position %s: status %d", symbol, resp.StatusCode())
	}
	return convertPosition(body), true, nil
}

func convertPosition(p alpacaPosition) Position {
	return Position{
		Symbol:          p.Symbol,
		Qty:             money(p.Qty),
		CostBasis:       money(p.CostBasis),
		CurrentPrice:    money(p.CurrentPrice),
		MarketValue:     money(p.MarketValue),
		UnrealizedPL:    money(p.UnrealizedPL),
		UnrealizedPLPct: money(p.UnrealizedPLPct) * 100, // API reports a fraction
	}
}

// LastPrice answers from the websocket cache when warm, otherwise queries
// the latest-trade endpoint.
func (a *Alpaca) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if a.stream != nil {
		if px, ok := a.stream.Last(symbol); ok {
			return px, nil
		}
	}
	var body alpacaLatestTrade
	resp, err := a.data.R().SetContext(ctx).SetResult(&body).
		Get(fmt.Sprintf("/v2/stocks/%s/trades/latest", symbol))
	if err != nil {
		return 0, fmt.Errorf("last price %s: %w", symbol, err)
	}
	if resp.IsError() || body.Trade.Price <= 0 {
		return 0, ErrPriceUnavailable
	}
	return body.Trade.Price, nil
}

// IsMarketOpen queries the venue clock.
func (a *Alpaca) IsMarketOpen(ctx context.Context) (bool, error) {
	var body alpacaClock
	resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/clock")
	if err != nil {
		return false, fmt.Errorf("get clock: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("get clock: status %d", resp.StatusCode())
	}
	return body.IsOpen, nil
}

// SubmitOrder places a new order and returns its id. Short-sale
// rejections surface as ErrNotShortable so policy can decide upstream.
func (a *Alpaca) SubmitOrder(ctx context.Context, order Order) (string, error) {
	var body alpacaOrder
	resp, err := a.trading.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"symbol":        order.Symbol,
			"qty":           fmt.Sprintf("%g", order.Qty),
			"side":          string(order.Side),
			"type":          string(order.Type),
			"time_in_force": string(order.TIF),
		}).
		SetResult(&body).
		Post("/v2/orders")
	if err != nil {
		return "", fmt.Errorf("submit order %s: %w", order.Symbol, err)
	}
	if resp.StatusCode() == http.StatusForbidden && strings.Contains(strings.ToLower(resp.String()), "short") {
		return "", ErrNotShortable
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit order %s: status %d: %s", order.Symbol, resp.StatusCode(), resp.String())
	}
	a.log.Info().Str("symbol", order.Symbol).Str("side", string(order.Side)).
		Float64("qty", order.Qty).Str("order_id", body.ID).Msg("order submitted")
	return body.ID, nil
}

// WaitForFill polls the order until filled or the timeout elapses.
func (a *Alpaca) WaitForFill(ctx context.Context, orderID string, timeout time.Duration) (Fill, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		var body alpacaOrder
		resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/orders/" + orderID)
		if err != nil {
			return Fill{}, fmt.Errorf("poll order %s: %w", orderID, err)
		}
		if !resp.IsError() && body.Status == "filled" {
			filledAt, _ := time.Parse(time.RFC3339, body.FilledAt)
			return Fill{
				OrderID:  body.ID,
				Symbol:   body.Symbol,
				Side:     Side(body.Side),
				Qty:      money(body.FilledQty),
				AvgPrice: money(body.FilledAvgPrice),
				FilledAt: filledAt,
			}, nil
		}
		if time.Now().After(deadline) {
			return Fill{}, ErrFillTimeout
		}
		select {
		case <-ctx.Done():
			return Fill{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ValidateSymbol checks the asset exists and is tradable.
func (a *Alpaca) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	var body alpacaAsset
	resp, err := a.trading.R().SetContext(ctx).SetResult(&body).Get("/v2/assets/" + symbol)
	if err != nil {
		return false, fmt.Errorf("validate symbol %s: %w", symbol, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, fmt.Errorf("validate symbol %s: status %d", symbol, resp.StatusCode())
	}
	return body.Tradable, nil
}

// RecentClosedOrders lists recent filled orders for the symbol, newest first.
func (a *Alpaca) RecentClosedOrders(ctx context.Context, symbol string, limit int) ([]ClosedOrder, error) {
	var body []alpacaOrder
	resp, err := a.trading.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"status":    "closed",
			"symbols":   symbol,
			"limit":     fmt.Sprintf("%d", limit),
			"direction": "desc",
		}).
		SetResult(&body).
		Get("/v2/orders")
	if err != nil {
		return nil, fmt.Errorf("closed orders %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("closed orders %s: status %d", symbol, resp.StatusCode())
	}
	orders := make([]ClosedOrder, 0, len(body))
	for _, o := range body {
		if o.Status != "filled" {
			continue
		}
		submitted, _ := time.Parse(time.RFC3339, o.SubmittedAt)
		filled, _ := time.Parse(time.RFC3339, o.FilledAt)
		orders = append(orders, ClosedOrder{
			ID:          o.ID,
			Symbol:      o.Symbol,
			Side:        Side(o.Side),
			Qty:         money(o.FilledQty),
			SubmittedAt: submitted,
			FilledAt:    filled,
		})
	}
	return orders, nil
}

// OptionChain returns contracts for the symbol. The venue has no options
// endpoint on paper accounts, so the chain is synthesized around the last
// trade price.
func (a *Alpaca) OptionChain(ctx context.Context, symbol string, expiry time.Time) ([]OptionContract, error) {
	price, err := a.LastPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return SimulateChain(symbol, price, expiry), nil
}
