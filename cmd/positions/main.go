// Command positions prints a one-shot snapshot of the account and every
// open position with its distance to the configured exit thresholds.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/config"
	"github.com/Cikle/Alpatrader/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config")
	flag.Parse()

	_ = godotenv.Load()
	log := util.NewLogger("warn", "console")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.Alpaca.Paper {
		fmt.Println("paper mode: no live positions to inspect")
		return
	}

	gw := broker.NewAlpaca(broker.AlpacaConfig{
		BaseURL:   cfg.Alpaca.BaseURL,
		DataURL:   cfg.Alpaca.DataURL,
		KeyID:     cfg.Alpaca.KeyID,
		SecretKey: cfg.Alpaca.SecretKey,
	}, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account, err := gw.GetAccount(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("account")
	}
	positions, err := gw.GetPositions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("positions")
	}
	open, err := gw.IsMarketOpen(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("market clock")
	}

	fmt.Printf("account equity:  $%.2f\n", account.Equity)
	fmt.Printf("buying power:    $%.2f\n", account.BuyingPower)
	fmt.Printf("market open:     %v\n", open)
	fmt.Printf("open positions:  %d\n\n", len(positions))

	if len(positions) == 0 {
		return
	}

	e := cfg.ExitStrategy
	fmt.Printf("%-8s %8s %10s %12s %9s  %s\n", "SYMBOL", "QTY", "ENTRY", "CURRENT", "P/L%", "EXIT STATUS")
	for _, p := range positions {
		fmt.Printf("%-8s %8.0f %10.2f %12.2f %8.2f%%  %s\n",
			p.Symbol, p.Qty, p.EntryPrice(), p.CurrentPrice, p.UnrealizedPLPct, exitStatus(p, e))
	}
}

// exitStatus describes how close a position is to its configured exits.
func exitStatus(p broker.Position, e config.ExitStrategy) string {
	switch {
	case e.UseStopLoss && p.UnrealizedPLPct <= e.StopLossPct:
		return fmt.Sprintf("STOP LOSS HIT (<= %.1f%%)", e.StopLossPct)
	case e.UseTakeProfit && p.UnrealizedPLPct >= e.TakeProfitPct:
		return fmt.Sprintf("TAKE PROFIT HIT (>= %.1f%%)", e.TakeProfitPct)
	case e.UseStopLoss && p.UnrealizedPLPct < 0:
		return fmt.Sprintf("%.2f%% above stop loss", p.UnrealizedPLPct-e.StopLossPct)
	case e.UseTakeProfit:
		return fmt.Sprintf("%.2f%% below take profit", e.TakeProfitPct-p.UnrealizedPLPct)
	default:
		return "holding"
	}
}
