package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/broker"
	"github.com/Cikle/Alpatrader/internal/config"
	"github.com/Cikle/Alpatrader/internal/engine"
	"github.com/Cikle/Alpatrader/internal/execution"
	"github.com/Cikle/Alpatrader/internal/metrics"
	"github.com/Cikle/Alpatrader/internal/risk"
	"github.com/Cikle/Alpatrader/internal/signal"
	"github.com/Cikle/Alpatrader/internal/sources"
	"github.com/Cikle/Alpatrader/internal/strategy"
	"github.com/Cikle/Alpatrader/internal/util"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info", "console")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cache *sources.Cache
	if cfg.Cache.Enabled {
		cache = sources.NewCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL, log)
		defer cache.Close()
	}

	gw := newGateway(ctx, cfg, log)

	modes, err := parseModes(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("source modes")
	}

	gate := signal.NewGate(cfg.Trading.SkipFOMCBlackout, cfg.Trading.BlackoutDays, signal.FOMCCalendar())
	agg := signal.NewAggregator(signal.Multipliers{
		Strong:   cfg.Trading.StrongNewsMultiplier,
		Congress: cfg.Trading.CongressOnlyMultiplier,
		Insider:  cfg.Trading.InsiderOnlyMultiplier,
	}, gate, log)

	exits := risk.NewEngine(risk.Config{
		UseStopLoss:     cfg.ExitStrategy.UseStopLoss,
		StopLossPct:     cfg.ExitStrategy.StopLossPct,
		UseTakeProfit:   cfg.ExitStrategy.UseTakeProfit,
		TakeProfitPct:   cfg.ExitStrategy.TakeProfitPct,
		UseTimeBased:    cfg.ExitStrategy.UseTimeBased,
		MaxHoldDays:     cfg.ExitStrategy.MaxHoldDays,
		UseTrailing:     cfg.ExitStrategy.UseTrailing,
		TrailingStopPct: cfg.ExitStrategy.TrailingStopPct,
		MarketHoursOnly: cfg.ExitStrategy.MarketHoursOnly,
	}, risk.NewStateStore(), gw, log)

	var overlay *strategy.Overlay
	if cfg.Options.Enabled {
		overlay = strategy.NewOverlay(strategy.OverlayConfig{
			MinConfidence:  cfg.Options.MinConfidence,
			TargetDelta:    cfg.Options.TargetDelta,
			TargetDays:     cfg.Options.TargetDays,
			MaxDayRange:    cfg.Options.MaxDayRange,
			MaxPositionPct: cfg.Options.MaxPositionPct,
		}, log)
	}

	eng := engine.New(engine.Config{
		CycleInterval:       cfg.Trading.CycleInterval,
		StrongNewsThreshold: cfg.Trading.StrongNewsThreshold,
		OptionsEnabled:      cfg.Options.Enabled,
		OptionsMaxDayRange:  cfg.Options.MaxDayRange,
	}, engine.Deps{
		Gateway:    gw,
		Insider:    sources.NewInsider(cfg.Sources.Insider.URL, cfg.Sources.Insider.MinTransactionValue, cache, log),
		Congress:   sources.NewCongress(cfg.Sources.Congress.URL, cfg.Sources.Congress.MaxTransactionValue, cfg.Sources.Congress.DisclosureDelayHrs, cache, log),
		News:       sources.NewNews(cfg.Sources.News.URL, cfg.Sources.News.APIKey, cache, log),
		Aggregator: agg,
		Modes:      modes,
		Reconciler: strategy.NewReconciler(strategy.SizingConfig{
			MinConfidence:      cfg.Trading.MinConfidence,
			MaxPositionSizePct: cfg.Trading.MaxPositionSizePct,
			MaxLeverage:        cfg.Trading.MaxLeverage,
			MinOrderValue:      cfg.Trading.MinOrderValue,
		}, log),
		Executor: execution.NewExecutor(gw, cfg.Trading.FillTimeout, cfg.Trading.ShortFallbackToBuy, log),
		Exits:    exits,
		Overlay:  overlay,
	}, log)

	log.Info().
		Str("env", cfg.App.Env).
		Bool("paper", cfg.Alpaca.Paper).
		Dur("interval", cfg.Trading.CycleInterval).
		Msg("engine started")
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutdown complete")
}

// newGateway builds either the in-memory paper gateway or the live
// brokerage client with its trade stream.
func newGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) broker.Gateway {
	if cfg.Alpaca.Paper {
		paper := broker.NewPaper(100_000)
		paper.SetMarketOpen(true)
		return paper
	}

	var stream *broker.PriceStream
	if len(cfg.Alpaca.WatchSymbols) > 0 && cfg.Alpaca.StreamURL != "" {
		stream = broker.NewPriceStream(cfg.Alpaca.StreamURL, cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey,
			cfg.Alpaca.WatchSymbols, 0, log)
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("price stream stopped")
			}
		}()
	}
	return broker.NewAlpaca(broker.AlpacaConfig{
		BaseURL:   cfg.Alpaca.BaseURL,
		DataURL:   cfg.Alpaca.DataURL,
		KeyID:     cfg.Alpaca.KeyID,
		SecretKey: cfg.Alpaca.SecretKey,
	}, stream, log)
}

func parseModes(cfg *config.Config) (strategy.Modes, error) {
	modes := strategy.Modes{}
	for kind, raw := range map[signal.SourceKind]string{
		signal.SourceInsider:  cfg.Sources.Insider.Mode,
		signal.SourceCongress: cfg.Sources.Congress.Mode,
		signal.SourceNews:     cfg.Sources.News.Mode,
	} {
		mode, err := strategy.ParseMode(raw)
		if err != nil {
			return nil, err
		}
		modes[kind] = mode
	}
	return modes, nil
}
