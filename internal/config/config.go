// Package config exposes the validated application configuration loaded
// from YAML. Unknown keys and malformed values are rejected at load time;
// nothing falls back silently.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json or console
}

// Alpaca describes brokerage connectivity. Credentials come from the
// environment when the yaml fields are blank.
type Alpaca struct {
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	StreamURL string `yaml:"stream_url"`
	KeyID     string `yaml:"key_id"`
	SecretKey string `yaml:"secret_key"`
	Paper     bool   `yaml:"paper"` // run against the in-memory paper gateway
	// WatchSymbols are subscribed on the trade stream at startup so their
	// prices come from the socket rather than per-cycle REST lookups.
	WatchSymbols []string `yaml:"watch_symbols"`
}

// CacheConfig configures the redis signal cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SourceConfig tunes one signal feed.
type SourceConfig struct {
	URL                 string  `yaml:"url"`
	APIKey              string  `yaml:"api_key"`
	Mode                string  `yaml:"mode"` // inverse | normal | disabled
	MinTransactionValue float64 `yaml:"min_transaction_value"`
	MaxTransactionValue float64 `yaml:"max_transaction_value"`
	DisclosureDelayHrs  float64 `yaml:"disclosure_delay_hours"`
}

// Sources groups the three feeds.
type Sources struct {
	Insider  SourceConfig `yaml:"insider"`
	Congress SourceConfig `yaml:"congress"`
	News     SourceConfig `yaml:"news"`
}

// Trading holds aggregation and sizing parameters.
type Trading struct {
	StrongNewsMultiplier   float64       `yaml:"strong_news_multiplier"`
	CongressOnlyMultiplier float64       `yaml:"congress_only_multiplier"`
	InsiderOnlyMultiplier  float64       `yaml:"insider_only_multiplier"`
	StrongNewsThreshold    float64       `yaml:"strong_news_threshold"`
	MinConfidence          float64       `yaml:"min_confidence"`
	MaxPositionSizePct     float64       `yaml:"max_position_size_percent"`
	MaxLeverage            float64       `yaml:"max_leverage"`
	MinOrderValue          float64       `yaml:"min_order_value"`
	SkipFOMCBlackout       bool          `yaml:"skip_fomc_blackout"`
	BlackoutDays           int           `yaml:"blackout_days"`
	CycleInterval          time.Duration `yaml:"cycle_interval"`
	FillTimeout            time.Duration `yaml:"fill_timeout"`
	ShortFallbackToBuy     bool          `yaml:"short_fallback_to_buy"`
}

// ExitStrategy holds the exit-rule toggles and thresholds.
type ExitStrategy struct {
	UseStopLoss     bool    `yaml:"use_stop_loss"`
	StopLossPct     float64 `yaml:"stop_loss_percent"`
	UseTakeProfit   bool    `yaml:"use_take_profit"`
	TakeProfitPct   float64 `yaml:"take_profit_percent"`
	UseTimeBased    bool    `yaml:"use_time_based_exit"`
	MaxHoldDays     int     `yaml:"max_hold_days"`
	UseTrailing     bool    `yaml:"use_trailing_stop"`
	TrailingStopPct float64 `yaml:"trailing_stop_percent"`
	MarketHoursOnly bool    `yaml:"exit_during_market_hours_only"`
}

// Options tunes the inverse options overlay.
type Options struct {
	Enabled        bool    `yaml:"enabled"`
	MinConfidence  float64 `yaml:"min_confidence"`
	TargetDelta    float64 `yaml:"target_delta"`
	TargetDays     int     `yaml:"target_days_to_expiry"`
	MaxDayRange    int     `yaml:"max_day_range"`
	MaxPositionPct float64 `yaml:"max_position_percent"`
}

// Config collects every configuration leaf.
type Config struct {
	App          App          `yaml:"app"`
	Alpaca       Alpaca       `yaml:"alpaca"`
	Cache        CacheConfig  `yaml:"cache"`
	Sources      Sources      `yaml:"sources"`
	Trading      Trading      `yaml:"trading"`
	ExitStrategy ExitStrategy `yaml:"exit_strategy"`
	Options      Options      `yaml:"options"`
}

// Load reads, decodes, and validates a YAML config file. Unknown fields
// are an error.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// applyEnv fills credentials from the environment when unset in yaml.
func (c *Config) applyEnv() {
	if c.Alpaca.KeyID == "" {
		c.Alpaca.KeyID = os.Getenv("APCA_API_KEY_ID")
	}
	if c.Alpaca.SecretKey == "" {
		c.Alpaca.SecretKey = os.Getenv("APCA_API_SECRET_KEY")
	}
	if c.Sources.News.APIKey == "" {
		c.Sources.News.APIKey = os.Getenv("FINNHUB_API_KEY")
	}
}

// Validate rejects malformed values instead of silently correcting them.
func (c *Config) Validate() error {
	t := c.Trading
	if t.StrongNewsMultiplier <= 0 || t.CongressOnlyMultiplier <= 0 || t.InsiderOnlyMultiplier <= 0 {
		return fmt.Errorf("signal multipliers must be positive")
	}
	if t.StrongNewsThreshold < 0 || t.StrongNewsThreshold > 1 {
		return fmt.Errorf("strong_news_threshold must be in [0,1], got %v", t.StrongNewsThreshold)
	}
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", t.MinConfidence)
	}
	if t.MaxPositionSizePct <= 0 || t.MaxPositionSizePct > 100 {
		return fmt.Errorf("max_position_size_percent must be in (0,100], got %v", t.MaxPositionSizePct)
	}
	if t.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage must be >= 1, got %v", t.MaxLeverage)
	}
	if t.MinOrderValue < 0 {
		return fmt.Errorf("min_order_value must be >= 0, got %v", t.MinOrderValue)
	}
	if t.CycleInterval <= 0 {
		return fmt.Errorf("cycle_interval must be positive, got %v", t.CycleInterval)
	}
	if t.FillTimeout <= 0 {
		return fmt.Errorf("fill_timeout must be positive, got %v", t.FillTimeout)
	}
	if t.SkipFOMCBlackout && t.BlackoutDays <= 0 {
		return fmt.Errorf("blackout_days must be positive when skip_fomc_blackout is set")
	}

	e := c.ExitStrategy
	if e.UseStopLoss && e.StopLossPct >= 0 {
		return fmt.Errorf("stop_loss_percent must be negative, got %v", e.StopLossPct)
	}
	if e.UseTakeProfit && e.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_percent must be positive, got %v", e.TakeProfitPct)
	}
	if e.UseTimeBased && e.MaxHoldDays <= 0 {
		return fmt.Errorf("max_hold_days must be positive, got %d", e.MaxHoldDays)
	}
	if e.UseTrailing && e.TrailingStopPct <= 0 {
		return fmt.Errorf("trailing_stop_percent must be positive, got %v", e.TrailingStopPct)
	}

	for name, src := range map[string]SourceConfig{
		"insider": c.Sources.Insider, "congress": c.Sources.Congress, "news": c.Sources.News,
	} {
		switch src.Mode {
		case "inverse", "normal", "disabled":
		default:
			return fmt.Errorf("sources.%s.mode must be inverse, normal, or disabled, got %q", name, src.Mode)
		}
	}

	o := c.Options
	if o.Enabled {
		if o.MinConfidence < 0 || o.MinConfidence > 1 {
			return fmt.Errorf("options.min_confidence must be in [0,1], got %v", o.MinConfidence)
		}
		if o.TargetDelta <= 0 || o.TargetDelta >= 1 {
			return fmt.Errorf("options.target_delta must be in (0,1), got %v", o.TargetDelta)
		}
		if o.TargetDays <= 0 || o.MaxDayRange < o.TargetDays {
			return fmt.Errorf("options expiry window invalid: target %d days, range %d days", o.TargetDays, o.MaxDayRange)
		}
		if o.MaxPositionPct <= 0 || o.MaxPositionPct > 100 {
			return fmt.Errorf("options.max_position_percent must be in (0,100], got %v", o.MaxPositionPct)
		}
	}

	if !c.Alpaca.Paper && (c.Alpaca.KeyID == "" || c.Alpaca.SecretKey == "") {
		return fmt.Errorf("alpaca credentials required outside paper mode")
	}
	return nil
}
