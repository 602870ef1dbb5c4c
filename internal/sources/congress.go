package sources

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/metrics"
	"github.com/Cikle/Alpatrader/internal/signal"
)

// Congress fetches senator trade disclosures from the Senate Stock Watcher
// dataset. Buys map to Bullish, sells to Bearish. Trades above the max
// transaction size are dropped (very large trades are usually managed
// funds, not conviction bets), as are trades younger than the disclosure
// delay window.
type Congress struct {
	client  *resty.Client
	maxSize float64
	delay   time.Duration
	cache   *Cache
	log     zerolog.Logger
	now     func() time.Time
}

type congressTransaction struct {
	TransactionDate  string `json:"transaction_date"`
	Senator          string `json:"senator"`
	Ticker           string `json:"ticker"`
	AssetDescription string `json:"asset_description"`
	AssetType        string `json:"asset_type"`
	Type             string `json:"type"`
	Amount           string `json:"amount"`
}

// NewCongress builds the congress feed against the given dataset URL.
func NewCongress(baseURL string, maxSize float64, delayHours float64, cache *Cache, log zerolog.Logger) *Congress {
	return &Congress{
		client:  resty.New().SetBaseURL(strings.TrimSuffix(baseURL, "/")).SetTimeout(15 * time.Second),
		maxSize: maxSize,
		delay:   time.Duration(delayHours * float64(time.Hour)),
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// Kind identifies the source.
func (s *Congress) Kind() signal.SourceKind { return signal.SourceCongress }

// Fetch downloads the latest disclosures and returns normalized records,
// serving the cached batch when the upstream is unavailable.
func (s *Congress) Fetch(ctx context.Context) ([]signal.Record, error) {
	var raw []congressTransaction
	resp, err := s.client.R().SetContext(ctx).SetResult(&raw).Get("/aggregate/all_transactions.json")
	if err != nil || resp.IsError() {
		metrics.SourceErrors.WithLabelValues(string(s.Kind())).Inc()
		if cached := s.cache.Recent(ctx, s.Kind()); cached != nil {
			s.log.Warn().Int("cached", len(cached)).Msg("congress fetch failed, serving cached batch")
			return cached, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetch congress trades: %w", err)
		}
		return nil, fmt.Errorf("fetch congress trades: status %d", resp.StatusCode())
	}

	records := make([]signal.Record, 0, len(raw))
	for _, tx := range raw {
		rec, ok := s.normalize(tx)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	metrics.SourceRecords.WithLabelValues(string(s.Kind())).Add(float64(len(records)))
	s.cache.Save(ctx, s.Kind(), records)
	return records, nil
}

func (s *Congress) normalize(tx congressTransaction) (signal.Record, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(tx.Ticker))
	if ticker == "" || ticker == "--" || tx.Type == "" {
		return signal.Record{}, false
	}
	if tx.AssetType != "" && !strings.EqualFold(tx.AssetType, "Stock") {
		return signal.Record{}, false
	}

	tradeDate, err := time.Parse("01/02/2006", tx.TransactionDate)
	if err != nil {
		if tradeDate, err = time.Parse("2006-01-02", tx.TransactionDate); err != nil {
			return signal.Record{}, false
		}
	}
	// Disclosures land with a lag; skip anything still inside the delay
	// window so we never act on data the market has not absorbed.
	if s.now().Sub(tradeDate) < s.delay {
		return signal.Record{}, false
	}

	value := parseAmountRange(tx.Amount)
	if s.maxSize > 0 && value > s.maxSize {
		return signal.Record{}, false
	}

	lower := strings.ToLower(tx.Type)
	dir := signal.Bearish
	if strings.Contains(lower, "purchase") || strings.Contains(lower, "buy") {
		dir = signal.Bullish
	}

	confidence := 0.5
	if value > 0 && s.maxSize > 0 {
		confidence = math.Min(0.9, value/s.maxSize)
	}

	return signal.Record{
		Ticker:           ticker,
		Source:           signal.SourceCongress,
		Direction:        dir,
		Confidence:       confidence,
		Time:             tradeDate,
		Actor:            tx.Senator,
		TransactionValue: value,
	}, true
}

// parseAmountRange converts disclosure bands like "$1,001 - $15,000" to a
// midpoint estimate. Bare numbers pass through.
func parseAmountRange(amount string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", "+", "").Replace(amount)
	parts := strings.Split(cleaned, "-")
	var values []float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err == nil {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	default:
		return (values[0] + values[1]) / 2
	}
}
