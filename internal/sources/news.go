package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/metrics"
	"github.com/Cikle/Alpatrader/internal/signal"
)

// News scores headline sentiment per ticker via the Finnhub sentiment API.
// Unlike the other feeds it is queried for a specific ticker set, since the
// tickers of interest come from the insider and congress batches.
type News struct {
	client *resty.Client
	apiKey string
	cache  *Cache
	log    zerolog.Logger
	now    func() time.Time
}

type finnhubSentiment struct {
	Symbol    string `json:"symbol"`
	Sentiment struct {
		BullishPercent float64 `json:"bullishPercent"`
		BearishPercent float64 `json:"bearishPercent"`
	} `json:"sentiment"`
	Buzz struct {
		ArticlesInLastWeek int     `json:"articlesInLastWeek"`
		Buzz               float64 `json:"buzz"`
	} `json:"buzz"`
}

// NewNews builds the news sentiment feed.
func NewNews(baseURL, apiKey string, cache *Cache, log zerolog.Logger) *News {
	return &News{
		client: resty.New().SetBaseURL(strings.TrimSuffix(baseURL, "/")).SetTimeout(15 * time.Second),
		apiKey: apiKey,
		cache:  cache,
		log:    log,
		now:    time.Now,
	}
}

// FetchFor scores sentiment for each ticker. Per-ticker failures are
// skipped so one bad symbol never starves the rest; a fully failed pass
// falls back to the cached batch.
func (s *News) FetchFor(ctx context.Context, tickers []string) ([]signal.Record, error) {
	var (
		records  []signal.Record
		failures int
	)
	for _, ticker := range tickers {
		rec, ok, err := s.score(ctx, ticker)
		if err != nil {
			failures++
			s.log.Debug().Err(err).Str("ticker", ticker).Msg("news sentiment lookup failed")
			continue
		}
		if ok {
			records = append(records, rec)
		}
	}
	if len(tickers) > 0 && failures == len(tickers) {
		metrics.SourceErrors.WithLabelValues(string(signal.SourceNews)).Inc()
		if cached := s.cache.Recent(ctx, signal.SourceNews); cached != nil {
			s.log.Warn().Int("cached", len(cached)).Msg("news fetch failed, serving cached batch")
			return cached, nil
		}
		return nil, fmt.Errorf("news sentiment unavailable for all %d tickers", len(tickers))
	}
	metrics.SourceRecords.WithLabelValues(string(signal.SourceNews)).Add(float64(len(records)))
	s.cache.Save(ctx, signal.SourceNews, records)
	return records, nil
}

func (s *News) score(ctx context.Context, ticker string) (signal.Record, bool, error) {
	var body finnhubSentiment
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", ticker).
		SetQueryParam("token", s.apiKey).
		SetResult(&body).
		Get("/api/v1/news-sentiment")
	if err != nil {
		return signal.Record{}, false, err
	}
	if resp.IsError() {
		return signal.Record{}, false, fmt.Errorf("sentiment %s: status %d", ticker, resp.StatusCode())
	}

	bull, bear := body.Sentiment.BullishPercent, body.Sentiment.BearishPercent
	if bull <= 0 && bear <= 0 {
		return signal.Record{}, false, nil
	}

	dir := signal.Bullish
	confidence := bull
	if bear > bull {
		dir = signal.Bearish
		confidence = bear
	}

	return signal.Record{
		Ticker:     strings.ToUpper(ticker),
		Source:     signal.SourceNews,
		Direction:  dir,
		Confidence: confidence,
		Time:       s.now(),
		Headline: fmt.Sprintf("%d articles last week, buzz %.2f",
			body.Buzz.ArticlesInLastWeek, body.Buzz.Buzz),
	}, true, nil
}
