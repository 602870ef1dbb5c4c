package sources

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/metrics"
	"github.com/Cikle/Alpatrader/internal/signal"
)

const defaultInsiderURL = "http://openinsider.com/screener?s=&o=&pl=&ph=&ll=&lh=&fd=7&td=0&xp=1&xs=1&sortcol=0&cnt=100"

// Insider scrapes recent CEO/CFO filings from the OpenInsider screener
// table. Purchases map to Bullish, sales to Bearish; confidence scales
// with the reported transaction value.
type Insider struct {
	url     string
	minSize float64
	client  *http.Client
	cache   *Cache
	log     zerolog.Logger
}

// NewInsider builds the insider feed. minSize drops filings below the
// given transaction value in USD.
func NewInsider(url string, minSize float64, cache *Cache, log zerolog.Logger) *Insider {
	if url == "" {
		url = defaultInsiderURL
	}
	return &Insider{
		url:     url,
		minSize: minSize,
		client:  &http.Client{Timeout: 15 * time.Second},
		cache:   cache,
		log:     log,
	}
}

// Kind identifies the source.
func (s *Insider) Kind() signal.SourceKind { return signal.SourceInsider }

// Fetch scrapes the screener and returns normalized records. On upstream
// failure the last cached batch is served instead.
func (s *Insider) Fetch(ctx context.Context) ([]signal.Record, error) {
	records, err := s.scrape(ctx)
	if err != nil {
		metrics.SourceErrors.WithLabelValues(string(s.Kind())).Inc()
		if cached := s.cache.Recent(ctx, s.Kind()); cached != nil {
			s.log.Warn().Err(err).Int("cached", len(cached)).Msg("insider fetch failed, serving cached batch")
			return cached, nil
		}
		return nil, fmt.Errorf("fetch insider trades: %w", err)
	}
	metrics.SourceRecords.WithLabelValues(string(s.Kind())).Add(float64(len(records)))
	s.cache.Save(ctx, s.Kind(), records)
	return records, nil
}

func (s *Insider) scrape(ctx context.Context) ([]signal.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "alpatrader/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openinsider status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse screener page: %w", err)
	}
	return s.parseTable(doc), nil
}

// parseTable walks the screener result rows. Column layout:
// X, filing date, trade date, ticker, company, insider, title, trade type,
// price, qty, owned, Δown, value.
func (s *Insider) parseTable(doc *goquery.Document) []signal.Record {
	var records []signal.Record
	doc.Find("table.tinytable tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 13 {
			return
		}
		ticker := strings.ToUpper(strings.TrimSpace(cells.Eq(3).Text()))
		if ticker == "" {
			return
		}
		tradeType := strings.TrimSpace(cells.Eq(7).Text())
		var dir signal.Direction
		switch {
		case strings.HasPrefix(tradeType, "P"):
			dir = signal.Bullish
		case strings.HasPrefix(tradeType, "S"):
			dir = signal.Bearish
		default:
			return
		}

		title := strings.TrimSpace(cells.Eq(6).Text())
		if !relevantTitle(title) {
			return
		}

		value := parseDollars(cells.Eq(12).Text())
		if value < s.minSize {
			return
		}

		filed, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(cells.Eq(1).Text()))
		if err != nil {
			filed = time.Now()
		}

		records = append(records, signal.Record{
			Ticker:           ticker,
			Source:           signal.SourceInsider,
			Direction:        dir,
			Confidence:       insiderConfidence(value, s.minSize, title),
			Time:             filed,
			Actor:            strings.TrimSpace(cells.Eq(5).Text()),
			Title:            title,
			TransactionValue: value,
		})
	})
	return records
}

// relevantTitle keeps the officers whose trades the strategy tracks.
func relevantTitle(title string) bool {
	t := strings.ToUpper(title)
	return strings.Contains(t, "CEO") || strings.Contains(t, "CFO") ||
		strings.Contains(t, "PRES") || strings.Contains(t, "COO") ||
		strings.Contains(t, "10%")
}

// insiderConfidence scales with transaction value relative to the floor,
// with a bump for the top officers, capped at 0.9.
func insiderConfidence(value, minSize float64, title string) float64 {
	base := 0.4
	if minSize > 0 {
		base += math.Min(0.3, (value/minSize)*0.05)
	}
	t := strings.ToUpper(title)
	if strings.Contains(t, "CEO") || strings.Contains(t, "CFO") {
		base += 0.15
	}
	return math.Min(0.9, base)
}

func parseDollars(s string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", "+", "", " ", "").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return math.Abs(v)
}
