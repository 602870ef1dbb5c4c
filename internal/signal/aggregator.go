package signal

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/metrics"
)

// Multipliers scales position size per signal tier.
type Multipliers struct {
	Strong   float64 // strong news corroborated by insider/congress
	Congress float64 // congress-only
	Insider  float64 // insider-only
}

// Aggregator fuses per-ticker records from all sources into at most one
// decision per ticker per cycle, honoring the fixed tier hierarchy:
// strong news + corroboration > congress-only > insider-only.
type Aggregator struct {
	mult Multipliers
	gate *Gate
	log  zerolog.Logger
}

// NewAggregator builds an aggregator with the configured tier multipliers
// and blackout gate.
func NewAggregator(mult Multipliers, gate *Gate, log zerolog.Logger) *Aggregator {
	return &Aggregator{mult: mult, gate: gate, log: log}
}

// Aggregate fuses the three source collections into ranked decisions. The
// news slice must already be filtered to strong records. Returns nil when
// a blackout window is active: a hard cutoff, not a per-ticker skip.
// Output is ordered by (SourceCount, Confidence) descending so the highest
// conviction decisions receive capital first.
func (a *Aggregator) Aggregate(now time.Time, insider, congress, news []Record) []Decision {
	if a.gate.Blackout(now) {
		a.log.Info().Time("now", now).Msg("blackout window active, skipping signal processing")
		return nil
	}

	tickers := make(map[string]struct{})
	for _, r := range insider {
		tickers[r.Ticker] = struct{}{}
	}
	for _, r := range congress {
		tickers[r.Ticker] = struct{}{}
	}
	for _, r := range news {
		if r.Ticker != MarketTicker {
			tickers[r.Ticker] = struct{}{}
		}
	}

	decisions := make([]Decision, 0, len(tickers))
	for ticker := range tickers {
		d, ok := a.bestSignal(ticker, filterTicker(insider, ticker), filterTicker(congress, ticker), filterTicker(news, ticker))
		if !ok {
			continue
		}
		decisions = append(decisions, d)
	}

	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].SourceCount != decisions[j].SourceCount {
			return decisions[i].SourceCount > decisions[j].SourceCount
		}
		if decisions[i].Confidence != decisions[j].Confidence {
			return decisions[i].Confidence > decisions[j].Confidence
		}
		return decisions[i].Ticker < decisions[j].Ticker
	})

	a.log.Info().Int("decisions", len(decisions)).Msg("aggregated signals")
	return decisions
}

// bestSignal applies the tier hierarchy for one ticker.
func (a *Aggregator) bestSignal(ticker string, insider, congress, news []Record) (Decision, bool) {
	if d, ok := a.corroboratedNews(ticker, insider, congress, news); ok {
		metrics.DecisionsTotal.WithLabelValues("strong_news").Inc()
		return d, true
	}
	if best, ok := bestRecord(congress); ok {
		metrics.DecisionsTotal.WithLabelValues("congress_only").Inc()
		return Decision{
			Ticker:             ticker,
			Direction:          best.Direction,
			Confidence:         best.SaneConfidence(),
			PositionMultiplier: a.mult.Congress,
			SourceCount:        1,
			Sources:            []Record{best},
			Description:        fmt.Sprintf("Congress trade by %s", actorOrUnknown(best)),
		}, true
	}
	if best, ok := bestRecord(insider); ok {
		metrics.DecisionsTotal.WithLabelValues("insider_only").Inc()
		return Decision{
			Ticker:             ticker,
			Direction:          best.Direction,
			Confidence:         best.SaneConfidence(),
			PositionMultiplier: a.mult.Insider,
			SourceCount:        1,
			Sources:            []Record{best},
			Description:        fmt.Sprintf("Insider trade by %s (%s)", actorOrUnknown(best), titleOrUnknown(best)),
		}, true
	}
	return Decision{}, false
}

// corroboratedNews looks for the Tier-1 pairing: a strong news record plus
// an insider or congress record sharing its exact direction. Among candidate
// pairs the higher summed confidence wins; equal sums prefer congress over
// insider as the secondary source, then the lexically smaller actor name,
// then the earlier record. The tie-break is deterministic regardless of
// input ordering.
func (a *Aggregator) corroboratedNews(ticker string, insider, congress, news []Record) (Decision, bool) {
	var (
		found    bool
		bestNews Record
		bestSec  Record
		bestSum  float64
	)

	secondary := make([]Record, 0, len(insider)+len(congress))
	secondary = append(secondary, insider...)
	secondary = append(secondary, congress...)

	for _, n := range news {
		for _, s := range secondary {
			if s.Direction != n.Direction {
				continue
			}
			sum := n.SaneConfidence() + s.SaneConfidence()
			if !found || sum > bestSum || (sum == bestSum && pairPreferred(s, bestSec)) {
				found = true
				bestNews, bestSec, bestSum = n, s, sum
			}
		}
	}
	if !found {
		return Decision{}, false
	}

	corroborator := "Insider"
	if bestSec.Source == SourceCongress {
		corroborator = "Congress"
	}
	return Decision{
		Ticker:             ticker,
		Direction:          bestNews.Direction,
		Confidence:         (bestNews.SaneConfidence() + bestSec.SaneConfidence()) / 2,
		PositionMultiplier: a.mult.Strong,
		SourceCount:        2,
		Sources:            []Record{bestNews, bestSec},
		Description:        fmt.Sprintf("Strong news signal + %s trade", corroborator),
	}, true
}

// pairPreferred reports whether candidate beats incumbent as the secondary
// record when summed confidences tie.
func pairPreferred(candidate, incumbent Record) bool {
	if candidate.Source != incumbent.Source {
		return candidate.Source == SourceCongress
	}
	if candidate.Actor != incumbent.Actor {
		return candidate.Actor < incumbent.Actor
	}
	return candidate.Time.Before(incumbent.Time)
}

// bestRecord picks the highest-confidence record, breaking ties by
// earlier timestamp then actor name.
func bestRecord(records []Record) (Record, bool) {
	var (
		best  Record
		found bool
	)
	for _, r := range records {
		if !found {
			best, found = r, true
			continue
		}
		if r.SaneConfidence() > best.SaneConfidence() {
			best = r
			continue
		}
		if r.SaneConfidence() == best.SaneConfidence() {
			if r.Time.Before(best.Time) || (r.Time.Equal(best.Time) && r.Actor < best.Actor) {
				best = r
			}
		}
	}
	return best, found
}

func filterTicker(records []Record, ticker string) []Record {
	var out []Record
	for _, r := range records {
		if r.Ticker == ticker {
			out = append(out, r)
		}
	}
	return out
}

func actorOrUnknown(r Record) string {
	if r.Actor == "" {
		return "Unknown"
	}
	return r.Actor
}

func titleOrUnknown(r Record) string {
	if r.Title == "" {
		return "Unknown"
	}
	return r.Title
}

// Strong filters news records down to those meeting the strong confidence
// threshold, excluding market-wide sentiment rows.
func Strong(news []Record, threshold float64) []Record {
	var out []Record
	for _, r := range news {
		if r.Ticker == MarketTicker {
			continue
		}
		if r.SaneConfidence() >= threshold {
			out = append(out, r)
		}
	}
	return out
}
