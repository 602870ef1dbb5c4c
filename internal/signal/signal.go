// Package signal standardizes payloads shared between data sources and the aggregation layer.
package signal

import (
	"math"
	"time"
)

// Direction expresses the bias a signal carries for a ticker.
type Direction string

const (
	// Bullish indicates a long bias.
	Bullish Direction = "BULLISH"
	// Bearish indicates a short bias.
	Bearish Direction = "BEARISH"
	// Neutral indicates no actionable bias.
	Neutral Direction = "NEUTRAL"
)

// Inverse returns the opposite directional bias; Neutral stays Neutral.
func (d Direction) Inverse() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return d
	}
}

// SourceKind identifies which feed produced a record.
type SourceKind string

const (
	// SourceInsider marks records derived from corporate insider filings.
	SourceInsider SourceKind = "insider"
	// SourceCongress marks records derived from legislator trade disclosures.
	SourceCongress SourceKind = "congress"
	// SourceNews marks records derived from news sentiment.
	SourceNews SourceKind = "news"
)

// MarketTicker is the pseudo-ticker news feeds use for market-wide sentiment.
// Records carrying it never produce per-ticker decisions.
const MarketTicker = "MARKET"

// Record is one normalized signal produced by a source. Immutable once built.
type Record struct {
	Ticker           string
	Source           SourceKind
	Direction        Direction
	Confidence       float64
	Time             time.Time
	Actor            string  // insider name or politician
	Title            string  // insider job title, empty for other sources
	TransactionValue float64 // reported filing/trade value in USD
	Headline         string  // news only
}

// SaneConfidence returns the record confidence clamped to [0,1]; NaN or
// out-of-range values collapse to 0 so a malformed record can never win
// tier selection.
func (r Record) SaneConfidence() float64 {
	c := r.Confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return 0
	}
	return c
}

// Decision is the single fused trading instruction for a ticker in one cycle.
type Decision struct {
	Ticker             string
	Direction          Direction
	Confidence         float64
	PositionMultiplier float64
	SourceCount        int
	Sources            []Record
	Description        string
}

// Primary returns the record that drove the decision (the news record for
// corroborated decisions, the single record otherwise).
func (d Decision) Primary() Record {
	if len(d.Sources) == 0 {
		return Record{}
	}
	return d.Sources[0]
}
