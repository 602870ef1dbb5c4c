// Package sources hosts the signal feed implementations: insider filings,
// legislator trade disclosures, and news sentiment. Each feed produces a
// finite, restartable batch of normalized records per fetch.
package sources

import (
	"context"

	"github.com/Cikle/Alpatrader/internal/signal"
)

// Source produces one finite batch of records per call. Implementations
// are independently cached and rate limited; a failed fetch yields an
// error the engine degrades to "no records from that source".
type Source interface {
	Fetch(ctx context.Context) ([]signal.Record, error)
	Kind() signal.SourceKind
}
