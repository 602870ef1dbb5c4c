package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Cikle/Alpatrader/internal/signal"
)

func screenerRow(ticker, insider, title, tradeType, value string) string {
	cells := []string{
		"X", "2024-05-10 16:30:00", "2024-05-09", ticker, "Some Co",
		insider, title, tradeType, "$10.00", "1,000", "50,000", "+2%", value,
	}
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		fmt.Fprintf(&b, "<td>%s</td>", c)
	}
	b.WriteString("</tr>")
	return b.String()
}

func screenerPage(rows ...string) string {
	return `<html><body><table class="tinytable"><tbody>` +
		strings.Join(rows, "") + `</tbody></table></body></html>`
}

func TestInsiderFetchParsesScreener(t *testing.T) {
	page := screenerPage(
		screenerRow("AAPL", "Cook Timothy", "CEO", "P - Purchase", "$500,000"),
		screenerRow("MSFT", "Doe Jane", "CFO", "S - Sale", "$200,000"),
		screenerRow("GME", "Smith Bob", "Director", "P - Purchase", "$900,000"), // irrelevant title
		screenerRow("AMD", "Su Lisa", "CEO", "P - Purchase", "$50,000"),         // below floor
		screenerRow("NVDA", "Huang Jensen", "CEO", "A - Award", "$300,000"),     // not a trade
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	s := NewInsider(srv.URL, 100_000, nil, zerolog.Nop())
	records, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (title, floor, and trade-type filters)", len(records))
	}

	aapl := records[0]
	if aapl.Ticker != "AAPL" || aapl.Direction != signal.Bullish {
		t.Fatalf("first record = %+v, want bullish AAPL", aapl)
	}
	// 0.4 base + 0.25 value scaling (capped contribution) + 0.15 CEO bump.
	if aapl.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want 0.8", aapl.Confidence)
	}
	if aapl.TransactionValue != 500_000 || aapl.Actor != "Cook Timothy" {
		t.Fatalf("record fields = %+v", aapl)
	}

	msft := records[1]
	if msft.Direction != signal.Bearish {
		t.Fatalf("sale must map to bearish, got %s", msft.Direction)
	}
}

func TestInsiderFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewInsider(srv.URL, 100_000, nil, zerolog.Nop())
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when the screener is down and no cache exists")
	}
}

func TestInsiderConfidenceCap(t *testing.T) {
	// Enormous trade by a CEO still caps at 0.9.
	if got := insiderConfidence(50_000_000, 100_000, "CEO"); got != 0.9 {
		t.Fatalf("confidence = %v, want capped 0.9", got)
	}
	// Non-officer title gets no bump.
	if got := insiderConfidence(100_000, 100_000, "Pres"); got != 0.45 {
		t.Fatalf("confidence = %v, want 0.45", got)
	}
}

func TestParseDollars(t *testing.T) {
	cases := map[string]float64{
		"$1,234,567": 1_234_567,
		"+$500,000":  500_000,
		"-$250,000":  250_000,
		"garbage":    0,
	}
	for in, want := range cases {
		if got := parseDollars(in); got != want {
			t.Fatalf("parseDollars(%q) = %v, want %v", in, got, want)
		}
	}
}
