package strategy

import (
	"testing"

	"github.com/Cikle/Alpatrader/internal/signal"
)

func modeDecision(src signal.SourceKind, dir signal.Direction) signal.Decision {
	return signal.Decision{
		Ticker:    "AAPL",
		Direction: dir,
		Sources:   []signal.Record{{Source: src, Direction: dir}},
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"inverse", "Normal", " DISABLED "} {
		if _, err := ParseMode(s); err != nil {
			t.Fatalf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("backwards"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestApplyInverseFlipsDirection(t *testing.T) {
	m := Modes{signal.SourceInsider: ModeInverse}
	d, ok := m.Apply(modeDecision(signal.SourceInsider, signal.Bullish))
	if !ok || d.Direction != signal.Bearish {
		t.Fatalf("got %s ok=%v, want bearish (inverted)", d.Direction, ok)
	}
}

func TestApplyNormalKeepsDirection(t *testing.T) {
	m := Modes{signal.SourceCongress: ModeNormal}
	d, ok := m.Apply(modeDecision(signal.SourceCongress, signal.Bearish))
	if !ok || d.Direction != signal.Bearish {
		t.Fatalf("got %s ok=%v, want bearish unchanged", d.Direction, ok)
	}
}

func TestApplyDisabledDrops(t *testing.T) {
	m := Modes{signal.SourceNews: ModeDisabled}
	if _, ok := m.Apply(modeDecision(signal.SourceNews, signal.Bullish)); ok {
		t.Fatal("disabled source must drop the decision")
	}
}

func TestApplyNeutralDropped(t *testing.T) {
	m := Modes{signal.SourceInsider: ModeInverse}
	if _, ok := m.Apply(modeDecision(signal.SourceInsider, signal.Neutral)); ok {
		t.Fatal("neutral decisions are not actionable")
	}
}

func TestApplyFollowsPrimarySource(t *testing.T) {
	// Corroborated decision: news primary, insider secondary. News mode
	// governs even though insider is disabled.
	m := Modes{signal.SourceNews: ModeInverse, signal.SourceInsider: ModeDisabled}
	d := signal.Decision{
		Ticker:    "TSLA",
		Direction: signal.Bullish,
		Sources: []signal.Record{
			{Source: signal.SourceNews, Direction: signal.Bullish},
			{Source: signal.SourceInsider, Direction: signal.Bullish},
		},
	}
	got, ok := m.Apply(d)
	if !ok || got.Direction != signal.Bearish {
		t.Fatalf("got %s ok=%v, want bearish via news mode", got.Direction, ok)
	}
}
