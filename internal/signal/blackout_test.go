package signal

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestGateWindowBounds(t *testing.T) {
	anchor := day("2024-03-19")
	g := NewGate(true, 10, []time.Time{anchor})

	cases := []struct {
		now  string
		want bool
	}{
		{"2024-03-08", false}, // day before window opens
		{"2024-03-09", true},  // first day of window
		{"2024-03-15", true},
		{"2024-03-19", true},  // anchor day itself
		{"2024-03-20", false}, // day after anchor
	}
	for _, c := range cases {
		if got := g.Blackout(day(c.now)); got != c.want {
			t.Fatalf("Blackout(%s) = %v, want %v", c.now, got, c.want)
		}
	}
}

func TestGateDisabled(t *testing.T) {
	g := NewGate(false, 10, []time.Time{day("2024-03-19")})
	if g.Blackout(day("2024-03-15")) {
		t.Fatal("disabled gate must never report a blackout")
	}
}

func TestGateNilSafe(t *testing.T) {
	var g *Gate
	if g.Blackout(time.Now()) {
		t.Fatal("nil gate must report no blackout")
	}
}

func TestFOMCCalendarParses(t *testing.T) {
	anchors := FOMCCalendar()
	if len(anchors) != 32 {
		t.Fatalf("calendar has %d anchors, want 32", len(anchors))
	}
	for _, a := range anchors {
		if a.IsZero() {
			t.Fatal("zero anchor in calendar")
		}
	}
}
