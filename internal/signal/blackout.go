package signal

import "time"

// Gate suppresses new entries inside macro-announcement blackout windows.
// Each anchor date defines a window [anchor - Days, anchor].
type Gate struct {
	enabled bool
	days    int
	anchors []time.Time
}

// NewGate builds a gate over the supplied anchor dates. A disabled gate
// never reports a blackout.
func NewGate(enabled bool, windowDays int, anchors []time.Time) *Gate {
	if windowDays <= 0 {
		windowDays = 10
	}
	return &Gate{enabled: enabled, days: windowDays, anchors: anchors}
}

// Blackout reports whether now falls inside any configured window.
func (g *Gate) Blackout(now time.Time) bool {
	if g == nil || !g.enabled {
		return false
	}
	for _, anchor := range g.anchors {
		start := anchor.AddDate(0, 0, -g.days)
		if !now.Before(start) && !now.After(anchor) {
			return true
		}
	}
	return false
}

// FOMCCalendar returns scheduled FOMC meeting dates used as blackout anchors.
func FOMCCalendar() []time.Time {
	dates := []string{
		"2023-01-31", "2023-03-21", "2023-05-02", "2023-06-13",
		"2023-07-25", "2023-09-19", "2023-10-31", "2023-12-12",
		"2024-01-30", "2024-03-19", "2024-04-30", "2024-06-11",
		"2024-07-30", "2024-09-17", "2024-11-06", "2024-12-17",
		"2025-01-28", "2025-03-18", "2025-04-29", "2025-06-17",
		"2025-07-29", "2025-09-16", "2025-10-28", "2025-12-09",
		"2026-01-27", "2026-03-17", "2026-04-28", "2026-06-16",
		"2026-07-28", "2026-09-15", "2026-10-27", "2026-12-08",
	}
	anchors := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		anchors = append(anchors, t)
	}
	return anchors
}
