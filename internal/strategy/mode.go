// Package strategy converts aggregated decisions into order intents:
// per-source execution modes, position sizing/reconciliation, and the
// options overlay selector.
package strategy

import (
	"fmt"
	"strings"

	"github.com/Cikle/Alpatrader/internal/signal"
)

// Mode selects how decisions from a source are executed. The aggregator
// itself never inverts; inversion happens here, downstream.
type Mode string

const (
	// ModeNormal trades in the signal's direction.
	ModeNormal Mode = "normal"
	// ModeInverse fades the signal, trading the opposite direction.
	ModeInverse Mode = "inverse"
	// ModeDisabled drops decisions from the source entirely.
	ModeDisabled Mode = "disabled"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeNormal:
		return ModeNormal, nil
	case ModeInverse:
		return ModeInverse, nil
	case ModeDisabled:
		return ModeDisabled, nil
	default:
		return "", fmt.Errorf("unknown strategy mode %q", s)
	}
}

// Modes maps each source to its execution mode. A decision follows the
// mode of its primary source.
type Modes map[signal.SourceKind]Mode

// Apply resolves the execution direction for a decision. The second return
// is false when the decision must be dropped (source disabled, or no
// actionable direction).
func (m Modes) Apply(d signal.Decision) (signal.Decision, bool) {
	mode, ok := m[d.Primary().Source]
	if !ok {
		mode = ModeNormal
	}
	switch mode {
	case ModeDisabled:
		return signal.Decision{}, false
	case ModeInverse:
		d.Direction = d.Direction.Inverse()
	}
	if d.Direction == signal.Neutral {
		return signal.Decision{}, false
	}
	return d, true
}
