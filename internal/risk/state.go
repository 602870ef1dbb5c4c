package risk

import "sync"

// ExitState tracks the best observed price and profit percentage for one
// open position. BestPLPct is monotonically non-decreasing while the
// symbol stays tracked; trailing-stop comparisons always run against this
// stored peak, never the previous cycle's value.
type ExitState struct {
	BestPrice float64
	BestPLPct float64
}

// StateStore is the keyed store (symbol -> ExitState) owned exclusively by
// the exit engine. No other component reads or writes it.
type StateStore struct {
	mu     sync.Mutex
	states map[string]ExitState
}

// NewStateStore builds an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]ExitState)}
}

// Get returns the tracked state for symbol, if any.
func (s *StateStore) Get(symbol string) (ExitState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	return st, ok
}

// Put stores the state for symbol.
func (s *StateStore) Put(symbol string, st ExitState) {
	s.mu.Lock()
	s.states[symbol] = st
	s.mu.Unlock()
}

// Delete removes tracking for symbol so a re-opened position starts fresh.
func (s *StateStore) Delete(symbol string) {
	s.mu.Lock()
	delete(s.states, symbol)
	s.mu.Unlock()
}

// Len reports how many symbols are tracked.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Snapshot returns a copy of all tracked states.
func (s *StateStore) Snapshot() map[string]ExitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ExitState, len(s.states))
	for sym, st := range s.states {
		out[sym] = st
	}
	return out
}
