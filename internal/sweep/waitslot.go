package sweep

import "sync"

// takeResult says what a readiness notification matched.
type takeResult int

const (
	takeNone     takeResult = iota
	takeParked              // the sweep was parked on the identifier; slot cleared
	takeInFlight            // the identifier is being fetched; a 202 reply is refetched
)

// waitSlot remembers the single identifier a paused sweep is parked on, plus
// the identifier whose fetch is in flight.
//
// The lock is never held across the fetch. A notification that arrives while
// the same identifier is being fetched sets ready, and the fetch that then
// receives 202 retries instead of parking.
type waitSlot struct {
	mu       sync.Mutex
	current  string
	inFlight string
	ready    bool
}

// begin marks identifier as being fetched.
func (s *waitSlot) begin(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = identifier
	s.ready = false
}

// end finishes the in-flight fetch. When preparing, the slot parks on
// identifier unless a notification arrived meanwhile, in which case end
// returns true and the caller fetches again.
func (s *waitSlot) end(identifier string, preparing bool) (refetch bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ready := s.ready
	s.inFlight = ""
	s.ready = false
	if !preparing {
		return false
	}
	if ready {
		return true
	}
	s.current = identifier
	return false
}

// take consumes a readiness notification for identifier.
func (s *waitSlot) take(identifier string) takeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.current != "" && s.current == identifier:
		s.current = ""
		return takeParked
	case s.inFlight != "" && s.inFlight == identifier:
		s.ready = true
		return takeInFlight
	default:
		return takeNone
	}
}

// clear empties the slot and returns the identifier it held, if any.
func (s *waitSlot) clear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.current
	s.current = ""
	return cur
}

// peek reads the parked identifier.
func (s *waitSlot) peek() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
