package resilience

import (
	"time"
)

// StateVersion is the current state schema version.
const StateVersion = 2

// State is the circuit state shared by every process using the same state
// directory, keyed by host.
type State struct {
	Version   int                             `json:"version"`
	Circuits  map[string]*CircuitBreakerState `json:"circuits"`
	UpdatedAt time.Time                       `json:"updated_at"`
}

// Circuit returns the state for host, creating a closed one if needed.
func (s *State) Circuit(host string) *CircuitBreakerState {
	if s.Circuits == nil {
		s.Circuits = make(map[string]*CircuitBreakerState)
	}
	c, ok := s.Circuits[host]
	if !ok {
		c = &CircuitBreakerState{State: CircuitClosed}
		s.Circuits[host] = c
	}
	return c
}

// Lookup returns the state for host without creating it.
func (s *State) Lookup(host string) (*CircuitBreakerState, bool) {
	c, ok := s.Circuits[host]
	return c, ok
}

// CircuitBreakerState tracks one host's circuit.
type CircuitBreakerState struct {
	// State is "closed", "open" or "half_open".
	State string `json:"state"`

	// Failures counts consecutive failures while closed.
	Failures int `json:"failures"`

	// Successes counts consecutive successes while half-open.
	Successes int `json:"successes"`

	// HalfOpenAttempts is the number of trial requests in flight.
	HalfOpenAttempts int `json:"half_open_attempts,omitempty"`

	// HalfOpenLastAttemptAt is when the last trial request was reserved.
	HalfOpenLastAttemptAt time.Time `json:"half_open_last_attempt_at"`

	LastFailureAt time.Time `json:"last_failure_at"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Circuit breaker states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

func (c *CircuitBreakerState) IsClosed() bool {
	return c.State == "" || c.State == CircuitClosed
}

func (c *CircuitBreakerState) IsOpen() bool {
	return c.State == CircuitOpen
}

func (c *CircuitBreakerState) IsHalfOpen() bool {
	return c.State == CircuitHalfOpen
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Circuits:  make(map[string]*CircuitBreakerState),
		UpdatedAt: time.Now(),
	}
}
