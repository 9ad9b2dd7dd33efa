package resilience

import (
	"time"
)

// CircuitBreaker tracks consecutive failures per host and stops requests to
// a host whose circuit is open. State lives in a Store so that concurrent
// processes agree on it.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	store  *Store
	now    func() time.Time
}

// NewCircuitBreaker creates a circuit breaker. Zero config fields take
// their defaults.
func NewCircuitBreaker(store *Store, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		config: config.withDefaults(),
		store:  store,
		now:    time.Now,
	}
}

// Config returns the effective configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}

// Allow reports whether a request to host may proceed. An open circuit
// whose timeout has passed moves to half-open and reserves a trial request.
// Store errors allow the request.
func (cb *CircuitBreaker) Allow(host string) (bool, error) {
	state, err := cb.store.Load()
	if err != nil {
		return true, nil
	}
	c, ok := state.Lookup(host)
	if !ok || c.IsClosed() {
		return true, nil
	}

	now := cb.now()
	if c.IsOpen() && now.Sub(c.OpenedAt) < cb.config.OpenTimeout {
		return false, nil
	}

	var allowed bool
	err = cb.store.Update(func(s *State) error {
		c := s.Circuit(host)
		if c.IsOpen() {
			if now.Sub(c.OpenedAt) < cb.config.OpenTimeout {
				return nil
			}
			c.State = CircuitHalfOpen
			c.Successes = 0
			c.Failures = 0
			c.HalfOpenAttempts = 0
		}
		if c.IsClosed() {
			allowed = true
			return nil
		}

		if cb.staleAttempts(c, now) {
			c.HalfOpenAttempts = 0
		}
		if cb.config.HalfOpenMaxRequests > 0 && c.HalfOpenAttempts >= cb.config.HalfOpenMaxRequests {
			return nil
		}
		c.HalfOpenAttempts++
		c.HalfOpenLastAttemptAt = now
		s.UpdatedAt = now
		allowed = true
		return nil
	})
	if err != nil {
		return true, nil
	}
	return allowed, nil
}

// staleAttempts reports whether every half-open slot is taken by trial
// requests that have not reported back within StaleAttemptTimeout.
func (cb *CircuitBreaker) staleAttempts(c *CircuitBreakerState, now time.Time) bool {
	if cb.config.HalfOpenMaxRequests <= 0 || c.HalfOpenAttempts < cb.config.HalfOpenMaxRequests {
		return false
	}
	if c.HalfOpenLastAttemptAt.IsZero() {
		return false
	}
	return now.Sub(c.HalfOpenLastAttemptAt) >= cb.config.StaleAttemptTimeout
}

// RecordSuccess records a request to host that got an answer.
func (cb *CircuitBreaker) RecordSuccess(host string) error {
	return cb.store.Update(func(s *State) error {
		c, ok := s.Lookup(host)
		if !ok {
			return nil
		}
		switch {
		case c.IsHalfOpen():
			if c.HalfOpenAttempts > 0 {
				c.HalfOpenAttempts--
			}
			c.Successes++
			if c.Successes >= cb.config.SuccessThreshold {
				*c = CircuitBreakerState{State: CircuitClosed, LastFailureAt: c.LastFailureAt}
			}
		case c.IsClosed():
			c.Failures = 0
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}

// Release returns a half-open slot reserved by Allow for a request
// that ended without an outcome, such as one its caller cancelled.
func (cb *CircuitBreaker) Release(host string) error {
	return cb.store.Update(func(s *State) error {
		c, ok := s.Lookup(host)
		if !ok || !c.IsHalfOpen() || c.HalfOpenAttempts == 0 {
			return nil
		}
		c.HalfOpenAttempts--
		s.UpdatedAt = cb.now()
		return nil
	})
}

// RecordFailure records a failed request to host.
func (cb *CircuitBreaker) RecordFailure(host string) error {
	return cb.store.Update(func(s *State) error {
		now := cb.now()
		c := s.Circuit(host)
		c.LastFailureAt = now

		switch {
		case c.IsClosed():
			c.Failures++
			if c.Failures >= cb.config.FailureThreshold {
				c.State = CircuitOpen
				c.OpenedAt = now
			}
		case c.IsHalfOpen():
			c.State = CircuitOpen
			c.OpenedAt = now
			c.Successes = 0
			c.HalfOpenAttempts = 0
			c.HalfOpenLastAttemptAt = time.Time{}
		}
		s.UpdatedAt = now
		return nil
	})
}

// State returns host's circuit state. An open circuit past its timeout is
// reported as half-open.
func (cb *CircuitBreaker) State(host string) (string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return CircuitClosed, err
	}
	c, ok := state.Lookup(host)
	if !ok {
		return CircuitClosed, nil
	}
	return cb.report(c), nil
}

// Hosts returns the state of every host with a recorded circuit.
func (cb *CircuitBreaker) Hosts() (map[string]string, error) {
	state, err := cb.store.Load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(state.Circuits))
	for host, c := range state.Circuits {
		out[host] = cb.report(c)
	}
	return out, nil
}

func (cb *CircuitBreaker) report(c *CircuitBreakerState) string {
	switch {
	case c.IsClosed():
		return CircuitClosed
	case c.IsOpen() && cb.now().Sub(c.OpenedAt) >= cb.config.OpenTimeout:
		return CircuitHalfOpen
	}
	return c.State
}

// Reset closes host's circuit. An empty host resets every circuit.
func (cb *CircuitBreaker) Reset(host string) error {
	return cb.store.Update(func(s *State) error {
		if host == "" {
			s.Circuits = make(map[string]*CircuitBreakerState)
		} else {
			delete(s.Circuits, host)
		}
		s.UpdatedAt = cb.now()
		return nil
	})
}
