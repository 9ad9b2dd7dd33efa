package resilience

import (
	"time"
)

// CircuitBreakerConfig configures the per-host circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes needed to close.
	// Default: 2
	SuccessThreshold int

	// OpenTimeout is how long a circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxRequests caps concurrent trial requests. Zero means no cap.
	// Default: 1
	HalfOpenMaxRequests int

	// StaleAttemptTimeout is how long a reserved trial request may stay
	// unanswered before it is assumed lost with its process.
	// Default: 2 minutes
	StaleAttemptTimeout time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults listed on
// CircuitBreakerConfig.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
		StaleAttemptTimeout: 2 * time.Minute,
	}
}

func (cb CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	d := DefaultCircuitBreakerConfig()
	if cb.FailureThreshold <= 0 {
		cb.FailureThreshold = d.FailureThreshold
	}
	if cb.SuccessThreshold <= 0 {
		cb.SuccessThreshold = d.SuccessThreshold
	}
	if cb.OpenTimeout <= 0 {
		cb.OpenTimeout = d.OpenTimeout
	}
	if cb.StaleAttemptTimeout <= 0 {
		cb.StaleAttemptTimeout = d.StaleAttemptTimeout
	}
	return cb
}

func (cb CircuitBreakerConfig) WithFailureThreshold(n int) CircuitBreakerConfig {
	cb.FailureThreshold = n
	return cb
}

func (cb CircuitBreakerConfig) WithSuccessThreshold(n int) CircuitBreakerConfig {
	cb.SuccessThreshold = n
	return cb
}

func (cb CircuitBreakerConfig) WithOpenTimeout(d time.Duration) CircuitBreakerConfig {
	cb.OpenTimeout = d
	return cb
}

func (cb CircuitBreakerConfig) WithHalfOpenMaxRequests(n int) CircuitBreakerConfig {
	cb.HalfOpenMaxRequests = n
	return cb
}
