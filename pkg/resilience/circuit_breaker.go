// Package resilience implements failure-rate circuit breaking for
// external-dependency calls: a percentage-threshold circuit breaker, plus
// an adapter over sony/gobreaker (used by the quality judge's backend
// calls) for call sites that want the ecosystem implementation instead of
// the hand-rolled one.
package resilience

import (
	"sync"
	"time"
)

// CircuitState is one of the three states a CircuitBreaker can be in.
type CircuitState int

const (
	CircuitStateClosed CircuitState = iota
	CircuitStateOpen
	CircuitStateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitStateOpen:
		return "open"
	case CircuitStateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// minRequestsForEvaluation is the sample size below which the failure rate
// is considered statistically insignificant and the breaker stays closed.
const minRequestsForEvaluation = 5

// CircuitBreaker trips to open when the failure rate over the requests
// observed since the last reset reaches failureThreshold (0..1), after at
// least minRequestsForEvaluation calls. After resetTimeout elapses in the
// open state, the next call is let through as a half-open probe; success
// closes the circuit again, failure re-opens it.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold float64
	resetTimeout     time.Duration

	state       CircuitState
	total       int
	failures    int
	openedAt    time.Time
}

// NewCircuitBreaker constructs a closed breaker named name.
func NewCircuitBreaker(name string, failureThreshold float64, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitStateClosed,
	}
}

func (cb *CircuitBreaker) GetName() string                  { return cb.name }
func (cb *CircuitBreaker) GetFailureThreshold() float64      { return cb.failureThreshold }
func (cb *CircuitBreaker) GetResetTimeout() time.Duration    { return cb.resetTimeout }

// GetState returns the breaker's current state, accounting for an open
// breaker whose reset timeout has already elapsed (reported as half-open,
// matching the "next call probes" semantics callers expect once this is
// exposed).
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	if cb.state == CircuitStateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		return CircuitStateHalfOpen
	}
	return cb.state
}

// GetFailureRate returns the observed failure rate over the current
// evaluation window (0 if no requests have been observed yet).
func (cb *CircuitBreaker) GetFailureRate() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.total == 0 {
		return 0
	}
	return float64(cb.failures) / float64(cb.total)
}

// ErrCircuitOpen is returned by Call when the breaker is open and no probe
// is due yet.
type ErrCircuitOpen struct{ Name string }

func (e *ErrCircuitOpen) Error() string {
	return "circuit breaker " + e.Name + " is open"
}

// Call executes fn guarded by the breaker. If the breaker is open and the
// reset timeout has not elapsed, fn is not invoked and ErrCircuitOpen is
// returned.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	state := cb.stateLocked()
	if state == CircuitStateOpen {
		cb.mu.Unlock()
		return &ErrCircuitOpen{Name: cb.name}
	}
	if state == CircuitStateHalfOpen {
		cb.state = CircuitStateHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitStateHalfOpen {
		if err == nil {
			cb.reset()
		} else {
			cb.trip()
		}
		return err
	}

	cb.total++
	if err != nil {
		cb.failures++
	}
	if cb.total >= minRequestsForEvaluation {
		rate := float64(cb.failures) / float64(cb.total)
		if rate >= cb.failureThreshold {
			cb.trip()
		}
	}
	return err
}

func (cb *CircuitBreaker) trip() {
	cb.state = CircuitStateOpen
	cb.openedAt = time.Now()
}

func (cb *CircuitBreaker) reset() {
	cb.state = CircuitStateClosed
	cb.total = 0
	cb.failures = 0
}
