package resilience

import (
	"time"

	"github.com/sony/gobreaker"
)

// GobreakerAdapter wraps sony/gobreaker behind the same narrow interface
// used by CircuitBreaker (a single Call method), so call sites can pick
// either implementation without changing their own code. The quality
// judge's per-backend breaker uses this adapter; the hand-rolled
// CircuitBreaker has no call site outside its own tests.
type GobreakerAdapter struct {
	cb *gobreaker.CircuitBreaker
}

// NewGobreakerAdapter builds an adapter named name that opens once
// consecutiveFailures in a row have occurred, staying open for
// resetTimeout before allowing a half-open probe.
func NewGobreakerAdapter(name string, consecutiveFailures uint32, resetTimeout time.Duration) *GobreakerAdapter {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: resetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
	return &GobreakerAdapter{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Call executes fn guarded by the underlying gobreaker instance.
func (a *GobreakerAdapter) Call(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State returns the underlying breaker's state name ("closed", "half-open",
// "open").
func (a *GobreakerAdapter) State() string {
	return a.cb.State().String()
}
