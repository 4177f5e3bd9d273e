package services

import (
	"sync"
	"time"

	"payment-router/internal/models"
)

// CircuitBreaker guards one processor. It opens after a run of consecutive
// failures and closes again once the cooldown has elapsed since the last
// failure. There is no half-open trial state: the first check after the
// cooldown reports closed optimistically.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	open        bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.threshold {
		cb.open = true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.open = false
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.heal()
	return cb.open
}

// State returns a snapshot for status reporting.
func (cb *CircuitBreaker) State() models.BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.heal()
	snapshot := models.BreakerSnapshot{
		Open:                cb.open,
		ConsecutiveFailures: cb.failures,
	}
	if !cb.lastFailure.IsZero() {
		snapshot.LastFailureAt = cb.lastFailure.UnixMilli()
	}
	return snapshot
}

// heal closes the breaker once the cooldown has passed. Caller holds cb.mu.
func (cb *CircuitBreaker) heal() {
	if cb.open && time.Since(cb.lastFailure) > cb.cooldown {
		cb.open = false
		cb.failures = 0
	}
}
