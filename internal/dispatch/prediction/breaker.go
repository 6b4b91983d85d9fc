// internal/dispatch/prediction/breaker.go
package prediction

import (
	"sync"
	"time"

	"vendor-dispatch/internal/common/config"
	"vendor-dispatch/internal/common/logger"
	"vendor-dispatch/internal/common/metrics"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects the prediction service from overload. It is
// shared across all concurrent jobs hitting the one external dependency;
// state transitions are serialized under a single mutex.
//
// CLOSED: requests pass; consecutive failures up to failureThreshold
// trip the breaker to OPEN. OPEN: requests are denied without a network
// attempt until timeout has elapsed since the last failure, after which
// the next state query lazily moves to HALF_OPEN. HALF_OPEN: up to
// halfOpenRequests probes are admitted; successThreshold successes close
// the circuit, any failure reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	state            BreakerState
	failureCount     int
	successCount     int
	halfOpenInFlight int
	lastFailure      time.Time

	failureThreshold int
	timeout          time.Duration
	successThreshold int
	halfOpenRequests int

	logger logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewCircuitBreaker builds a breaker from config, filling zero values
// with the standard defaults.
func NewCircuitBreaker(cfg config.BreakerConfig, log logger.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		timeout:          time.Duration(cfg.Timeout) * time.Millisecond,
		successThreshold: cfg.SuccessThreshold,
		halfOpenRequests: cfg.HalfOpenRequests,
		logger:           log.WithFields(map[string]interface{}{"component": "circuit_breaker"}),
		now:              time.Now,
	}
	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.timeout <= 0 {
		cb.timeout = 30 * time.Second
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 3
	}
	if cb.halfOpenRequests <= 0 {
		cb.halfOpenRequests = 1
	}
	return cb
}

// Allow reports whether a request may proceed. In HALF_OPEN it also
// reserves a probe slot; the caller must follow up with RecordSuccess or
// RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refreshLocked()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenInFlight < cb.halfOpenRequests {
			cb.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful call and advances HALF_OPEN toward
// CLOSED.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		cb.halfOpenInFlight = 0
		if cb.successCount >= cb.successThreshold {
			cb.logger.Info("circuit breaker closing after recovery", map[string]interface{}{
				"successes": cb.successCount,
			})
			cb.resetLocked()
		}
	case StateClosed:
		cb.failureCount = 0
	}
	cb.publishStateLocked()
}

// RecordFailure notes a failed call. In CLOSED it counts toward the
// failure threshold; in HALF_OPEN it reopens the circuit immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.logger.Warn("circuit breaker opening", map[string]interface{}{
				"consecutiveFailures": cb.failureCount,
			})
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.logger.Warn("circuit breaker reopening after probe failure", nil)
		cb.state = StateOpen
		cb.successCount = 0
		cb.halfOpenInFlight = 0
	}
	cb.publishStateLocked()
}

// RecordCancellation releases a probe slot reserved by Allow when the
// caller abandoned the request before the service answered. A cancelled
// call says nothing about service health, so neither counter moves.
func (cb *CircuitBreaker) RecordCancellation() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}
}

// State returns the current state, applying the lazy OPEN→HALF_OPEN
// transition when the cool-down has elapsed.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refreshLocked()
	return cb.state
}

// refreshLocked applies time-based transitions. Callers hold cb.mu.
func (cb *CircuitBreaker) refreshLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.timeout {
		cb.logger.Info("circuit breaker entering half-open", map[string]interface{}{
			"coolDown": cb.timeout.String(),
		})
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.halfOpenInFlight = 0
		cb.publishStateLocked()
	}
}

func (cb *CircuitBreaker) resetLocked() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenInFlight = 0
}

func (cb *CircuitBreaker) publishStateLocked() {
	metrics.BreakerState.Set(float64(cb.state))
}
