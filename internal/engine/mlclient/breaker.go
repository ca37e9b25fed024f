// internal/engine/mlclient/breaker.go
package mlclient

import (
	"sync"
	"time"

	"vendor-ranking-workers/internal/common/metrics"
)

// State is the circuit breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// BreakerConfig tunes the circuit breaker state machine.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	HalfOpenRequests int           `mapstructure:"half_open_requests"`
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 3,
	}
}

// BreakerStats is an operational snapshot for inspection and logging.
type BreakerStats struct {
	State            State     `json:"state"`
	FailureCount     int       `json:"failureCount"`
	SuccessCount     int       `json:"successCount"`
	HalfOpenInFlight int       `json:"halfOpenInFlight"`
	LastFailure      time.Time `json:"lastFailure"`
}

// CircuitBreaker guards one ML endpoint. It is shared across every vendor
// evaluation in flight, so all state transitions hold the mutex. Time is
// read through an injectable clock so transitions stay deterministic in
// tests.
type CircuitBreaker struct {
	cfg   BreakerConfig
	clock func() time.Time

	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	halfOpenInFlight int
	lastFailure      time.Time
}

// NewCircuitBreaker starts a breaker in the CLOSED state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBreakerConfig().Timeout
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = DefaultBreakerConfig().HalfOpenRequests
	}
	b := &CircuitBreaker{cfg: cfg, clock: time.Now, state: StateClosed}
	metrics.BreakerState.Set(float64(StateClosed))
	return b
}

// WithClock replaces the breaker's time source. Test hook.
func (b *CircuitBreaker) WithClock(clock func() time.Time) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
	return b
}

// AllowRequest reports whether a call to the ML service may be attempted
// right now. While OPEN it denies immediately without any network
// activity; once the open timeout elapses it moves to HALF_OPEN and
// admits a bounded number of probe calls.
func (b *CircuitBreaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock().Sub(b.lastFailure) >= b.cfg.Timeout {
			b.transition(StateHalfOpen)
			b.successCount = 0
			b.halfOpenInFlight = 1
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenRequests {
			b.halfOpenInFlight++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess feeds a successful call outcome into the state machine.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failureCount = 0
			b.successCount = 0
			b.halfOpenInFlight = 0
		}
	}
}

// RecordFailure feeds a failed call outcome into the state machine. A
// single failure while HALF_OPEN reverts to OPEN.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.clock()

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
		b.successCount = 0
		b.halfOpenInFlight = 0
	}
}

// GetState returns the current breaker state.
func (b *CircuitBreaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetStats returns an operational snapshot.
func (b *CircuitBreaker) GetStats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:            b.state,
		FailureCount:     b.failureCount,
		SuccessCount:     b.successCount,
		HalfOpenInFlight: b.halfOpenInFlight,
		LastFailure:      b.lastFailure,
	}
}

// Reset returns the breaker to CLOSED with zeroed counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenInFlight = 0
	b.lastFailure = time.Time{}
}

// transition is called with the mutex held.
func (b *CircuitBreaker) transition(to State) {
	b.state = to
	metrics.BreakerState.Set(float64(to))
}
