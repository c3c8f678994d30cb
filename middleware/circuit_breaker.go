package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int

const (
	// StateClosed means calls pass through normally.
	StateClosed CircuitState = iota
	// StateOpen means calls fail fast.
	StateOpen
	// StateHalfOpen means the breaker is testing whether the backend recovered.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
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

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is how long the circuit stays open before a trial call.
	// Default: 60s
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`

	// SuccessThreshold is the number of half-open successes needed to close.
	// Default: 2
	SuccessThreshold int `yaml:"success_threshold"`
}

// DefaultCircuitBreakerConfig returns a circuit breaker config with sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreakerMetrics tracks circuit breaker metrics.
type CircuitBreakerMetrics struct {
	mu                 sync.RWMutex
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	RejectedRequests   int64 // rejected due to open circuit
	StateChanges       map[string]int64
}

// Rejected returns the number of calls rejected while open.
func (m *CircuitBreakerMetrics) Rejected() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RejectedRequests
}

// Transitions returns how often the given transition ("closed->open") happened.
func (m *CircuitBreakerMetrics) Transitions(transition string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.StateChanges[transition]
}

// CircuitBreakerError is returned when the circuit breaker is open.
type CircuitBreakerError struct {
	Model        string
	FailureCount int
}

// Error implements the error interface.
func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker for '%s' is OPEN (failed %d times)", e.Model, e.FailureCount)
}

// CircuitBreakerLLM fails fast while the backend is known to be failing, so
// a dead reasoning service does not cost every agent a full timeout.
//
// State transitions:
//   - CLOSED -> OPEN: after FailureThreshold consecutive failures
//   - OPEN -> HALF_OPEN: after RecoveryTimeout
//   - HALF_OPEN -> CLOSED: after SuccessThreshold consecutive successes
//   - HALF_OPEN -> OPEN: on any failure
type CircuitBreakerLLM struct {
	next            llm.LLM
	config          CircuitBreakerConfig
	now             func() time.Time
	mu              sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	metrics         *CircuitBreakerMetrics
}

var _ llm.LLM = (*CircuitBreakerLLM)(nil)

// NewCircuitBreakerLLM creates a new circuit breaker decorator.
func NewCircuitBreakerLLM(next llm.LLM, config CircuitBreakerConfig) *CircuitBreakerLLM {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreakerLLM{
		next:    next,
		config:  config,
		now:     time.Now,
		state:   StateClosed,
		metrics: &CircuitBreakerMetrics{StateChanges: make(map[string]int64)},
	}
}

// Model returns the model of the wrapped backend.
func (c *CircuitBreakerLLM) Model() string { return c.next.Model() }

// Unwrap returns the wrapped backend.
func (c *CircuitBreakerLLM) Unwrap() interface{} { return c.next }

// State returns the current circuit breaker state.
func (c *CircuitBreakerLLM) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Metrics returns the circuit breaker metrics.
func (c *CircuitBreakerLLM) Metrics() *CircuitBreakerMetrics {
	return c.metrics
}

// changeState must be called with c.mu held.
func (c *CircuitBreakerLLM) changeState(newState CircuitState) {
	if c.state == newState {
		return
	}
	transition := fmt.Sprintf("%s->%s", c.state, newState)
	c.state = newState

	c.metrics.mu.Lock()
	c.metrics.StateChanges[transition]++
	c.metrics.mu.Unlock()
}

func (c *CircuitBreakerLLM) onSuccess() {
	c.metrics.mu.Lock()
	c.metrics.SuccessfulRequests++
	c.metrics.mu.Unlock()

	switch c.state {
	case StateHalfOpen:
		c.successCount++
		if c.successCount >= c.config.SuccessThreshold {
			c.changeState(StateClosed)
			c.failureCount = 0
			c.successCount = 0
		}
	case StateClosed:
		c.failureCount = 0
	}
}

func (c *CircuitBreakerLLM) onFailure() {
	c.metrics.mu.Lock()
	c.metrics.FailedRequests++
	c.metrics.mu.Unlock()

	c.failureCount++
	c.lastFailureTime = c.now()

	switch c.state {
	case StateHalfOpen:
		c.changeState(StateOpen)
		c.successCount = 0
	case StateClosed:
		if c.failureCount >= c.config.FailureThreshold {
			c.changeState(StateOpen)
		}
	}
}

// Complete implements llm.LLM with circuit breaker protection.
func (c *CircuitBreakerLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...llm.CallOption) (*triad.Message, error) {
	c.mu.Lock()
	c.metrics.mu.Lock()
	c.metrics.TotalRequests++
	c.metrics.mu.Unlock()

	if c.state == StateOpen {
		if c.now().Sub(c.lastFailureTime) >= c.config.RecoveryTimeout {
			c.changeState(StateHalfOpen)
			c.successCount = 0
		} else {
			c.metrics.mu.Lock()
			c.metrics.RejectedRequests++
			c.metrics.mu.Unlock()
			failures := c.failureCount
			c.mu.Unlock()
			return nil, &CircuitBreakerError{Model: c.next.Model(), FailureCount: failures}
		}
	}
	c.mu.Unlock()

	response, err := c.next.Complete(ctx, messages, opts...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.onFailure()
		return nil, err
	}
	c.onSuccess()
	return response, nil
}
