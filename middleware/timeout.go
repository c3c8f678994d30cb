// Package middleware provides decorators for reasoning backends. Each
// decorator implements llm.LLM and wraps another llm.LLM, so they compose.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// TimeoutConfig configures timeout behavior.
type TimeoutConfig struct {
	// Timeout is the per-call deadline.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultTimeoutConfig returns a timeout config with sensible defaults.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Timeout: 30 * time.Second,
	}
}

// TimeoutMetrics tracks timeout middleware metrics.
type TimeoutMetrics struct {
	mu                 sync.RWMutex
	TotalRequests      int64
	SuccessfulRequests int64
	TimedOutRequests   int64
	FailedRequests     int64 // failed for reasons other than timeout
	TotalDuration      time.Duration
}

func (m *TimeoutMetrics) record(duration time.Duration, counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
	*counter++
	m.TotalDuration += duration
}

// Snapshot returns a copy of the counters.
func (m *TimeoutMetrics) Snapshot() (total, succeeded, timedOut, failed int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TotalRequests, m.SuccessfulRequests, m.TimedOutRequests, m.FailedRequests
}

// AvgDuration returns the average call duration.
func (m *TimeoutMetrics) AvgDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.TotalRequests == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.TotalRequests)
}

// TimeoutError is returned when a backend call exceeds the configured timeout.
type TimeoutError struct {
	Model   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to model '%s' timed out after %v", e.Model, e.Timeout)
}

// TimeoutLLM wraps a backend with a hard per-call deadline. The call runs in
// its own goroutine so backends that ignore context cancellation are still
// abandoned on time.
//
// Example:
//
//	backend := middleware.NewTimeoutLLM(llm.NewOllamaLLM("", ""), middleware.TimeoutConfig{Timeout: 10 * time.Second})
//	_, err := backend.Complete(ctx, messages)
//	var te *middleware.TimeoutError
//	if errors.As(err, &te) {
//		// took longer than 10s
//	}
type TimeoutLLM struct {
	next    llm.LLM
	config  TimeoutConfig
	metrics *TimeoutMetrics
}

var _ llm.LLM = (*TimeoutLLM)(nil)

// NewTimeoutLLM creates a new timeout decorator.
func NewTimeoutLLM(next llm.LLM, config TimeoutConfig) *TimeoutLLM {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &TimeoutLLM{
		next:    next,
		config:  config,
		metrics: &TimeoutMetrics{},
	}
}

// Model returns the model of the wrapped backend.
func (t *TimeoutLLM) Model() string { return t.next.Model() }

// Unwrap returns the wrapped backend.
func (t *TimeoutLLM) Unwrap() interface{} { return t.next }

// Metrics returns the timeout metrics.
func (t *TimeoutLLM) Metrics() *TimeoutMetrics { return t.metrics }

// Complete implements llm.LLM with timeout protection.
func (t *TimeoutLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...llm.CallOption) (*triad.Message, error) {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	type result struct {
		msg *triad.Message
		err error
	}
	// buffered so the goroutine never blocks after a timeout
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		msg, err := t.next.Complete(timeoutCtx, messages, opts...)
		done <- result{msg, err}
	}()

	select {
	case res := <-done:
		duration := time.Since(start)
		if res.err != nil {
			if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				t.metrics.record(duration, &t.metrics.TimedOutRequests)
				return nil, &TimeoutError{Model: t.Model(), Timeout: t.config.Timeout}
			}
			t.metrics.record(duration, &t.metrics.FailedRequests)
			return nil, res.err
		}
		t.metrics.record(duration, &t.metrics.SuccessfulRequests)
		return res.msg, nil

	case <-timeoutCtx.Done():
		duration := time.Since(start)
		if ctx.Err() != nil {
			// caller cancelled, not our deadline
			t.metrics.record(duration, &t.metrics.FailedRequests)
			return nil, ctx.Err()
		}
		t.metrics.record(duration, &t.metrics.TimedOutRequests)
		return nil, &TimeoutError{Model: t.Model(), Timeout: t.config.Timeout}
	}
}
