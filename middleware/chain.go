package middleware

import (
	"github.com/scttfrdmn/triadkit-go/adapter/llm"
)

// StackConfig selects which decorators wrap a backend. A nil section
// disables that decorator.
type StackConfig struct {
	RateLimit      *RateLimiterConfig    `yaml:"rate_limit"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry          *RetryConfig          `yaml:"retry"`
	Timeout        *TimeoutConfig        `yaml:"timeout"`
}

// DefaultStackConfig enables timeout, retry and circuit breaking, and leaves
// rate limiting off.
func DefaultStackConfig() StackConfig {
	timeout := DefaultTimeoutConfig()
	retry := DefaultRetryConfig()
	breaker := DefaultCircuitBreakerConfig()
	return StackConfig{
		CircuitBreaker: &breaker,
		Retry:          &retry,
		Timeout:        &timeout,
	}
}

// Wrap decorates backend according to cfg. From the outside in the order is
// rate limit, circuit breaker, retry, timeout: every attempt gets its own
// deadline and the breaker counts a call once, after its retries.
func Wrap(backend llm.LLM, cfg StackConfig) llm.LLM {
	wrapped := backend
	if cfg.Timeout != nil {
		wrapped = NewTimeoutLLM(wrapped, *cfg.Timeout)
	}
	if cfg.Retry != nil {
		wrapped = NewRetryLLM(wrapped, *cfg.Retry)
	}
	if cfg.CircuitBreaker != nil {
		wrapped = NewCircuitBreakerLLM(wrapped, *cfg.CircuitBreaker)
	}
	if cfg.RateLimit != nil {
		wrapped = NewRateLimiterLLM(wrapped, *cfg.RateLimit)
	}
	return wrapped
}
