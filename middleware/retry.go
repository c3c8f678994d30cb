package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt).
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the initial backoff duration.
	// Default: 100ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration.
	// Default: 10s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2.0
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// ShouldRetry determines if an error should trigger a retry.
	// If nil, every error except an open circuit triggers a retry.
	ShouldRetry func(error) bool `yaml:"-"`
}

// DefaultRetryConfig returns a retry config with sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryLLM retries failed backend calls with exponential backoff.
type RetryLLM struct {
	next   llm.LLM
	config RetryConfig
}

var _ llm.LLM = (*RetryLLM)(nil)

// NewRetryLLM creates a new retry decorator.
func NewRetryLLM(next llm.LLM, config RetryConfig) *RetryLLM {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 100 * time.Millisecond
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 10 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.ShouldRetry == nil {
		config.ShouldRetry = func(err error) bool {
			var open *CircuitBreakerError
			return !errors.As(err, &open)
		}
	}
	return &RetryLLM{next: next, config: config}
}

// Model returns the model of the wrapped backend.
func (r *RetryLLM) Model() string { return r.next.Model() }

// Unwrap returns the wrapped backend.
func (r *RetryLLM) Unwrap() interface{} { return r.next }

// Complete implements llm.LLM with retry logic.
func (r *RetryLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...llm.CallOption) (*triad.Message, error) {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		response, err := r.next.Complete(ctx, messages, opts...)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !r.config.ShouldRetry(err) {
			return nil, fmt.Errorf("non-retryable error on attempt %d/%d: %w", attempt, r.config.MaxAttempts, err)
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * r.config.BackoffMultiplier)
			if backoff > r.config.MaxBackoff {
				backoff = r.config.MaxBackoff
			}
		}
	}

	return nil, fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}
