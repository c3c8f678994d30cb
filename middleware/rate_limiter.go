package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	// Rate is the number of tokens added per second.
	// Default: 10
	Rate float64 `yaml:"rate"`

	// Capacity is the maximum burst capacity.
	// Default: 10
	Capacity int `yaml:"capacity"`
}

// DefaultRateLimiterConfig returns a rate limiter config with sensible defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:     10.0,
		Capacity: 10,
	}
}

// RateLimitError is returned when a call cannot obtain a token.
type RateLimitError struct {
	TokensAvailable float64
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: only %.2f tokens available", e.TokensAvailable)
}

// RateLimiterLLM throttles backend calls with a token bucket. One
// orchestration issues up to four calls, and hybrid mode can double that,
// so hosted providers are usually wrapped with one of these.
type RateLimiterLLM struct {
	next       llm.LLM
	config     RateLimiterConfig
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
	allowed    int64
	rejected   int64
	waited     time.Duration
}

var _ llm.LLM = (*RateLimiterLLM)(nil)

// NewRateLimiterLLM creates a new rate limiting decorator with a full bucket.
func NewRateLimiterLLM(next llm.LLM, config RateLimiterConfig) *RateLimiterLLM {
	if config.Rate <= 0 {
		config.Rate = 10.0
	}
	if config.Capacity < 1 {
		config.Capacity = 10
	}
	return &RateLimiterLLM{
		next:       next,
		config:     config,
		tokens:     float64(config.Capacity),
		lastUpdate: time.Now(),
	}
}

// Model returns the model of the wrapped backend.
func (r *RateLimiterLLM) Model() string { return r.next.Model() }

// Unwrap returns the wrapped backend.
func (r *RateLimiterLLM) Unwrap() interface{} { return r.next }

// Stats returns allowed and rejected call counts and total time spent waiting.
func (r *RateLimiterLLM) Stats() (allowed, rejected int64, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allowed, r.rejected, r.waited
}

// refill must be called with r.mu held.
func (r *RateLimiterLLM) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastUpdate).Seconds() * r.config.Rate
	if r.tokens > float64(r.config.Capacity) {
		r.tokens = float64(r.config.Capacity)
	}
	r.lastUpdate = now
}

// acquire takes one token, waiting for a refill if necessary.
func (r *RateLimiterLLM) acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.allowed++
			r.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - r.tokens) / r.config.Rate * float64(time.Second))
		r.mu.Unlock()

		select {
		case <-time.After(wait):
			r.mu.Lock()
			r.waited += wait
			r.mu.Unlock()
		case <-ctx.Done():
			r.mu.Lock()
			r.rejected++
			available := r.tokens
			r.mu.Unlock()
			return fmt.Errorf("%w: %w", &RateLimitError{TokensAvailable: available}, ctx.Err())
		}
	}
}

// Complete implements llm.LLM with rate limiting.
func (r *RateLimiterLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...llm.CallOption) (*triad.Message, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.next.Complete(ctx, messages, opts...)
}
