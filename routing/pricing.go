// Package routing is a side channel to full orchestration: it estimates what
// a request would cost on each path and can answer simple queries with a
// single agent.
package routing

import (
	"fmt"
	"log/slog"
	"sync"
)

// Pricing holds per-model rates in dollars per one million tokens.
//
// Example:
//
//	pricing := NewPricing()
//	cost, _ := pricing.Calculate("gpt-4o", 10000, "input")
//	fmt.Printf("Cost: $%.4f\n", cost) // Cost: $0.0250
type Pricing struct {
	mu      sync.RWMutex
	pricing map[string]map[string]float64
}

// NewPricing creates a Pricing with the default rates. Local models are free.
func NewPricing() *Pricing {
	return &Pricing{
		pricing: map[string]map[string]float64{
			// OpenAI
			"gpt-4o":        {"input": 2.50, "output": 10.00},
			"gpt-4o-mini":   {"input": 0.15, "output": 0.60},
			"gpt-3.5-turbo": {"input": 0.50, "output": 1.50},

			// Bedrock
			"anthropic.claude-3-5-sonnet-20240620-v1:0": {"input": 3.00, "output": 15.00},
			"anthropic.claude-3-haiku-20240307-v1:0":    {"input": 0.25, "output": 1.25},

			// Google
			"gemini-1.5-flash": {"input": 0.075, "output": 0.30},
			"gemini-1.5-pro":   {"input": 1.25, "output": 5.00},

			// Local
			"llama3.1": {"input": 0, "output": 0},
			"scripted": {"input": 0, "output": 0},

			"default": {"input": 0.01, "output": 0.01},
		},
	}
}

// Calculate returns the cost of tokens in the given direction ("input" or
// "output"). Unknown models use the default rate.
func (p *Pricing) Calculate(model string, tokens int, direction string) (float64, error) {
	if direction != "input" && direction != "output" {
		return 0, fmt.Errorf("direction must be 'input' or 'output', got: %s", direction)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rates, ok := p.pricing[model]
	if !ok {
		slog.Debug("unknown model, using default pricing", "model", model)
		rates = p.pricing["default"]
	}
	return (float64(tokens) / 1_000_000) * rates[direction], nil
}

// Known reports whether model has its own rates.
func (p *Pricing) Known(model string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.pricing[model]
	return ok
}

// UpdatePricing sets the rates for a model.
func (p *Pricing) UpdatePricing(model string, inputPrice, outputPrice float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pricing[model] = map[string]float64{
		"input":  inputPrice,
		"output": outputPrice,
	}
}
