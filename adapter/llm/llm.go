// Package llm provides the reasoning backend contract used by the agents and
// the coordinator, plus adapters for hosted and local providers.
//
// The interface is intentionally small: one completion call per agent prompt.
// Provider-specific features remain reachable through Unwrap().
package llm

import (
	"context"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// LLM is the reasoning backend consumed by the orchestration engine.
//
// Example:
//
//	backend := NewOpenAILLM("sk-...", "gpt-4o")
//	messages := []*triad.Message{
//	    triad.NewMessage("system", "You are the ethical advisor."),
//	    triad.NewMessage("user", "How do I set boundaries at work?"),
//	}
//	response, err := backend.Complete(ctx, messages, WithTemperature(0.7))
type LLM interface {
	// Complete generates a single completion for the conversation.
	//
	// The returned message has Role "agent" and may carry provider metadata
	// under "model", "usage" and "finish_reason".
	Complete(ctx context.Context, messages []*triad.Message, opts ...CallOption) (*triad.Message, error)

	// Model returns the model identifier for this backend.
	Model() string

	// Unwrap returns the underlying provider client.
	Unwrap() interface{}
}

// CallOptions holds provider-specific options for LLM calls.
type CallOptions struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64

	// Provider-specific options
	Extra map[string]interface{}
}

// CallOption is a functional option for configuring LLM calls.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature (typically 0.0-2.0).
func WithTemperature(temperature float64) CallOption {
	return func(opts *CallOptions) {
		opts.Temperature = &temperature
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(opts *CallOptions) {
		opts.MaxTokens = &maxTokens
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) CallOption {
	return func(opts *CallOptions) {
		opts.TopP = &topP
	}
}

// WithExtra adds a provider-specific option.
func WithExtra(key string, value interface{}) CallOption {
	return func(opts *CallOptions) {
		if opts.Extra == nil {
			opts.Extra = make(map[string]interface{})
		}
		opts.Extra[key] = value
	}
}

// BuildCallOptions creates CallOptions from functional options.
func BuildCallOptions(opts ...CallOption) *CallOptions {
	options := &CallOptions{
		Extra: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// usageMetadata builds the usage map shared by all adapters.
func usageMetadata(prompt, completion, total int) map[string]interface{} {
	return map[string]interface{}{
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
		"total_tokens":      total,
	}
}
