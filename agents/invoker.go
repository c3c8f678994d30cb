// Package agents runs the three advisory agents concurrently against a
// reasoning backend and turns their replies into typed payloads.
//
// Every agent call is guarded on its own: a failure or panic in one agent
// produces a placeholder response for that role and never affects the
// others. Invoke therefore returns exactly one response per role whenever
// the fan-out starts.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// ErrFanOutNotStarted is returned when no agent call could be dispatched.
var ErrFanOutNotStarted = errors.New("agent fan-out not started")

// Config configures agent calls.
type Config struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// JSONMode asks providers that support it for a JSON response.
	JSONMode bool `yaml:"json_mode"`
}

// DefaultConfig returns the agent call defaults.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.7,
		MaxTokens:   800,
		JSONMode:    true,
	}
}

// Invoker dispatches the three agents.
type Invoker struct {
	backend     llm.LLM
	config      Config
	logger      *slog.Logger
	instruments *observability.Instruments
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

// WithInstruments sets the metric instruments.
func WithInstruments(in *observability.Instruments) Option {
	return func(i *Invoker) { i.instruments = in }
}

// NewInvoker creates an invoker for backend.
func NewInvoker(backend llm.LLM, config Config, opts ...Option) *Invoker {
	i := &Invoker{
		backend: backend,
		config:  config,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Invoker) callOptions() []llm.CallOption {
	var opts []llm.CallOption
	if i.config.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(i.config.Temperature))
	}
	if i.config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(i.config.MaxTokens))
	}
	if i.config.JSONMode {
		opts = append(opts, llm.WithExtra("json_mode", true))
	}
	return opts
}

// Invoke calls all three agents concurrently and waits for every call to
// settle. The responses are in triad.Roles() order. If the fan-out cannot
// start the result is empty and the error wraps ErrFanOutNotStarted.
func (i *Invoker) Invoke(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) ([]triad.AgentResponse, error) {
	switch {
	case i == nil || i.backend == nil:
		return nil, fmt.Errorf("%w: no backend configured", ErrFanOutNotStarted)
	case req == nil:
		return nil, fmt.Errorf("%w: nil request", ErrFanOutNotStarted)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFanOutNotStarted, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFanOutNotStarted, err)
	}

	ctx, span := observability.StartSpan(ctx, "agents.invoke",
		attribute.String("session_type", string(req.SessionType)),
		attribute.String("personality_type", string(req.PersonalityType)),
	)

	roles := triad.Roles()
	responses := make([]triad.AgentResponse, len(roles))

	var wg sync.WaitGroup
	for idx, role := range roles {
		wg.Add(1)
		go func(idx int, role triad.AgentRole) {
			defer wg.Done()
			responses[idx] = i.call(ctx, role, req, preseed)
		}(idx, role)
	}
	wg.Wait()

	degraded := 0
	for _, r := range responses {
		if r.Degraded() {
			degraded++
		}
	}
	span.SetAttributes(attribute.Int("agents.degraded", degraded))
	observability.EndSpan(span, nil)

	return responses, nil
}

// InvokeRole runs a single agent. Like the calls made by Invoke it never
// fails; without a backend the result is a placeholder.
func (i *Invoker) InvokeRole(ctx context.Context, role triad.AgentRole, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) triad.AgentResponse {
	if i == nil || i.backend == nil || req == nil {
		return triad.AgentResponse{
			Agent:      role,
			Payload:    triad.NewFallbackPayload(role),
			Confidence: ConfidenceDegraded,
			Metadata: triad.ResponseMetadata{
				RoleDescriptor: role.Descriptor(),
				Error:          "no backend configured",
			},
		}
	}
	return i.call(ctx, role, req, preseed)
}

// call runs one agent. It never fails: errors and panics become a
// placeholder response.
func (i *Invoker) call(ctx context.Context, role triad.AgentRole, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) (resp triad.AgentResponse) {
	start := time.Now()
	prompt := BuildPrompt(role, req, preseed)

	ctx, span := observability.StartSpan(ctx, "agents.call", attribute.String("agent.role", string(role)))

	resp = triad.AgentResponse{
		Agent: role,
		Metadata: triad.ResponseMetadata{
			Prompt:         prompt,
			RoleDescriptor: role.Descriptor(),
			Model:          i.backend.Model(),
		},
	}

	var callErr error
	defer func() {
		if r := recover(); r != nil {
			callErr = fmt.Errorf("agent panic: %v", r)
		}
		if callErr != nil {
			resp.Payload = triad.NewFallbackPayload(role)
			resp.Confidence = ScoreConfidence(resp.Payload)
			resp.Metadata.Error = callErr.Error()
			i.logger.WarnContext(ctx, "agent call failed", "agent", string(role), "error", callErr)
		}
		resp.ProcessingTime = time.Since(start)
		i.instruments.RecordAgentCall(ctx, string(role), resp.Degraded(), resp.ProcessingTime)
		span.SetAttributes(attribute.Int("agent.confidence", resp.Confidence))
		observability.EndSpan(span, callErr)
	}()

	reply, err := i.backend.Complete(ctx, Messages(role, prompt), i.callOptions()...)
	if err != nil {
		callErr = err
		return resp
	}
	if reply == nil {
		callErr = errors.New("backend returned no message")
		return resp
	}
	if model, ok := reply.Metadata["model"].(string); ok && model != "" {
		resp.Metadata.Model = model
	}

	resp.Payload = ParsePayload(role, reply.Content)
	resp.Confidence = ScoreConfidence(resp.Payload)
	i.logger.DebugContext(ctx, "agent call finished",
		"agent", string(role),
		"fields", resp.Payload.Common().FieldCount,
		"confidence", resp.Confidence,
	)
	return resp
}
