// Package coordinator merges the three agent responses into one coordinated
// response. The lead synthesis runs on the reasoning backend; when it fails
// the coordinator falls back to a rule-based aggregation of the same
// responses, so it always produces a result.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// Confidence of each synthesis method.
const (
	IntegrationConfidence = 0.9
	AggregationConfidence = 0.6
)

// Config configures the lead synthesis call.
type Config struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DefaultConfig returns the synthesis defaults.
func DefaultConfig() Config {
	return Config{Temperature: 0.6, MaxTokens: 1200}
}

// Coordinator is the lead agent.
type Coordinator struct {
	backend llm.LLM
	config  Config
	logger  *slog.Logger
}

// New creates a coordinator. A nil backend always aggregates.
func New(backend llm.LLM, config Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{backend: backend, config: config, logger: logger}
}

const systemPrompt = "You are the lead coordinator of three advisors: aesthetic, cognitive and ethical. " +
	"Integrate their perspectives into one warm, coherent piece of guidance. " +
	"Weave the narrative, distill the wisdom and close with a therapeutic next step. " +
	"Answer in plain prose without headings."

type agentInput struct {
	Agent      triad.AgentRole    `json:"agent"`
	Confidence int                `json:"confidence"`
	Payload    triad.AgentPayload `json:"payload"`
}

// Coordinate produces the coordinated response and the reasoning that
// explains how it was built.
func (c *Coordinator) Coordinate(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed, responses []triad.AgentResponse) (triad.CoordinatedResponse, string) {
	ctx, span := observability.StartSpan(ctx, "coordinator.synthesize",
		attribute.Int("agents", len(responses)),
	)

	text, err := c.synthesize(ctx, req, preseed, responses)
	if err != nil {
		c.logger.WarnContext(ctx, "lead synthesis failed, aggregating", "error", err)
		span.SetAttributes(attribute.String("synthesis_method", string(triad.MethodSimpleAggregation)))
		observability.EndSpan(span, err)
		return Aggregate(req, preseed, responses, err)
	}

	out := buildSections(req, preseed, responses)
	out.Guidance = text
	out.SynthesisMethod = triad.MethodIntegration
	out.Confidence = IntegrationConfidence

	reasoning := fmt.Sprintf("%s: the lead coordinator integrated the %s perspectives for the %s (%s)",
		triad.MethodIntegration, contributors(responses), preseed.Archetype, req.PersonalityType)

	span.SetAttributes(attribute.String("synthesis_method", string(triad.MethodIntegration)))
	observability.EndSpan(span, nil)
	return out, reasoning
}

func (c *Coordinator) synthesize(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed, responses []triad.AgentResponse) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("synthesis panic: %v", r)
		}
	}()
	if c == nil || c.backend == nil {
		return "", errors.New("no backend configured")
	}
	if len(responses) == 0 {
		return "", errors.New("no agent responses to integrate")
	}

	inputs := make([]agentInput, 0, len(responses))
	for _, r := range responses {
		if r.Degraded() {
			continue
		}
		inputs = append(inputs, agentInput{Agent: r.Agent, Confidence: r.Confidence, Payload: r.Payload})
	}
	if len(inputs) == 0 {
		return "", errors.New("every agent response is degraded")
	}
	structured, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode agent outputs: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Person: %s, the %s. Cognitive functions: %s.\n",
		req.PersonalityType, preseed.Archetype, strings.Join(preseed.CognitiveFunctions[:], ", "))
	fmt.Fprintf(&b, "Session type: %s.\n", req.SessionType)
	fmt.Fprintf(&b, "They shared:\n%s\n\n", req.Input)
	fmt.Fprintf(&b, "Advisor outputs (JSON):\n%s\n", structured)

	var opts []llm.CallOption
	if c.config.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(c.config.Temperature))
	}
	if c.config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(c.config.MaxTokens))
	}

	reply, err := c.backend.Complete(ctx, []*triad.Message{
		triad.NewMessage("system", systemPrompt),
		triad.NewMessage("user", b.String()),
	}, opts...)
	if err != nil {
		return "", err
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", errors.New("empty synthesis")
	}
	return strings.TrimSpace(reply.Content), nil
}

// Aggregate builds a coordinated response without the backend: the
// non-degraded agent guidance is concatenated and the rule-based sections
// are computed as usual. cause, if non-nil, is mentioned in the reasoning.
func Aggregate(req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed, responses []triad.AgentResponse, cause error) (triad.CoordinatedResponse, string) {
	out := buildSections(req, preseed, responses)

	var parts []string
	for _, r := range responses {
		if r.Degraded() {
			continue
		}
		if g := strings.TrimSpace(r.Payload.Common().Guidance); g != "" {
			parts = append(parts, g)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("As the %s, trust your %s while you take the next small step.",
			preseed.Archetype, strings.ToLower(triad.FunctionName(preseed.DominantFunction()))))
	}
	out.Guidance = strings.Join(parts, "\n\n")
	out.SynthesisMethod = triad.MethodSimpleAggregation
	out.Confidence = AggregationConfidence

	reasoning := fmt.Sprintf("%s: combined guidance from the %s perspectives", triad.MethodSimpleAggregation, contributors(responses))
	if cause != nil {
		reasoning += fmt.Sprintf(" because lead synthesis was unavailable (%v)", cause)
	}
	return out, reasoning
}

func contributors(responses []triad.AgentResponse) string {
	var names []string
	for _, r := range responses {
		if !r.Degraded() {
			names = append(names, string(r.Agent))
		}
	}
	if len(names) == 0 {
		return "no agent"
	}
	return strings.Join(names, ", ")
}
