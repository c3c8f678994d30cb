package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// Confidence of generated responses.
const (
	TemplateConfidence      = 0.75
	StaticConfidence        = 0.5
	templateAgentConfidence = 75
	staticAgentConfidence   = 50
	syntheticModel          = "template"
)

// Output is a generated offline response.
type Output struct {
	Coordinated triad.CoordinatedResponse
	// Responses holds one synthetic entry per role.
	Responses []triad.AgentResponse
	Reasoning string
	// Resolved is false when the static last resort was used.
	Resolved bool
}

// Generator builds template responses. It makes no remote calls other than
// to its pipeline store.
type Generator struct {
	store       PipelineStore
	now         func() time.Time
	logger      *slog.Logger
	instruments *observability.Instruments
}

// Option configures a Generator.
type Option func(*Generator)

// WithNow sets the time source.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithInstruments sets the metric instruments.
func WithInstruments(in *observability.Instruments) Option {
	return func(g *Generator) { g.instruments = in }
}

// NewGenerator creates a generator backed by store.
func NewGenerator(store PipelineStore, opts ...Option) *Generator {
	g := &Generator{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a template response for req. If the pipeline cannot be
// resolved the static response is returned instead.
func (g *Generator) Generate(ctx context.Context, req *triad.OrchestrationRequest) Output {
	ctx, span := observability.StartSpan(ctx, "fallback.generate",
		attribute.String("session_type", string(req.SessionType)),
	)

	pipeline, err := g.resolve(ctx, req)
	if err != nil {
		g.logger.WarnContext(ctx, "pipeline unavailable, using static fallback", "error", err)
		g.instruments.RecordFallback(ctx, "static")
		span.SetAttributes(attribute.Bool("fallback.resolved", false))
		observability.EndSpan(span, err)
		return staticOutput(req)
	}

	g.instruments.RecordFallback(ctx, "template")
	span.SetAttributes(
		attribute.Bool("fallback.resolved", true),
		attribute.Int("pipeline.usage_count", pipeline.UsageCount),
	)
	observability.EndSpan(span, nil)
	return templateOutput(req, pipeline)
}

// resolve loads or creates the pipeline and records this use.
func (g *Generator) resolve(ctx context.Context, req *triad.OrchestrationRequest) (p *Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline store panic: %v", r)
		}
	}()
	if g == nil || g.store == nil {
		return nil, errors.New("no pipeline store configured")
	}

	now := g.now()
	p, err = g.store.Get(ctx, req.UserID, req.PersonalityType)
	switch {
	case errors.Is(err, ErrPipelineNotFound):
		preseed := req.ResolvePreSeed()
		p = &Pipeline{
			UserID:             req.UserID,
			PersonalityType:    req.PersonalityType,
			Archetype:          preseed.Archetype,
			CognitiveFunctions: preseed.CognitiveFunctions,
			CreatedAt:          now,
		}
		g.logger.DebugContext(ctx, "created pipeline", "user_id", req.UserID, "personality_type", string(req.PersonalityType))
	case err != nil:
		return nil, err
	}

	p.RecordOutcome(true, now)
	if err := g.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func templateOutput(req *triad.OrchestrationRequest, p *Pipeline) Output {
	t := templateFor(req.SessionType)
	preseed := req.ResolvePreSeed()

	coordinated := triad.CoordinatedResponse{
		Guidance:             fill(t.guidance, p),
		CognitiveIntegration: fmt.Sprintf("Your %s leads, supported by %s.", triad.FunctionName(p.CognitiveFunctions[0]), triad.FunctionName(p.CognitiveFunctions[1])),
		NarrativeSynthesis:   fill(t.narrative, p),
		WisdomDistillation:   capitalize(t.insight) + ".",
		TherapeuticApproach:  "Try " + t.practice + ".",
		SynthesisMethod:      triad.MethodTemplate,
		Confidence:           TemplateConfidence,
		Archetype:            p.Archetype,
		CognitiveFunctions:   p.CognitiveFunctions,
	}
	if len(preseed.Strengths) > 0 {
		coordinated.PersonalityOptimization = "Build on " + preseed.Strengths[0] + "."
	}

	return Output{
		Coordinated: coordinated,
		Responses:   syntheticResponses(t, templateAgentConfidence),
		Reasoning: fmt.Sprintf("%s: %s template for the %s (pipeline used %d times)",
			triad.MethodTemplate, req.SessionType, p.Archetype, p.UsageCount),
		Resolved: true,
	}
}

func staticOutput(req *triad.OrchestrationRequest) Output {
	preseed := req.ResolvePreSeed()
	return Output{
		Coordinated: triad.CoordinatedResponse{
			Guidance:            staticGuidance,
			TherapeuticApproach: "One small, kind step today.",
			SynthesisMethod:     triad.MethodStatic,
			Confidence:          StaticConfidence,
			Archetype:           preseed.Archetype,
			CognitiveFunctions:  preseed.CognitiveFunctions,
		},
		Responses: syntheticResponses(templateFor(req.SessionType), staticAgentConfidence),
		Reasoning: fmt.Sprintf("%s: no pipeline available for %s", triad.MethodStatic, req.PersonalityType),
	}
}

// syntheticResponses builds one template-derived response per role.
func syntheticResponses(t sessionTemplate, confidence int) []triad.AgentResponse {
	roles := triad.Roles()
	out := make([]triad.AgentResponse, 0, len(roles))
	for _, role := range roles {
		var payload triad.AgentPayload
		switch role {
		case triad.RoleAesthetic:
			p := &triad.AestheticPayload{CreativePractices: []string{t.creative}}
			p.Guidance = capitalize(t.creative) + "."
			payload = p
		case triad.RoleCognitive:
			p := &triad.CognitivePayload{Insights: []string{t.insight}}
			p.Guidance = capitalize(t.insight) + "."
			payload = p
		default:
			p := &triad.EthicalPayload{Practices: []string{t.practice}}
			p.Guidance = capitalize(t.ethicalNote) + "."
			payload = p
		}
		payload.Common().FieldCount = 2
		out = append(out, triad.AgentResponse{
			Agent:      role,
			Payload:    payload,
			Confidence: confidence,
			Metadata: triad.ResponseMetadata{
				RoleDescriptor: role.Descriptor(),
				Model:          syntheticModel,
				Synthetic:      true,
			},
		})
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
