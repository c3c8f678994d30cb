// Package orchestrator is the public entry point of triadkit. It picks an
// execution mode per call, runs the agents and coordinator or the offline
// chain, and always returns a result.
//
// Orchestrate never returns an error: invalid requests, panics and failures
// in every branch end in a degraded result with confidence 30.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/cache"
	"github.com/scttfrdmn/triadkit-go/coordinator"
	"github.com/scttfrdmn/triadkit-go/fallback"
	"github.com/scttfrdmn/triadkit-go/health"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// DefaultHybridBound is how long a hybrid call waits for the online branch.
const DefaultHybridBound = 3 * time.Second

// DegradedGuidance is the fixed guidance of a degraded result.
const DegradedGuidance = "We couldn't prepare personalized guidance right now. Take a slow breath, and try again in a moment."

// AgentInvoker runs the three agents. *agents.Invoker implements it.
type AgentInvoker interface {
	Invoke(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) ([]triad.AgentResponse, error)
}

// Synthesizer merges agent responses. *coordinator.Coordinator implements it.
type Synthesizer interface {
	Coordinate(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed, responses []triad.AgentResponse) (triad.CoordinatedResponse, string)
}

// ResponseCache finds and stores past results. *cache.Manager implements it.
type ResponseCache interface {
	Lookup(ctx context.Context, req *triad.OrchestrationRequest) (*cache.Hit, bool)
	Write(ctx context.Context, req *triad.OrchestrationRequest, result *triad.OrchestrationResult) error
}

// TemplateGenerator produces offline responses. *fallback.Generator
// implements it.
type TemplateGenerator interface {
	Generate(ctx context.Context, req *triad.OrchestrationRequest) fallback.Output
}

// InputGuard screens request input. *safety.InjectionDetector implements it.
type InputGuard interface {
	Flagged(input string) bool
}

// Dependencies are the collaborators of an Orchestrator. Any of them may be
// nil: a missing invoker always falls back offline, a missing synthesizer
// aggregates, a missing cache is never consulted and a missing generator
// yields the static response. A flagged input never reaches the agents.
type Dependencies struct {
	Invoker      AgentInvoker
	Synthesizer  Synthesizer
	Cache        ResponseCache
	Fallback     TemplateGenerator
	Connectivity health.Connectivity
	Health       HealthChecker
	Guard        InputGuard
	Logger       *slog.Logger
	Instruments  *observability.Instruments
}

// Options configures an Orchestrator.
type Options struct {
	// Mode forces an execution mode. Empty selects per call.
	Mode triad.Mode `yaml:"mode"`
	// HybridBound is how long hybrid calls wait for the online branch.
	HybridBound time.Duration `yaml:"hybrid_bound"`
	// Now is the time source for session ids and timestamps.
	Now func() time.Time `yaml:"-"`
}

// DefaultOptions returns automatic mode selection with the 3s hybrid bound.
func DefaultOptions() Options {
	return Options{HybridBound: DefaultHybridBound, Now: time.Now}
}

// Orchestrator is the facade over every component.
type Orchestrator struct {
	deps     Dependencies
	opts     Options
	selector *ModeSelector
	logger   *slog.Logger

	sessions   atomic.Uint64
	background sync.WaitGroup
}

// New creates an orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Fallback == nil {
		deps.Fallback = fallback.NewGenerator(nil, fallback.WithLogger(deps.Logger), fallback.WithInstruments(deps.Instruments))
	}
	if opts.HybridBound <= 0 {
		opts.HybridBound = DefaultHybridBound
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts,
		selector: NewModeSelector(deps.Connectivity, deps.Health, deps.Logger),
		logger:   deps.Logger,
	}
}

// Orchestrate runs one request in the configured or selected mode.
func (o *Orchestrator) Orchestrate(ctx context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.orchestrate(ctx, req, o.opts.Mode)
}

// OrchestrateHybrid runs req in hybrid mode regardless of the options.
func (o *Orchestrator) OrchestrateHybrid(ctx context.Context, req *triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.orchestrate(ctx, req, triad.ModeHybrid)
}

// Coaching orchestrates req as a coaching session.
func (o *Orchestrator) Coaching(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionCoaching)
}

// Wellness orchestrates req as a wellness session.
func (o *Orchestrator) Wellness(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionWellness)
}

// Imagination orchestrates req as an imagination session.
func (o *Orchestrator) Imagination(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionImagination)
}

// ActionPlanning orchestrates req as an action planning session.
func (o *Orchestrator) ActionPlanning(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionActionPlanning)
}

// ContentDiscovery orchestrates req as a content discovery session.
func (o *Orchestrator) ContentDiscovery(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionContentDiscovery)
}

// Full orchestrates req as a full session.
func (o *Orchestrator) Full(ctx context.Context, req triad.OrchestrationRequest) *triad.OrchestrationResult {
	return o.session(ctx, req, triad.SessionFull)
}

func (o *Orchestrator) session(ctx context.Context, req triad.OrchestrationRequest, s triad.SessionType) *triad.OrchestrationResult {
	r := req.WithSessionType(s)
	return o.Orchestrate(ctx, &r)
}

// Wait blocks until every background hybrid branch has finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

func (o *Orchestrator) orchestrate(ctx context.Context, req *triad.OrchestrationRequest, forced triad.Mode) (result *triad.OrchestrationResult) {
	start := o.opts.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrate")

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("orchestration panic: %v", r)
			o.logger.ErrorContext(ctx, "orchestration failed, returning degraded result", "error", err)
			o.deps.Instruments.RecordFallback(ctx, "degraded")
			result = o.degraded()
			observability.EndSpan(span, err)
		} else {
			observability.EndSpan(span, nil)
		}
		o.deps.Instruments.RecordRequest(ctx, string(result.Mode), string(result.Coordinated.SynthesisMethod), result.CacheUsed, o.opts.Now().Sub(start))
	}()

	if req == nil {
		o.logger.ErrorContext(ctx, "nil request, returning degraded result")
		return o.degraded()
	}
	if err := req.Validate(); err != nil {
		o.logger.ErrorContext(ctx, "invalid request, returning degraded result", "error", err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return o.degraded()
	}

	preseed := req.ResolvePreSeed()
	mode := forced
	if mode == "" {
		mode = o.selector.Select(ctx)
	}
	if mode != triad.ModeOffline && o.deps.Guard != nil && o.deps.Guard.Flagged(req.Input) {
		o.logger.WarnContext(ctx, "input flagged, serving offline", "user_id", req.UserID)
		o.deps.Instruments.RecordFallback(ctx, "input_flagged")
		span.SetAttributes(attribute.Bool("input.flagged", true))
		mode = triad.ModeOffline
	}
	span.SetAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("session_type", string(req.SessionType)),
		attribute.String("personality_type", string(req.PersonalityType)),
	)

	switch mode {
	case triad.ModeOnline:
		res, err := o.runOnline(ctx, req, preseed)
		if err == nil {
			return res
		}
		o.logger.WarnContext(ctx, "online path failed, falling back offline", "error", err)
		o.deps.Instruments.RecordFallback(ctx, "online_failed")
		return o.runOffline(ctx, req, preseed)
	case triad.ModeHybrid:
		return o.runHybrid(ctx, req, preseed)
	default:
		return o.runOffline(ctx, req, preseed)
	}
}

var errOnlineUnavailable = errors.New("no usable agent responses")

// runOnline invokes the agents and the coordinator. It fails only when no
// agent produced a usable response.
func (o *Orchestrator) runOnline(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) (*triad.OrchestrationResult, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrate.online")

	if o.deps.Invoker == nil {
		err := errors.New("no agent invoker configured")
		observability.EndSpan(span, err)
		return nil, err
	}
	responses, err := o.deps.Invoker.Invoke(ctx, req, preseed)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}
	if allDegraded(responses) {
		observability.EndSpan(span, errOnlineUnavailable)
		return nil, errOnlineUnavailable
	}

	var (
		coordinated triad.CoordinatedResponse
		reasoning   string
	)
	if o.deps.Synthesizer != nil {
		coordinated, reasoning = o.deps.Synthesizer.Coordinate(ctx, req, preseed, responses)
	} else {
		coordinated, reasoning = coordinator.Aggregate(req, preseed, responses, nil)
	}

	result := o.newResult(triad.ModeOnline)
	result.Coordinated = coordinated
	result.IndividualResponses = responses
	result.SynthesisReasoning = reasoning
	result.OverallConfidence = triad.OverallConfidence(responses)

	if coordinated.SynthesisMethod == triad.MethodIntegration {
		o.writeCache(ctx, req, result)
	}

	span.SetAttributes(attribute.String("synthesis_method", string(coordinated.SynthesisMethod)))
	observability.EndSpan(span, nil)
	return result, nil
}

// runOffline serves from the cache or the template generator. It always
// produces a result.
func (o *Orchestrator) runOffline(ctx context.Context, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) *triad.OrchestrationResult {
	ctx, span := observability.StartSpan(ctx, "orchestrate.offline")
	defer observability.EndSpan(span, nil)

	if o.deps.Cache != nil {
		if hit, ok := o.deps.Cache.Lookup(ctx, req); ok && hit != nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return o.cachedResult(hit)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	out := o.deps.Fallback.Generate(ctx, req)
	result := o.newResult(triad.ModeOffline)
	result.Coordinated = out.Coordinated
	result.IndividualResponses = out.Responses
	result.SynthesisReasoning = out.Reasoning
	result.OverallConfidence = triad.OverallConfidence(out.Responses)

	if out.Resolved {
		o.writeCache(ctx, req, result)
	}
	return result
}

func (o *Orchestrator) writeCache(ctx context.Context, req *triad.OrchestrationRequest, result *triad.OrchestrationResult) {
	if o.deps.Cache == nil {
		return
	}
	// Failures are logged by the cache.
	_ = o.deps.Cache.Write(ctx, req, result)
}

func allDegraded(responses []triad.AgentResponse) bool {
	for _, r := range responses {
		if !r.Degraded() {
			return false
		}
	}
	return true
}
