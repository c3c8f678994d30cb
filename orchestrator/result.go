package orchestrator

import (
	"fmt"
	"math"

	"github.com/scttfrdmn/triadkit-go/cache"
	"github.com/scttfrdmn/triadkit-go/triad"
)

const cacheModel = "cache"

// newSessionID returns "session_<counter>_<unix-millis>"; the counter makes
// ids unique within the process.
func (o *Orchestrator) newSessionID() string {
	return fmt.Sprintf("session_%d_%d", o.sessions.Add(1), o.opts.Now().UnixMilli())
}

func (o *Orchestrator) newResult(mode triad.Mode) *triad.OrchestrationResult {
	return &triad.OrchestrationResult{
		SessionID:   o.newSessionID(),
		GeneratedAt: o.opts.Now(),
		Mode:        mode,
	}
}

// degraded is the result of last resort.
func (o *Orchestrator) degraded() *triad.OrchestrationResult {
	r := o.newResult(triad.ModeOffline)
	r.Coordinated = triad.CoordinatedResponse{
		Guidance:        DegradedGuidance,
		SynthesisMethod: triad.MethodDegraded,
		Confidence:      float64(triad.DegradedConfidence) / 100,
	}
	r.IndividualResponses = []triad.AgentResponse{}
	r.SynthesisReasoning = "degraded: orchestration could not complete"
	r.OverallConfidence = triad.DegradedConfidence
	return r
}

// cachedResult reuses a cached payload under a new session.
func (o *Orchestrator) cachedResult(hit *cache.Hit) *triad.OrchestrationResult {
	coordinated := hit.Entry.Response
	coordinated.CacheDerived = true

	responses := cachedResponses(coordinated, hit.Entry.Confidence)

	r := o.newResult(triad.ModeOffline)
	r.Coordinated = coordinated
	r.IndividualResponses = responses
	r.SynthesisReasoning = fmt.Sprintf("cache: reused %s response %s (similarity %.2f)",
		coordinated.SynthesisMethod, hit.Entry.ID, hit.Similarity)
	r.OverallConfidence = triad.OverallConfidence(responses)
	r.CacheUsed = true
	return r
}

// cachedResponses rebuilds one synthetic role entry per agent from the
// sections of a cached coordinated response.
func cachedResponses(c triad.CoordinatedResponse, confidence float64) []triad.AgentResponse {
	score := triad.ClampConfidence(int(math.Round(confidence * 100)))
	out := make([]triad.AgentResponse, 0, 3)
	for _, role := range triad.Roles() {
		payload := triad.NewPayload(role)
		switch role {
		case triad.RoleAesthetic:
			payload.Common().Guidance = c.NarrativeSynthesis
		case triad.RoleCognitive:
			payload.Common().Guidance = firstNonEmpty(c.WisdomDistillation, c.CognitiveIntegration)
		case triad.RoleEthical:
			payload.Common().Guidance = c.TherapeuticApproach
		}
		if payload.Common().Guidance == "" {
			payload.Common().Guidance = c.Guidance
		}
		out = append(out, triad.AgentResponse{
			Agent:      role,
			Payload:    payload,
			Confidence: score,
			Metadata: triad.ResponseMetadata{
				RoleDescriptor: role.Descriptor(),
				Model:          cacheModel,
				Synthetic:      true,
			},
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
