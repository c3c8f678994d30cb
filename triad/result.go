package triad

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SynthesisMethod names how a coordinated response was produced.
type SynthesisMethod string

const (
	MethodIntegration       SynthesisMethod = "narrative_therapeutic_integration"
	MethodSimpleAggregation SynthesisMethod = "simple_aggregation"
	MethodTemplate          SynthesisMethod = "template_fallback"
	MethodStatic            SynthesisMethod = "static_fallback"
	MethodDegraded          SynthesisMethod = "degraded"
)

// CoordinatedResponse is the merged payload produced by the coordinator or one
// of its offline substitutes.
type CoordinatedResponse struct {
	Guidance                string          `json:"guidance"`
	CognitiveIntegration    string          `json:"cognitive_integration"`
	NarrativeSynthesis      string          `json:"narrative_synthesis"`
	WisdomDistillation      string          `json:"wisdom_distillation"`
	TherapeuticApproach     string          `json:"therapeutic_approach"`
	PersonalityOptimization string          `json:"personality_optimization"`
	SynthesisMethod         SynthesisMethod `json:"synthesis_method"`
	// Confidence is in [0,1].
	Confidence         float64   `json:"confidence"`
	Archetype          string    `json:"archetype,omitempty"`
	CognitiveFunctions [4]string `json:"cognitive_functions,omitempty"`
	CacheDerived       bool      `json:"cache_derived,omitempty"`
}

// OrchestrationResult is the envelope returned to callers. It is not modified
// after being returned.
type OrchestrationResult struct {
	Coordinated         CoordinatedResponse `json:"coordinated"`
	IndividualResponses []AgentResponse     `json:"individual_responses"`
	SynthesisReasoning  string              `json:"synthesis_reasoning"`
	OverallConfidence   int                 `json:"overall_confidence"`
	SessionID           string              `json:"session_id"`
	GeneratedAt         time.Time           `json:"generated_at"`
	Mode                Mode                `json:"mode"`
	CacheUsed           bool                `json:"cache_used"`
}

// DegradedConfidence is the overall confidence of results with no agent input.
const DegradedConfidence = 30

// ClampConfidence bounds c to [0,100].
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// OverallConfidence is the rounded mean of the agent confidences, or
// DegradedConfidence when there are none.
func OverallConfidence(responses []AgentResponse) int {
	if len(responses) == 0 {
		return DegradedConfidence
	}
	values := make([]float64, len(responses))
	for i, r := range responses {
		values[i] = float64(ClampConfidence(r.Confidence))
	}
	return ClampConfidence(int(math.Round(stat.Mean(values, nil))))
}
