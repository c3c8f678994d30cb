package routing

import "strings"

// Path names used in estimates.
const (
	PathSingleAgent       = "single_agent"
	PathFullOrchestration = "full_orchestration"
)

const (
	// fullOrchestrationCalls is three agents plus the coordinator.
	fullOrchestrationCalls = 4
	// expectedOutputTokens approximates one agent reply.
	expectedOutputTokens = 400
	longQueryThreshold   = 500
)

var complexKeywords = []string{
	"plan", "strategy", "relationship", "career", "purpose", "conflict",
	"overwhelmed", "decide", "balance", "meaning",
}

// CostEstimate compares the two execution paths for one input.
type CostEstimate struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	// Cost in dollars per path.
	SingleAgent       float64 `json:"single_agent"`
	FullOrchestration float64 `json:"full_orchestration"`
	// Recommended is PathSingleAgent for simple inputs.
	Recommended string `json:"recommended"`
}

// EstimateTokens approximates a token count as one token per four
// characters.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Complexity classifies an input as "simple" or "complex" from its length
// and a keyword list.
func Complexity(input string) string {
	if len(input) > longQueryThreshold {
		return "complex"
	}
	lower := strings.ToLower(input)
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return "complex"
		}
	}
	return "simple"
}

var defaultPricing = NewPricing()

// EstimateCost estimates input for model using the default pricing.
func EstimateCost(input, model string) CostEstimate {
	return defaultPricing.Estimate(input, model)
}

// Estimate estimates input for model.
func (p *Pricing) Estimate(input, model string) CostEstimate {
	in := EstimateTokens(input)
	inCost, _ := p.Calculate(model, in, "input")
	outCost, _ := p.Calculate(model, expectedOutputTokens, "output")
	single := inCost + outCost

	est := CostEstimate{
		Model:             model,
		InputTokens:       in,
		OutputTokens:      expectedOutputTokens,
		SingleAgent:       single,
		FullOrchestration: single * fullOrchestrationCalls,
		Recommended:       PathFullOrchestration,
	}
	if Complexity(input) == "simple" {
		est.Recommended = PathSingleAgent
	}
	return est
}
