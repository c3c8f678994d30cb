package routing

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/scttfrdmn/triadkit-go/adapter/llm"
	"github.com/scttfrdmn/triadkit-go/agents"
	"github.com/scttfrdmn/triadkit-go/triad"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	est := EstimateCost(strings.Repeat("x", 400), "gpt-4o")

	// 100 input tokens at $2.50/M plus 400 output tokens at $10/M.
	wantSingle := 0.00025 + 0.004
	if math.Abs(est.SingleAgent-wantSingle) > 1e-12 {
		t.Errorf("Expected single-agent cost %f, got %f", wantSingle, est.SingleAgent)
	}
	if math.Abs(est.FullOrchestration-4*wantSingle) > 1e-12 {
		t.Errorf("Full orchestration should cost four calls, got %f", est.FullOrchestration)
	}
	if est.InputTokens != 100 || est.OutputTokens != expectedOutputTokens {
		t.Errorf("Unexpected token counts %+v", est)
	}

	local := EstimateCost("hello", "llama3.1")
	if local.SingleAgent != 0 || local.FullOrchestration != 0 {
		t.Errorf("Local models should be free, got %+v", local)
	}
}

func TestEstimateRecommendation(t *testing.T) {
	if got := EstimateCost("thanks for today", "gpt-4o").Recommended; got != PathSingleAgent {
		t.Errorf("Expected single agent for a simple input, got %s", got)
	}
	if got := EstimateCost("I need to decide about my career", "gpt-4o").Recommended; got != PathFullOrchestration {
		t.Errorf("Expected full orchestration for a complex input, got %s", got)
	}
	if got := Complexity(strings.Repeat("a", longQueryThreshold+1)); got != "complex" {
		t.Errorf("Long inputs should be complex, got %s", got)
	}
}

func TestPricingUnknownModel(t *testing.T) {
	p := NewPricing()
	if p.Known("mystery") {
		t.Fatal("mystery should be unknown")
	}
	cost, err := p.Calculate("mystery", 1_000_000, "input")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cost != 0.01 {
		t.Errorf("Expected default rate, got %f", cost)
	}
	if _, err := p.Calculate("gpt-4o", 10, "sideways"); err == nil {
		t.Error("Expected error for invalid direction")
	}

	p.UpdatePricing("mystery", 1, 5)
	if cost, _ := p.Calculate("mystery", 1_000_000, "output"); cost != 5 {
		t.Errorf("Expected updated rate, got %f", cost)
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(nil, "")
	tests := []struct {
		input string
		want  triad.AgentRole
	}{
		{"I want to create something beautiful", triad.RoleAesthetic},
		{"Is it fair to skip my routine?", triad.RoleEthical},
		{"Help me understand the story here", triad.RoleCognitive},
		{"hello there", triad.RoleCognitive},
		{"why is art important", triad.RoleCognitive},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := c.Classify(tt.input); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}

	custom := NewKeywordClassifier(map[triad.AgentRole][]string{triad.RoleEthical: {"duty"}}, triad.RoleAesthetic)
	if got := custom.Classify("nothing matches"); got != triad.RoleAesthetic {
		t.Errorf("Expected custom default, got %s", got)
	}
}

func testRequest(input string) *triad.OrchestrationRequest {
	return &triad.OrchestrationRequest{
		UserID:          "u1",
		PersonalityType: triad.ENFP,
		SessionType:     triad.SessionImagination,
		Input:           input,
	}
}

func TestRouteSimpleQuery(t *testing.T) {
	backend := llm.NewScriptedLLM("router-model").
		Respond("Agent focus: aesthetic", `{"guidance":"Paint the feeling","imagery":"a red kite"}`)
	router := NewRouter(agents.NewInvoker(backend, agents.DefaultConfig()), nil)

	resp, err := router.RouteSimpleQuery(context.Background(), testRequest("I want to create something beautiful"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.Agent != triad.RoleAesthetic {
		t.Errorf("Expected aesthetic agent, got %s", resp.Agent)
	}
	if resp.Payload.Common().Guidance != "Paint the feeling" {
		t.Errorf("Unexpected guidance %q", resp.Payload.Common().Guidance)
	}
	if backend.Calls() != 1 {
		t.Errorf("Expected exactly one backend call, got %d", backend.Calls())
	}
}

func TestRouteSimpleQueryFailures(t *testing.T) {
	backend := llm.NewScriptedLLM("router-model").Fail("Agent focus", errors.New("offline"))
	router := NewRouter(agents.NewInvoker(backend, agents.DefaultConfig()), nil)

	resp, err := router.RouteSimpleQuery(context.Background(), testRequest("hello there"))
	if err != nil {
		t.Fatalf("Backend failures should not be errors: %v", err)
	}
	if !resp.Degraded() || resp.Confidence != 30 {
		t.Errorf("Expected a placeholder, got %+v", resp)
	}
	if resp.Agent != triad.RoleCognitive {
		t.Errorf("Expected default cognitive role, got %s", resp.Agent)
	}

	if _, err := router.RouteSimpleQuery(context.Background(), testRequest("")); err == nil {
		t.Error("Expected an error for an invalid request")
	}
	if _, err := router.RouteSimpleQuery(context.Background(), nil); err == nil {
		t.Error("Expected an error for a nil request")
	}

	noBackend := NewRouter(agents.NewInvoker(nil, agents.DefaultConfig()), nil)
	resp, err = noBackend.RouteSimpleQuery(context.Background(), testRequest("hello there"))
	if err != nil || !resp.Degraded() {
		t.Errorf("Expected a placeholder without a backend, got %+v, %v", resp, err)
	}
}
