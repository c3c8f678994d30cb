package routing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/scttfrdmn/triadkit-go/agents"
	"github.com/scttfrdmn/triadkit-go/observability"
	"github.com/scttfrdmn/triadkit-go/triad"
)

// Classifier picks the agent role best suited to an input.
type Classifier interface {
	Classify(input string) triad.AgentRole
}

// KeywordClassifier picks the role whose keywords match most often. Ties
// and inputs with no match go to the default role.
type KeywordClassifier struct {
	keywords    map[triad.AgentRole][]string
	defaultRole triad.AgentRole
}

// DefaultKeywords returns the built-in keyword lists.
func DefaultKeywords() map[triad.AgentRole][]string {
	return map[triad.AgentRole][]string{
		triad.RoleAesthetic: {"beauty", "beautiful", "art", "creative", "create", "music", "design", "inspire", "color", "write"},
		triad.RoleCognitive: {"understand", "why", "meaning", "think", "learn", "story", "idea", "decide", "wisdom"},
		triad.RoleEthical:   {"right", "wrong", "should", "value", "fair", "honest", "routine", "habit", "balance", "schedule"},
	}
}

// NewKeywordClassifier creates a classifier. A nil map uses DefaultKeywords;
// an empty default role means cognitive.
func NewKeywordClassifier(keywords map[triad.AgentRole][]string, defaultRole triad.AgentRole) *KeywordClassifier {
	if keywords == nil {
		keywords = DefaultKeywords()
	}
	if defaultRole == "" {
		defaultRole = triad.RoleCognitive
	}
	return &KeywordClassifier{keywords: keywords, defaultRole: defaultRole}
}

// Classify returns the role with the most keyword hits.
func (c *KeywordClassifier) Classify(input string) triad.AgentRole {
	content := strings.ToLower(input)

	best := c.defaultRole
	maxMatches := 0
	tie := false
	// Iterate in fixed role order so ties are deterministic.
	for _, role := range triad.Roles() {
		matches := 0
		for _, kw := range c.keywords[role] {
			if strings.Contains(content, strings.ToLower(kw)) {
				matches++
			}
		}
		switch {
		case matches > maxMatches:
			best, maxMatches, tie = role, matches, false
		case matches == maxMatches && matches > 0:
			tie = true
		}
	}
	if maxMatches == 0 || tie {
		return c.defaultRole
	}
	return best
}

// Router answers a request with a single agent.
type Router struct {
	invoker    *agents.Invoker
	classifier Classifier
}

// NewRouter creates a router. A nil classifier uses the default keywords.
func NewRouter(invoker *agents.Invoker, classifier Classifier) *Router {
	if classifier == nil {
		classifier = NewKeywordClassifier(nil, "")
	}
	return &Router{invoker: invoker, classifier: classifier}
}

// RouteSimpleQuery classifies req and runs only the chosen agent. Backend
// failures produce a placeholder response; only an invalid request is an
// error.
func (r *Router) RouteSimpleQuery(ctx context.Context, req *triad.OrchestrationRequest) (triad.AgentResponse, error) {
	if req == nil {
		return triad.AgentResponse{}, fmt.Errorf("nil request")
	}
	if err := req.Validate(); err != nil {
		return triad.AgentResponse{}, err
	}

	role := r.classifier.Classify(req.Input)
	ctx, span := observability.StartSpan(ctx, "routing.simple_query",
		attribute.String("agent.role", string(role)),
	)
	resp := r.invoker.InvokeRole(ctx, role, req, req.ResolvePreSeed())
	span.SetAttributes(attribute.Bool("agent.degraded", resp.Degraded()))
	observability.EndSpan(span, nil)
	return resp, nil
}
