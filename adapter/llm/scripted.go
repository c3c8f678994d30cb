package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// ScriptedLLM is a deterministic in-process backend. Responses are chosen
// by the first rule whose substring appears anywhere in the conversation.
// It is used by tests and by the "scripted" provider for demos without
// network access.
type ScriptedLLM struct {
	model string

	mu       sync.Mutex
	rules    []scriptRule
	fallback string
	delay    time.Duration
	calls    int
	prompts  []string
}

type scriptRule struct {
	match   string
	content string
	err     error
	delay   time.Duration
	panics  bool
}

// NewScriptedLLM creates a scripted backend that answers every prompt with
// an empty JSON object until rules are added.
func NewScriptedLLM(model string) *ScriptedLLM {
	if model == "" {
		model = "scripted"
	}
	return &ScriptedLLM{model: model, fallback: "{}"}
}

// Respond answers prompts containing match with content.
func (s *ScriptedLLM) Respond(match, content string) *ScriptedLLM {
	return s.addRule(scriptRule{match: match, content: content})
}

// RespondAfter answers prompts containing match with content after delay.
func (s *ScriptedLLM) RespondAfter(match, content string, delay time.Duration) *ScriptedLLM {
	return s.addRule(scriptRule{match: match, content: content, delay: delay})
}

// Fail makes prompts containing match return err.
func (s *ScriptedLLM) Fail(match string, err error) *ScriptedLLM {
	return s.addRule(scriptRule{match: match, err: err})
}

// Panic makes prompts containing match panic.
func (s *ScriptedLLM) Panic(match string) *ScriptedLLM {
	return s.addRule(scriptRule{match: match, panics: true})
}

// Default sets the response for prompts no rule matches.
func (s *ScriptedLLM) Default(content string) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = content
	return s
}

// WithDelay delays every response that has no delay of its own.
func (s *ScriptedLLM) WithDelay(d time.Duration) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

func (s *ScriptedLLM) addRule(r scriptRule) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
	return s
}

// Calls returns the number of Complete calls made so far.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompts returns the joined conversation text of every call, in order.
func (s *ScriptedLLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Model returns the model identifier.
func (s *ScriptedLLM) Model() string {
	return s.model
}

// Complete returns the scripted response for the conversation.
func (s *ScriptedLLM) Complete(ctx context.Context, messages []*triad.Message, opts ...CallOption) (*triad.Message, error) {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	prompt := b.String()

	s.mu.Lock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	rule := scriptRule{content: s.fallback, delay: s.delay}
	for _, r := range s.rules {
		if strings.Contains(prompt, r.match) {
			rule = r
			if rule.delay == 0 {
				rule.delay = s.delay
			}
			break
		}
	}
	s.mu.Unlock()

	if rule.delay > 0 {
		timer := time.NewTimer(rule.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if rule.panics {
		panic("scripted backend panic")
	}
	if rule.err != nil {
		return nil, rule.err
	}

	response := triad.NewMessage("agent", rule.content)
	response.Metadata["model"] = s.model
	return response, nil
}

// Unwrap returns the scripted backend itself.
func (s *ScriptedLLM) Unwrap() interface{} {
	return s
}
