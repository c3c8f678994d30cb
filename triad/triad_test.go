package triad

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func validRequest() *OrchestrationRequest {
	return &OrchestrationRequest{
		UserID:          "user-1",
		PersonalityType: INFJ,
		SessionType:     SessionWellness,
		Input:           "I feel stuck at work",
	}
}

func TestDerivePreSeedIsIdempotent(t *testing.T) {
	for _, p := range PersonalityTypes() {
		first := DerivePreSeed(p)
		second := DerivePreSeed(p)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: pre-seed differs between derivations", p)
		}
		if first.Archetype == "" {
			t.Errorf("%s: empty archetype", p)
		}
		for i, f := range first.CognitiveFunctions {
			if f == "" {
				t.Errorf("%s: empty cognitive function at %d", p, i)
			}
		}
		if len(first.Strengths) == 0 || len(first.Challenges) == 0 || len(first.DevelopmentAreas) == 0 {
			t.Errorf("%s: missing trait lists", p)
		}
	}
}

func TestDerivePreSeedKnownProfile(t *testing.T) {
	seed := DerivePreSeed(INTJ)
	if seed.Archetype != "Architect" {
		t.Errorf("Expected Architect, got %s", seed.Archetype)
	}
	if seed.DominantFunction() != "Ni" {
		t.Errorf("Expected dominant Ni, got %s", seed.DominantFunction())
	}
	if FunctionName("Ni") != "Introverted Intuition" {
		t.Errorf("Unexpected function name %q", FunctionName("Ni"))
	}
}

func TestParsePersonalityType(t *testing.T) {
	p, err := ParsePersonalityType(" enfp ")
	if err != nil {
		t.Fatalf("ParsePersonalityType failed: %v", err)
	}
	if p != ENFP {
		t.Errorf("Expected ENFP, got %s", p)
	}

	_, err = ParsePersonalityType("XXXX")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *OrchestrationRequest)
		field  string
	}{
		{"valid", func(r *OrchestrationRequest) {}, ""},
		{"empty user", func(r *OrchestrationRequest) { r.UserID = " " }, "user_id"},
		{"unknown type", func(r *OrchestrationRequest) { r.PersonalityType = "ABCD" }, "personality_type"},
		{"unknown session", func(r *OrchestrationRequest) { r.SessionType = "party" }, "session_type"},
		{"empty input", func(r *OrchestrationRequest) { r.Input = "" }, "input"},
		{"oversized input", func(r *OrchestrationRequest) { r.Input = strings.Repeat("a", MaxInputSize+1) }, "input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

func TestResolvePreSeedPrefersCallerSupplied(t *testing.T) {
	r := validRequest()
	custom := PersonalityPreSeed{Archetype: "Gardener", CognitiveFunctions: [4]string{"Fi", "Ne", "Si", "Te"}}
	r.PreSeed = &custom
	if got := r.ResolvePreSeed(); got.Archetype != "Gardener" {
		t.Errorf("Expected caller pre-seed, got %s", got.Archetype)
	}

	r.PreSeed = nil
	if got := r.ResolvePreSeed(); got.Archetype != "Advocate" {
		t.Errorf("Expected derived Advocate, got %s", got.Archetype)
	}
}

func TestOverallConfidence(t *testing.T) {
	responses := []AgentResponse{
		{Agent: RoleAesthetic, Confidence: 85},
		{Agent: RoleCognitive, Confidence: 65},
		{Agent: RoleEthical, Confidence: 30},
	}
	// (85+65+30)/3 = 60
	if got := OverallConfidence(responses); got != 60 {
		t.Errorf("Expected 60, got %d", got)
	}

	responses[2].Confidence = 31
	// 181/3 = 60.33
	if got := OverallConfidence(responses); got != 60 {
		t.Errorf("Expected 60, got %d", got)
	}

	if got := OverallConfidence(nil); got != DegradedConfidence {
		t.Errorf("Expected %d for no agents, got %d", DegradedConfidence, got)
	}

	if got := OverallConfidence([]AgentResponse{{Confidence: 250}}); got != 100 {
		t.Errorf("Expected clamp to 100, got %d", got)
	}
}

func TestFallbackPayload(t *testing.T) {
	for _, role := range Roles() {
		p := NewFallbackPayload(role)
		if p.Role() != role {
			t.Errorf("Expected role %s, got %s", role, p.Role())
		}
		if !p.Common().Fallback {
			t.Errorf("%s: placeholder not flagged", role)
		}
		resp := AgentResponse{Agent: role, Payload: p}
		if !resp.Degraded() {
			t.Errorf("%s: expected degraded response", role)
		}
	}
}

func TestMessageValidate(t *testing.T) {
	if err := NewMessage("user", "hi").Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := NewMessage("robot", "hi").Validate(); err == nil {
		t.Error("expected error for invalid role")
	}
}
