package triad

import (
	"fmt"
	"strings"
)

// PersonalityType is one of the sixteen personality profile tags.
type PersonalityType string

const (
	INTJ PersonalityType = "INTJ"
	INTP PersonalityType = "INTP"
	ENTJ PersonalityType = "ENTJ"
	ENTP PersonalityType = "ENTP"
	INFJ PersonalityType = "INFJ"
	INFP PersonalityType = "INFP"
	ENFJ PersonalityType = "ENFJ"
	ENFP PersonalityType = "ENFP"
	ISTJ PersonalityType = "ISTJ"
	ISFJ PersonalityType = "ISFJ"
	ESTJ PersonalityType = "ESTJ"
	ESFJ PersonalityType = "ESFJ"
	ISTP PersonalityType = "ISTP"
	ISFP PersonalityType = "ISFP"
	ESTP PersonalityType = "ESTP"
	ESFP PersonalityType = "ESFP"
)

// PersonalityTypes returns all sixteen personality tags.
func PersonalityTypes() []PersonalityType {
	return []PersonalityType{
		INTJ, INTP, ENTJ, ENTP,
		INFJ, INFP, ENFJ, ENFP,
		ISTJ, ISFJ, ESTJ, ESFJ,
		ISTP, ISFP, ESTP, ESFP,
	}
}

// Valid reports whether p is one of the sixteen known tags.
func (p PersonalityType) Valid() bool {
	_, ok := preSeedTable[p]
	return ok
}

// ParsePersonalityType parses a tag case-insensitively.
func ParsePersonalityType(s string) (PersonalityType, error) {
	p := PersonalityType(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", &ValidationError{Field: "personality_type", Reason: fmt.Sprintf("unknown personality type %q", s)}
	}
	return p, nil
}

// SessionType selects the kind of guidance requested.
type SessionType string

const (
	SessionCoaching         SessionType = "coaching"
	SessionWellness         SessionType = "wellness"
	SessionImagination      SessionType = "imagination"
	SessionActionPlanning   SessionType = "action_planning"
	SessionContentDiscovery SessionType = "content_discovery"
	SessionFull             SessionType = "full"
)

// SessionTypes returns all session types.
func SessionTypes() []SessionType {
	return []SessionType{
		SessionCoaching,
		SessionWellness,
		SessionImagination,
		SessionActionPlanning,
		SessionContentDiscovery,
		SessionFull,
	}
}

// Valid reports whether s is a known session type.
func (s SessionType) Valid() bool {
	for _, known := range SessionTypes() {
		if s == known {
			return true
		}
	}
	return false
}

// Mode is the execution strategy used for one orchestration call.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeHybrid  Mode = "hybrid"
)

// MaxInputSize bounds the free-text input of a request.
const MaxInputSize = 32 * 1024

// OrchestrationRequest is the immutable input of one orchestration call.
type OrchestrationRequest struct {
	UserID          string                 `json:"user_id"`
	PersonalityType PersonalityType        `json:"personality_type"`
	SessionType     SessionType            `json:"session_type"`
	Input           string                 `json:"input"`
	Context         map[string]interface{} `json:"context,omitempty"`
	PreSeed         *PersonalityPreSeed    `json:"pre_seed,omitempty"`
}

// ValidationError describes an invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the request before any work is dispatched.
func (r *OrchestrationRequest) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Reason: "request cannot be nil"}
	}
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "user id cannot be empty"}
	}
	if !r.PersonalityType.Valid() {
		return &ValidationError{Field: "personality_type", Reason: fmt.Sprintf("unknown personality type %q", r.PersonalityType)}
	}
	if !r.SessionType.Valid() {
		return &ValidationError{Field: "session_type", Reason: fmt.Sprintf("unknown session type %q", r.SessionType)}
	}
	if strings.TrimSpace(r.Input) == "" {
		return &ValidationError{Field: "input", Reason: "input cannot be empty"}
	}
	if len(r.Input) > MaxInputSize {
		return &ValidationError{Field: "input", Reason: fmt.Sprintf("input exceeds %d bytes (got %d)", MaxInputSize, len(r.Input))}
	}
	return nil
}

// WithSessionType returns a copy of the request with the session type replaced.
func (r OrchestrationRequest) WithSessionType(s SessionType) OrchestrationRequest {
	r.SessionType = s
	return r
}

// ResolvePreSeed returns the caller-supplied pre-seed, or derives one from the
// personality tag.
func (r *OrchestrationRequest) ResolvePreSeed() PersonalityPreSeed {
	if r.PreSeed != nil && r.PreSeed.Archetype != "" {
		return *r.PreSeed
	}
	return DerivePreSeed(r.PersonalityType)
}
