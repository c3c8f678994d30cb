package triad

import "time"

// AgentRole identifies one of the three fixed advisory agents.
type AgentRole string

const (
	RoleAesthetic AgentRole = "aesthetic"
	RoleCognitive AgentRole = "cognitive"
	RoleEthical   AgentRole = "ethical"
)

// Roles returns the three agent roles in dispatch order.
func Roles() []AgentRole {
	return []AgentRole{RoleAesthetic, RoleCognitive, RoleEthical}
}

// Descriptor returns the thematic focus of the role.
func (r AgentRole) Descriptor() string {
	switch r {
	case RoleAesthetic:
		return "beauty and creativity"
	case RoleCognitive:
		return "wisdom and narrative"
	case RoleEthical:
		return "ethics and rhythm"
	default:
		return "general guidance"
	}
}

// AgentPayload is the role-specific output of an agent. The set of
// implementations is closed: *AestheticPayload, *CognitivePayload and
// *EthicalPayload.
type AgentPayload interface {
	Role() AgentRole
	Common() *PayloadCommon
	sealed()
}

// PayloadCommon holds the fields every payload carries.
type PayloadCommon struct {
	Guidance string `json:"guidance"`
	// Raw is the unparsed backend text.
	Raw string `json:"raw,omitempty"`
	// FieldCount is the number of top-level fields the backend returned.
	FieldCount int  `json:"field_count"`
	Fallback   bool `json:"fallback,omitempty"`
}

// Common returns the shared payload fields.
func (c *PayloadCommon) Common() *PayloadCommon { return c }

func (c *PayloadCommon) sealed() {}

// AestheticPayload is produced by the aesthetic agent.
type AestheticPayload struct {
	PayloadCommon
	CreativePractices []string `json:"creative_practices,omitempty"`
	BeautyFocus       string   `json:"beauty_focus,omitempty"`
	Imagery           string   `json:"imagery,omitempty"`
}

// Role implements AgentPayload.
func (*AestheticPayload) Role() AgentRole { return RoleAesthetic }

// CognitivePayload is produced by the cognitive agent.
type CognitivePayload struct {
	PayloadCommon
	Insights  []string `json:"insights,omitempty"`
	Narrative string   `json:"narrative,omitempty"`
	Wisdom    string   `json:"wisdom,omitempty"`
}

// Role implements AgentPayload.
func (*CognitivePayload) Role() AgentRole { return RoleCognitive }

// EthicalPayload is produced by the ethical agent.
type EthicalPayload struct {
	PayloadCommon
	Values    []string `json:"values,omitempty"`
	Rhythm    string   `json:"rhythm,omitempty"`
	Practices []string `json:"practices,omitempty"`
}

// Role implements AgentPayload.
func (*EthicalPayload) Role() AgentRole { return RoleEthical }

// NewPayload returns an empty payload for the role. Unknown roles get a
// cognitive payload.
func NewPayload(role AgentRole) AgentPayload {
	switch role {
	case RoleAesthetic:
		return &AestheticPayload{}
	case RoleEthical:
		return &EthicalPayload{}
	default:
		return &CognitivePayload{}
	}
}

// UnavailableGuidance is the fixed guidance of a placeholder payload.
const UnavailableGuidance = "This perspective is temporarily unavailable."

// NewFallbackPayload returns the placeholder used when an agent call fails.
func NewFallbackPayload(role AgentRole) AgentPayload {
	p := NewPayload(role)
	c := p.Common()
	c.Guidance = UnavailableGuidance
	c.Fallback = true
	return p
}

// ResponseMetadata describes how an agent response was produced.
type ResponseMetadata struct {
	Prompt         string `json:"prompt,omitempty"`
	RoleDescriptor string `json:"role_descriptor"`
	Model          string `json:"model,omitempty"`
	Synthetic      bool   `json:"synthetic,omitempty"`
	Error          string `json:"error,omitempty"`
}

// AgentResponse is the output of one agent for one orchestration call.
type AgentResponse struct {
	Agent          AgentRole        `json:"agent"`
	Payload        AgentPayload     `json:"payload"`
	Confidence     int              `json:"confidence"`
	ProcessingTime time.Duration    `json:"processing_time"`
	Metadata       ResponseMetadata `json:"metadata"`
}

// Degraded reports whether the response is a failure placeholder.
func (r AgentResponse) Degraded() bool {
	return r.Payload == nil || r.Payload.Common().Fallback
}
