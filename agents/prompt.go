package agents

import (
	"fmt"
	"strings"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// roleFields lists the JSON fields each role is asked to return, besides
// "guidance".
var roleFields = map[triad.AgentRole][]string{
	triad.RoleAesthetic: {"creative_practices", "beauty_focus", "imagery"},
	triad.RoleCognitive: {"insights", "narrative", "wisdom"},
	triad.RoleEthical:   {"values", "rhythm", "practices"},
}

var roleInstructions = map[triad.AgentRole]string{
	triad.RoleAesthetic: "You are the aesthetic advisor. Look for beauty, creativity and imagery that can carry the person forward.",
	triad.RoleCognitive: "You are the cognitive advisor. Offer wisdom, reframe the situation as a narrative and name the insights it holds.",
	triad.RoleEthical:   "You are the ethical advisor. Ground the guidance in values and in a sustainable daily rhythm of practice.",
}

var sessionFocus = map[triad.SessionType]string{
	triad.SessionCoaching:         "a coaching conversation about growth and next steps",
	triad.SessionWellness:         "a wellness check-in about balance and energy",
	triad.SessionImagination:      "an imagination session exploring possibilities",
	triad.SessionActionPlanning:   "an action planning session that ends with concrete steps",
	triad.SessionContentDiscovery: "a content discovery session recommending what to read, watch or try",
	triad.SessionFull:             "a full session covering growth, wellbeing, imagination and action",
}

// BuildPrompt renders the user prompt for one agent. It carries the
// archetype, the cognitive function stack, the session focus and the raw
// input, and asks for a JSON object with the role's fields.
func BuildPrompt(role triad.AgentRole, req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Agent focus: %s (%s).\n", role, role.Descriptor())
	fmt.Fprintf(&b, "Session: %s.\n", sessionFocus[req.SessionType])
	fmt.Fprintf(&b, "Personality: %s, the %s.\n", req.PersonalityType, preseed.Archetype)

	functions := make([]string, 0, len(preseed.CognitiveFunctions))
	for _, tag := range preseed.CognitiveFunctions {
		functions = append(functions, fmt.Sprintf("%s (%s)", tag, triad.FunctionName(tag)))
	}
	fmt.Fprintf(&b, "Cognitive functions: %s.\n", strings.Join(functions, ", "))
	if len(preseed.Strengths) > 0 {
		fmt.Fprintf(&b, "Strengths: %s.\n", strings.Join(preseed.Strengths, "; "))
	}
	if len(preseed.DevelopmentAreas) > 0 {
		fmt.Fprintf(&b, "Development areas: %s.\n", strings.Join(preseed.DevelopmentAreas, "; "))
	}

	b.WriteString("\nWhat they shared:\n")
	b.WriteString(req.Input)
	b.WriteString("\n\n")

	fields := append([]string{"guidance"}, roleFields[role]...)
	fmt.Fprintf(&b, "Respond with a single JSON object with the fields %s. ", strings.Join(fields, ", "))
	b.WriteString("Lists are JSON arrays of short strings. Do not add text outside the JSON object.")

	return b.String()
}

// Messages wraps a prompt with the role's system instruction.
func Messages(role triad.AgentRole, prompt string) []*triad.Message {
	return []*triad.Message{
		triad.NewMessage("system", roleInstructions[role]),
		triad.NewMessage("user", prompt),
	}
}
