package coordinator

import (
	"fmt"
	"strings"

	"github.com/scttfrdmn/triadkit-go/triad"
)

type rolePayloads struct {
	aesthetic *triad.AestheticPayload
	cognitive *triad.CognitivePayload
	ethical   *triad.EthicalPayload
}

func collect(responses []triad.AgentResponse) rolePayloads {
	var out rolePayloads
	for _, r := range responses {
		if r.Degraded() {
			continue
		}
		switch p := r.Payload.(type) {
		case *triad.AestheticPayload:
			out.aesthetic = p
		case *triad.CognitivePayload:
			out.cognitive = p
		case *triad.EthicalPayload:
			out.ethical = p
		}
	}
	return out
}

var therapeuticFrames = map[triad.SessionType]string{
	triad.SessionCoaching:         "Coaching focus",
	triad.SessionWellness:         "Wellness focus",
	triad.SessionImagination:      "Imaginative focus",
	triad.SessionActionPlanning:   "Action focus",
	triad.SessionContentDiscovery: "Discovery focus",
	triad.SessionFull:             "Integrated focus",
}

// buildSections computes the rule-based sub-sections shared by both
// synthesis methods.
func buildSections(req *triad.OrchestrationRequest, preseed triad.PersonalityPreSeed, responses []triad.AgentResponse) triad.CoordinatedResponse {
	p := collect(responses)
	fns := preseed.CognitiveFunctions

	out := triad.CoordinatedResponse{
		Archetype:          preseed.Archetype,
		CognitiveFunctions: fns,
	}

	integration := fmt.Sprintf("Your %s leads, supported by %s.",
		triad.FunctionName(fns[0]), triad.FunctionName(fns[1]))
	if p.cognitive != nil && len(p.cognitive.Insights) > 0 {
		integration += " Insights: " + strings.Join(p.cognitive.Insights, "; ") + "."
	}
	out.CognitiveIntegration = integration

	var narrative []string
	if p.cognitive != nil && p.cognitive.Narrative != "" {
		narrative = append(narrative, p.cognitive.Narrative)
	}
	if p.aesthetic != nil && p.aesthetic.Imagery != "" {
		narrative = append(narrative, "Picture "+p.aesthetic.Imagery+".")
	}
	if len(narrative) == 0 {
		narrative = append(narrative, fmt.Sprintf("This is a chapter in the %s's story, not the whole of it.", preseed.Archetype))
	}
	out.NarrativeSynthesis = strings.Join(narrative, " ")

	var wisdom []string
	if p.cognitive != nil && p.cognitive.Wisdom != "" {
		wisdom = append(wisdom, p.cognitive.Wisdom)
	}
	if p.ethical != nil && len(p.ethical.Values) > 0 {
		wisdom = append(wisdom, "Anchor in "+strings.Join(p.ethical.Values, ", ")+".")
	}
	if len(wisdom) == 0 && len(preseed.Strengths) > 0 {
		wisdom = append(wisdom, "Lean on your "+preseed.Strengths[0]+".")
	}
	out.WisdomDistillation = strings.Join(wisdom, " ")

	therapy := therapeuticFrames[req.SessionType] + ":"
	if p.ethical != nil && len(p.ethical.Practices) > 0 {
		therapy += " practice " + strings.Join(p.ethical.Practices, ", ") + "."
	} else {
		therapy += " one small, kind step today."
	}
	if p.ethical != nil && p.ethical.Rhythm != "" {
		therapy += " Rhythm: " + p.ethical.Rhythm + "."
	}
	out.TherapeuticApproach = therapy

	var optimization []string
	if len(preseed.Strengths) > 0 {
		optimization = append(optimization, "Build on "+strings.Join(preseed.Strengths, " and ")+".")
	}
	if len(preseed.DevelopmentAreas) > 0 {
		optimization = append(optimization, "Grow through "+strings.Join(preseed.DevelopmentAreas, " and ")+".")
	}
	if p.aesthetic != nil && len(p.aesthetic.CreativePractices) > 0 {
		optimization = append(optimization, "Try "+strings.Join(p.aesthetic.CreativePractices, ", ")+".")
	}
	out.PersonalityOptimization = strings.Join(optimization, " ")

	return out
}
