package fallback

import (
	"fmt"
	"strings"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// sessionTemplate holds the fixed text for one session type. Format verbs
// take the archetype, the dominant function name and the auxiliary
// function name, in that order.
type sessionTemplate struct {
	guidance    string
	narrative   string
	practice    string
	creative    string
	insight     string
	ethicalNote string
}

var templates = map[triad.SessionType]sessionTemplate{
	triad.SessionCoaching: {
		guidance:    "As the %[1]s, your %[2]s sees where this is heading. Name one outcome that matters this week and let your %[3]s shape the first step.",
		narrative:   "Every %[1]s grows by turning insight into practice.",
		practice:    "a weekly review of one goal",
		creative:    "sketch the result you want",
		insight:     "progress comes from small, repeated choices",
		ethicalNote: "keep commitments you can actually honor",
	},
	triad.SessionWellness: {
		guidance:    "As the %[1]s, you lean on %[2]s, and it tires when it carries everything. Give it rest today and let %[3]s help you reconnect with what restores you.",
		narrative:   "This is a season for the %[1]s to recover, not to prove anything.",
		practice:    "ten quiet minutes without screens",
		creative:    "notice one beautiful thing on a walk",
		insight:     "rest is part of the work",
		ethicalNote: "treat your energy as something worth protecting",
	},
	triad.SessionImagination: {
		guidance:    "As the %[1]s, let %[2]s wander without a goal for a while. Capture what appears and use %[3]s later to choose what to keep.",
		narrative:   "The %[1]s imagines best when nothing has to be decided yet.",
		practice:    "a free-writing page each morning",
		creative:    "collect images that surprise you",
		insight:     "unfinished ideas still count",
		ethicalNote: "make room for play without judging it",
	},
	triad.SessionActionPlanning: {
		guidance:    "As the %[1]s, turn what %[2]s already knows into three concrete steps. Use %[3]s to check each one is small enough to start today.",
		narrative:   "Plans serve the %[1]s when they stay simple.",
		practice:    "writing tomorrow's first task tonight",
		creative:    "draw the plan as a simple map",
		insight:     "the first step only has to be possible",
		ethicalNote: "plan around the people who depend on you",
	},
	triad.SessionContentDiscovery: {
		guidance:    "As the %[1]s, follow what feeds your %[2]s. Pick one book, talk or place that speaks to it, and let %[3]s tell you when to go deeper.",
		narrative:   "The %[1]s learns best by following real curiosity.",
		practice:    "keeping a short list of things to explore",
		creative:    "save one quote that moves you",
		insight:     "curiosity is a reliable compass",
		ethicalNote: "choose sources that respect your attention",
	},
}

// staticGuidance is used when no pipeline can be resolved.
const staticGuidance = "Take a moment to breathe and notice how you feel. One small, kind step forward is enough for today."

// templateFor returns the template for session. The full session combines
// every other template.
func templateFor(session triad.SessionType) sessionTemplate {
	if t, ok := templates[session]; ok {
		return t
	}
	parts := triad.SessionTypes()
	var combined sessionTemplate
	var guidance, narrative []string
	for _, s := range parts {
		t, ok := templates[s]
		if !ok {
			continue
		}
		guidance = append(guidance, t.guidance)
		narrative = append(narrative, t.narrative)
	}
	combined.guidance = strings.Join(guidance, " ")
	combined.narrative = strings.Join(narrative, " ")
	combined.practice = templates[triad.SessionWellness].practice
	combined.creative = templates[triad.SessionImagination].creative
	combined.insight = templates[triad.SessionCoaching].insight
	combined.ethicalNote = templates[triad.SessionActionPlanning].ethicalNote
	return combined
}

func fill(format string, p *Pipeline) string {
	return fmt.Sprintf(format,
		p.Archetype,
		triad.FunctionName(p.CognitiveFunctions[0]),
		triad.FunctionName(p.CognitiveFunctions[1]),
	)
}
