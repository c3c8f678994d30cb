package triad

// PersonalityPreSeed is a deterministic profile derived from a personality tag.
// It steers agent prompts and fallback templates and is never mutated once
// created.
type PersonalityPreSeed struct {
	Type               PersonalityType `json:"type"`
	Archetype          string          `json:"archetype"`
	CognitiveFunctions [4]string       `json:"cognitive_functions"`
	Strengths          []string        `json:"strengths"`
	Challenges         []string        `json:"challenges"`
	DevelopmentAreas   []string        `json:"development_areas"`
}

// DominantFunction returns the first cognitive function of the stack.
func (p PersonalityPreSeed) DominantFunction() string {
	return p.CognitiveFunctions[0]
}

type typeProfile struct {
	archetype string
	stack     [4]string
}

var preSeedTable = map[PersonalityType]typeProfile{
	INTJ: {"Architect", [4]string{"Ni", "Te", "Fi", "Se"}},
	INTP: {"Logician", [4]string{"Ti", "Ne", "Si", "Fe"}},
	ENTJ: {"Commander", [4]string{"Te", "Ni", "Se", "Fi"}},
	ENTP: {"Debater", [4]string{"Ne", "Ti", "Fe", "Si"}},
	INFJ: {"Advocate", [4]string{"Ni", "Fe", "Ti", "Se"}},
	INFP: {"Mediator", [4]string{"Fi", "Ne", "Si", "Te"}},
	ENFJ: {"Protagonist", [4]string{"Fe", "Ni", "Se", "Ti"}},
	ENFP: {"Campaigner", [4]string{"Ne", "Fi", "Te", "Si"}},
	ISTJ: {"Logistician", [4]string{"Si", "Te", "Fi", "Ne"}},
	ISFJ: {"Defender", [4]string{"Si", "Fe", "Ti", "Ne"}},
	ESTJ: {"Executive", [4]string{"Te", "Si", "Ne", "Fi"}},
	ESFJ: {"Consul", [4]string{"Fe", "Si", "Ne", "Ti"}},
	ISTP: {"Virtuoso", [4]string{"Ti", "Se", "Ni", "Fe"}},
	ISFP: {"Adventurer", [4]string{"Fi", "Se", "Ni", "Te"}},
	ESTP: {"Entrepreneur", [4]string{"Se", "Ti", "Fe", "Ni"}},
	ESFP: {"Entertainer", [4]string{"Se", "Fi", "Te", "Ni"}},
}

// functionTraits holds what each cognitive function contributes when it leads
// (strength), when it is least developed (challenge) and how to grow it.
var functionTraits = map[string]struct {
	name      string
	strength  string
	challenge string
	growth    string
}{
	"Ni": {"Introverted Intuition", "long-range vision", "losing touch with present details", "grounding insight in concrete steps"},
	"Ne": {"Extraverted Intuition", "generating possibilities", "scattering energy across ideas", "finishing what is started"},
	"Si": {"Introverted Sensing", "reliable memory and routine", "resisting unfamiliar change", "experimenting with new approaches"},
	"Se": {"Extraverted Sensing", "presence in the moment", "impulsive decisions", "pausing to consider consequences"},
	"Ti": {"Introverted Thinking", "precise analysis", "detachment from others' feelings", "sharing reasoning with warmth"},
	"Te": {"Extraverted Thinking", "efficient organization", "overriding quieter voices", "leaving room for reflection"},
	"Fi": {"Introverted Feeling", "authentic personal values", "taking criticism personally", "expressing needs openly"},
	"Fe": {"Extraverted Feeling", "building harmony", "neglecting own needs", "setting healthy boundaries"},
}

// FunctionName returns the long name of a cognitive function tag.
func FunctionName(tag string) string {
	if t, ok := functionTraits[tag]; ok {
		return t.name
	}
	return tag
}

// DerivePreSeed projects a personality tag into its pre-seed. The result only
// depends on the tag, so deriving twice yields identical values. Unknown tags
// get a neutral profile.
func DerivePreSeed(t PersonalityType) PersonalityPreSeed {
	profile, ok := preSeedTable[t]
	if !ok {
		return PersonalityPreSeed{
			Type:               t,
			Archetype:          "Explorer",
			CognitiveFunctions: [4]string{"Ne", "Ti", "Fe", "Si"},
			Strengths:          []string{"curiosity"},
			Challenges:         []string{"unclear focus"},
			DevelopmentAreas:   []string{"self-knowledge"},
		}
	}

	dominant := functionTraits[profile.stack[0]]
	auxiliary := functionTraits[profile.stack[1]]
	tertiary := functionTraits[profile.stack[2]]
	inferior := functionTraits[profile.stack[3]]

	return PersonalityPreSeed{
		Type:               t,
		Archetype:          profile.archetype,
		CognitiveFunctions: profile.stack,
		Strengths:          []string{dominant.strength, auxiliary.strength},
		Challenges:         []string{dominant.challenge, inferior.challenge},
		DevelopmentAreas:   []string{tertiary.growth, inferior.growth},
	}
}
