package agents

import (
	"encoding/json"
	"strings"

	"github.com/scttfrdmn/triadkit-go/triad"
)

// Confidence levels assigned by ScoreConfidence.
const (
	ConfidenceDegraded     = 30
	ConfidencePartial      = 65
	ConfidenceStructured   = 85
	structuredFieldMinimum = 4
)

// ParsePayload turns backend text into the role's payload. The first JSON
// object in the text is used, with markdown fences tolerated. Text with no
// usable object becomes plain guidance with zero structured fields.
func ParsePayload(role triad.AgentRole, text string) triad.AgentPayload {
	payload := triad.NewPayload(role)
	common := payload.Common()
	common.Raw = text

	fields, ok := extractObject(text)
	if !ok {
		common.Guidance = strings.TrimSpace(text)
		return payload
	}
	common.FieldCount = len(fields)
	common.Guidance = stringField(fields, "guidance")

	switch p := payload.(type) {
	case *triad.AestheticPayload:
		p.CreativePractices = listField(fields, "creative_practices")
		p.BeautyFocus = stringField(fields, "beauty_focus")
		p.Imagery = stringField(fields, "imagery")
		if common.Guidance == "" {
			common.Guidance = firstNonEmpty(p.BeautyFocus, p.Imagery)
		}
	case *triad.CognitivePayload:
		p.Insights = listField(fields, "insights")
		p.Narrative = stringField(fields, "narrative")
		p.Wisdom = stringField(fields, "wisdom")
		if common.Guidance == "" {
			common.Guidance = firstNonEmpty(p.Wisdom, p.Narrative)
		}
	case *triad.EthicalPayload:
		p.Values = listField(fields, "values")
		p.Rhythm = stringField(fields, "rhythm")
		p.Practices = listField(fields, "practices")
		if common.Guidance == "" {
			common.Guidance = p.Rhythm
		}
	}
	return payload
}

// ScoreConfidence rates a payload by how much structure the backend
// returned: placeholders and unstructured text score 30, more than three
// top-level fields score 85, anything else 65.
func ScoreConfidence(payload triad.AgentPayload) int {
	if payload == nil {
		return ConfidenceDegraded
	}
	c := payload.Common()
	switch {
	case c.Fallback || c.FieldCount == 0:
		return ConfidenceDegraded
	case c.FieldCount >= structuredFieldMinimum:
		return ConfidenceStructured
	default:
		return ConfidencePartial
	}
}

// extractObject finds the first balanced JSON object in text.
func extractObject(text string) (map[string]interface{}, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchingBrace(text, start)
		if end < 0 {
			return nil, false
		}
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err == nil {
			return fields, true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			return nil, false
		}
		start += next + 1
	}
	return nil, false
}

// matchingBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON strings.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		return strings.Join(toStrings(v), " ")
	default:
		return ""
	}
}

// listField accepts either an array or a single string.
func listField(fields map[string]interface{}, key string) []string {
	switch v := fields[key].(type) {
	case []interface{}:
		return toStrings(v)
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

func toStrings(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
