// Package safety screens user input before it reaches a reasoning backend
// and scrubs sensitive data before anything is persisted.
//
// Two tools are provided:
//   - InjectionDetector scores text for prompt injection attempts
//   - Redactor replaces credentials and PII with typed placeholders
package safety

import (
	"regexp"
	"strings"
)

// DefaultInjectionThreshold is the score at which input is flagged.
const DefaultInjectionThreshold = 10

// patternScore is added for each dangerous pattern found.
const patternScore = 10

var dangerousPatterns = compileAll(
	`ignore\s+(all\s+)?(previous|all|above|prior)\s+instructions?`,
	`disregard\s+(previous|all|above|prior)`,
	`forget\s+(everything|all|previous)`,
	`new\s+instructions?:`,
	`system\s*(prompt|message)?:`,
	`you\s+are\s+now`,
	`act\s+as\s+(if|though)`,
	`pretend\s+(you|to)\s+(are|be)`,
	`roleplay\s+as`,
	`^sudo\s+`,
	`(admin|developer|god)\s+mode`,
	`jailbreak`,
	`</?\s*system\s*>`,
	`<\|.*?\|>`,
	`\[INST\]`,
	`\{system\}`,
)

var suspiciousKeywords = map[string]int{
	"ignore":       3,
	"disregard":    3,
	"override":     2,
	"bypass":       3,
	"jailbreak":    5,
	"prompt":       2,
	"injection":    4,
	"system":       2,
	"admin":        2,
	"sudo":         3,
	"privilege":    2,
	"instructions": 2,
}

var (
	wordPattern      = regexp.MustCompile(`\w+`)
	specialPattern   = regexp.MustCompile(`[<>{}\[\]|]`)
	insistentPattern = regexp.MustCompile(`(?i)(please|must|you (should|will|must))`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// Assessment is the outcome of screening one input.
type Assessment struct {
	Flagged bool
	Score   int
	// Matched lists the dangerous patterns found.
	Matched []string
}

// InjectionDetector detects potential prompt injection attempts.
//
// Uses pattern matching and keyword weights to identify instruction
// overrides, jailbreaks and smuggled system prompts.
//
// Example:
//
//	detector := NewInjectionDetector(0)
//	a := detector.Detect("Ignore all previous instructions")
//	fmt.Printf("flagged=%v score=%d\n", a.Flagged, a.Score)
type InjectionDetector struct {
	threshold int
}

// NewInjectionDetector creates a detector. A threshold of zero or less uses
// DefaultInjectionThreshold.
func NewInjectionDetector(threshold int) *InjectionDetector {
	if threshold <= 0 {
		threshold = DefaultInjectionThreshold
	}
	return &InjectionDetector{threshold: threshold}
}

// Detect scores text. Every dangerous pattern adds 10, suspicious keywords
// add their weight, and obfuscation heuristics add a little more.
func (d *InjectionDetector) Detect(text string) Assessment {
	lower := strings.ToLower(text)
	var a Assessment

	for _, re := range dangerousPatterns {
		if re.MatchString(lower) {
			a.Score += patternScore
			a.Matched = append(a.Matched, strings.TrimPrefix(re.String(), "(?i)"))
		}
	}
	for _, word := range wordPattern.FindAllString(lower, -1) {
		a.Score += suspiciousKeywords[word]
	}

	// Heavy use of brackets suggests encoded payloads.
	if len(specialPattern.FindAllString(text, -1)) > 5 {
		a.Score += 2
	}
	if len(text) > 5000 {
		a.Score++
	}
	if len(insistentPattern.FindAllString(lower, -1)) > 5 {
		a.Score += 2
	}

	a.Flagged = a.Score >= d.threshold
	return a
}

// Flagged reports whether text reaches the threshold.
func (d *InjectionDetector) Flagged(text string) bool {
	return d.Detect(text).Flagged
}
