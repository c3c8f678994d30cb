package safety

import "regexp"

type redaction struct {
	pattern *regexp.Regexp
	label   string
}

// Order matters: more specific shapes run before the generic number
// patterns that would otherwise claim part of them.
var redactions = []redaction{
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "JWT"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`), "API_KEY"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS_ACCESS_KEY"},
	{regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`), "GITHUB_TOKEN"},
	{regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`), "EMAIL"},
	{regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`), "CREDIT_CARD"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "SSN"},
	{regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), "PHONE"},
}

// Redactor replaces credentials and PII with "[LABEL]" placeholders.
//
// Example:
//
//	r := NewRedactor()
//	r.Redact("mail me at ana@example.com") // "mail me at [EMAIL]"
type Redactor struct {
	redactions []redaction
}

// NewRedactor creates a redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{redactions: redactions}
}

// Redact returns text with every sensitive match replaced.
func (r *Redactor) Redact(text string) string {
	for _, rd := range r.redactions {
		text = rd.pattern.ReplaceAllString(text, "["+rd.label+"]")
	}
	return text
}

// Contains reports whether text holds anything Redact would replace.
func (r *Redactor) Contains(text string) bool {
	for _, rd := range r.redactions {
		if rd.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
