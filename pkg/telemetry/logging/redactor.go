package logging

import (
	"log/slog"
	"regexp"
)

// redactedPlaceholder replaces any matched PII value.
const redactedPlaceholder = "[REDACTED]"

// Redactor scrubs PII-looking values out of log attributes so that
// policy documents and audit details never leak raw identifiers into
// log streams.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name  string
	regex *regexp.Regexp
}

// NewRedactor creates a Redactor with the default pattern set.
func NewRedactor() *Redactor {
	r := &Redactor{}
	r.add("email", `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	r.add("ssn", `\b\d{3}-\d{2}-\d{4}\b`)
	r.add("credit_card", `\b(?:\d[ -]?){13,16}\b`)
	r.add("phone", `\b\+?\d{1,3}[-. ]?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
	r.add("ipv4", `\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	r.add("iban", `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)
	return r
}

func (r *Redactor) add(name, pattern string) {
	r.patterns = append(r.patterns, &redactPattern{
		name:  name,
		regex: regexp.MustCompile(pattern),
	})
}

// Redact replaces every PII match in s with the redaction placeholder.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}

// RedactAttr redacts string-valued slog attributes. Non-string values
// pass through untouched.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(r.Redact(a.Value.String()))
	}
	return a
}
