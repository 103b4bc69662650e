// Package errors defines the tagged error kinds returned by the policy
// engine. Callers discriminate with errors.As instead of matching on
// message text; the four domain kinds (document, validation, conflict,
// not-found) are disjoint and never conflated.
package errors

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DocumentError reports raw text that could not be decoded at all, or
// whose top-level value is not a mapping. It is terminal; the caller
// must resubmit a corrected document.
type DocumentError struct {
	// Message describes the structural failure.
	Message string

	// Cause is the underlying decoder error, if any.
	Cause error
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid policy document: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid policy document: %s", e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// Violation is a single schema violation, qualified by the path of the
// offending field (e.g. "entities[0].confidence_threshold").
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// String returns the violation formatted as "path: message".
func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError carries the complete, ordered list of schema violations
// found in a document. It is always computed in a single exhaustive pass,
// never short-circuited at the first failure.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "policy validation failed"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("policy validation failed with %d violation(s):", len(e.Violations)))
	for _, v := range e.Violations {
		sb.WriteString("\n  - ")
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Add appends a violation to the list.
func (e *ValidationError) Add(path, message string) {
	e.Violations = append(e.Violations, Violation{Path: path, Message: message})
}

// Addf appends a violation with a formatted message.
func (e *ValidationError) Addf(path, format string, args ...any) {
	e.Add(path, fmt.Sprintf(format, args...))
}

// Merge appends all violations from other.
func (e *ValidationError) Merge(other *ValidationError) {
	if other != nil {
		e.Violations = append(e.Violations, other.Violations...)
	}
}

// HasViolations reports whether any violation was recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// ToError returns nil when no violation was recorded, otherwise the
// ValidationError itself.
func (e *ValidationError) ToError() error {
	if !e.HasViolations() {
		return nil
	}
	return e
}

// ConflictError reports an active-name collision on create or rename.
type ConflictError struct {
	// Name is the policy name that collided.
	Name string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("an active policy named %q already exists", e.Name)
}

// NotFoundError reports a missing or inactive policy, version, or
// template.
type NotFoundError struct {
	// Resource is the resource kind ("policy", "template", "version").
	Resource string

	// ID is the identifier that was not found.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// InternalError wraps an unexpected persistence or infrastructure
// failure. It exposes only an opaque correlation id to callers; the
// underlying cause is available for logging via Unwrap but never appears
// in the message.
type InternalError struct {
	// CorrelationID is an opaque marker for support diagnosis.
	CorrelationID string

	// Cause is the underlying failure, for server-side logging only.
	Cause error
}

// NewInternalError wraps cause with a fresh correlation id.
func NewInternalError(cause error) *InternalError {
	return &InternalError{
		CorrelationID: uuid.NewString(),
		Cause:         cause,
	}
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error (correlation id %s)", e.CorrelationID)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *InternalError) Unwrap() error {
	return e.Cause
}
