// Package validator checks parsed policy documents against the fixed
// schema and the advisory business rules. The schema pass is exhaustive:
// every violated rule is reported in one pass with a path-qualified
// message. The business-rule pass never blocks; it only emits warnings.
package validator

import (
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/parser"
)

// Result is the outcome of validating a raw policy document.
type Result struct {
	// Valid reports whether the document passed syntax and schema
	// validation. Warnings do not affect it.
	Valid bool `json:"valid"`

	// Document is the typed, normalized document when Valid is true.
	Document *document.PolicyDocument `json:"document,omitempty"`

	// Errors is the exhaustive list of schema violations when Valid is
	// false and the document parsed.
	Errors []policyerrors.Violation `json:"errors,omitempty"`

	// Warnings are advisory business-rule findings. A valid document can
	// still carry warnings.
	Warnings []string `json:"warnings,omitempty"`
}

// Validator runs the full validation pipeline over raw policy text.
type Validator struct {
	parser *parser.Parser
}

// NewValidator creates a validator with a default parser.
func NewValidator() *Validator {
	return &Validator{parser: parser.NewParser()}
}

// NewValidatorWithMaxSize creates a validator whose parser rejects
// documents larger than maxSize bytes.
func NewValidatorWithMaxSize(maxSize int) *Validator {
	return &Validator{parser: parser.NewParser().WithMaxSize(maxSize)}
}

// ValidateBytes runs syntax parsing, schema validation, and the
// business-rule checks over raw policy text.
//
// A syntax-level failure (unparseable text, non-mapping top level) is
// returned as a *errors.DocumentError; the caller has nothing to inspect.
// Schema violations produce a Result with Valid=false and the complete
// violation list. A schema-valid document produces Valid=true plus any
// warnings.
func (v *Validator) ValidateBytes(raw []byte) (*Result, error) {
	tree, err := v.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	doc, verr := ValidateSchema(tree)
	if verr != nil {
		return &Result{Valid: false, Errors: verr.Violations}, nil
	}

	return &Result{
		Valid:    true,
		Document: doc,
		Warnings: CheckRules(doc),
	}, nil
}
