// Package policy is the entry point to the policy definition, validation,
// and versioning engine. It re-exports the validation pipeline as a
// single call; lifecycle operations live in the manager subpackage.
package policy

import (
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/validator"
)

// Validate runs the full validation pipeline (syntax, schema, business
// rules) over raw policy YAML. See validator.Validator.ValidateBytes.
func Validate(raw []byte) (*validator.Result, error) {
	return validator.NewValidator().ValidateBytes(raw)
}
