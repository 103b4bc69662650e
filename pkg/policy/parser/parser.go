// Package parser decodes raw policy text into an untyped document tree.
// It is the first layer of the validation pipeline: it only guarantees
// that the input is well-formed YAML whose top-level value is a mapping.
// Everything beyond that is the schema validator's job.
package parser

import (
	"fmt"

	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"gopkg.in/yaml.v3"
)

// DefaultMaxSize bounds the raw documents the parser accepts: 1 MiB.
const DefaultMaxSize = 1 << 20

// Parser decodes raw policy text into an untyped tree.
type Parser struct {
	maxSize int
}

// NewParser creates a parser with the default size bound.
func NewParser() *Parser {
	return &Parser{maxSize: DefaultMaxSize}
}

// WithMaxSize sets the maximum accepted document size in bytes.
func (p *Parser) WithMaxSize(size int) *Parser {
	p.maxSize = size
	return p
}

// Parse decodes raw into an untyped document tree. It returns a
// *errors.DocumentError when the input is empty, oversized, not valid
// YAML, or when the top-level decoded value is not a mapping. The last
// case is deliberately distinct from schema violations: there is no tree
// to walk.
func (p *Parser) Parse(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, &policyerrors.DocumentError{Message: "document is empty"}
	}
	if len(raw) > p.maxSize {
		return nil, &policyerrors.DocumentError{
			Message: fmt.Sprintf("document size %d exceeds maximum %d bytes", len(raw), p.maxSize),
		}
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, &policyerrors.DocumentError{Message: "YAML syntax error", Cause: err}
	}

	// yaml.Unmarshal wraps the value in a document node.
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, &policyerrors.DocumentError{Message: "document is empty"}
	}
	root := node.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &policyerrors.DocumentError{
			Message: "top-level value must be a mapping of policy fields",
		}
	}

	var tree map[string]any
	if err := root.Decode(&tree); err != nil {
		return nil, &policyerrors.DocumentError{Message: "failed to decode document", Cause: err}
	}

	return tree, nil
}
