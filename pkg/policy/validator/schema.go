package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/catalog"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
)

// Field length bounds.
const (
	maxNameLength        = 255
	maxDescriptionLength = 1000
	maxReplacementLength = 50
)

// Closed-schema field sets. Any key outside these is a violation.
var (
	topLevelFields = map[string]bool{
		"name":          true,
		"version":       true,
		"description":   true,
		"entities":      true,
		"scope":         true,
		"anonymization": true,
	}
	entityFields = map[string]bool{
		"type":                 true,
		"confidence_threshold": true,
		"action":               true,
		"replacement":          true,
	}
	scopeFields = map[string]bool{
		"file_types":    true,
		"max_file_size": true,
	}
	anonymizationFields = map[string]bool{
		"default_action":  true,
		"preserve_format": true,
		"audit_trail":     true,
	}
)

// ValidateSchema checks an untyped document tree against the fixed policy
// schema and returns either a strongly-typed, normalized document or the
// exhaustive list of violations. Every violated rule is reported in one
// pass; nothing short-circuits at the first failure.
func ValidateSchema(tree map[string]any) (*document.PolicyDocument, *policyerrors.ValidationError) {
	doc := &document.PolicyDocument{}

	var violations []policyerrors.Violation
	violations = append(violations, checkUnknownFields("", tree, topLevelFields)...)
	violations = append(violations, validateMetadata(tree, doc)...)
	violations = append(violations, validateEntities(tree, doc)...)
	violations = append(violations, validateScope(tree, doc)...)
	violations = append(violations, validateAnonymization(tree, doc)...)

	if len(violations) > 0 {
		return nil, &policyerrors.ValidationError{Violations: violations}
	}

	document.Normalize(doc)
	return doc, nil
}

// checkUnknownFields reports every key of tree outside the allowed set,
// in sorted order so violation lists are deterministic.
func checkUnknownFields(prefix string, tree map[string]any, allowed map[string]bool) []policyerrors.Violation {
	var unknown []string
	for key := range tree {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	out := make([]policyerrors.Violation, 0, len(unknown))
	for _, key := range unknown {
		out = append(out, policyerrors.Violation{
			Path:    joinPath(prefix, key),
			Message: "unknown field",
		})
	}
	return out
}

func validateMetadata(tree map[string]any, doc *document.PolicyDocument) []policyerrors.Violation {
	var out []policyerrors.Violation

	name, vs := requireString(tree, "name")
	out = append(out, vs...)
	if len(vs) == 0 {
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			out = append(out, violationf("name", "must be between 1 and %d characters", maxNameLength))
		}
		doc.Name = name
	}

	version, vs := requireString(tree, "version")
	out = append(out, vs...)
	if len(vs) == 0 {
		if !document.IsVersionLabel(version) {
			out = append(out, violationf("version", "must match X.Y.Z with non-negative integer components"))
		}
		doc.Version = version
	}

	description, vs := requireString(tree, "description")
	out = append(out, vs...)
	if len(vs) == 0 {
		if description == "" || utf8.RuneCountInString(description) > maxDescriptionLength {
			out = append(out, violationf("description", "must be between 1 and %d characters", maxDescriptionLength))
		}
		doc.Description = description
	}

	return out
}

func validateEntities(tree map[string]any, doc *document.PolicyDocument) []policyerrors.Violation {
	raw, ok := tree["entities"]
	if !ok {
		return []policyerrors.Violation{violationf("entities", "missing required field")}
	}

	list, ok := raw.([]any)
	if !ok {
		return []policyerrors.Violation{violationf("entities", "must be a list of entity rules")}
	}
	if len(list) == 0 {
		return []policyerrors.Violation{violationf("entities", "must contain at least one entity rule")}
	}

	var out []policyerrors.Violation
	for i, item := range list {
		path := fmt.Sprintf("entities[%d]", i)

		entry, ok := item.(map[string]any)
		if !ok {
			out = append(out, violationf(path, "must be a mapping"))
			continue
		}

		out = append(out, checkUnknownFields(path, entry, entityFields)...)

		rule := document.EntityRule{}

		typ, vs := requireStringAt(entry, path, "type")
		out = append(out, vs...)
		if len(vs) == 0 {
			if !catalog.IsEntityType(typ) {
				out = append(out, violationf(path+".type",
					"unsupported entity type %q (supported: %s)", typ, strings.Join(catalog.EntityTypes(), ", ")))
			}
			rule.Type = typ
		}

		threshold, vs := requireFloatAt(entry, path, "confidence_threshold")
		out = append(out, vs...)
		if len(vs) == 0 {
			// NaN slips past both range comparisons, so reject it explicitly.
			if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
				out = append(out, violationf(path+".confidence_threshold", "must be between 0 and 1"))
			}
			rule.ConfidenceThreshold = threshold
		}

		action, vs := requireStringAt(entry, path, "action")
		out = append(out, vs...)
		if len(vs) == 0 {
			if !catalog.IsAction(action) {
				out = append(out, violationf(path+".action",
					"unsupported action %q (supported: %s)", action, strings.Join(catalog.Actions(), ", ")))
			}
			rule.Action = action
		}

		if raw, present := entry["replacement"]; present {
			replacement, ok := raw.(string)
			if !ok {
				out = append(out, violationf(path+".replacement", "must be a string"))
			} else {
				if utf8.RuneCountInString(replacement) > maxReplacementLength {
					out = append(out, violationf(path+".replacement",
						"must be at most %d characters", maxReplacementLength))
				}
				rule.Replacement = replacement
			}
		} else if action == string(catalog.ActionReplace) {
			out = append(out, violationf(path+".replacement",
				"required when action is %q", catalog.ActionReplace))
		}

		doc.Entities = append(doc.Entities, rule)
	}

	return out
}

func validateScope(tree map[string]any, doc *document.PolicyDocument) []policyerrors.Violation {
	raw, ok := tree["scope"]
	if !ok {
		return []policyerrors.Violation{violationf("scope", "missing required field")}
	}

	section, ok := raw.(map[string]any)
	if !ok {
		return []policyerrors.Violation{violationf("scope", "must be a mapping")}
	}

	out := checkUnknownFields("scope", section, scopeFields)

	rawTypes, ok := section["file_types"]
	if !ok {
		out = append(out, violationf("scope.file_types", "missing required field"))
	} else if list, ok := rawTypes.([]any); !ok {
		out = append(out, violationf("scope.file_types", "must be a list of file extensions"))
	} else if len(list) == 0 {
		out = append(out, violationf("scope.file_types", "must contain at least one file extension"))
	} else {
		for i, item := range list {
			path := fmt.Sprintf("scope.file_types[%d]", i)
			ext, ok := item.(string)
			if !ok {
				out = append(out, violationf(path, "must be a string"))
				continue
			}
			if !catalog.IsFileType(ext) {
				out = append(out, violationf(path,
					"unsupported file type %q (supported: %s)", ext, strings.Join(catalog.FileTypes(), ", ")))
			}
			doc.Scope.FileTypes = append(doc.Scope.FileTypes, ext)
		}
	}

	size, vs := requireStringAt(section, "scope", "max_file_size")
	out = append(out, vs...)
	if len(vs) == 0 {
		if _, ok := document.ParseSizeSpec(size); !ok {
			out = append(out, violationf("scope.max_file_size",
				"must match {int}{K|M|G|T|''}B and be between 1 byte and 10GB"))
		}
		doc.Scope.MaxFileSize = size
	}

	return out
}

func validateAnonymization(tree map[string]any, doc *document.PolicyDocument) []policyerrors.Violation {
	raw, ok := tree["anonymization"]
	if !ok {
		return []policyerrors.Violation{violationf("anonymization", "missing required field")}
	}

	section, ok := raw.(map[string]any)
	if !ok {
		return []policyerrors.Violation{violationf("anonymization", "must be a mapping")}
	}

	out := checkUnknownFields("anonymization", section, anonymizationFields)

	action, vs := requireStringAt(section, "anonymization", "default_action")
	out = append(out, vs...)
	if len(vs) == 0 {
		if !catalog.IsAction(action) {
			out = append(out, violationf("anonymization.default_action",
				"unsupported action %q (supported: %s)", action, strings.Join(catalog.Actions(), ", ")))
		}
		doc.Anonymization.DefaultAction = action
	}

	preserve, vs := requireBoolAt(section, "anonymization", "preserve_format")
	out = append(out, vs...)
	doc.Anonymization.PreserveFormat = preserve

	audit, vs := requireBoolAt(section, "anonymization", "audit_trail")
	out = append(out, vs...)
	doc.Anonymization.AuditTrail = audit

	return out
}

// Typed field extraction helpers. Each reports exactly one violation for a
// missing or mistyped field so the section validators stay declarative.

func requireString(tree map[string]any, key string) (string, []policyerrors.Violation) {
	return requireStringAt(tree, "", key)
}

func requireStringAt(tree map[string]any, prefix, key string) (string, []policyerrors.Violation) {
	path := joinPath(prefix, key)
	raw, ok := tree[key]
	if !ok {
		return "", []policyerrors.Violation{violationf(path, "missing required field")}
	}
	s, ok := raw.(string)
	if !ok {
		return "", []policyerrors.Violation{violationf(path, "must be a string")}
	}
	return s, nil
}

func requireFloatAt(tree map[string]any, prefix, key string) (float64, []policyerrors.Violation) {
	path := joinPath(prefix, key)
	raw, ok := tree[key]
	if !ok {
		return 0, []policyerrors.Violation{violationf(path, "missing required field")}
	}
	switch n := raw.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, []policyerrors.Violation{violationf(path, "must be a number")}
	}
}

func requireBoolAt(tree map[string]any, prefix, key string) (bool, []policyerrors.Violation) {
	path := joinPath(prefix, key)
	raw, ok := tree[key]
	if !ok {
		return false, []policyerrors.Violation{violationf(path, "missing required field")}
	}
	b, ok := raw.(bool)
	if !ok {
		return false, []policyerrors.Violation{violationf(path, "must be a boolean")}
	}
	return b, nil
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func violationf(path, format string, args ...any) policyerrors.Violation {
	return policyerrors.Violation{Path: path, Message: fmt.Sprintf(format, args...)}
}
