// Package document defines the in-memory model of a parsed, validated
// policy document, the semantic-version label type used by the version
// manager, and the file-size specification semantics shared by the schema
// and business-rule validation layers.
//
// A PolicyDocument exists only transiently during validation; persisted
// policies store it as a configuration snapshot.
package document

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/catalog"
	"gopkg.in/yaml.v3"
)

// PolicyDocument is the parsed, validated form of a raw policy document.
type PolicyDocument struct {
	// Name is the policy name (1-255 characters).
	Name string `yaml:"name" json:"name"`

	// Version is the document's own version label ("X.Y.Z").
	Version string `yaml:"version" json:"version"`

	// Description is the human-readable description (1-1000 characters).
	Description string `yaml:"description" json:"description"`

	// Entities lists the detection rules, one per entity type occurrence.
	Entities []EntityRule `yaml:"entities" json:"entities"`

	// Scope restricts which files the policy applies to.
	Scope Scope `yaml:"scope" json:"scope"`

	// Anonymization holds the global anonymization settings.
	Anonymization Anonymization `yaml:"anonymization" json:"anonymization"`
}

// EntityRule configures detection and anonymization for one entity type.
type EntityRule struct {
	// Type is the detectable-data category, from the entity catalog.
	Type string `yaml:"type" json:"type"`

	// ConfidenceThreshold is the minimum detector confidence in [0, 1]
	// required before the action applies.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// Action is the anonymization operation (redact, mask, replace,
	// encrypt).
	Action string `yaml:"action" json:"action"`

	// Replacement is the substitute text for replace actions (at most 50
	// characters). It is ignored for any other action.
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

// Scope restricts the files a policy applies to.
type Scope struct {
	// FileTypes is the set of file extensions the policy covers.
	FileTypes []string `yaml:"file_types" json:"file_types"`

	// MaxFileSize is the size specification ("100MB" style) bounding
	// covered files.
	MaxFileSize string `yaml:"max_file_size" json:"max_file_size"`
}

// Anonymization holds the document's global anonymization settings.
type Anonymization struct {
	// DefaultAction applies to detections not covered by an entity rule.
	DefaultAction string `yaml:"default_action" json:"default_action"`

	// PreserveFormat keeps the shape of anonymized values (e.g. digit
	// grouping).
	PreserveFormat bool `yaml:"preserve_format" json:"preserve_format"`

	// AuditTrail records anonymization operations in the audit log.
	AuditTrail bool `yaml:"audit_trail" json:"audit_trail"`
}

// Marshal serializes the document back to YAML. For any document produced
// by a successful validation, validating the marshalled bytes again yields
// a semantically identical document.
func Marshal(doc *PolicyDocument) ([]byte, error) {
	return yaml.Marshal(doc)
}

// Normalize puts a schema-valid document into canonical form: replacement
// text is dropped from non-replace actions and file types are sorted and
// de-duplicated. Field values are otherwise untouched, so normalizing is
// idempotent and semantics-preserving.
func Normalize(doc *PolicyDocument) {
	for i := range doc.Entities {
		if doc.Entities[i].Action != string(catalog.ActionReplace) {
			doc.Entities[i].Replacement = ""
		}
	}

	seen := make(map[string]bool, len(doc.Scope.FileTypes))
	types := make([]string, 0, len(doc.Scope.FileTypes))
	for _, t := range doc.Scope.FileTypes {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	sort.Strings(types)
	doc.Scope.FileTypes = types
}

// ContentEquals reports whether two documents have the same configuration
// content: entities, scope, and anonymization. Name, description, and the
// document's own version label are metadata and do not participate.
// Ordering of entities and file types is not semantically significant.
func ContentEquals(a, b *PolicyDocument) bool {
	if !scopeEquals(a.Scope, b.Scope) {
		return false
	}
	if a.Anonymization != b.Anonymization {
		return false
	}

	if len(a.Entities) != len(b.Entities) {
		return false
	}
	ea := sortedEntities(a.Entities)
	eb := sortedEntities(b.Entities)
	for i := range ea {
		if ea[i] != eb[i] {
			return false
		}
	}
	return true
}

func scopeEquals(a, b Scope) bool {
	if a.MaxFileSize != b.MaxFileSize {
		return false
	}
	ta := append([]string(nil), a.FileTypes...)
	tb := append([]string(nil), b.FileTypes...)
	sort.Strings(ta)
	sort.Strings(tb)
	if len(ta) != len(tb) {
		return false
	}
	for i := range ta {
		if ta[i] != tb[i] {
			return false
		}
	}
	return true
}

func sortedEntities(entities []EntityRule) []EntityRule {
	out := append([]EntityRule(nil), entities...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		if out[i].ConfidenceThreshold != out[j].ConfidenceThreshold {
			return out[i].ConfidenceThreshold < out[j].ConfidenceThreshold
		}
		return out[i].Replacement < out[j].Replacement
	})
	return out
}

// versionPattern matches "X.Y.Z" labels with non-negative integer
// components and no pre-release or build suffix.
var versionPattern = regexp.MustCompile(`^([0-9]+)\.([0-9]+)\.([0-9]+)$`)

// Version is a parsed "X.Y.Z" label.
type Version struct {
	Major int
	Minor int
	Patch int
}

// InitialVersion is the label given to a policy's first version.
var InitialVersion = Version{Major: 1, Minor: 0, Patch: 0}

// ParseVersion parses an "X.Y.Z" label.
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("version %q does not match X.Y.Z", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// IsVersionLabel reports whether s is a well-formed "X.Y.Z" label.
func IsVersionLabel(s string) bool {
	return versionPattern.MatchString(s)
}

// String formats the version as "X.Y.Z".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpMinor returns the version with the minor component increased by
// exactly one. The update flow defines no trigger for major or patch
// bumps; every content change bumps minor.
func (v Version) BumpMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: v.Patch}
}
