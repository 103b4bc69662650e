package validator

import (
	"strings"
	"testing"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/parser"
)

// mustParse decodes raw YAML into a tree, failing the test on syntax
// errors so schema tests only ever see parseable input.
func mustParse(t *testing.T, raw string) map[string]any {
	t.Helper()
	tree, err := parser.NewParser().Parse([]byte(raw))
	if err != nil {
		t.Fatalf("test fixture does not parse: %v", err)
	}
	return tree
}

const validPolicy = `
name: Test Policy
version: 1.0.0
description: Covers the common identifiers
entities:
  - type: EMAIL_ADDRESS
    confidence_threshold: 0.9
    action: redact
  - type: SSN
    confidence_threshold: 0.95
    action: replace
    replacement: XXX-XX-XXXX
scope:
  file_types:
    - txt
    - csv
  max_file_size: 100MB
anonymization:
  default_action: redact
  preserve_format: true
  audit_trail: true
`

func TestValidateSchemaValid(t *testing.T) {
	doc, verr := ValidateSchema(mustParse(t, validPolicy))
	if verr != nil {
		t.Fatalf("ValidateSchema() violations = %v", verr.Violations)
	}
	if doc.Name != "Test Policy" || doc.Version != "1.0.0" {
		t.Errorf("metadata not captured: %+v", doc)
	}
	if len(doc.Entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(doc.Entities))
	}
	if doc.Entities[1].Replacement != "XXX-XX-XXXX" {
		t.Errorf("replacement not captured: %+v", doc.Entities[1])
	}
	if doc.Scope.MaxFileSize != "100MB" {
		t.Errorf("scope not captured: %+v", doc.Scope)
	}
	if !doc.Anonymization.PreserveFormat || !doc.Anonymization.AuditTrail {
		t.Errorf("anonymization not captured: %+v", doc.Anonymization)
	}
}

func TestValidateSchemaViolations(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantPaths []string
	}{
		{
			name: "missing top-level fields",
			raw:  "name: only a name\n",
			wantPaths: []string{
				"version", "description", "entities", "scope", "anonymization",
			},
		},
		{
			name: "unknown top-level field",
			raw: strings.Replace(validPolicy,
				"name: Test Policy", "name: Test Policy\nseverity: high", 1),
			wantPaths: []string{"severity"},
		},
		{
			name: "bad version label",
			raw: strings.Replace(validPolicy,
				"version: 1.0.0", "version: v1", 1),
			wantPaths: []string{"version"},
		},
		{
			name: "unsupported entity type",
			raw: strings.Replace(validPolicy,
				"type: EMAIL_ADDRESS", "type: FAVORITE_COLOR", 1),
			wantPaths: []string{"entities[0].type"},
		},
		{
			name: "threshold above one",
			raw: strings.Replace(validPolicy,
				"confidence_threshold: 0.9", "confidence_threshold: 1.5", 1),
			wantPaths: []string{"entities[0].confidence_threshold"},
		},
		{
			name: "threshold is NaN",
			raw: strings.Replace(validPolicy,
				"confidence_threshold: 0.9", "confidence_threshold: .nan", 1),
			wantPaths: []string{"entities[0].confidence_threshold"},
		},
		{
			name: "threshold is infinity",
			raw: strings.Replace(validPolicy,
				"confidence_threshold: 0.9", "confidence_threshold: .inf", 1),
			wantPaths: []string{"entities[0].confidence_threshold"},
		},
		{
			name: "threshold not a number",
			raw: strings.Replace(validPolicy,
				"confidence_threshold: 0.9", "confidence_threshold: high", 1),
			wantPaths: []string{"entities[0].confidence_threshold"},
		},
		{
			name: "unsupported action",
			raw: strings.Replace(validPolicy,
				"action: redact\n", "action: obliterate\n", 1),
			wantPaths: []string{"entities[0].action"},
		},
		{
			name: "replace without replacement",
			raw: strings.Replace(validPolicy,
				"    replacement: XXX-XX-XXXX\n", "", 1),
			wantPaths: []string{"entities[1].replacement"},
		},
		{
			name: "unknown entity field",
			raw: strings.Replace(validPolicy,
				"confidence_threshold: 0.9", "confidence_threshold: 0.9\n    mode: strict", 1),
			wantPaths: []string{"entities[0].mode"},
		},
		{
			name: "empty entities",
			raw: `
name: Test
version: 1.0.0
description: d
entities: []
scope:
  file_types: [txt]
  max_file_size: 100MB
anonymization:
  default_action: redact
  preserve_format: true
  audit_trail: true
`,
			wantPaths: []string{"entities"},
		},
		{
			name: "unsupported file type",
			raw: strings.Replace(validPolicy,
				"- csv", "- exe", 1),
			wantPaths: []string{"scope.file_types[1]"},
		},
		{
			name: "bad size spec",
			raw: strings.Replace(validPolicy,
				"max_file_size: 100MB", "max_file_size: 100mb", 1),
			wantPaths: []string{"scope.max_file_size"},
		},
		{
			name: "size spec over the cap",
			raw: strings.Replace(validPolicy,
				"max_file_size: 100MB", "max_file_size: 11GB", 1),
			wantPaths: []string{"scope.max_file_size"},
		},
		{
			name: "audit trail not a boolean",
			raw: strings.Replace(validPolicy,
				"audit_trail: true", "audit_trail: yes please", 1),
			wantPaths: []string{"anonymization.audit_trail"},
		},
		{
			name: "unknown scope field",
			raw: strings.Replace(validPolicy,
				"max_file_size: 100MB", "max_file_size: 100MB\n  recursive: true", 1),
			wantPaths: []string{"scope.recursive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, verr := ValidateSchema(mustParse(t, tt.raw))
			if verr == nil {
				t.Fatalf("ValidateSchema() accepted invalid document %+v", doc)
			}
			for _, wantPath := range tt.wantPaths {
				found := false
				for _, v := range verr.Violations {
					if v.Path == wantPath {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("no violation at path %q; got %v", wantPath, verr.Violations)
				}
			}
		})
	}
}

func TestValidateSchemaIsExhaustive(t *testing.T) {
	raw := `
name: ""
version: not-a-version
description: ok
entities:
  - type: FAVORITE_COLOR
    confidence_threshold: 2.0
    action: obliterate
scope:
  file_types: [exe]
  max_file_size: 0B
anonymization:
  default_action: shred
  preserve_format: true
  audit_trail: true
`
	_, verr := ValidateSchema(mustParse(t, raw))
	if verr == nil {
		t.Fatal("ValidateSchema() accepted invalid document")
	}

	wantPaths := []string{
		"name",
		"version",
		"entities[0].type",
		"entities[0].confidence_threshold",
		"entities[0].action",
		"scope.file_types[0]",
		"scope.max_file_size",
		"anonymization.default_action",
	}
	got := make(map[string]bool, len(verr.Violations))
	for _, v := range verr.Violations {
		got[v.Path] = true
	}
	for _, p := range wantPaths {
		if !got[p] {
			t.Errorf("single pass missed violation at %q; got %v", p, verr.Violations)
		}
	}
}

func TestValidateSchemaNormalizes(t *testing.T) {
	raw := strings.Replace(validPolicy,
		"action: redact\n", "action: redact\n    replacement: ignored\n", 1)
	raw = strings.Replace(raw, "- txt\n    - csv", "- txt\n    - csv\n    - txt", 1)

	doc, verr := ValidateSchema(mustParse(t, raw))
	if verr != nil {
		t.Fatalf("ValidateSchema() violations = %v", verr.Violations)
	}
	if doc.Entities[0].Replacement != "" {
		t.Errorf("replacement on redact action survived: %q", doc.Entities[0].Replacement)
	}
	want := []string{"csv", "txt"}
	if len(doc.Scope.FileTypes) != 2 || doc.Scope.FileTypes[0] != want[0] || doc.Scope.FileTypes[1] != want[1] {
		t.Errorf("file types = %v, want %v", doc.Scope.FileTypes, want)
	}
}

func TestValidateSchemaLengthBoundsAreRuneCounts(t *testing.T) {
	// 255 runes but 510 bytes; counting bytes would reject this name.
	longName := strings.Repeat("ü", 255)
	raw := strings.Replace(validPolicy, "name: Test Policy", "name: "+longName, 1)
	if _, verr := ValidateSchema(mustParse(t, raw)); verr != nil {
		t.Errorf("255-rune name rejected: %v", verr.Violations)
	}

	raw = strings.Replace(validPolicy, "name: Test Policy", "name: "+longName+"ü", 1)
	_, verr := ValidateSchema(mustParse(t, raw))
	if verr == nil {
		t.Fatal("256-rune name accepted")
	}
	found := false
	for _, v := range verr.Violations {
		if v.Path == "name" {
			found = true
		}
	}
	if !found {
		t.Errorf("no violation at path \"name\"; got %v", verr.Violations)
	}
}

func TestValidateSchemaIntegerThreshold(t *testing.T) {
	raw := strings.Replace(validPolicy,
		"confidence_threshold: 0.9", "confidence_threshold: 1", 1)
	doc, verr := ValidateSchema(mustParse(t, raw))
	if verr != nil {
		t.Fatalf("integer threshold rejected: %v", verr.Violations)
	}
	if doc.Entities[0].ConfidenceThreshold != 1.0 {
		t.Errorf("threshold = %v, want 1.0", doc.Entities[0].ConfidenceThreshold)
	}
}
