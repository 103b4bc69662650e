package template

import (
	"context"
	"testing"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/store"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/validator"
)

func TestBuiltinsExpandToValidPolicies(t *testing.T) {
	builtins := Builtins()
	if len(builtins) == 0 {
		t.Fatal("no built-in templates")
	}

	seen := make(map[string]bool, len(builtins))
	v := validator.NewValidator()
	for _, tpl := range builtins {
		if tpl.ID == "" || tpl.Name == "" || tpl.Category == "" {
			t.Errorf("template %+v is missing identity fields", tpl)
		}
		if seen[tpl.ID] {
			t.Errorf("duplicate template id %q", tpl.ID)
		}
		seen[tpl.ID] = true

		raw, err := manager.ExpandTemplate(tpl, "Expanded "+tpl.Name)
		if err != nil {
			t.Errorf("ExpandTemplate(%s) error = %v", tpl.ID, err)
			continue
		}
		result, err := v.ValidateBytes(raw)
		if err != nil {
			t.Errorf("expanded %s does not parse: %v", tpl.ID, err)
			continue
		}
		if !result.Valid {
			t.Errorf("expanded %s is invalid: %v", tpl.ID, result.Errors)
		}
		if len(result.Warnings) != 0 {
			t.Errorf("expanded %s carries warnings: %v", tpl.ID, result.Warnings)
		}
	}

	for _, id := range []string{"gdpr-baseline", "hipaa-phi", "pci-dss", "finance-pii"} {
		if !seen[id] {
			t.Errorf("built-in template %q missing", id)
		}
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := Seed(ctx, s); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	templates, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(templates) != len(Builtins()) {
		t.Fatalf("seeded %d templates, want %d", len(templates), len(Builtins()))
	}

	// Seeding again must overwrite, not duplicate.
	if err := Seed(ctx, s); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	templates, _ = s.ListTemplates(ctx)
	if len(templates) != len(Builtins()) {
		t.Errorf("re-seeding duplicated templates: %d", len(templates))
	}
}
