// Package template supplies policy templates: a built-in set covering
// common regulatory regimes, and a file-backed source that hot-reloads
// template YAML from a directory.
package template

import (
	"context"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/catalog"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

// Builtins returns the built-in template set. Callers may seed these
// into a store or serve them directly through a StaticSource.
func Builtins() []*manager.Template {
	return []*manager.Template{
		{
			ID:          "gdpr-baseline",
			Name:        "GDPR Baseline",
			Category:    "gdpr",
			Description: "Baseline personal-data coverage for GDPR processing",
			Config: manager.TemplateConfig{
				Entities: []manager.TemplateEntity{
					{Type: string(catalog.EntityPerson), Action: string(catalog.ActionRedact)},
					{Type: string(catalog.EntityEmailAddress), Action: string(catalog.ActionRedact)},
					{Type: string(catalog.EntityPhoneNumber), Action: string(catalog.ActionMask)},
					{Type: string(catalog.EntityLocation), Action: string(catalog.ActionRedact)},
					{Type: string(catalog.EntityIPAddress), Action: string(catalog.ActionMask)},
					{Type: string(catalog.EntityDateTime), Action: string(catalog.ActionRedact)},
				},
			},
		},
		{
			ID:          "hipaa-phi",
			Name:        "HIPAA PHI",
			Category:    "hipaa",
			Description: "Protected health information coverage for HIPAA workloads",
			Config: manager.TemplateConfig{
				Entities: []manager.TemplateEntity{
					{Type: string(catalog.EntityPerson), Action: string(catalog.ActionReplace), Replacement: "[PATIENT]"},
					{Type: string(catalog.EntitySSN), Action: string(catalog.ActionRedact), ConfidenceThreshold: floatPtr(0.9)},
					{Type: string(catalog.EntityMedicalLicense), Action: string(catalog.ActionRedact)},
					{Type: string(catalog.EntityUKNHS), Action: string(catalog.ActionRedact)},
					{Type: string(catalog.EntityPhoneNumber), Action: string(catalog.ActionMask)},
					{Type: string(catalog.EntityEmailAddress), Action: string(catalog.ActionRedact)},
				},
			},
		},
		{
			ID:          "pci-dss",
			Name:        "PCI DSS",
			Category:    "pci",
			Description: "Cardholder data coverage for PCI DSS scope",
			Config: manager.TemplateConfig{
				Entities: []manager.TemplateEntity{
					{Type: string(catalog.EntityCreditCard), Action: string(catalog.ActionMask), ConfidenceThreshold: floatPtr(0.9)},
					{Type: string(catalog.EntityBankAccount), Action: string(catalog.ActionEncrypt)},
					{Type: string(catalog.EntityIBAN), Action: string(catalog.ActionEncrypt)},
					{Type: string(catalog.EntityPerson), Action: string(catalog.ActionRedact)},
				},
			},
		},
		{
			ID:          "finance-pii",
			Name:        "Finance PII",
			Category:    "finance",
			Description: "Personal and account data coverage for financial documents",
			Config: manager.TemplateConfig{
				Entities: []manager.TemplateEntity{
					{Type: string(catalog.EntityEmailAddress), Action: string(catalog.ActionRedact), ConfidenceThreshold: floatPtr(0.9)},
					{Type: string(catalog.EntitySSN), Action: string(catalog.ActionRedact), ConfidenceThreshold: floatPtr(0.95)},
					{Type: string(catalog.EntityCreditCard), Action: string(catalog.ActionMask)},
					{Type: string(catalog.EntityBankAccount), Action: string(catalog.ActionEncrypt)},
					{Type: string(catalog.EntityPhoneNumber), Action: string(catalog.ActionMask)},
				},
			},
		},
	}
}

// Seed stores every built-in template in store, overwriting templates
// with the same id.
func Seed(ctx context.Context, store manager.Store) error {
	for _, tpl := range Builtins() {
		if err := store.SaveTemplate(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

func floatPtr(f float64) *float64 {
	return &f
}
