package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/catalog"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
)

// ListTemplates returns the available templates. Pure read.
func (m *Manager) ListTemplates(ctx context.Context) ([]*Template, error) {
	templates, err := m.templates.ListTemplates(ctx)
	if err != nil {
		return nil, internalError(m.logger, "templates", err)
	}
	return templates, nil
}

// CreateFromTemplate expands a template into a full policy document and
// hands it to the regular create path. Templates are not pre-trusted: an
// expansion that produces an invalid document surfaces the same
// ValidationError a direct create would.
func (m *Manager) CreateFromTemplate(ctx context.Context, actorID, templateID, newName string) (*Policy, error) {
	start := time.Now()

	tpl, err := m.templates.FindTemplateByID(ctx, templateID)
	if err != nil {
		m.recordOperation("create_from_template", "error", start)
		return nil, internalError(m.logger, "create_from_template", err)
	}
	if tpl == nil {
		m.recordOperation("create_from_template", "not_found", start)
		return nil, &policyerrors.NotFoundError{Resource: "template", ID: templateID}
	}

	raw, err := ExpandTemplate(tpl, newName)
	if err != nil {
		m.recordOperation("create_from_template", "error", start)
		return nil, internalError(m.logger, "create_from_template", err)
	}

	policy, err := m.Create(ctx, actorID, CreateRequest{Name: newName, RawText: raw})
	if err != nil {
		m.recordOperation("create_from_template", "failed", start)
		return nil, err
	}

	m.recordOperation("create_from_template", "ok", start)
	m.logger.InfoContext(ctx, "policy created from template",
		"policy_id", policy.ID, "template_id", tpl.ID, "name", newName)
	return policy, nil
}

// ExpandTemplate turns a template's parameterized configuration into raw
// policy YAML. Missing thresholds get the catalog default; replace
// actions without a replacement get the default token; scope and
// anonymization fall back to the catalog defaults when the template omits
// them.
func ExpandTemplate(tpl *Template, name string) ([]byte, error) {
	doc := &document.PolicyDocument{
		Name:        name,
		Version:     document.InitialVersion.String(),
		Description: tpl.Description,
	}
	if doc.Description == "" {
		doc.Description = fmt.Sprintf("Policy created from the %s template", tpl.Name)
	}

	for _, e := range tpl.Config.Entities {
		rule := document.EntityRule{
			Type:                e.Type,
			Action:              e.Action,
			ConfidenceThreshold: catalog.DefaultConfidenceThreshold,
			Replacement:         e.Replacement,
		}
		if e.ConfidenceThreshold != nil {
			rule.ConfidenceThreshold = *e.ConfidenceThreshold
		}
		if rule.Action == string(catalog.ActionReplace) && rule.Replacement == "" {
			rule.Replacement = catalog.DefaultReplacementToken
		}
		doc.Entities = append(doc.Entities, rule)
	}

	if tpl.Config.Scope != nil {
		doc.Scope = *tpl.Config.Scope
	} else {
		doc.Scope = document.Scope{
			FileTypes:   append([]string(nil), catalog.DefaultFileTypes...),
			MaxFileSize: catalog.DefaultMaxFileSize,
		}
	}

	if tpl.Config.Anonymization != nil {
		doc.Anonymization = *tpl.Config.Anonymization
	} else {
		doc.Anonymization = document.Anonymization{
			DefaultAction:  string(catalog.ActionRedact),
			PreserveFormat: true,
			AuditTrail:     true,
		}
	}

	return document.Marshal(doc)
}
