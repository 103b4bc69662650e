package manager

import (
	"context"
	"time"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
)

// Policy is the persisted, named policy entity. Name is unique among
// currently active policies; the storage backend enforces this with a
// real uniqueness constraint in addition to the engine's pre-check.
type Policy struct {
	// ID is the policy's UUID.
	ID string `json:"id"`

	// Name is the policy name, unique among active policies.
	Name string `json:"name"`

	// Description is the human-readable description.
	Description string `json:"description"`

	// Config is the snapshot of the currently active version's content.
	Config document.PolicyDocument `json:"config"`

	// Version is the currently active version label.
	Version string `json:"version"`

	// Active is false once the policy has been soft-deleted.
	Active bool `json:"active"`

	// CreatedAt is when the policy was first created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy row last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyVersion is one immutable, append-only snapshot of a policy's
// configuration content. Exactly one version per policy is active at all
// times; versions are never removed, not even on policy delete.
type PolicyVersion struct {
	// ID is the version's UUID.
	ID string `json:"id"`

	// PolicyID is the owning policy's UUID.
	PolicyID string `json:"policy_id"`

	// Version is the "X.Y.Z" label.
	Version string `json:"version"`

	// Config is the configuration snapshot at this version.
	Config document.PolicyDocument `json:"config"`

	// Changelog describes what changed in this version.
	Changelog string `json:"changelog"`

	// Active marks the single currently active version.
	Active bool `json:"active"`

	// CreatedAt is when this version was created.
	CreatedAt time.Time `json:"created_at"`
}

// Template is a parameterized starter configuration used to bootstrap
// policies for common regulatory regimes.
type Template struct {
	// ID is the template's identifier.
	ID string `json:"id"`

	// Name is the human-readable template name.
	Name string `json:"name"`

	// Category groups templates by regime (e.g. "gdpr", "hipaa").
	Category string `json:"category"`

	// Description is the human-readable description.
	Description string `json:"description"`

	// Config is the parameterized configuration the expander fills in.
	Config TemplateConfig `json:"config"`
}

// TemplateConfig is the parameterized portion of a template. Omitted
// values are filled from catalog defaults during expansion.
type TemplateConfig struct {
	// Entities lists the entity types the template covers. Threshold and
	// replacement may be omitted per entry.
	Entities []TemplateEntity `json:"entities" yaml:"entities"`

	// Scope optionally overrides the default scope.
	Scope *document.Scope `json:"scope,omitempty" yaml:"scope,omitempty"`

	// Anonymization optionally overrides the default anonymization
	// settings.
	Anonymization *document.Anonymization `json:"anonymization,omitempty" yaml:"anonymization,omitempty"`
}

// TemplateEntity is one parameterized entity entry.
type TemplateEntity struct {
	// Type is the entity type.
	Type string `json:"type" yaml:"type"`

	// Action is the anonymization action.
	Action string `json:"action" yaml:"action"`

	// ConfidenceThreshold overrides the default threshold when set.
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" yaml:"confidence_threshold,omitempty"`

	// Replacement overrides the default replacement token for replace
	// actions when set.
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty"`
}

// CreateRequest carries the inputs to Create.
type CreateRequest struct {
	// Name is the policy name; it must not collide with an active policy.
	Name string

	// Description is optional; when empty the document's description is
	// used.
	Description string

	// RawText is the raw policy YAML.
	RawText []byte
}

// Patch carries the inputs to Update. Nil pointer fields are left
// untouched.
type Patch struct {
	// Name renames the policy when set.
	Name *string

	// Description replaces the description when set.
	Description *string

	// RawText replaces the configuration content when set. It is parsed
	// and validated exactly like a create.
	RawText []byte

	// Changelog annotates the new version when the content changed.
	Changelog string
}

// ListOptions controls ListAll pagination and filtering.
type ListOptions struct {
	// Page is the 1-based page number. Values below 1 are treated as 1.
	Page int

	// Limit is the page size. Values below 1 fall back to 20; the cap is
	// 100.
	Limit int

	// Search filters by substring match on name and description.
	Search string

	// ActiveOnly restricts results to active policies.
	ActiveOnly bool
}

// PolicyPage is one page of ListAll results.
type PolicyPage struct {
	// Policies is the page of results, newest first.
	Policies []*Policy `json:"policies"`

	// Total is the number of policies matching the filter across all
	// pages.
	Total int `json:"total"`

	// Page and Limit echo the effective pagination values.
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Store is the persistence boundary the engine trusts for atomicity and
// write serialization. Reads run outside transactions; all mutations go
// through WithinTx.
type Store interface {
	// WithinTx runs fn as one atomic unit of work: every write fn
	// performs is committed together or rolled back together. Writes to
	// the same policy id are serialized by the backend.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// FindActiveByName returns the active policy with the given name, or
	// nil when there is none.
	FindActiveByName(ctx context.Context, name string) (*Policy, error)

	// FindByName returns the most recently updated policy with the given
	// name regardless of its active flag, or nil when there is none. It
	// backs the reserved-names mode (Config.ReserveDeletedNames).
	FindByName(ctx context.Context, name string) (*Policy, error)

	// FindByID returns the policy with the given id regardless of its
	// active flag, or nil when it does not exist.
	FindByID(ctx context.Context, id string) (*Policy, error)

	// List returns a filtered, paginated page of policies.
	List(ctx context.Context, opts ListOptions) (*PolicyPage, error)

	// ListVersions returns every version of a policy, newest first.
	// Versions survive policy deletion.
	ListVersions(ctx context.Context, policyID string) ([]*PolicyVersion, error)

	// ListTemplates returns all stored templates.
	ListTemplates(ctx context.Context) ([]*Template, error)

	// FindTemplateByID returns the template with the given id, or nil
	// when it does not exist.
	FindTemplateByID(ctx context.Context, id string) (*Template, error)

	// SaveTemplate inserts or replaces a template by id.
	SaveTemplate(ctx context.Context, tpl *Template) error

	// Close releases backend resources.
	Close() error
}

// Tx is the write surface available inside a unit of work.
type Tx interface {
	// CreateWithInitialVersion persists a new policy together with its
	// first version as one write.
	CreateWithInitialVersion(ctx context.Context, policy *Policy, version *PolicyVersion) error

	// UpdatePolicyAndVersions updates the policy row and, when newVersion
	// is non-nil, deactivates the policy's currently active version and
	// inserts newVersion as the active one. Both effects are one write.
	UpdatePolicyAndVersions(ctx context.Context, policy *Policy, newVersion *PolicyVersion) error
}

// TemplateSource supplies templates to the expander. Store implements it;
// the template package provides file-backed and built-in sources.
type TemplateSource interface {
	ListTemplates(ctx context.Context) ([]*Template, error)
	FindTemplateByID(ctx context.Context, id string) (*Template, error)
}
