// Package manager owns the policy lifecycle: create, update with
// possible new version, soft delete, reads, and template expansion.
// Parsing and validation stay pure; the manager is the only stateful
// boundary, and it trusts its Store for atomicity and write
// serialization.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bluewave-labs/maskwise-sub001/pkg/audit"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/validator"
	"github.com/bluewave-labs/maskwise-sub001/pkg/telemetry/metrics"
)

// resourceTypePolicy is the resource type recorded on audit events.
const resourceTypePolicy = "Policy"

// Config configures a Manager.
type Config struct {
	// Store is the persistence backend. Required.
	Store Store

	// Audit receives one event per successful mutation. Defaults to a
	// slog-backed sink.
	Audit audit.Sink

	// Templates supplies templates to the expander. Defaults to Store.
	Templates TemplateSource

	// Metrics receives operation counters. Optional.
	Metrics *metrics.Metrics

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger

	// ReserveDeletedNames keeps a soft-deleted policy's name reserved,
	// blocking reuse on create and rename. The observed behavior of the
	// system leaves this open; the default frees the name.
	ReserveDeletedNames bool

	// MaxDocumentSize bounds raw policy text in bytes. Zero means the
	// parser default.
	MaxDocumentSize int
}

// Manager implements the policy lifecycle operations.
type Manager struct {
	store     Store
	sink      audit.Sink
	templates TemplateSource
	validator *validator.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger

	reserveDeletedNames bool
}

// New creates a Manager from cfg.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("manager: store is required")
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewLogSink(cfg.Logger)
	}
	if cfg.Templates == nil {
		cfg.Templates = cfg.Store
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	v := validator.NewValidator()
	if cfg.MaxDocumentSize > 0 {
		v = validator.NewValidatorWithMaxSize(cfg.MaxDocumentSize)
	}

	return &Manager{
		store:               cfg.Store,
		sink:                cfg.Audit,
		templates:           cfg.Templates,
		validator:           v,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger.With("component", "policy.manager"),
		reserveDeletedNames: cfg.ReserveDeletedNames,
	}, nil
}

// Validate runs the validation pipeline over raw policy text without any
// side effects. It is safe to call concurrently.
func (m *Manager) Validate(raw []byte) (*validator.Result, error) {
	result, err := m.validator.ValidateBytes(raw)
	if m.metrics != nil {
		switch {
		case err != nil:
			m.metrics.RecordValidation("document_error", 0)
		case !result.Valid:
			m.metrics.RecordValidation("invalid", len(result.Errors))
		default:
			m.metrics.RecordValidation("valid", 0)
		}
	}
	return result, err
}

// Create validates rawText and, when it passes and the name is free,
// persists a new policy together with its first version ("1.0.0") as one
// atomic unit. One audit event is emitted on success.
func (m *Manager) Create(ctx context.Context, actorID string, req CreateRequest) (*Policy, error) {
	start := time.Now()

	result, err := m.Validate(req.RawText)
	if err != nil {
		m.recordOperation("create", "document_error", start)
		return nil, err
	}
	if !result.Valid {
		m.recordOperation("create", "invalid", start)
		return nil, &policyerrors.ValidationError{Violations: result.Errors}
	}
	doc := result.Document

	name := req.Name
	if name == "" {
		name = doc.Name
	}
	description := req.Description
	if description == "" {
		description = doc.Description
	}

	// Pre-check; the storage backend's uniqueness constraint backs this
	// against concurrent creates.
	taken, err := m.nameTaken(ctx, name, "")
	if err != nil {
		m.recordOperation("create", "error", start)
		return nil, policyerrors.NewInternalError(err)
	}
	if taken {
		m.recordOperation("create", "conflict", start)
		return nil, &policyerrors.ConflictError{Name: name}
	}

	now := time.Now().UTC()
	policy := &Policy{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Config:      *doc,
		Version:     document.InitialVersion.String(),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	version := &PolicyVersion{
		ID:        uuid.NewString(),
		PolicyID:  policy.ID,
		Version:   policy.Version,
		Config:    *doc,
		Changelog: "Initial version",
		Active:    true,
		CreatedAt: now,
	}

	err = m.store.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateWithInitialVersion(ctx, policy, version)
	})
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			m.recordOperation("create", "conflict", start)
			return nil, conflict
		}
		m.recordOperation("create", "error", start)
		return nil, internalError(m.logger, "create", err)
	}

	m.emitAudit(ctx, audit.Event{
		ActorID:      actorID,
		Action:       audit.ActionCreate,
		ResourceType: resourceTypePolicy,
		ResourceID:   policy.ID,
		Details:      map[string]string{"name": policy.Name, "version": policy.Version},
	})
	if m.metrics != nil {
		m.metrics.RecordVersionCreated()
	}
	m.recordOperation("create", "ok", start)
	m.logger.InfoContext(ctx, "policy created",
		"policy_id", policy.ID, "name", policy.Name, "version", policy.Version)

	return policy, nil
}

// Update applies a patch to an active policy. A patch that only touches
// name or description updates metadata in place; a patch whose rawText
// changes the configuration content deactivates the current version and
// creates a new active one with the minor component bumped by exactly 1,
// atomically. One audit event is emitted on success.
func (m *Manager) Update(ctx context.Context, actorID, policyID string, patch Patch) (*Policy, error) {
	start := time.Now()

	policy, err := m.store.FindByID(ctx, policyID)
	if err != nil {
		m.recordOperation("update", "error", start)
		return nil, internalError(m.logger, "update", err)
	}
	if policy == nil || !policy.Active {
		m.recordOperation("update", "not_found", start)
		return nil, &policyerrors.NotFoundError{Resource: "policy", ID: policyID}
	}

	var doc *document.PolicyDocument
	if patch.RawText != nil {
		result, err := m.Validate(patch.RawText)
		if err != nil {
			m.recordOperation("update", "document_error", start)
			return nil, err
		}
		if !result.Valid {
			m.recordOperation("update", "invalid", start)
			return nil, &policyerrors.ValidationError{Violations: result.Errors}
		}
		doc = result.Document
	}

	if patch.Name != nil && *patch.Name != policy.Name {
		taken, err := m.nameTaken(ctx, *patch.Name, policy.ID)
		if err != nil {
			m.recordOperation("update", "error", start)
			return nil, policyerrors.NewInternalError(err)
		}
		if taken {
			m.recordOperation("update", "conflict", start)
			return nil, &policyerrors.ConflictError{Name: *patch.Name}
		}
		policy.Name = *patch.Name
	}
	if patch.Description != nil {
		policy.Description = *patch.Description
	}

	contentChanged := doc != nil && !document.ContentEquals(&policy.Config, doc)
	previousVersion := policy.Version

	var newVersion *PolicyVersion
	now := time.Now().UTC()
	policy.UpdatedAt = now

	if contentChanged {
		current, err := document.ParseVersion(policy.Version)
		if err != nil {
			m.recordOperation("update", "error", start)
			return nil, internalError(m.logger, "update", err)
		}
		next := current.BumpMinor()

		changelog := patch.Changelog
		if changelog == "" {
			changelog = "Configuration content updated"
		}

		policy.Config = *doc
		policy.Version = next.String()
		newVersion = &PolicyVersion{
			ID:        uuid.NewString(),
			PolicyID:  policy.ID,
			Version:   policy.Version,
			Config:    *doc,
			Changelog: changelog,
			Active:    true,
			CreatedAt: now,
		}
	}

	err = m.store.WithinTx(ctx, func(tx Tx) error {
		return tx.UpdatePolicyAndVersions(ctx, policy, newVersion)
	})
	if err != nil {
		if conflict := asConflict(err); conflict != nil {
			m.recordOperation("update", "conflict", start)
			return nil, conflict
		}
		m.recordOperation("update", "error", start)
		return nil, internalError(m.logger, "update", err)
	}

	details := map[string]string{"name": policy.Name, "version": policy.Version}
	if contentChanged {
		details["previous_version"] = previousVersion
		if m.metrics != nil {
			m.metrics.RecordVersionCreated()
		}
	}
	m.emitAudit(ctx, audit.Event{
		ActorID:      actorID,
		Action:       audit.ActionUpdate,
		ResourceType: resourceTypePolicy,
		ResourceID:   policy.ID,
		Details:      details,
	})
	m.recordOperation("update", "ok", start)
	m.logger.InfoContext(ctx, "policy updated",
		"policy_id", policy.ID, "version", policy.Version, "content_changed", contentChanged)

	return policy, nil
}

// Delete soft-deletes a policy by flipping its active flag. Versions are
// never removed; the full history stays retrievable. One audit event is
// emitted on success.
func (m *Manager) Delete(ctx context.Context, actorID, policyID string) error {
	start := time.Now()

	policy, err := m.store.FindByID(ctx, policyID)
	if err != nil {
		m.recordOperation("delete", "error", start)
		return internalError(m.logger, "delete", err)
	}
	if policy == nil || !policy.Active {
		m.recordOperation("delete", "not_found", start)
		return &policyerrors.NotFoundError{Resource: "policy", ID: policyID}
	}

	policy.Active = false
	policy.UpdatedAt = time.Now().UTC()

	err = m.store.WithinTx(ctx, func(tx Tx) error {
		return tx.UpdatePolicyAndVersions(ctx, policy, nil)
	})
	if err != nil {
		m.recordOperation("delete", "error", start)
		return internalError(m.logger, "delete", err)
	}

	m.emitAudit(ctx, audit.Event{
		ActorID:      actorID,
		Action:       audit.ActionDelete,
		ResourceType: resourceTypePolicy,
		ResourceID:   policy.ID,
		Details:      map[string]string{"name": policy.Name},
	})
	m.recordOperation("delete", "ok", start)
	m.logger.InfoContext(ctx, "policy deleted", "policy_id", policy.ID, "name", policy.Name)

	return nil
}

// GetOne returns a policy by id regardless of its active flag, so the
// history of a soft-deleted policy stays reachable.
func (m *Manager) GetOne(ctx context.Context, policyID string) (*Policy, error) {
	policy, err := m.store.FindByID(ctx, policyID)
	if err != nil {
		return nil, internalError(m.logger, "get", err)
	}
	if policy == nil {
		return nil, &policyerrors.NotFoundError{Resource: "policy", ID: policyID}
	}
	return policy, nil
}

// ListAll returns a filtered, paginated page of policies. Pure read.
func (m *Manager) ListAll(ctx context.Context, opts ListOptions) (*PolicyPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}

	page, err := m.store.List(ctx, opts)
	if err != nil {
		return nil, internalError(m.logger, "list", err)
	}
	return page, nil
}

// ListVersions returns a policy's full version history, newest first.
// The history survives soft deletion.
func (m *Manager) ListVersions(ctx context.Context, policyID string) ([]*PolicyVersion, error) {
	policy, err := m.store.FindByID(ctx, policyID)
	if err != nil {
		return nil, internalError(m.logger, "versions", err)
	}
	if policy == nil {
		return nil, &policyerrors.NotFoundError{Resource: "policy", ID: policyID}
	}

	versions, err := m.store.ListVersions(ctx, policyID)
	if err != nil {
		return nil, internalError(m.logger, "versions", err)
	}
	return versions, nil
}

// nameTaken reports whether name collides with another policy. The
// excludeID carve-out covers renames, where the policy may keep its own
// name. Deleted names count only in reserved-names mode.
func (m *Manager) nameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	var existing *Policy
	var err error
	if m.reserveDeletedNames {
		existing, err = m.store.FindByName(ctx, name)
	} else {
		existing, err = m.store.FindActiveByName(ctx, name)
	}
	if err != nil {
		return false, err
	}
	return existing != nil && existing.ID != excludeID, nil
}

// emitAudit records an event and logs, rather than fails, when the sink
// rejects it: the mutation has already committed.
func (m *Manager) emitAudit(ctx context.Context, event audit.Event) {
	if err := m.sink.Record(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "audit sink rejected event",
			"action", string(event.Action), "resource_id", event.ResourceID, "error", err)
	}
}

func (m *Manager) recordOperation(operation, result string, start time.Time) {
	if m.metrics != nil {
		m.metrics.RecordOperation(operation, result, time.Since(start))
	}
}

// internalError logs the real cause and returns the opaque wrapper.
func internalError(logger *slog.Logger, operation string, err error) error {
	ierr := policyerrors.NewInternalError(err)
	logger.Error("storage operation failed",
		"operation", operation, "correlation_id", ierr.CorrelationID, "error", err)
	return ierr
}

// asConflict unwraps a conflict error surfaced by a storage backend's
// uniqueness constraint.
func asConflict(err error) *policyerrors.ConflictError {
	var conflict *policyerrors.ConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	return nil
}
