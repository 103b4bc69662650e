package manager_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bluewave-labs/maskwise-sub001/pkg/audit"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/store"
	"github.com/bluewave-labs/maskwise-sub001/pkg/telemetry/metrics"
)

const financePolicy = `
name: Finance PII
version: 1.0.0
description: Compliance policy for finance documents
entities:
  - type: EMAIL_ADDRESS
    confidence_threshold: 0.9
    action: redact
  - type: SSN
    confidence_threshold: 0.95
    action: redact
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

type harness struct {
	manager  *manager.Manager
	store    *store.MemoryStore
	sink     *audit.MemorySink
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func newHarness(t *testing.T, opts ...func(*manager.Config)) *harness {
	t.Helper()

	h := &harness{
		store:    store.NewMemoryStore(),
		sink:     audit.NewMemorySink(),
		registry: prometheus.NewRegistry(),
	}
	h.metrics = metrics.NewWith(h.registry)

	cfg := manager.Config{
		Store:   h.store,
		Audit:   h.sink,
		Metrics: h.metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m, err := manager.New(cfg)
	if err != nil {
		t.Fatalf("manager.New() error = %v", err)
	}
	h.manager = m
	return h
}

func (h *harness) create(t *testing.T, raw string) *manager.Policy {
	t.Helper()
	pol, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{RawText: []byte(raw)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return pol
}

func TestManagerCreate(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	if pol.Name != "Finance PII" {
		t.Errorf("name = %q, want document name", pol.Name)
	}
	if pol.Version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", pol.Version)
	}
	if !pol.Active {
		t.Error("created policy is not active")
	}
	if pol.ID == "" {
		t.Error("no id assigned")
	}

	versions, err := h.manager.ListVersions(context.Background(), pol.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0].Version != "1.0.0" || !versions[0].Active {
		t.Fatalf("versions = %+v, want one active 1.0.0", versions)
	}
	if versions[0].Changelog != "Initial version" {
		t.Errorf("changelog = %q", versions[0].Changelog)
	}

	events := h.sink.Events()
	if len(events) != 1 || events[0].Action != audit.ActionCreate {
		t.Fatalf("audit events = %+v, want one CREATE", events)
	}
	if events[0].ActorID != "tester" || events[0].ResourceID != pol.ID {
		t.Errorf("audit event = %+v", events[0])
	}
}

func TestManagerCreateExplicitNameWins(t *testing.T) {
	h := newHarness(t)
	pol, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{
		Name:        "Override",
		Description: "Custom description",
		RawText:     []byte(financePolicy),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if pol.Name != "Override" || pol.Description != "Custom description" {
		t.Errorf("policy = %q/%q, want explicit metadata", pol.Name, pol.Description)
	}
}

func TestManagerCreateInvalidDocument(t *testing.T) {
	h := newHarness(t)
	raw := strings.Replace(financePolicy, "action: redact\n", "action: obliterate\n", 1)

	_, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{RawText: []byte(raw)})
	var verr *policyerrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Create(invalid) error = %v, want *ValidationError", err)
	}
	if len(verr.Violations) == 0 {
		t.Error("no violations carried")
	}
	if len(h.sink.Events()) != 0 {
		t.Error("audit event emitted for failed create")
	}
}

func TestManagerCreateUnparseableDocument(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{RawText: []byte("key: [unclosed")})
	var docErr *policyerrors.DocumentError
	if !errors.As(err, &docErr) {
		t.Fatalf("Create(garbage) error = %v, want *DocumentError", err)
	}
}

func TestManagerCreateNameConflict(t *testing.T) {
	h := newHarness(t)
	h.create(t, financePolicy)

	_, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{RawText: []byte(financePolicy)})
	var conflict *policyerrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("duplicate create error = %v, want *ConflictError", err)
	}
	if conflict.Name != "Finance PII" {
		t.Errorf("conflict name = %q", conflict.Name)
	}
}

func TestManagerUpdateMetadataOnly(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	newName := "Finance PII v2"
	newDescription := "Updated description"
	updated, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{
		Name:        &newName,
		Description: &newDescription,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.Name != newName || updated.Description != newDescription {
		t.Errorf("metadata not applied: %+v", updated)
	}
	if updated.Version != "1.0.0" {
		t.Errorf("metadata-only update changed version to %s", updated.Version)
	}

	versions, _ := h.manager.ListVersions(context.Background(), pol.ID)
	if len(versions) != 1 {
		t.Errorf("metadata-only update created a version: %+v", versions)
	}
}

func TestManagerUpdateContentBumpsMinor(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	changed := strings.Replace(financePolicy,
		"confidence_threshold: 0.9\n", "confidence_threshold: 0.8\n", 1)
	updated, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{
		RawText:   []byte(changed),
		Changelog: "Loosen email threshold",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != "1.1.0" {
		t.Fatalf("version = %s, want 1.1.0", updated.Version)
	}

	versions, err := h.manager.ListVersions(context.Background(), pol.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Version != "1.1.0" || !versions[0].Active {
		t.Errorf("newest version = %+v, want active 1.1.0", versions[0])
	}
	if versions[1].Version != "1.0.0" || versions[1].Active {
		t.Errorf("previous version = %+v, want inactive 1.0.0", versions[1])
	}
	if versions[0].Changelog != "Loosen email threshold" {
		t.Errorf("changelog = %q", versions[0].Changelog)
	}

	events := h.sink.Events()
	last := events[len(events)-1]
	if last.Action != audit.ActionUpdate || last.Details["previous_version"] != "1.0.0" {
		t.Errorf("update audit event = %+v", last)
	}
}

func TestManagerUpdateIdenticalContentNoNewVersion(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	// Same content, entities reordered: not a content change.
	reordered := strings.Replace(financePolicy, `entities:
  - type: EMAIL_ADDRESS
    confidence_threshold: 0.9
    action: redact
  - type: SSN
    confidence_threshold: 0.95
    action: redact`, `entities:
  - type: SSN
    confidence_threshold: 0.95
    action: redact
  - type: EMAIL_ADDRESS
    confidence_threshold: 0.9
    action: redact`, 1)

	updated, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{RawText: []byte(reordered)})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Version != "1.0.0" {
		t.Errorf("reordering bumped version to %s", updated.Version)
	}
	versions, _ := h.manager.ListVersions(context.Background(), pol.ID)
	if len(versions) != 1 {
		t.Errorf("reordering created a version: %+v", versions)
	}
}

func TestManagerUpdateDefaultChangelog(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	changed := strings.Replace(financePolicy, "max_file_size: 100MB", "max_file_size: 50MB", 1)
	if _, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{RawText: []byte(changed)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	versions, _ := h.manager.ListVersions(context.Background(), pol.ID)
	if versions[0].Changelog != "Configuration content updated" {
		t.Errorf("default changelog = %q", versions[0].Changelog)
	}
}

func TestManagerUpdateRenameConflict(t *testing.T) {
	h := newHarness(t)
	h.create(t, financePolicy)

	other := strings.Replace(financePolicy, "name: Finance PII", "name: Other Policy", 1)
	pol := h.create(t, other)

	clash := "Finance PII"
	_, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{Name: &clash})
	var conflict *policyerrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("rename onto taken name error = %v, want *ConflictError", err)
	}
}

func TestManagerUpdateKeepOwnName(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	same := pol.Name
	if _, err := h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{Name: &same}); err != nil {
		t.Fatalf("rename to own name error = %v", err)
	}
}

func TestManagerUpdateNotFound(t *testing.T) {
	h := newHarness(t)
	desc := "x"
	_, err := h.manager.Update(context.Background(), "tester", "missing-id", manager.Patch{Description: &desc})
	var notFound *policyerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Update(missing) error = %v, want *NotFoundError", err)
	}
}

func TestManagerDelete(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)

	if err := h.manager.Delete(context.Background(), "tester", pol.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// The policy stays readable but inactive.
	got, err := h.manager.GetOne(context.Background(), pol.ID)
	if err != nil {
		t.Fatalf("GetOne() after delete error = %v", err)
	}
	if got.Active {
		t.Error("deleted policy still active")
	}

	// History survives deletion.
	versions, err := h.manager.ListVersions(context.Background(), pol.ID)
	if err != nil {
		t.Fatalf("ListVersions() after delete error = %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("history after delete = %d versions, want 1", len(versions))
	}

	// Delete is terminal: a second delete is a not-found.
	err = h.manager.Delete(context.Background(), "tester", pol.ID)
	var notFound *policyerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("second delete error = %v, want *NotFoundError", err)
	}

	// Updates to a deleted policy are rejected the same way.
	desc := "x"
	_, err = h.manager.Update(context.Background(), "tester", pol.ID, manager.Patch{Description: &desc})
	if !errors.As(err, &notFound) {
		t.Fatalf("update after delete error = %v, want *NotFoundError", err)
	}
}

func TestManagerDeleteFreesName(t *testing.T) {
	h := newHarness(t)
	pol := h.create(t, financePolicy)
	if err := h.manager.Delete(context.Background(), "tester", pol.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	replacement := h.create(t, financePolicy)
	if replacement.ID == pol.ID {
		t.Error("replacement reused the deleted policy's id")
	}
}

func TestManagerReserveDeletedNames(t *testing.T) {
	h := newHarness(t, func(cfg *manager.Config) {
		cfg.ReserveDeletedNames = true
	})
	pol := h.create(t, financePolicy)
	if err := h.manager.Delete(context.Background(), "tester", pol.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := h.manager.Create(context.Background(), "tester", manager.CreateRequest{RawText: []byte(financePolicy)})
	var conflict *policyerrors.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("reserved name reuse error = %v, want *ConflictError", err)
	}
}

func TestManagerListAllClampsPagination(t *testing.T) {
	h := newHarness(t)
	h.create(t, financePolicy)

	page, err := h.manager.ListAll(context.Background(), manager.ListOptions{Page: -3, Limit: 0})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if page.Page != 1 || page.Limit != 20 {
		t.Errorf("clamped page/limit = %d/%d, want 1/20", page.Page, page.Limit)
	}

	page, err = h.manager.ListAll(context.Background(), manager.ListOptions{Page: 1, Limit: 5000})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if page.Limit != 100 {
		t.Errorf("limit cap = %d, want 100", page.Limit)
	}
}

func TestManagerListVersionsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.manager.ListVersions(context.Background(), "missing-id")
	var notFound *policyerrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("ListVersions(missing) error = %v, want *NotFoundError", err)
	}
}

func TestManagerValidateDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	result, err := h.manager.Validate([]byte(financePolicy))
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.Valid {
		t.Fatalf("Validate() = %+v", result)
	}

	page, err := h.manager.ListAll(context.Background(), manager.ListOptions{})
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if page.Total != 0 {
		t.Errorf("validation persisted a policy: %+v", page)
	}
	if len(h.sink.Events()) != 0 {
		t.Errorf("validation emitted audit events: %+v", h.sink.Events())
	}
}

func TestManagerEndToEndVersionHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pol := h.create(t, financePolicy)

	// Two content changes, one metadata change, then delete.
	step2 := strings.Replace(financePolicy, "- csv\n", "- csv\n    - pdf\n", 1)
	if _, err := h.manager.Update(ctx, "tester", pol.ID, manager.Patch{RawText: []byte(step2), Changelog: "Cover PDFs"}); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	step3 := strings.Replace(step2, "preserve_format: true", "preserve_format: false", 1)
	if _, err := h.manager.Update(ctx, "tester", pol.ID, manager.Patch{RawText: []byte(step3), Changelog: "Drop format preservation"}); err != nil {
		t.Fatalf("step 3: %v", err)
	}
	newDesc := "Final description"
	if _, err := h.manager.Update(ctx, "tester", pol.ID, manager.Patch{Description: &newDesc}); err != nil {
		t.Fatalf("metadata step: %v", err)
	}
	if err := h.manager.Delete(ctx, "tester", pol.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	versions, err := h.manager.ListVersions(ctx, pol.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	wantLabels := []string{"1.2.0", "1.1.0", "1.0.0"}
	if len(versions) != len(wantLabels) {
		t.Fatalf("versions = %d, want %d", len(versions), len(wantLabels))
	}
	for i, want := range wantLabels {
		if versions[i].Version != want {
			t.Errorf("versions[%d] = %s, want %s", i, versions[i].Version, want)
		}
	}

	// Audit trail: create, two content updates, metadata update, delete.
	events := h.sink.Events()
	wantActions := []audit.Action{
		audit.ActionCreate, audit.ActionUpdate, audit.ActionUpdate,
		audit.ActionUpdate, audit.ActionDelete,
	}
	if len(events) != len(wantActions) {
		t.Fatalf("audit events = %d, want %d", len(events), len(wantActions))
	}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("events[%d] = %s, want %s", i, events[i].Action, want)
		}
	}
}

func TestManagerMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pol := h.create(t, financePolicy)
	changed := strings.Replace(financePolicy, "max_file_size: 100MB", "max_file_size: 50MB", 1)
	if _, err := h.manager.Update(ctx, "tester", pol.ID, manager.Patch{RawText: []byte(changed)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	families, err := h.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, want := range []string{
		"maskwise_policy_validations_total",
		"maskwise_policy_operations_total",
		"maskwise_policy_versions_created_total",
		"maskwise_policy_operation_duration_seconds",
	} {
		if !got[want] {
			t.Errorf("metric %s not collected", want)
		}
	}
}
