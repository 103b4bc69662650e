package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/document"
	policyerrors "github.com/bluewave-labs/maskwise-sub001/pkg/policy/errors"
	"github.com/bluewave-labs/maskwise-sub001/pkg/policy/manager"
)

// MemoryStore is an in-memory Store. A single mutex serializes all
// writes, and units of work snapshot the state so a failing function
// rolls everything back. Intended for tests, the CLI default, and
// single-process embedding.
type MemoryStore struct {
	mu        sync.RWMutex
	policies  map[string]*manager.Policy
	versions  map[string][]*manager.PolicyVersion
	templates map[string]*manager.Template
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies:  make(map[string]*manager.Policy),
		versions:  make(map[string][]*manager.PolicyVersion),
		templates: make(map[string]*manager.Template),
	}
}

// WithinTx implements manager.Store. The store mutex is held for the
// whole unit of work, which both serializes concurrent writers and makes
// the snapshot rollback safe.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx manager.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshotLocked()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.restoreLocked(snapshot)
		return err
	}
	return nil
}

// FindActiveByName implements manager.Store.
func (s *MemoryStore) FindActiveByName(ctx context.Context, name string) (*manager.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.policies {
		if p.Active && p.Name == name {
			return clonePolicy(p), nil
		}
	}
	return nil, nil
}

// FindByName implements manager.Store. When several policies (at most
// one of them active) share a name, the most recently updated wins.
func (s *MemoryStore) FindByName(ctx context.Context, name string) (*manager.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *manager.Policy
	for _, p := range s.policies {
		if p.Name != name {
			continue
		}
		if newest == nil || p.UpdatedAt.After(newest.UpdatedAt) {
			newest = p
		}
	}
	return clonePolicy(newest), nil
}

// FindByID implements manager.Store.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*manager.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePolicy(s.policies[id]), nil
}

// List implements manager.Store. Results are ordered newest first.
func (s *MemoryStore) List(ctx context.Context, opts manager.ListOptions) (*manager.PolicyPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	var matched []*manager.Policy
	for _, p := range s.policies {
		if opts.ActiveOnly && !p.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	page := &manager.PolicyPage{
		Total: len(matched),
		Page:  opts.Page,
		Limit: opts.Limit,
	}

	start := (opts.Page - 1) * opts.Limit
	if start < len(matched) {
		end := start + opts.Limit
		if end > len(matched) {
			end = len(matched)
		}
		for _, p := range matched[start:end] {
			page.Policies = append(page.Policies, clonePolicy(p))
		}
	}
	return page, nil
}

// ListVersions implements manager.Store. Versions are returned newest
// first; insertion order breaks timestamp ties.
func (s *MemoryStore) ListVersions(ctx context.Context, policyID string) ([]*manager.PolicyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.versions[policyID]
	out := make([]*manager.PolicyVersion, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, cloneVersion(stored[i]))
	}
	return out, nil
}

// ListTemplates implements manager.Store. Templates are sorted by name.
func (s *MemoryStore) ListTemplates(ctx context.Context) ([]*manager.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*manager.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindTemplateByID implements manager.Store.
func (s *MemoryStore) FindTemplateByID(ctx context.Context, id string) (*manager.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTemplate(s.templates[id]), nil
}

// SaveTemplate implements manager.Store.
func (s *MemoryStore) SaveTemplate(ctx context.Context, tpl *manager.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = cloneTemplate(tpl)
	return nil
}

// Close implements manager.Store.
func (s *MemoryStore) Close() error {
	return nil
}

// memoryTx is the write surface inside a unit of work. The store mutex
// is already held.
type memoryTx struct {
	store *MemoryStore
}

// CreateWithInitialVersion implements manager.Tx. The active-name
// uniqueness check here is the backend constraint the engine's pre-check
// relies on under concurrency.
func (t *memoryTx) CreateWithInitialVersion(ctx context.Context, policy *manager.Policy, version *manager.PolicyVersion) error {
	for _, p := range t.store.policies {
		if p.Active && p.Name == policy.Name && p.ID != policy.ID {
			return &policyerrors.ConflictError{Name: policy.Name}
		}
	}

	t.store.policies[policy.ID] = clonePolicy(policy)
	t.store.versions[policy.ID] = append(t.store.versions[policy.ID], cloneVersion(version))
	return nil
}

// UpdatePolicyAndVersions implements manager.Tx.
func (t *memoryTx) UpdatePolicyAndVersions(ctx context.Context, policy *manager.Policy, newVersion *manager.PolicyVersion) error {
	if policy.Active {
		for _, p := range t.store.policies {
			if p.Active && p.Name == policy.Name && p.ID != policy.ID {
				return &policyerrors.ConflictError{Name: policy.Name}
			}
		}
	}

	t.store.policies[policy.ID] = clonePolicy(policy)

	if newVersion != nil {
		for _, v := range t.store.versions[policy.ID] {
			v.Active = false
		}
		t.store.versions[policy.ID] = append(t.store.versions[policy.ID], cloneVersion(newVersion))
	}
	return nil
}

// snapshotLocked captures a deep copy of all state for rollback.
type memorySnapshot struct {
	policies  map[string]*manager.Policy
	versions  map[string][]*manager.PolicyVersion
	templates map[string]*manager.Template
}

func (s *MemoryStore) snapshotLocked() memorySnapshot {
	snap := memorySnapshot{
		policies:  make(map[string]*manager.Policy, len(s.policies)),
		versions:  make(map[string][]*manager.PolicyVersion, len(s.versions)),
		templates: make(map[string]*manager.Template, len(s.templates)),
	}
	for id, p := range s.policies {
		snap.policies[id] = clonePolicy(p)
	}
	for id, vs := range s.versions {
		cloned := make([]*manager.PolicyVersion, len(vs))
		for i, v := range vs {
			cloned[i] = cloneVersion(v)
		}
		snap.versions[id] = cloned
	}
	for id, t := range s.templates {
		snap.templates[id] = cloneTemplate(t)
	}
	return snap
}

func (s *MemoryStore) restoreLocked(snap memorySnapshot) {
	s.policies = snap.policies
	s.versions = snap.versions
	s.templates = snap.templates
}

func clonePolicy(p *manager.Policy) *manager.Policy {
	if p == nil {
		return nil
	}
	out := *p
	out.Config = cloneDocument(p.Config)
	return &out
}

func cloneVersion(v *manager.PolicyVersion) *manager.PolicyVersion {
	if v == nil {
		return nil
	}
	out := *v
	out.Config = cloneDocument(v.Config)
	return &out
}

func cloneTemplate(t *manager.Template) *manager.Template {
	if t == nil {
		return nil
	}
	out := *t
	out.Config.Entities = append([]manager.TemplateEntity(nil), t.Config.Entities...)
	if t.Config.Scope != nil {
		scope := *t.Config.Scope
		scope.FileTypes = append([]string(nil), t.Config.Scope.FileTypes...)
		out.Config.Scope = &scope
	}
	if t.Config.Anonymization != nil {
		anon := *t.Config.Anonymization
		out.Config.Anonymization = &anon
	}
	return &out
}

func cloneDocument(doc document.PolicyDocument) document.PolicyDocument {
	out := doc
	out.Entities = append([]document.EntityRule(nil), doc.Entities...)
	out.Scope.FileTypes = append([]string(nil), doc.Scope.FileTypes...)
	return out
}
