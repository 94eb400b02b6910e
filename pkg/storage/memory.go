package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledgerline/policyforge/pkg/policy"
)

// MemoryStore implements Store with in-process maps. Every read and write
// copies, so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
	versions map[string][]*policy.Version
	jobs     map[string]*policy.EnhancementJob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*policy.Policy),
		versions: make(map[string][]*policy.Version),
		jobs:     make(map[string]*policy.EnhancementJob),
	}
}

// CreatePolicy implements Store.
func (s *MemoryStore) CreatePolicy(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[p.ID]; ok {
		return fmt.Errorf("policy %s: %w", p.ID, ErrAlreadyExists)
	}
	p.Revision = 1
	s.policies[p.ID] = p.Clone()
	return nil
}

// GetPolicy implements Store.
func (s *MemoryStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// ListPolicies implements Store.
func (s *MemoryStore) ListPolicies(ctx context.Context, filter PolicyFilter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*policy.Policy
	for _, p := range s.policies {
		if matchesPolicy(p, filter) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesPolicy(p *policy.Policy, f PolicyFilter) bool {
	if f.OrganizationID != "" && p.OrganizationID != f.OrganizationID {
		return false
	}
	if f.TemplateCode != "" && p.TemplateCode != f.TemplateCode {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.ReviewDueBefore != nil {
		if p.NextReviewAt == nil || p.NextReviewAt.After(*f.ReviewDueBefore) {
			return false
		}
	}
	return true
}

// UpdatePolicy implements Store.
func (s *MemoryStore) UpdatePolicy(ctx context.Context, p *policy.Policy, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.policies[p.ID]
	if !ok {
		return fmt.Errorf("policy %s: %w", p.ID, ErrNotFound)
	}
	if cur.Revision != expectedRevision {
		return fmt.Errorf("policy %s at revision %d, expected %d: %w", p.ID, cur.Revision, expectedRevision, ErrRevisionConflict)
	}

	p.Revision = expectedRevision + 1
	stored := p.Clone()
	// The version pointer only moves through InsertVersion.
	stored.CurrentVersion = cur.CurrentVersion
	p.CurrentVersion = cur.CurrentVersion
	s.policies[p.ID] = stored
	return nil
}

// SetEnhancementState implements Store.
func (s *MemoryStore) SetEnhancementState(ctx context.Context, policyID string, state *policy.EnhancementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.policies[policyID]
	if !ok {
		return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	if state != nil {
		state = state.Clone()
	}
	cur.Enhancement = state
	return nil
}

// ApplyEnhancement implements Store.
func (s *MemoryStore) ApplyEnhancement(ctx context.Context, policyID string, expectedRevision int64, bodies map[string]string, state *policy.EnhancementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.policies[policyID]
	if !ok {
		return fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	if cur.Revision != expectedRevision {
		return fmt.Errorf("policy %s at revision %d, expected %d: %w", policyID, cur.Revision, expectedRevision, ErrRevisionConflict)
	}

	next := cur.Clone()
	applyBodies(next, bodies)
	if state != nil {
		next.Enhancement = state.Clone()
	}
	next.Revision++
	s.policies[policyID] = next
	return nil
}

func applyBodies(p *policy.Policy, bodies map[string]string) {
	for i := range p.Clauses {
		if body, ok := bodies[p.Clauses[i].Code]; ok {
			p.Clauses[i].Body = body
		}
	}
}

// InsertVersion implements Store.
func (s *MemoryStore) InsertVersion(ctx context.Context, v *policy.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[v.PolicyID]
	if !ok {
		return fmt.Errorf("policy %s: %w", v.PolicyID, ErrNotFound)
	}
	existing := s.versions[v.PolicyID]
	if want := len(existing) + 1; v.Number != want {
		return fmt.Errorf("policy %s version %d, next is %d: %w", v.PolicyID, v.Number, want, ErrVersionConflict)
	}

	s.versions[v.PolicyID] = append(existing, cloneVersion(v))
	p.CurrentVersion = v.Number
	p.Revision++
	p.UpdatedAt = v.PublishedAt
	return nil
}

// GetVersion implements Store.
func (s *MemoryStore) GetVersion(ctx context.Context, policyID string, number int) (*policy.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[policyID]
	if number < 1 || number > len(versions) {
		return nil, fmt.Errorf("policy %s version %d: %w", policyID, number, ErrNotFound)
	}
	return cloneVersion(versions[number-1]), nil
}

// ListVersions implements Store.
func (s *MemoryStore) ListVersions(ctx context.Context, policyID string) ([]*policy.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[policyID]
	out := make([]*policy.Version, len(versions))
	for i, v := range versions {
		out[i] = cloneVersion(v)
	}
	return out, nil
}

// LatestVersionNumber implements Store.
func (s *MemoryStore) LatestVersionNumber(ctx context.Context, policyID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions[policyID]), nil
}

func cloneVersion(v *policy.Version) *policy.Version {
	cp := *v
	cp.Clauses = policy.CloneClauses(v.Clauses)
	cp.CustomContent = make(map[string]string, len(v.CustomContent))
	for k, val := range v.CustomContent {
		cp.CustomContent[k] = val
	}
	return &cp
}

// EnqueueJob implements Store.
func (s *MemoryStore) EnqueueJob(ctx context.Context, job *policy.EnhancementJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// ClaimJob implements Store.
func (s *MemoryStore) ClaimJob(ctx context.Context, now time.Time) (*policy.EnhancementJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *policy.EnhancementJob
	for _, j := range s.jobs {
		if j.Status != policy.JobPending {
			continue
		}
		if oldest == nil || jobBefore(j, oldest) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, ErrNotFound
	}

	oldest.Status = policy.JobRunning
	oldest.Attempts++
	oldest.UpdatedAt = now
	cp := *oldest
	return &cp, nil
}

func jobBefore(a, b *policy.EnhancementJob) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// UpdateJob implements Store.
func (s *MemoryStore) UpdateJob(ctx context.Context, job *policy.EnhancementJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

// GetJob implements Store.
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*policy.EnhancementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

// ListJobs implements Store.
func (s *MemoryStore) ListJobs(ctx context.Context, filter JobFilter) ([]*policy.EnhancementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*policy.EnhancementJob
	for _, j := range s.jobs {
		if filter.PolicyID != "" && j.PolicyID != filter.PolicyID {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.UpdatedBefore != nil && !j.UpdatedAt.Before(*filter.UpdatedBefore) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return jobBefore(out[i], out[k]) })
	return out, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
