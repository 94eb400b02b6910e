package versioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/storage"
)

// PublishRequest carries the publisher's input.
type PublishRequest struct {
	PublishedBy   string
	ChangeSummary string
}

// Manager publishes and restores policy versions.
type Manager struct {
	store  storage.Store
	config *Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Manager. A nil config uses DefaultConfig.
func New(store storage.Store, cfg *Config, logger *slog.Logger) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		config: cfg,
		logger: logger.With("component", "versioning"),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Publish snapshots the policy as its next version.
func (m *Manager) Publish(ctx context.Context, policyID string, req PublishRequest) (*policy.Version, error) {
	for attempt := 0; attempt <= m.config.MaxPublishRetries; attempt++ {
		if attempt > 0 {
			if err := m.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		p, err := m.store.GetPolicy(ctx, policyID)
		if err != nil {
			return nil, err
		}
		if err := validatePublishable(p); err != nil {
			return nil, err
		}

		latest, err := m.store.LatestVersionNumber(ctx, policyID)
		if err != nil {
			return nil, err
		}

		v := snapshot(p, latest+1, req, m.now().UTC())
		err = m.store.InsertVersion(ctx, v)
		if errors.Is(err, storage.ErrVersionConflict) {
			m.logger.DebugContext(ctx, "version number taken, retrying",
				"policy_id", policyID,
				"number", v.Number,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		m.logger.InfoContext(ctx, "policy version published",
			"policy_id", policyID,
			"version", v.Number,
			"status", v.Status,
			"clauses", len(v.Clauses),
			"published_by", v.PublishedBy,
		)
		return v, nil
	}

	m.logger.WarnContext(ctx, "publish retries exhausted", "policy_id", policyID, "retries", m.config.MaxPublishRetries)
	return nil, fmt.Errorf("policy %s: %w", policyID, ErrPublishContention)
}

func (m *Manager) backoff(ctx context.Context, attempt int) error {
	if m.config.RetryBackoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(attempt) * m.config.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func validatePublishable(p *policy.Policy) error {
	if p.Status == policy.StatusArchived {
		return &ValidationError{PolicyID: p.ID, Err: ErrPolicyArchived}
	}
	if len(p.Clauses) == 0 {
		return &ValidationError{PolicyID: p.ID, Err: ErrEmptyPolicy}
	}
	return nil
}

func snapshot(p *policy.Policy, number int, req PublishRequest, now time.Time) *policy.Version {
	clauses := policy.CloneClauses(p.Clauses)
	custom := make(map[string]string, len(p.CustomContent))
	for k, v := range p.CustomContent {
		custom[k] = v
	}
	return &policy.Version{
		ID:            uuid.New().String(),
		PolicyID:      p.ID,
		Number:        number,
		Status:        p.Status,
		Clauses:       clauses,
		CustomContent: custom,
		Decision:      p.Decision,
		ChangeSummary: req.ChangeSummary,
		PublishedBy:   req.PublishedBy,
		ContentHash:   policy.ContentHash(clauses, custom),
		CreatedAt:     now,
		PublishedAt:   now,
	}
}

// Restore copies version number's content back onto the live policy and
// returns it to draft. History is untouched.
func (m *Manager) Restore(ctx context.Context, policyID string, number int, actor string) (*policy.Policy, error) {
	v, err := m.store.GetVersion(ctx, policyID, number)
	if err != nil {
		return nil, err
	}
	if !v.Verify() {
		m.logger.WarnContext(ctx, "version content hash mismatch", "policy_id", policyID, "version", number)
	}

	for attempt := 0; attempt <= m.config.MaxPublishRetries; attempt++ {
		p, err := m.store.GetPolicy(ctx, policyID)
		if err != nil {
			return nil, err
		}
		if p.Status == policy.StatusArchived {
			return nil, &ValidationError{PolicyID: policyID, Err: ErrPolicyArchived}
		}

		now := m.now().UTC()
		if p.Status != policy.StatusDraft {
			if err := p.Transition(policy.StatusDraft, actor, now); err != nil {
				return nil, err
			}
		}
		p.Clauses = policy.CloneClauses(v.Clauses)
		p.CustomContent = make(map[string]string, len(v.CustomContent))
		for k, val := range v.CustomContent {
			p.CustomContent[k] = val
		}
		if v.Decision != nil {
			p.Decision = v.Decision
		}
		p.Enhancement = nil
		p.UpdatedAt = now

		err = m.store.UpdatePolicy(ctx, p, p.Revision)
		if errors.Is(err, storage.ErrRevisionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		m.logger.InfoContext(ctx, "policy version restored",
			"policy_id", policyID,
			"version", number,
			"actor", actor,
			"revision", p.Revision,
		)
		return p, nil
	}
	return nil, fmt.Errorf("policy %s: restore: %w", policyID, storage.ErrRevisionConflict)
}

// List returns every version of the policy in ascending order.
func (m *Manager) List(ctx context.Context, policyID string) ([]*policy.Version, error) {
	return m.store.ListVersions(ctx, policyID)
}

// Get returns one version.
func (m *Manager) Get(ctx context.Context, policyID string, number int) (*policy.Version, error) {
	return m.store.GetVersion(ctx, policyID, number)
}

// Current returns the version the policy points at, or its highest version
// when the pointer is unset.
func (m *Manager) Current(ctx context.Context, policyID string) (*policy.Version, error) {
	p, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	number := p.CurrentVersion
	if number == 0 {
		if number, err = m.store.LatestVersionNumber(ctx, policyID); err != nil {
			return nil, err
		}
	}
	if number == 0 {
		return nil, fmt.Errorf("policy %s has no published versions: %w", policyID, storage.ErrNotFound)
	}
	return m.store.GetVersion(ctx, policyID, number)
}

// Diff compares two versions of the same policy.
func (m *Manager) Diff(ctx context.Context, policyID string, from, to int) (*Diff, error) {
	a, err := m.store.GetVersion(ctx, policyID, from)
	if err != nil {
		return nil, err
	}
	b, err := m.store.GetVersion(ctx, policyID, to)
	if err != nil {
		return nil, err
	}
	return Compare(a, b), nil
}
