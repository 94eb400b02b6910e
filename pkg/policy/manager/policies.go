package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/rulebook/ast"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/versioning"
)

// Preview is an evaluated and rendered template that has not been stored.
type Preview struct {
	TemplateCode    string              `json:"template_code"`
	TemplateVersion string              `json:"template_version,omitempty"`
	Decision        *engine.DecisionSet `json:"decision"`
	Result          *assembly.Result    `json:"result"`
}

// CreateRequest holds the input for a new policy.
type CreateRequest struct {
	OrganizationID string
	TemplateCode   string
	Name           string
	Answers        answers.Set
	CustomContent  map[string]string
}

// Evaluate runs a template's rules against set.
func (m *Manager) Evaluate(ctx context.Context, templateCode string, set answers.Set) (*engine.DecisionSet, error) {
	tmpl, err := m.Template(templateCode)
	if err != nil {
		return nil, err
	}
	return m.engine.EvaluateTemplate(ctx, tmpl, set)
}

// Preview evaluates and renders a template without storing anything.
func (m *Manager) Preview(ctx context.Context, templateCode string, set answers.Set) (*Preview, error) {
	tmpl, err := m.Template(templateCode)
	if err != nil {
		return nil, err
	}
	decision, res, err := m.assemble(ctx, tmpl, set)
	if err != nil {
		return nil, err
	}
	return &Preview{
		TemplateCode:    tmpl.Code,
		TemplateVersion: tmpl.Version,
		Decision:        decision,
		Result:          res,
	}, nil
}

func (m *Manager) assemble(ctx context.Context, tmpl *ast.Template, set answers.Set) (*engine.DecisionSet, *assembly.Result, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "policy.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("template.code", tmpl.Code))

	if set == nil {
		set = answers.Set{}
	}
	decision, err := m.engine.EvaluateTemplate(ctx, tmpl, set)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	res := m.assembler.Assemble(decision, tmpl.Clauses, decision.Variables, set)

	for _, d := range res.Diagnostics {
		m.logger.WarnContext(ctx, "clause template problem", "template", tmpl.Code, "clause", d.Code, "message", d.Message)
	}
	if len(res.Missing) > 0 {
		m.logger.WarnContext(ctx, "rules reference clauses missing from the library",
			"template", tmpl.Code,
			"missing", res.Missing,
		)
	}

	span.SetAttributes(
		attribute.Int("policy.clauses", len(res.Clauses)),
		attribute.Int("engine.rules_fired", len(decision.FiredRuleIDs())),
	)
	if m.metrics != nil {
		m.metrics.RecordAssembly(tmpl.Code, len(res.Clauses), time.Since(start))
	}
	return decision, res, nil
}

// CreatePolicy assembles a new draft policy from a template and stores it.
func (m *Manager) CreatePolicy(ctx context.Context, req CreateRequest) (*policy.Policy, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidRequest)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	tmpl, err := m.Template(req.TemplateCode)
	if err != nil {
		return nil, err
	}

	decision, res, err := m.assemble(ctx, tmpl, req.Answers)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	p := policy.New(req.OrganizationID, tmpl.Code, req.Name, now)
	p.TemplateVersion = tmpl.Version
	p.ApplyAssembly(nonNil(req.Answers), decision, res, now)
	for k, v := range req.CustomContent {
		p.CustomContent[k] = v
	}

	if err := m.store.CreatePolicy(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to store policy: %w", err)
	}
	m.logger.InfoContext(ctx, "policy created",
		"policy_id", p.ID,
		"organization_id", p.OrganizationID,
		"template", p.TemplateCode,
		"clauses", len(p.Clauses),
	)

	m.enqueue(ctx, p)
	return p, nil
}

// Reassemble re-runs the rules with new answers and replaces the rendered
// body. A policy that has left draft returns to draft; archived policies are
// rejected. Custom content is kept.
func (m *Manager) Reassemble(ctx context.Context, policyID string, set answers.Set, actor string) (*policy.Policy, error) {
	p, err := m.update(ctx, policyID, func(p *policy.Policy) error {
		if p.Status == policy.StatusArchived {
			return fmt.Errorf("policy %s: %w", p.ID, versioning.ErrPolicyArchived)
		}
		tmpl, err := m.Template(p.TemplateCode)
		if err != nil {
			return err
		}
		decision, res, err := m.assemble(ctx, tmpl, set)
		if err != nil {
			return err
		}
		now := m.now().UTC()
		if p.Status != policy.StatusDraft {
			if err := p.Transition(policy.StatusDraft, actor, now); err != nil {
				return err
			}
		}
		p.TemplateVersion = tmpl.Version
		p.ApplyAssembly(nonNil(set), decision, res, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "policy reassembled", "policy_id", p.ID, "revision", p.Revision, "clauses", len(p.Clauses))
	m.enqueue(ctx, p)
	return p, nil
}

// SetCustomContent sets firm-specific content keys. An empty value deletes
// the key.
func (m *Manager) SetCustomContent(ctx context.Context, policyID string, content map[string]string) (*policy.Policy, error) {
	return m.update(ctx, policyID, func(p *policy.Policy) error {
		if p.Status == policy.StatusArchived {
			return fmt.Errorf("policy %s: %w", p.ID, versioning.ErrPolicyArchived)
		}
		if p.CustomContent == nil {
			p.CustomContent = map[string]string{}
		}
		for k, v := range content {
			if v == "" {
				delete(p.CustomContent, k)
				continue
			}
			p.CustomContent[k] = v
		}
		p.UpdatedAt = m.now().UTC()
		return nil
	})
}

// Transition moves a policy to a new status. Approval sets the next review
// date.
func (m *Manager) Transition(ctx context.Context, policyID string, next policy.Status, actor string) (*policy.Policy, error) {
	p, err := m.update(ctx, policyID, func(p *policy.Policy) error {
		now := m.now().UTC()
		if err := p.Transition(next, actor, now); err != nil {
			return err
		}
		if next == policy.StatusApproved && m.config.ReviewInterval > 0 {
			due := now.Add(m.config.ReviewInterval)
			p.NextReviewAt = &due
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "policy status changed", "policy_id", p.ID, "status", p.Status, "actor", actor)
	return p, nil
}

// Enhance queues a policy for prose rewriting regardless of AutoEnhance.
func (m *Manager) Enhance(ctx context.Context, policyID string) (*policy.EnhancementJob, error) {
	if m.queue == nil {
		return nil, ErrEnhancementDisabled
	}
	p, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}
	return m.queue.Enqueue(ctx, p)
}

// Policy returns a stored policy.
func (m *Manager) Policy(ctx context.Context, policyID string) (*policy.Policy, error) {
	return m.store.GetPolicy(ctx, policyID)
}

// Policies lists stored policies.
func (m *Manager) Policies(ctx context.Context, filter storage.PolicyFilter) ([]*policy.Policy, error) {
	return m.store.ListPolicies(ctx, filter)
}

// Publish snapshots the policy as a new version.
func (m *Manager) Publish(ctx context.Context, policyID string, req versioning.PublishRequest) (*policy.Version, error) {
	ctx, span := m.tracer.Start(ctx, "policy.publish")
	defer span.End()
	span.SetAttributes(attribute.String("policy.id", policyID))

	v, err := m.versions.Publish(ctx, policyID, req)
	if m.metrics != nil {
		m.metrics.RecordPublish(err == nil)
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("policy.version", v.Number))
	return v, nil
}

// Restore copies a version's content back onto the live policy.
func (m *Manager) Restore(ctx context.Context, policyID string, number int, actor string) (*policy.Policy, error) {
	return m.versions.Restore(ctx, policyID, number, actor)
}

// Versions lists a policy's versions in ascending order.
func (m *Manager) Versions(ctx context.Context, policyID string) ([]*policy.Version, error) {
	return m.versions.List(ctx, policyID)
}

// Version returns one version; number zero selects the current one.
func (m *Manager) Version(ctx context.Context, policyID string, number int) (*policy.Version, error) {
	if number == 0 {
		return m.versions.Current(ctx, policyID)
	}
	return m.versions.Get(ctx, policyID, number)
}

// Diff compares two versions of a policy.
func (m *Manager) Diff(ctx context.Context, policyID string, from, to int) (*versioning.Diff, error) {
	return m.versions.Diff(ctx, policyID, from, to)
}

// update applies fn to the stored policy and writes it back with a revision
// compare-and-swap, retrying when another writer got there first. Errors from
// fn are returned as is.
func (m *Manager) update(ctx context.Context, policyID string, fn func(p *policy.Policy) error) (*policy.Policy, error) {
	for attempt := 1; attempt <= m.config.MaxUpdateRetries; attempt++ {
		p, err := m.store.GetPolicy(ctx, policyID)
		if err != nil {
			return nil, err
		}
		expected := p.Revision
		if err := fn(p); err != nil {
			return nil, err
		}
		err = m.store.UpdatePolicy(ctx, p, expected)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, storage.ErrRevisionConflict) {
			return nil, err
		}
		m.logger.DebugContext(ctx, "policy changed during update, retrying",
			"policy_id", policyID,
			"attempt", attempt,
		)
	}
	return nil, fmt.Errorf("policy %s: %w", policyID, ErrUpdateContention)
}

// enqueue queues p for enhancement when enabled. Failures are logged; the
// policy is already stored and usable without the overlay.
func (m *Manager) enqueue(ctx context.Context, p *policy.Policy) {
	if m.queue == nil || !m.config.AutoEnhance || len(p.Clauses) == 0 {
		return
	}
	if _, err := m.queue.Enqueue(ctx, p); err != nil {
		m.logger.ErrorContext(ctx, "failed to queue enhancement", "policy_id", p.ID, "error", err)
	}
}

func nonNil(set answers.Set) answers.Set {
	if set == nil {
		return answers.Set{}
	}
	return set
}
