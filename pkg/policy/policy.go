package policy

import (
	"time"

	"github.com/google/uuid"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy/engine"
)

// Policy is the mutable aggregate for one organization's policy document.
type Policy struct {
	ID              string `json:"id"`
	OrganizationID  string `json:"organization_id"`
	TemplateCode    string `json:"template_code"`
	TemplateVersion string `json:"template_version,omitempty"`
	Name            string `json:"name"`
	Status          Status `json:"status"`

	// Answers is the questionnaire input of the last assembly.
	Answers answers.Set `json:"answers"`

	// Decision is the rules engine output of the last assembly.
	Decision *engine.DecisionSet `json:"decision,omitempty"`

	// Clauses is the rendered policy body. Enhancement may rewrite bodies but
	// never adds or removes clauses.
	Clauses     []assembly.RenderedClause  `json:"clauses"`
	Suggestions []assembly.SuggestedClause `json:"suggestions,omitempty"`

	CustomContent map[string]string `json:"custom_content,omitempty"`

	Approval    *Approval         `json:"approval,omitempty"`
	Enhancement *EnhancementState `json:"enhancement,omitempty"`

	// CurrentVersion points at the current published version; zero when
	// nothing has been published.
	CurrentVersion int `json:"current_version"`

	// Revision increases on every stored mutation.
	Revision int64 `json:"revision"`

	NextReviewAt *time.Time `json:"next_review_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Approval records who approved the policy and when.
type Approval struct {
	SubmittedBy string     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedBy  string     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// New creates a draft policy with a fresh ID.
func New(organizationID, templateCode, name string, now time.Time) *Policy {
	return &Policy{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		TemplateCode:   templateCode,
		Name:           name,
		Status:         StatusDraft,
		Answers:        answers.Set{},
		Clauses:        []assembly.RenderedClause{},
		CustomContent:  map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyAssembly replaces the decision and rendered body with a new assembly
// result. Any enhancement in flight is now stale.
func (p *Policy) ApplyAssembly(set answers.Set, decision *engine.DecisionSet, res *assembly.Result, now time.Time) {
	p.Answers = set
	p.Decision = decision
	p.Clauses = res.Clauses
	p.Suggestions = res.Suggestions
	p.Enhancement = nil
	p.UpdatedAt = now
}

// Transition moves the policy to next, updating approval metadata.
func (p *Policy) Transition(next Status, actor string, now time.Time) error {
	if !p.Status.CanTransition(next) {
		return &TransitionError{PolicyID: p.ID, From: p.Status, To: next}
	}

	switch next {
	case StatusInReview:
		p.Approval = &Approval{SubmittedBy: actor, SubmittedAt: &now}
	case StatusApproved:
		if p.Approval == nil {
			p.Approval = &Approval{}
		}
		p.Approval.ApprovedBy = actor
		p.Approval.ApprovedAt = &now
	case StatusDraft:
		p.Approval = nil
	}

	p.Status = next
	p.UpdatedAt = now
	return nil
}

// ReviewDue reports whether an approved policy has passed its review date.
func (p *Policy) ReviewDue(now time.Time) bool {
	return p.Status == StatusApproved && p.NextReviewAt != nil && !now.Before(*p.NextReviewAt)
}

// ClauseCodes returns the codes of the rendered clauses in order.
func (p *Policy) ClauseCodes() []string {
	codes := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		codes[i] = c.Code
	}
	return codes
}

// Clone returns a deep copy of the mutable parts of p. The decision set is
// shared; it is never mutated after evaluation.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Answers = p.Answers.Merge(nil)
	cp.Clauses = CloneClauses(p.Clauses)
	cp.Suggestions = append([]assembly.SuggestedClause(nil), p.Suggestions...)
	cp.CustomContent = cloneContent(p.CustomContent)
	if p.Approval != nil {
		a := *p.Approval
		cp.Approval = &a
	}
	if p.Enhancement != nil {
		cp.Enhancement = p.Enhancement.Clone()
	}
	if p.NextReviewAt != nil {
		t := *p.NextReviewAt
		cp.NextReviewAt = &t
	}
	return &cp
}

// CloneClauses copies a rendered clause list.
func CloneClauses(in []assembly.RenderedClause) []assembly.RenderedClause {
	out := make([]assembly.RenderedClause, len(in))
	for i, c := range in {
		c.Tags = append([]string(nil), c.Tags...)
		out[i] = c
	}
	return out
}

func cloneContent(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
