package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"ledgerline/policyforge/pkg/assembly"
	"ledgerline/policyforge/pkg/policy/engine"
)

// Version is an immutable published snapshot of a policy.
type Version struct {
	ID            string                    `json:"id"`
	PolicyID      string                    `json:"policy_id"`
	Number        int                       `json:"number"`
	Status        Status                    `json:"status"`
	Clauses       []assembly.RenderedClause `json:"clauses"`
	CustomContent map[string]string         `json:"custom_content,omitempty"`
	Decision      *engine.DecisionSet       `json:"decision,omitempty"`
	ChangeSummary string                    `json:"change_summary,omitempty"`
	PublishedBy   string                    `json:"published_by"`
	ContentHash   string                    `json:"content_hash"`
	CreatedAt     time.Time                 `json:"created_at"`
	PublishedAt   time.Time                 `json:"published_at"`
}

// ContentHash returns the hex SHA-256 of the clause list and custom content.
// Map keys marshal sorted, so the hash is stable.
func ContentHash(clauses []assembly.RenderedClause, custom map[string]string) string {
	if clauses == nil {
		clauses = []assembly.RenderedClause{}
	}
	if custom == nil {
		custom = map[string]string{}
	}
	payload, _ := json.Marshal(struct {
		Clauses []assembly.RenderedClause `json:"clauses"`
		Custom  map[string]string         `json:"custom"`
	}{clauses, custom})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the stored hash matches the snapshot content.
func (v *Version) Verify() bool {
	return v.ContentHash == ContentHash(v.Clauses, v.CustomContent)
}
