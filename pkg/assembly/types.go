package assembly

import "ledgerline/policyforge/pkg/template"

// RenderedClause is one clause of an assembled policy body.
type RenderedClause struct {
	Code         string   `json:"code"`
	Title        string   `json:"title"`
	DisplayOrder int      `json:"display_order"`
	Body         string   `json:"body"`
	Mandatory    bool     `json:"mandatory,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// SuggestedClause is a clause offered to a reviewer but not rendered.
type SuggestedClause struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
	RuleID string `json:"rule_id,omitempty"`
}

// Diagnostic is a template problem found while rendering a clause body.
type Diagnostic struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Problem template.Diagnostic `json:"problem"`
}

// Result is the output of one assembly run.
type Result struct {
	Clauses     []RenderedClause  `json:"clauses"`
	Suggestions []SuggestedClause `json:"suggestions"`

	// Missing lists included or suggested codes absent from the library.
	Missing []string `json:"missing,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Codes returns the codes of the rendered clauses in order.
func (r *Result) Codes() []string {
	codes := make([]string, len(r.Clauses))
	for i, c := range r.Clauses {
		codes[i] = c.Code
	}
	return codes
}

// Clause returns the rendered clause with the given code.
func (r *Result) Clause(code string) (RenderedClause, bool) {
	for _, c := range r.Clauses {
		if c.Code == code {
			return c, true
		}
	}
	return RenderedClause{}, false
}
