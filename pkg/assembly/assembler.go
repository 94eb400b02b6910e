package assembly

import (
	"fmt"
	"log/slog"
	"sort"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/rulebook/ast"
	"ledgerline/policyforge/pkg/template"
)

// Assembler renders decision sets. It is safe for concurrent use.
type Assembler struct {
	cache  *template.Cache
	logger *slog.Logger
}

// New creates an assembler. A nil cache compiles every body afresh.
func New(cache *template.Cache, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		cache:  cache,
		logger: logger.With("component", "assembler"),
	}
}

var defaultAssembler = New(nil, slog.Default())

// Assemble renders decision with the default assembler.
func Assemble(decision *engine.DecisionSet, library []*ast.Clause, variables, firmAnswers answers.Set) *Result {
	return defaultAssembler.Assemble(decision, library, variables, firmAnswers)
}

// Assemble selects the included clauses from library, orders them and renders
// each body. Rule variables take precedence over answers of the same name.
func (a *Assembler) Assemble(decision *engine.DecisionSet, library []*ast.Clause, variables, firmAnswers answers.Set) *Result {
	res := &Result{Clauses: []RenderedClause{}, Suggestions: []SuggestedClause{}}
	if decision == nil {
		return res
	}

	byCode := make(map[string]*ast.Clause, len(library))
	for _, c := range library {
		if c == nil {
			continue
		}
		if _, dup := byCode[c.Code]; !dup {
			byCode[c.Code] = c
		}
	}

	var selected []*ast.Clause
	seen := make(map[string]bool, len(decision.Included))
	for _, code := range decision.Included {
		if seen[code] {
			continue
		}
		seen[code] = true
		c, ok := byCode[code]
		if !ok {
			a.logger.Warn("included clause not in library", "clause", code)
			res.Missing = append(res.Missing, code)
			continue
		}
		selected = append(selected, c)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].DisplayOrder != selected[j].DisplayOrder {
			return selected[i].DisplayOrder < selected[j].DisplayOrder
		}
		return selected[i].Code < selected[j].Code
	})

	namespace := firmAnswers.Merge(variables)
	for _, c := range selected {
		tmpl := a.compile(c.Body)
		for _, d := range tmpl.Diagnostics() {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Code:    c.Code,
				Message: fmt.Sprintf("clause %s: %s", c.Code, d),
				Problem: d,
			})
		}
		res.Clauses = append(res.Clauses, RenderedClause{
			Code:         c.Code,
			Title:        c.Title,
			DisplayOrder: c.DisplayOrder,
			Body:         tmpl.Render(namespace),
			Mandatory:    c.Mandatory,
			Tags:         append([]string(nil), c.Tags...),
		})
	}

	for _, s := range decision.Suggested {
		c, ok := byCode[s.Code]
		if !ok {
			res.Missing = append(res.Missing, s.Code)
			continue
		}
		res.Suggestions = append(res.Suggestions, SuggestedClause{
			Code:   s.Code,
			Title:  c.Title,
			Reason: s.Reason,
			RuleID: s.RuleID,
		})
	}

	return res
}

func (a *Assembler) compile(body string) *template.Template {
	if a.cache != nil {
		return a.cache.Compile(body)
	}
	return template.Compile(body)
}
