package validator

import (
	"fmt"

	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

func checkReferences(tmpl *ast.Template, problems *rbErrors.ErrorList) {
	library := tmpl.Library()
	codes := make([]string, 0, len(tmpl.Clauses))
	for _, c := range tmpl.Clauses {
		codes = append(codes, c.Code)
	}

	for _, rule := range tmpl.Rules {
		for _, action := range rule.Actions {
			for _, code := range action.Clauses {
				clause, ok := library[code]
				if !ok {
					problems.AddErrorWithSuggestion(
						rbErrors.ErrorTypeSemantic,
						fmt.Sprintf("Rule %q references unknown clause %q", rule.ID, code),
						action.Location,
						rbErrors.SuggestClosest(code, codes),
					)
					continue
				}
				if action.Type == ast.ActionExclude && clause.Mandatory {
					problems.AddWarning(
						rbErrors.ErrorTypeSemantic,
						fmt.Sprintf("Rule %q excludes mandatory clause %q; the clause is always included", rule.ID, code),
						action.Location,
						"Remove the exclusion or make the clause optional",
					)
				}
			}
		}
	}

	seen := make(map[int]string)
	for _, c := range tmpl.Clauses {
		if prev, ok := seen[c.DisplayOrder]; ok {
			problems.AddWarning(
				rbErrors.ErrorTypeSemantic,
				fmt.Sprintf("Clauses %q and %q share display_order %d; they are ordered by code", prev, c.Code, c.DisplayOrder),
				c.Location,
				"Give each clause a distinct display_order",
			)
			continue
		}
		seen[c.DisplayOrder] = c.Code
	}
}
