package validator

import (
	"fmt"

	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
	"ledgerline/policyforge/pkg/template"
)

func checkBodies(tmpl *ast.Template, problems *rbErrors.ErrorList) {
	for _, c := range tmpl.Clauses {
		if c.Body == "" {
			problems.AddWarning(
				rbErrors.ErrorTypeTemplate,
				fmt.Sprintf("Clause %q has an empty body", c.Code),
				c.Location,
				rbErrors.SuggestMissingField("body", `"Clause text with {{ variables }}"`),
			)
			continue
		}
		for _, d := range template.Compile(c.Body).Diagnostics() {
			problems.AddWarning(
				rbErrors.ErrorTypeTemplate,
				fmt.Sprintf("Clause %q body at %s: %s", c.Code, d.Position, d.Message),
				c.Location,
				"",
			)
		}
	}
}
