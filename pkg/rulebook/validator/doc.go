// Package validator lints parsed clause templates.
//
// The validator runs three passes:
//
// 1. References: every clause code named by a rule exists in the library,
// mandatory clauses are not excluded, display orders are unique.
//
// 2. Conditions: every rule condition is structurally valid for the engine.
//
// 3. Bodies: every clause body compiles without template diagnostics.
//
// Dangling clause references are errors. Malformed conditions and template
// problems are warnings: the engine records a malformed rule as an error
// firing and the renderer drops broken tags, so a template carrying them can
// still be served. WithStrict promotes warnings to errors for CI linting.
//
// # Basic Usage
//
//	tmpl, err := parser.NewParser().Parse("catalog/aml.yaml")
//	if err != nil {
//	    return err
//	}
//	problems := validator.NewValidator().Lint(tmpl)
//	for _, p := range problems.Errors {
//	    fmt.Println(p)
//	}
package validator
