// Package rulebook parses and validates clause template catalogs.
//
// A catalog file declares one template: its clause library and the rules that
// select clauses from it.
//
// # Architecture
//
// The package is organized into subpackages:
//
// - ast: declarative types for templates, clauses, rules and conditions
// - parser: YAML parsing with source locations
// - validator: reference, condition and clause body linting
// - errors: catalog errors with location, context and suggestions
//
// # Basic Usage
//
//	tmpl, err := rulebook.ParseAndValidate("catalog/aml.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Template:", tmpl.Code)
//	fmt.Println("Rules:", len(tmpl.Rules))
package rulebook
