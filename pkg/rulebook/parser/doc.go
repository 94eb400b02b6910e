// Package parser reads policy template catalog files (YAML) into ast.Template
// values.
//
// # Basic Usage
//
//	p := parser.NewParser()
//	tmpl, err := p.Parse("catalog/aml.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Format
//
//	code: aml
//	name: Anti-Money Laundering Policy
//	version: "2.1"
//	clauses:
//	  - code: purpose
//	    title: Purpose
//	    display_order: 10
//	    mandatory: true
//	    body: "This policy applies to {{ firm_name }}."
//	rules:
//	  - id: domestic-pep
//	    priority: 100
//	    conditions:
//	      field: pep_domestic
//	      operator: equals
//	      value: true
//	    actions:
//	      - type: include
//	        clauses: [edd_domestic_pep]
//
// Conditions are a single leaf map, an all/any map of children, or a list
// (implicit all). Operators accept the canonical names and the aliases ==, !=,
// >, < and contains.
//
// Malformed conditions do not fail the parse. They are kept in the tree as
// written so the rules engine can skip them fail-closed and lint can report
// them. Structural problems that leave a template unusable (missing codes,
// duplicate codes, unknown action types) are returned as an *errors.ErrorList.
package parser
