package rulebook

import (
	"ledgerline/policyforge/pkg/rulebook/ast"
	"ledgerline/policyforge/pkg/rulebook/parser"
	"ledgerline/policyforge/pkg/rulebook/validator"
)

// ParseAndValidate parses a catalog file and rejects it if the validator
// finds a blocking problem. Warnings do not fail.
func ParseAndValidate(path string) (*ast.Template, error) {
	tmpl, err := parser.NewParser().Parse(path)
	if err != nil {
		return nil, err
	}
	if err := validator.NewValidator().Validate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// ParseAndValidateBytes is ParseAndValidate for catalog YAML held in memory.
func ParseAndValidateBytes(data []byte, sourcePath string) (*ast.Template, error) {
	tmpl, err := parser.NewParser().ParseBytes(data, sourcePath)
	if err != nil {
		return nil, err
	}
	if err := validator.NewValidator().Validate(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Parse parses a catalog file without validation.
func Parse(path string) (*ast.Template, error) {
	return parser.NewParser().Parse(path)
}

// Validate validates a parsed template.
func Validate(tmpl *ast.Template) error {
	return validator.NewValidator().Validate(tmpl)
}
