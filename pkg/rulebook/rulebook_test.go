package rulebook

import (
	"errors"
	"testing"

	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
)

func TestParseAndValidate(t *testing.T) {
	tmpl, err := ParseAndValidate("parser/testdata/aml.yaml")
	if err != nil {
		t.Fatalf("ParseAndValidate() failed: %v", err)
	}
	if tmpl.Code != "aml" {
		t.Errorf("Code = %q, want %q", tmpl.Code, "aml")
	}
}

func TestParseAndValidateBytes(t *testing.T) {
	data := []byte(`
code: kyc
clauses:
  - code: scope
    display_order: 1
    body: "Scope"
rules:
  - id: r1
    conditions:
      field: firm_type
      operator: "=="
      value: bank
    actions:
      - type: include
        clauses: [scopee]
`)

	_, err := ParseAndValidateBytes(data, "memory://kyc")
	if err == nil {
		t.Fatal("ParseAndValidateBytes() error = nil, want dangling reference")
	}
	var list *rbErrors.ErrorList
	if !errors.As(err, &list) || !list.HasErrorType(rbErrors.ErrorTypeSemantic) {
		t.Errorf("error = %v, want semantic ErrorList", err)
	}
}
