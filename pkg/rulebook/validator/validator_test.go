package validator

import (
	"strings"
	"testing"

	"ledgerline/policyforge/pkg/rulebook/ast"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
	"ledgerline/policyforge/pkg/rulebook/parser"
)

func validTemplate() *ast.Template {
	return &ast.Template{
		Code: "aml",
		Clauses: []*ast.Clause{
			{Code: "purpose", DisplayOrder: 10, Mandatory: true, Body: "Applies to {{ firm_name }}."},
			{Code: "edd_domestic_pep", DisplayOrder: 20, Body: "{% if pep %}Approved by {{ approver }}.{% endif %}"},
		},
		Rules: []*ast.Rule{{
			ID:        "pep",
			Enabled:   true,
			Condition: ast.Leaf("pep_domestic", ast.OperatorEquals, true),
			Actions:   []*ast.Action{{Type: ast.ActionInclude, Clauses: []string{"edd_domestic_pep"}}},
		}},
	}
}

func TestLint(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*ast.Template)
		wantErrors   bool
		wantWarnings int
		wantType     rbErrors.ErrorType
		wantMessage  string
	}{
		{
			name:   "valid",
			mutate: func(*ast.Template) {},
		},
		{
			name: "dangling reference",
			mutate: func(tm *ast.Template) {
				tm.Rules[0].Actions[0].Clauses = []string{"edd_domestic_pepp"}
			},
			wantErrors:  true,
			wantType:    rbErrors.ErrorTypeSemantic,
			wantMessage: "unknown clause",
		},
		{
			name: "mandatory excluded",
			mutate: func(tm *ast.Template) {
				tm.Rules[0].Actions[0] = &ast.Action{Type: ast.ActionExclude, Clauses: []string{"purpose"}}
			},
			wantWarnings: 1,
			wantType:     rbErrors.ErrorTypeSemantic,
			wantMessage:  "mandatory",
		},
		{
			name: "duplicate display order",
			mutate: func(tm *ast.Template) {
				tm.Clauses[1].DisplayOrder = 10
			},
			wantWarnings: 1,
			wantType:     rbErrors.ErrorTypeSemantic,
			wantMessage:  "display_order",
		},
		{
			name: "unknown operator",
			mutate: func(tm *ast.Template) {
				tm.Rules[0].Condition = &ast.Condition{Kind: ast.ConditionLeaf, Field: "x", Operator: "equal", Value: tm.Rules[0].Condition.Value}
			},
			wantWarnings: 1,
			wantType:     rbErrors.ErrorTypeSemantic,
			wantMessage:  "never fire",
		},
		{
			name: "broken body",
			mutate: func(tm *ast.Template) {
				tm.Clauses[1].Body = "{% if pep %}unclosed"
			},
			wantWarnings: 1,
			wantType:     rbErrors.ErrorTypeTemplate,
			wantMessage:  "unclosed",
		},
		{
			name: "empty body",
			mutate: func(tm *ast.Template) {
				tm.Clauses[0].Body = ""
			},
			wantWarnings: 1,
			wantType:     rbErrors.ErrorTypeTemplate,
			wantMessage:  "empty body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := validTemplate()
			tt.mutate(tmpl)

			problems := NewValidator().Lint(tmpl)

			if problems.HasErrors() != tt.wantErrors {
				t.Errorf("HasErrors() = %v, want %v: %v", problems.HasErrors(), tt.wantErrors, problems)
			}
			if got := len(problems.Warnings()); got != tt.wantWarnings {
				t.Errorf("len(Warnings()) = %d, want %d: %v", got, tt.wantWarnings, problems)
			}
			if tt.wantType == "" {
				if problems.Count() != 0 {
					t.Errorf("unexpected problems: %v", problems)
				}
				return
			}
			found := false
			for _, p := range problems.ByType(tt.wantType) {
				if strings.Contains(p.Message, tt.wantMessage) {
					found = true
				}
			}
			if !found {
				t.Errorf("no %s problem mentioning %q in %v", tt.wantType, tt.wantMessage, problems)
			}
		})
	}
}

func TestLint_SuggestsClosestCode(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Rules[0].Actions[0].Clauses = []string{"edd_domestic_pepp"}

	problems := NewValidator().Lint(tmpl)
	errs := problems.ByType(rbErrors.ErrorTypeSemantic)
	if len(errs) != 1 {
		t.Fatalf("len(errors) = %d, want 1", len(errs))
	}
	if !strings.Contains(errs[0].Suggestion, "edd_domestic_pep") {
		t.Errorf("Suggestion = %q", errs[0].Suggestion)
	}
}

func TestValidate_Strict(t *testing.T) {
	tmpl := validTemplate()
	tmpl.Clauses[1].Body = "{% bogus %}"

	if err := NewValidator().Validate(tmpl); err != nil {
		t.Errorf("Validate() error = %v, want nil for warnings", err)
	}
	if err := NewValidator().WithStrict(true).Validate(tmpl); err == nil {
		t.Error("strict Validate() error = nil")
	}
}

func TestValidate_ParsedCatalog(t *testing.T) {
	tmpl, err := parser.NewParser().Parse("../parser/testdata/aml.yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := NewValidator().Validate(tmpl); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLint_Nil(t *testing.T) {
	if !NewValidator().Lint(nil).HasErrors() {
		t.Error("Lint(nil) has no errors")
	}
}
