package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/policy/condition"
	rbErrors "ledgerline/policyforge/pkg/rulebook/errors"
	"ledgerline/policyforge/pkg/rulebook/parser"
	"ledgerline/policyforge/pkg/rulebook/validator"
)

var lintFlags struct {
	file     string
	dir      string
	strict   bool
	maxDepth int
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate catalog templates",
	Long: `Validate catalog template files for syntax and semantic errors.

The lint command parses each template and runs every validation pass:
  - YAML syntax and template structure
  - Clause and rule references (dangling codes, duplicates)
  - Condition operators and nesting depth
  - Clause body placeholders and block tags

Examples:
  # Lint single file
  policyforge lint --file catalog/aml.yaml

  # Lint directory
  policyforge lint --dir catalog/

  # Strict mode (warnings as errors)
  policyforge lint --dir catalog/ --strict

  # JSON output for CI/CD
  policyforge lint --dir catalog/ --format json`,
	RunE: lintTemplates,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "template file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of template files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().IntVar(&lintFlags.maxDepth, "max-depth", condition.DefaultMaxDepth, "maximum condition nesting depth")
}

// LintReport is the outcome of linting a set of files.
type LintReport struct {
	Valid bool         `json:"valid"`
	Files []LintResult `json:"files"`
}

// LintResult is the validation result for a single template file.
type LintResult struct {
	File     string        `json:"file"`
	Code     string        `json:"code,omitempty"`
	Valid    bool          `json:"valid"`
	Errors   []LintProblem `json:"errors,omitempty"`
	Warnings []LintProblem `json:"warnings,omitempty"`
}

// LintProblem is a single validation error or warning.
type LintProblem struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func lintTemplates(cmd *cobra.Command, args []string) error {
	if lintFlags.file == "" && lintFlags.dir == "" {
		return cli.NewCommandError("lint", errors.New("either --file or --dir must be specified"))
	}

	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list template files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 {
		return cli.NewCommandError("lint", errors.New("no template files found"))
	}

	var progress *cli.Progress
	if len(files) > 1 && cli.IsTerminal(os.Stderr) {
		progress = cli.NewProgress(os.Stderr, "files", len(files))
	}

	report := &LintReport{Valid: true, Files: make([]LintResult, 0, len(files))}
	seen := make(map[string]string)
	for _, file := range files {
		result := lintFile(file)
		progress.Step()
		if result.Code != "" {
			if first, dup := seen[result.Code]; dup {
				result.Valid = false
				result.Errors = append(result.Errors, LintProblem{
					Message: fmt.Sprintf("template code %q is already defined in %s", result.Code, first),
					Type:    string(rbErrors.ErrorTypeSemantic),
				})
			} else {
				seen[result.Code] = file
			}
		}
		if !result.Valid {
			report.Valid = false
		}
		report.Files = append(report.Files, result)
	}

	progress.Done()

	if err := printResult(cmd, report); err != nil {
		return err
	}
	if !report.Valid {
		return cli.NewValidationError("lint", fmt.Errorf("%d of %d files failed validation", report.failed(), len(report.Files)))
	}
	return nil
}

func lintFile(path string) LintResult {
	result := LintResult{File: path, Valid: true}

	tmpl, err := parser.NewParser().WithMaxDepth(lintFlags.maxDepth).Parse(path)
	if err != nil {
		result.Valid = false
		result.Errors = problems(err)
		return result
	}
	result.Code = tmpl.Code

	list := validator.NewValidator().
		WithMaxDepth(lintFlags.maxDepth).
		WithStrict(lintFlags.strict).
		Lint(tmpl)
	for _, e := range list.Errors {
		p := toProblem(e)
		if e.IsWarning() {
			result.Warnings = append(result.Warnings, p)
			continue
		}
		result.Valid = false
		result.Errors = append(result.Errors, p)
	}
	return result
}

// problems flattens a parser error into lint problems.
func problems(err error) []LintProblem {
	var list *rbErrors.ErrorList
	if errors.As(err, &list) {
		out := make([]LintProblem, 0, len(list.Errors))
		for _, e := range list.Errors {
			out = append(out, toProblem(e))
		}
		return out
	}
	var single *rbErrors.Error
	if errors.As(err, &single) {
		return []LintProblem{toProblem(single)}
	}
	return []LintProblem{{Message: err.Error()}}
}

func toProblem(e *rbErrors.Error) LintProblem {
	return LintProblem{
		Line:       e.Location.Line,
		Column:     e.Location.Column,
		Message:    e.Message,
		Type:       string(e.Type),
		Suggestion: e.Suggestion,
	}
}

func (r *LintReport) failed() int {
	n := 0
	for _, f := range r.Files {
		if !f.Valid {
			n++
		}
	}
	return n
}

// WriteText prints the report for humans.
func (r *LintReport) WriteText(w io.Writer) error {
	for _, f := range r.Files {
		mark := "✓"
		if !f.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, f.File)
		for _, p := range f.Errors {
			writeProblem(w, "error", p)
		}
		for _, p := range f.Warnings {
			writeProblem(w, "warning", p)
		}
	}
	fmt.Fprintf(w, "\n%d files checked, %d failed\n", len(r.Files), r.failed())
	return nil
}

func writeProblem(w io.Writer, severity string, p LintProblem) {
	if p.Line > 0 {
		fmt.Fprintf(w, "  %s: line %d:%d: %s\n", severity, p.Line, p.Column, p.Message)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", severity, p.Message)
	}
	if p.Suggestion != "" {
		fmt.Fprintf(w, "    suggestion: %s\n", p.Suggestion)
	}
}
