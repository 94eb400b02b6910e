package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ledgerline/policyforge/pkg/answers"
	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/policy/engine"
	"ledgerline/policyforge/pkg/policy/manager"
	"ledgerline/policyforge/pkg/telemetry/tracing"
)

var evaluateFlags struct {
	answers string
	trace   bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <template-code>",
	Short: "Show which clauses a set of answers selects",
	Long: `Evaluate a template's rules against questionnaire answers and print the
decision: included, excluded and suggested clauses, variables set by rules,
and the rules that fired.

Examples:
  # Evaluate the AML template
  policyforge evaluate aml --answers answers.yaml

  # Include a per-rule trace
  policyforge evaluate aml --answers answers.json --trace --format json`,
	Args: cobra.ExactArgs(1),
	RunE: evaluateTemplate,
}

var renderFlags struct {
	answers string
}

var renderCmd = &cobra.Command{
	Use:   "render <template-code>",
	Short: "Render a policy body without storing it",
	Long: `Evaluate a template against questionnaire answers and render the selected
clauses in display order. Nothing is written to storage.

Examples:
  policyforge render aml --answers answers.yaml
  policyforge render aml --answers answers.yaml --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: renderTemplate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(renderCmd)

	evaluateCmd.Flags().StringVarP(&evaluateFlags.answers, "answers", "a", "", "answers file (JSON or YAML)")
	evaluateCmd.Flags().BoolVar(&evaluateFlags.trace, "trace", false, "record every rule evaluation")
	renderCmd.Flags().StringVarP(&renderFlags.answers, "answers", "a", "", "answers file (JSON or YAML)")
}

// loadAnswers reads an answers file. An empty path is an empty set.
func loadAnswers(path string) (answers.Set, error) {
	if path == "" {
		return answers.Set{}, nil
	}
	set, err := answers.LoadFile(path)
	if err != nil {
		return nil, cli.NewCommandError("answers", err)
	}
	return set, nil
}

func evaluateTemplate(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if evaluateFlags.trace {
		cfg.Engine.EnableTrace = true
	}
	set, err := loadAnswers(evaluateFlags.answers)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, appOptions{ephemeral: true})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "evaluate", target{templateCode: args[0]})
	defer a.end(span, &err)

	decision, err := a.manager.Evaluate(ctx, args[0], set)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	return printResult(cmd, decisionView{decision})
}

func renderTemplate(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	set, err := loadAnswers(renderFlags.answers)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, appOptions{ephemeral: true})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "render", target{templateCode: args[0]})
	defer a.end(span, &err)

	preview, err := a.manager.Preview(ctx, args[0], set)
	if err != nil {
		return cli.NewCommandError("render", err)
	}
	tracing.NewAttributeBuilder().
		WithTemplate(preview.TemplateCode, preview.TemplateVersion).
		WithClauses(len(preview.Result.Clauses)).
		Apply(span)
	return printResult(cmd, previewView{preview})
}

// commandContext returns the command's context, or Background when the
// command was called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

type decisionView struct {
	*engine.DecisionSet
}

func (v decisionView) WriteText(w io.Writer) error {
	d := v.DecisionSet
	fmt.Fprintf(w, "Included:  %s\n", list(d.Included))
	fmt.Fprintf(w, "Excluded:  %s\n", list(d.Excluded))
	if len(d.Suggested) > 0 {
		fmt.Fprintln(w, "Suggested:")
		for _, s := range d.Suggested {
			fmt.Fprintf(w, "  %s (%s: %s)\n", s.Code, s.RuleID, s.Reason)
		}
	}
	if keys := d.Variables.Keys(); len(keys) > 0 {
		fmt.Fprintln(w, "Variables:")
		for _, k := range keys {
			val, _ := d.Variables.Lookup(k)
			fmt.Fprintf(w, "  %s = %s\n", k, val.Text())
		}
	}
	if len(d.Conflicts) > 0 {
		fmt.Fprintln(w, "Conflicts:")
		for _, c := range d.Conflicts {
			fmt.Fprintf(w, "  %s: %s (%s)\n", c.Code, c.Resolution, strings.Join(c.RuleIDs, ", "))
		}
	}
	fmt.Fprintln(w, "Rules fired:")
	rows := make([][]string, 0, len(d.RulesFired))
	for _, f := range d.RulesFired {
		rows = append(rows, []string{"  " + f.RuleID, fmt.Sprint(f.Priority), string(f.Outcome), f.Error})
	}
	if err := cli.Table(w, []string{"  RULE", "PRIORITY", "OUTCOME", "ERROR"}, rows); err != nil {
		return err
	}
	if d.Trace != nil {
		fmt.Fprintf(w, "Trace (%s):\n", d.Trace.TotalTime)
		for _, s := range d.Trace.Steps {
			fmt.Fprintf(w, "  %s %s %s\n", s.RuleID, s.Outcome, s.Details)
		}
	}
	return nil
}

type previewView struct {
	*manager.Preview
}

func (v previewView) WriteText(w io.Writer) error {
	p := v.Preview
	fmt.Fprintf(w, "%s", p.TemplateCode)
	if p.TemplateVersion != "" {
		fmt.Fprintf(w, " v%s", p.TemplateVersion)
	}
	fmt.Fprintf(w, " (%d clauses)\n", len(p.Result.Clauses))
	for i, c := range p.Result.Clauses {
		fmt.Fprintf(w, "\n%d. %s\n\n%s\n", i+1, c.Title, c.Body)
	}
	if len(p.Result.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggested for review:")
		for _, s := range p.Result.Suggestions {
			fmt.Fprintf(w, "  %s: %s (%s)\n", s.Code, s.Title, s.Reason)
		}
	}
	if len(p.Result.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing from library: %s\n", list(p.Result.Missing))
	}
	for _, d := range p.Result.Diagnostics {
		fmt.Fprintf(w, "warning: %s: %s\n", d.Code, d.Message)
	}
	return nil
}

func list(codes []string) string {
	if len(codes) == 0 {
		return "-"
	}
	return strings.Join(codes, ", ")
}
