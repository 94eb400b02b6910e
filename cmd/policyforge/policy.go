package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ledgerline/policyforge/pkg/cli"
	"ledgerline/policyforge/pkg/policy"
	"ledgerline/policyforge/pkg/policy/manager"
	"ledgerline/policyforge/pkg/storage"
	"ledgerline/policyforge/pkg/telemetry/logging"
	"ledgerline/policyforge/pkg/telemetry/tracing"
	"ledgerline/policyforge/pkg/versioning"
)

var policyFlags struct {
	template     string
	organization string
	name         string
	answers      string
	actor        string
	summary      string
	content      []string
	status       string
	version      int
	limit        int
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Create and manage policies",
	Long: `Create policies from catalog templates and manage their lifecycle.

A policy starts as a draft assembled from questionnaire answers. It moves
through review and approval, and each publication stores an immutable
numbered version. Older versions can be compared or restored.

Examples:
  policyforge policy create --template aml --org acme --name "AML Policy" --answers answers.yaml
  policyforge policy status <id> in_review --actor alice
  policyforge policy publish <id> --actor alice --summary "Annual refresh"
  policyforge policy diff <id> 1 2`,
}

var policyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Assemble and store a new draft policy",
	Args:  cobra.NoArgs,
	RunE:  createPolicy,
}

var policyAssembleCmd = &cobra.Command{
	Use:   "assemble <policy-id>",
	Short: "Re-run the rules with new answers",
	Long: `Re-run the template's rules with new answers and replace the policy body.
A policy that has left draft returns to draft. Custom content is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: reassemblePolicy,
}

var policyContentCmd = &cobra.Command{
	Use:   "content <policy-id>",
	Short: "Set firm-specific content",
	Long: `Set firm-specific content keys with --set key=value. An empty value
deletes the key.`,
	Args: cobra.ExactArgs(1),
	RunE: setPolicyContent,
}

var policyStatusCmd = &cobra.Command{
	Use:   "status <policy-id> <status>",
	Short: "Move a policy to a new status",
	Long: `Move a policy to a new status: draft, in_review, approved, archived or
expired. Approval schedules the next review.`,
	Args: cobra.ExactArgs(2),
	RunE: transitionPolicy,
}

var policyPublishCmd = &cobra.Command{
	Use:   "publish <policy-id>",
	Short: "Publish the policy as a new version",
	Args:  cobra.ExactArgs(1),
	RunE:  publishPolicy,
}

var policyRestoreCmd = &cobra.Command{
	Use:   "restore <policy-id> <version>",
	Short: "Copy a version's content back onto the policy",
	Long: `Copy a published version's clauses and custom content back onto the live
policy. The policy returns to draft; publish it again to create a new
version. Version numbers are never reused.`,
	Args: cobra.ExactArgs(2),
	RunE: restorePolicy,
}

var policyVersionsCmd = &cobra.Command{
	Use:   "versions <policy-id>",
	Short: "List published versions",
	Args:  cobra.ExactArgs(1),
	RunE:  listVersions,
}

var policyDiffCmd = &cobra.Command{
	Use:   "diff <policy-id> <from> <to>",
	Short: "Compare two versions",
	Args:  cobra.ExactArgs(3),
	RunE:  diffVersions,
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy-id>",
	Short: "Show a policy or one of its versions",
	Long: `Show the live policy, or a published version with --version. Version 0
selects the current published version.`,
	Args: cobra.ExactArgs(1),
	RunE: showPolicy,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List policies",
	Args:  cobra.NoArgs,
	RunE:  listPolicies,
}

var policyEnhanceCmd = &cobra.Command{
	Use:   "enhance <policy-id>",
	Short: "Queue a policy for prose enhancement",
	Args:  cobra.ExactArgs(1),
	RunE:  enhancePolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(
		policyCreateCmd,
		policyAssembleCmd,
		policyContentCmd,
		policyStatusCmd,
		policyPublishCmd,
		policyRestoreCmd,
		policyVersionsCmd,
		policyDiffCmd,
		policyShowCmd,
		policyListCmd,
		policyEnhanceCmd,
	)

	policyCmd.PersistentFlags().StringVar(&policyFlags.actor, "actor", "", "who is making the change")

	policyCreateCmd.Flags().StringVarP(&policyFlags.template, "template", "t", "", "template code")
	policyCreateCmd.Flags().StringVar(&policyFlags.organization, "org", "", "organization id")
	policyCreateCmd.Flags().StringVar(&policyFlags.name, "name", "", "policy name")
	policyCreateCmd.Flags().StringVarP(&policyFlags.answers, "answers", "a", "", "answers file (JSON or YAML)")
	policyCreateCmd.Flags().StringArrayVar(&policyFlags.content, "set", nil, "custom content key=value (repeatable)")
	_ = policyCreateCmd.MarkFlagRequired("template")
	_ = policyCreateCmd.MarkFlagRequired("org")
	_ = policyCreateCmd.MarkFlagRequired("name")

	policyAssembleCmd.Flags().StringVarP(&policyFlags.answers, "answers", "a", "", "answers file (JSON or YAML)")
	policyContentCmd.Flags().StringArrayVar(&policyFlags.content, "set", nil, "custom content key=value (repeatable)")
	policyPublishCmd.Flags().StringVar(&policyFlags.summary, "summary", "", "change summary")
	policyShowCmd.Flags().IntVar(&policyFlags.version, "version", -1, "show a published version (0 for current)")

	policyListCmd.Flags().StringVar(&policyFlags.organization, "org", "", "filter by organization id")
	policyListCmd.Flags().StringVarP(&policyFlags.template, "template", "t", "", "filter by template code")
	policyListCmd.Flags().StringVar(&policyFlags.status, "status", "", "filter by status")
	policyListCmd.Flags().IntVar(&policyFlags.limit, "limit", 0, "maximum number of policies")
}

func createPolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	set, err := loadAnswers(policyFlags.answers)
	if err != nil {
		return err
	}
	content, err := parseContent(policyFlags.content)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.create", target{organizationID: policyFlags.organization, templateCode: policyFlags.template, actor: policyFlags.actor})
	defer a.end(span, &err)

	p, err := a.manager.CreatePolicy(ctx, manager.CreateRequest{
		OrganizationID: policyFlags.organization,
		TemplateCode:   policyFlags.template,
		Name:           policyFlags.name,
		Answers:        set,
		CustomContent:  content,
	})
	if err != nil {
		return policyError("create", err)
	}
	tracing.NewAttributeBuilder().WithPolicy(p.ID, string(p.Status)).WithClauses(len(p.Clauses)).Apply(span)
	return printResult(cmd, policyView{p})
}

func reassemblePolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	set, err := loadAnswers(policyFlags.answers)
	if err != nil {
		return err
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.assemble", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	p, err := a.manager.Reassemble(ctx, args[0], set, policyFlags.actor)
	if err != nil {
		return policyError("assemble", err)
	}
	tracing.NewAttributeBuilder().WithPolicy(p.ID, string(p.Status)).WithClauses(len(p.Clauses)).Apply(span)
	return printResult(cmd, policyView{p})
}

func setPolicyContent(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	content, err := parseContent(policyFlags.content)
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return cli.NewCommandError("content", errors.New("at least one --set key=value is required"))
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.content", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	p, err := a.manager.SetCustomContent(ctx, args[0], content)
	if err != nil {
		return policyError("content", err)
	}
	return printResult(cmd, policyView{p})
}

func transitionPolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	next := policy.Status(args[1])
	if !next.IsValid() {
		return cli.NewCommandError("status", fmt.Errorf("unknown status %q", args[1]))
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.status", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	p, err := a.manager.Transition(ctx, args[0], next, policyFlags.actor)
	if err != nil {
		return policyError("status", err)
	}
	return printResult(cmd, policyView{p})
}

func publishPolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.publish", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	v, err := a.manager.Publish(ctx, args[0], versioning.PublishRequest{
		PublishedBy:   policyFlags.actor,
		ChangeSummary: policyFlags.summary,
	})
	if err != nil {
		return policyError("publish", err)
	}
	tracing.NewAttributeBuilder().WithVersion(v.Number).WithClauses(len(v.Clauses)).Apply(span)
	return printResult(cmd, versionView{v})
}

func restorePolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	number, err := parseVersion(args[1])
	if err != nil {
		return err
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.restore", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	p, err := a.manager.Restore(ctx, args[0], number, policyFlags.actor)
	if err != nil {
		return policyError("restore", err)
	}
	return printResult(cmd, policyView{p})
}

func listVersions(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.versions", target{policyID: args[0]})
	defer a.end(span, &err)

	versions, err := a.manager.Versions(ctx, args[0])
	if err != nil {
		return policyError("versions", err)
	}
	return printResult(cmd, versionList(versions))
}

func diffVersions(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	from, err := parseVersion(args[1])
	if err != nil {
		return err
	}
	to, err := parseVersion(args[2])
	if err != nil {
		return err
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.diff", target{policyID: args[0]})
	defer a.end(span, &err)

	d, err := a.manager.Diff(ctx, args[0], from, to)
	if err != nil {
		return policyError("diff", err)
	}
	return printResult(cmd, diffView{d})
}

func showPolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.show", target{policyID: args[0]})
	defer a.end(span, &err)

	if policyFlags.version >= 0 {
		v, err := a.manager.Version(ctx, args[0], policyFlags.version)
		if err != nil {
			return policyError("show", err)
		}
		return printResult(cmd, versionView{v})
	}
	p, err := a.manager.Policy(ctx, args[0])
	if err != nil {
		return policyError("show", err)
	}
	return printResult(cmd, policyView{p})
}

func listPolicies(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	filter := storage.PolicyFilter{
		OrganizationID: policyFlags.organization,
		TemplateCode:   policyFlags.template,
		Status:         policy.Status(policyFlags.status),
		Limit:          policyFlags.limit,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return cli.NewCommandError("list", fmt.Errorf("unknown status %q", policyFlags.status))
	}
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.list", target{organizationID: policyFlags.organization, templateCode: policyFlags.template})
	defer a.end(span, &err)

	policies, err := a.manager.Policies(ctx, filter)
	if err != nil {
		return policyError("list", err)
	}
	return printResult(cmd, policyList(policies))
}

func enhancePolicy(cmd *cobra.Command, args []string) (err error) {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	ctx, span := a.begin(ctx, "policy.enhance", target{policyID: args[0], actor: policyFlags.actor})
	defer a.end(span, &err)

	job, err := a.manager.Enhance(ctx, args[0])
	if err != nil {
		return policyError("enhance", err)
	}
	tracing.NewAttributeBuilder().WithJob(job.ID).Apply(span)
	a.logger.InfoContext(logging.WithJobID(ctx, job.ID), "enhancement requested")
	return printResult(cmd, jobView{job})
}

// parseContent splits key=value pairs.
func parseContent(pairs []string) (map[string]string, error) {
	content := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, cli.NewCommandError("set", fmt.Errorf("expected key=value, got %q", pair))
		}
		content[key] = value
	}
	return content, nil
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, cli.NewCommandError("version", fmt.Errorf("invalid version number %q", s))
	}
	return n, nil
}

// policyError marks lifecycle rule violations as validation failures.
func policyError(command string, err error) error {
	var verr *versioning.ValidationError
	switch {
	case errors.Is(err, policy.ErrInvalidTransition),
		errors.Is(err, manager.ErrInvalidRequest),
		errors.Is(err, manager.ErrUnknownTemplate),
		errors.Is(err, versioning.ErrEmptyPolicy),
		errors.Is(err, versioning.ErrPolicyArchived),
		errors.As(err, &verr):
		return cli.NewValidationError(command, err)
	}
	return cli.NewCommandError(command, err)
}

type policyView struct {
	*policy.Policy
}

func (v policyView) WriteText(w io.Writer) error {
	p := v.Policy
	fmt.Fprintf(w, "Policy:    %s\n", p.ID)
	fmt.Fprintf(w, "Name:      %s\n", p.Name)
	fmt.Fprintf(w, "Org:       %s\n", p.OrganizationID)
	fmt.Fprintf(w, "Template:  %s", p.TemplateCode)
	if p.TemplateVersion != "" {
		fmt.Fprintf(w, " v%s", p.TemplateVersion)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status:    %s\n", p.Status)
	fmt.Fprintf(w, "Revision:  %d\n", p.Revision)
	if p.CurrentVersion > 0 {
		fmt.Fprintf(w, "Published: v%d\n", p.CurrentVersion)
	}
	if p.NextReviewAt != nil {
		fmt.Fprintf(w, "Review by: %s\n", p.NextReviewAt.Format(time.DateOnly))
	}
	if p.Enhancement != nil {
		fmt.Fprintf(w, "Enhancement: %s\n", p.Enhancement.Status)
	}
	fmt.Fprintf(w, "Clauses (%d):\n", len(p.Clauses))
	for _, c := range p.Clauses {
		fmt.Fprintf(w, "  %-24s %s\n", c.Code, c.Title)
	}
	if len(p.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggested:")
		for _, s := range p.Suggestions {
			fmt.Fprintf(w, "  %-24s %s\n", s.Code, s.Reason)
		}
	}
	return nil
}

type versionView struct {
	*policy.Version
}

func (v versionView) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Version %d of %s (%s)\n", v.Number, v.PolicyID, v.Status)
	fmt.Fprintf(w, "Published %s by %s\n", v.PublishedAt.Format(time.RFC3339), orDash(v.PublishedBy))
	if v.ChangeSummary != "" {
		fmt.Fprintf(w, "Summary: %s\n", v.ChangeSummary)
	}
	fmt.Fprintf(w, "Hash: %s\n", v.ContentHash)
	for i, c := range v.Clauses {
		fmt.Fprintf(w, "\n%d. %s\n\n%s\n", i+1, c.Title, c.Body)
	}
	return nil
}

type jobView struct {
	*policy.EnhancementJob
}

func (v jobView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Enhancement job %s for %s at revision %d: %s\n", v.ID, v.PolicyID, v.Revision, v.Status)
	return err
}

type versionList []*policy.Version

func (l versionList) WriteText(w io.Writer) error {
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		rows = append(rows, []string{
			strconv.Itoa(v.Number),
			string(v.Status),
			v.PublishedAt.Format(time.RFC3339),
			orDash(v.PublishedBy),
			strconv.Itoa(len(v.Clauses)),
			orDash(v.ChangeSummary),
		})
	}
	return cli.Table(w, []string{"VERSION", "STATUS", "PUBLISHED", "BY", "CLAUSES", "SUMMARY"}, rows)
}

type policyList []*policy.Policy

func (l policyList) WriteText(w io.Writer) error {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.ID, p.OrganizationID, p.TemplateCode, string(p.Status), p.Name})
	}
	return cli.Table(w, []string{"ID", "ORG", "TEMPLATE", "STATUS", "NAME"}, rows)
}

type diffView struct {
	*versioning.Diff
}

func (v diffView) WriteText(w io.Writer) error {
	d := v.Diff
	fmt.Fprintf(w, "%s: v%d -> v%d\n", d.PolicyID, d.From, d.To)
	if d.Empty() {
		fmt.Fprintln(w, "no changes")
		return nil
	}
	if d.StatusChanged {
		fmt.Fprintf(w, "status: %s -> %s\n", d.FromStatus, d.ToStatus)
	}
	for _, c := range d.Clauses {
		fmt.Fprintf(w, "%s clause %s (%s)", c.Kind, c.Code, c.Title)
		if c.Moved {
			fmt.Fprint(w, " [moved]")
		}
		fmt.Fprintln(w)
		if c.Patch != "" {
			fmt.Fprintln(w, indent(c.Patch))
		}
	}
	for _, c := range d.CustomContent {
		fmt.Fprintf(w, "%s content %s\n", c.Kind, c.Key)
	}
	return nil
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
