package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerline/policyforge/pkg/cli"
)

var (
	// Global flags
	cfgFile      string
	catalogPath  string
	verbose      bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "policyforge",
	Short: "Policyforge - compliance policy rules engine and assembly pipeline",
	Long: `Policyforge assembles compliance policy documents from a catalog of
templates. Each template pairs a clause library with rules that decide, from
an organization's questionnaire answers, which clauses are included, excluded
or suggested for review.

Policies move through draft, review and approval, and every publication is
kept as an immutable numbered version that can be compared or restored.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and exits with a code derived from the
// error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "override the catalog directory (file mode)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "o", "text", "output format: text, json, yaml")
}

// formatter returns the formatter selected by --format.
func formatter() (cli.Formatter, error) {
	f, err := cli.ParseFormat(outputFormat)
	if err != nil {
		return nil, cli.NewCommandError("format", err)
	}
	return cli.NewFormatter(f), nil
}

// printResult writes data to stdout in the selected format.
func printResult(cmd *cobra.Command, data any) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	return f.FormatTo(stdout(cmd), data)
}
