/*
Package cli provides the output formatters, exit codes, progress reporting and
signal handling shared by the policyforge commands.

Output Formatting:

Commands accept --format text|json|yaml. Results that implement Texter print
their own human form; JSON is indented and colored when written to a
terminal:

	format, err := cli.ParseFormat(flags.format)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Exit Codes:

ExitCode maps command errors to process exit statuses: configuration
problems exit 4, validation failures (lint errors, invalid answers) exit 3,
anything else exits 1.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
