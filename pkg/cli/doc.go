/*
Package cli provides command-line helpers shared by the relay command.

Output Formatting:

Command results print as text or JSON depending on --output:

	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Results implementing Texter control their text rendering.

Errors:

ConfigError marks failures to load or validate configuration; ExitCode maps
it to exit status 2 and any other error to 1.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
