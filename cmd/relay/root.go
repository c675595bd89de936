package main

import (
	"fmt"
	"os"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile  string
	envFiles []string
	output   string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - chat-completion forwarding proxy",
		Long: `Relay forwards OpenAI-compatible chat-completion requests to an upstream
API. Streaming responses are relayed as server-sent events, transient
stream failures are retried, and in-flight requests can be cancelled by ID.

Configuration comes from an optional YAML file, then environment variables
(OPENAI_API_KEY, OPENAI_BASE_URL, PORT, ...), with .env loaded first.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return cli.WrapConfigError(err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (environment only when empty)")
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format: text, json")

	cmd.AddCommand(newRunCmd(), newValidateCmd(), newCancelCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

// printResult writes a command result in the --output format.
func printResult(cmd *cobra.Command, data any) error {
	format, err := cli.ParseFormat(output)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), data)
}
