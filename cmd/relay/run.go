package main

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"

	"github.com/spf13/cobra"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay server",
		Long: `Start the relay with the specified configuration.

The server listens on the configured address and forwards chat-completion
requests to the upstream. With --config, the file is watched and the log
level and retry policy are reloaded when it changes. SIGINT or SIGTERM
triggers a graceful shutdown that lets open streams finish.

Examples:
  # Start configured from the environment and .env
  relay run

  # Start with a config file
  relay run --config /etc/relay/relay.yaml

  # Override listen address
  relay run --listen 0.0.0.0:9000

  # Validate config and exit
  relay run --dry-run`,
		Args: cobra.NoArgs,
		RunE: runServer,
	}

	cmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address (host:port)")
	cmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	return cmd
}

func runServer(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.WrapConfigError(err)
	}
	cfg := config.GetConfig()

	if err := applyRunOverrides(cfg); err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg, appOptions{
		ConfigPath: cfgFile,
		Console:    cmd.ErrOrStderr(),
		PinLevel:   runFlags.logLevel != "",
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	slog.SetDefault(a.Slog())

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	if err := a.run(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// applyRunOverrides applies --listen and --log-level to cfg.
func applyRunOverrides(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		host, portStr, err := net.SplitHostPort(runFlags.listenAddress)
		if err != nil {
			return cli.NewConfigError("--listen", err.Error())
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return cli.NewConfigError("--listen", fmt.Sprintf("invalid port %q", portStr))
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	return nil
}
