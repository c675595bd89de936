package main

import (
	"fmt"
	"strings"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/telemetry/logging"

	"github.com/spf13/cobra"
)

// configSummary is the validate command's report. Credentials are redacted.
type configSummary struct {
	Valid          bool   `json:"valid"`
	Source         string `json:"source"`
	ListenAddress  string `json:"listen_address"`
	UpstreamURL    string `json:"upstream_url"`
	UpstreamAPIKey string `json:"upstream_api_key"`
	AzureMode      bool   `json:"azure_mode"`
	MaxRetries     int    `json:"max_retries"`
	ClientAuth     bool   `json:"client_auth"`
	LogLevel       string `json:"log_level"`
	LogFile        string `json:"log_file,omitempty"`
	Metrics        bool   `json:"metrics"`
	Tracing        bool   `json:"tracing"`
}

func (s configSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Configuration valid (%s)\n", s.Source)
	fmt.Fprintf(&b, "  Listen:      %s\n", s.ListenAddress)
	fmt.Fprintf(&b, "  Upstream:    %s (key %s)\n", s.UpstreamURL, s.UpstreamAPIKey)
	if s.AzureMode {
		fmt.Fprintln(&b, "  Azure mode:  on")
	}
	fmt.Fprintf(&b, "  Max retries: %d\n", s.MaxRetries)
	fmt.Fprintf(&b, "  Client auth: %t\n", s.ClientAuth)
	fmt.Fprintf(&b, "  Log level:   %s\n", s.LogLevel)
	if s.LogFile != "" {
		fmt.Fprintf(&b, "  Log file:    %s\n", s.LogFile)
	}
	fmt.Fprintf(&b, "  Metrics:     %t\n", s.Metrics)
	fmt.Fprintf(&b, "  Tracing:     %t", s.Tracing)
	return b.String()
}

func summarize(cfg *config.Config, source string) configSummary {
	return configSummary{
		Valid:          true,
		Source:         source,
		ListenAddress:  cfg.Server.ListenAddress(),
		UpstreamURL:    cfg.Upstream.BaseURL,
		UpstreamAPIKey: logging.RedactAPIKey(cfg.Upstream.APIKey),
		AzureMode:      cfg.Upstream.APIVersion != "",
		MaxRetries:     cfg.Retry.MaxRetries,
		ClientAuth:     cfg.Auth.ClientAPIKey != "",
		LogLevel:       logging.ParseLevel(cfg.Telemetry.Logging.Level).String(),
		LogFile:        cfg.Telemetry.Logging.FilePath,
		Metrics:        cfg.Telemetry.Metrics.Enabled,
		Tracing:        cfg.Telemetry.Tracing.Enabled,
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Load the configuration file and environment exactly as "relay run" would,
and report every validation error. Exits with status 2 when invalid.

Examples:
  # Validate the environment-only configuration
  relay validate

  # Validate a file, printing JSON
  relay validate --config relay.yaml -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
			if err != nil {
				return cli.WrapConfigError(err)
			}

			source := "environment"
			if cfgFile != "" {
				source = cfgFile
			}
			return printResult(cmd, summarize(cfg, source))
		},
	}
}
