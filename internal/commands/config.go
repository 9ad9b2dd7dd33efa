package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/config"
	"github.com/basecamp/netkit/internal/output"
)

// NewConfigCmd creates the config command for inspecting configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show netkit configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > global > system > defaults

Config locations:
  - System: /etc/netkit/config.json
  - Global: ~/.config/netkit/config.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

type configValue struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

func runConfigShow(cmd *cobra.Command) error {
	app := appctx.FromContext(cmd.Context())
	cfg := app.Config

	values := map[string]string{
		"transport":         cfg.Transport,
		"request_timeout":   cfg.RequestTimeout.String(),
		"resource_timeout":  cfg.ResourceTimeout.String(),
		"fixtures_dir":      cfg.FixturesDir,
		"fixtures_manifest": cfg.FixturesManifest,
		"circuit_breaker":   fmt.Sprintf("%t", cfg.CircuitBreaker),
		"state_dir":         cfg.StateDir,
		"keyring_service":   cfg.KeyringService,
		"token_url":         cfg.TokenURL,
		"client_id":         cfg.ClientID,
		"scopes":            strings.Join(cfg.Scopes, " "),
		"download_dir":      cfg.DownloadDir,
		"format":            cfg.Format,
		"verbose":           fmt.Sprintf("%d", cfg.VerboseLevel()),
		"user_agent":        cfg.UserAgent,
	}
	bc := app.BreakerConfig()
	values["circuit_failure_threshold"] = fmt.Sprintf("%d", bc.FailureThreshold)
	values["circuit_success_threshold"] = fmt.Sprintf("%d", bc.SuccessThreshold)
	values["circuit_open_timeout"] = bc.OpenTimeout.String()
	values["circuit_half_open_requests"] = fmt.Sprintf("%d", bc.HalfOpenMaxRequests)
	if cfg.ClientSecret != "" {
		values["client_secret"] = "********"
	}

	data := make(map[string]configValue, len(values))
	for key, value := range values {
		source := cfg.Sources[key]
		if source == "" {
			if value == "" {
				continue
			}
			source = string(config.SourceDefault)
		}
		data[key] = configValue{Value: value, Source: source}
	}

	return app.OK(data, output.WithSummary("Effective configuration"))
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			paths := map[string]string{
				"global": config.GlobalConfigPath(),
				"system": config.SystemConfigPath(),
			}
			return app.OK(paths, output.WithSummary("Config file locations"))
		},
	}
}
