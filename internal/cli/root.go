// Package cli assembles the netkit command tree.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/commands"
	"github.com/basecamp/netkit/internal/config"
	"github.com/basecamp/netkit/internal/output"
	"github.com/basecamp/netkit/internal/version"
)

// NewRootCmd creates the root cobra command. opts are passed to every App
// the command builds.
func NewRootCmd(opts ...appctx.Option) *cobra.Command {
	var flags appctx.GlobalFlags
	var format string

	cmd := &cobra.Command{
		Use:   "netkit",
		Short: "Authenticated HTTP calls from the command line",
		Long: `netkit issues HTTP calls through an authenticated pipeline: it attaches
stored access tokens, refreshes them once on 401, and reports failures as
classified errors. The same calls run against the live network or a
directory of fixtures.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			overrides := flagOverrides(cmd.Flags(), &flags, format)
			cfg, err := config.Load(overrides)
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			appOpts := append([]appctx.Option{
				appctx.WithStdout(cmd.OutOrStdout()),
				appctx.WithStderr(cmd.ErrOrStderr()),
			}, opts...)
			app, err := appctx.NewApp(cfg, flags, appOpts...)
			if err != nil {
				return err
			}

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().StringVar(&format, "format", "", "Output format: auto, json, text or quiet")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter response data with a jq expression")

	// Transport flags
	cmd.PersistentFlags().StringVar(&flags.Transport, "transport", "", "Transport: live or fixture")
	cmd.PersistentFlags().StringVar(&flags.FixturesDir, "fixtures", "", "Fixture directory for --transport fixture")
	cmd.PersistentFlags().StringVar(&flags.DownloadDir, "download-dir", "", "Directory downloads are saved to")
	cmd.PersistentFlags().DurationVar(&flags.RequestTimeout, "request-timeout", 0, "Connect and response-header timeout (default 10s)")
	cmd.PersistentFlags().DurationVar(&flags.ResourceTimeout, "resource-timeout", 0, "Whole-exchange timeout (default 30s)")
	cmd.PersistentFlags().BoolVar(&flags.CircuitBreaker, "circuit-breaker", false, "Stop calling hosts that keep failing")

	// Credential flags
	cmd.PersistentFlags().StringVarP(&flags.TokenKey, "token-key", "k", "", "Credential key tokens are stored under (default \"default\")")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for refreshes, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	cmd.PersistentFlags().StringVar(&flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	return cmd
}

// flagOverrides maps the global flags onto config overrides. Flags whose
// zero value is meaningful only override when given explicitly.
func flagOverrides(pf *pflag.FlagSet, flags *appctx.GlobalFlags, format string) config.FlagOverrides {
	overrides := config.FlagOverrides{
		Transport:       flags.Transport,
		FixturesDir:     flags.FixturesDir,
		DownloadDir:     flags.DownloadDir,
		RequestTimeout:  flags.RequestTimeout,
		ResourceTimeout: flags.ResourceTimeout,
		Format:          format,
	}
	if pf.Changed("circuit-breaker") {
		overrides.CircuitBreaker = &flags.CircuitBreaker
	}
	if pf.Changed("verbose") {
		overrides.Verbose = &flags.Verbose
	}
	return overrides
}

// Execute runs the root command and exits with the resulting code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes args against a fresh command tree and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...appctx.Option) int {
	cmd := NewRootCmd(opts...)
	cmd.AddCommand(commands.All()...)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteContextC(ctx)
	var app *appctx.App
	if executedCmd != nil && executedCmd.Context() != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		if ferr := app.Finish(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	if quiet, _ := pf.GetBool("quiet"); quiet {
		format = output.FormatQuiet
	} else if jsonFlag, _ := pf.GetBool("json"); jsonFlag {
		format = output.FormatJSON
	}
	writer, werr := output.New(output.Options{Format: format, Writer: stdout})
	if werr == nil {
		_ = writer.Err(err)
	}
	return apiErr.ExitCode()
}

var unknownShorthand = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns cobra's argument and flag errors into usage
// errors.
func transformCobraError(err error) error {
	var oe *output.Error
	if errors.As(err, &oe) {
		return err
	}
	msg := err.Error()

	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}
	if strings.HasPrefix(msg, "unknown flag: ") {
		return output.ErrUsage("Unknown option: " + strings.TrimPrefix(msg, "unknown flag: "))
	}
	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := unknownShorthand.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}
	if strings.HasPrefix(msg, "unknown command ") || strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}
	if strings.Contains(msg, "arg(s), received") || strings.Contains(msg, "requires at least") {
		return output.ErrUsage(msg)
	}
	return err
}
