package commands

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/hostutil"
	"github.com/basecamp/netkit/internal/output"
	"github.com/basecamp/netkit/internal/resilience"
)

// NewCircuitCmd creates the circuit command for the per-host circuit
// breaker state.
func NewCircuitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Inspect or reset circuit breakers",
		Long: `Inspect or reset the per-host circuit breakers used with --circuit-breaker.

A host's circuit opens after repeated connection failures or 5xx responses.
While open, calls to that host fail with service_unavailable without being
sent. State is shared between netkit processes.`,
	}

	cmd.AddCommand(
		newCircuitStatusCmd(),
		newCircuitResetCmd(),
	)

	return cmd
}

// breaker returns the app's breaker, or one over the configured state
// directory when the breaker is not enabled for this run.
func breaker(app *appctx.App) (*resilience.CircuitBreaker, error) {
	if app.Breaker != nil {
		return app.Breaker, nil
	}
	dir := app.Config.StateDir
	if dir == "" {
		dir = resilience.DefaultDir()
	}
	if dir == "" {
		return nil, output.ErrUsageHint("no state directory available", "Set state_dir in the config")
	}
	return resilience.NewCircuitBreaker(resilience.NewStore(dir), app.BreakerConfig()), nil
}

func newCircuitStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [host]",
		Short: "Show circuit states",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			cb, err := breaker(app)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				host := hostOnly(args[0])
				state, err := cb.State(host)
				if err != nil {
					return err
				}
				return app.OK(map[string]string{"host": host, "state": state},
					output.WithSummary(fmt.Sprintf("%s: %s", host, state)),
				)
			}

			hosts, err := cb.Hosts()
			if err != nil {
				return err
			}
			type row struct {
				Host  string `json:"host"`
				State string `json:"state"`
			}
			rows := make([]row, 0, len(hosts))
			for host, state := range hosts {
				rows = append(rows, row{host, state})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })

			return app.OK(rows,
				output.WithSummary(fmt.Sprintf("%d hosts tracked", len(rows))),
			)
		},
	}
}

func newCircuitResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [host]",
		Short: "Close a host's circuit, or every circuit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			cb, err := breaker(app)
			if err != nil {
				return err
			}

			host := ""
			if len(args) == 1 {
				host = hostOnly(args[0])
			}
			if err := cb.Reset(host); err != nil {
				return err
			}

			summary := "Reset all circuits"
			if host != "" {
				summary = "Reset circuit for " + host
			}
			return app.OK(map[string]string{"host": host}, output.WithSummary(summary))
		},
	}
}

// hostOnly accepts a bare host or a URL and returns host[:port], the key
// circuits are recorded under.
func hostOnly(arg string) string {
	u, err := url.Parse(hostutil.Normalize(arg))
	if err != nil || u.Host == "" {
		return arg
	}
	return u.Host
}
