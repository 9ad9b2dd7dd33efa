package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/output"
	"github.com/basecamp/netkit/internal/request"
)

// NewFixturesCmd creates the fixtures command for inspecting a fixture
// directory.
func NewFixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Inspect fixture responses",
		Long:  "Inspect the fixture manifest used by --transport fixture.",
	}

	cmd.AddCommand(
		newFixturesCheckCmd(),
		newFixturesLookupCmd(),
	)

	return cmd
}

func requireFixtures(app *appctx.App) error {
	if app.Fixtures == nil {
		return output.ErrUsageHint("fixture transport not selected", "Use --transport fixture --fixtures <dir>")
	}
	return nil
}

func newFixturesCheckCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the manifest and report its entries",
		Long:  "Load the manifest and report how many URLs it maps. With --watch, keep reloading on change until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireFixtures(app); err != nil {
				return err
			}

			if err := app.Fixtures.Reload(); err != nil {
				return output.ErrUsageHint(fmt.Sprintf("manifest not loaded: %v", err), "Check the manifest YAML")
			}

			if watch {
				fmt.Fprintf(app.Stderr, "Watching %s (%d entries)\n", app.Config.FixturesDir, app.Fixtures.Entries())
				err := app.Fixtures.Watch(cmd.Context(), func(err error) {
					if err != nil {
						fmt.Fprintf(app.Stderr, "reload failed: %v\n", err)
						return
					}
					fmt.Fprintf(app.Stderr, "reloaded: %d entries\n", app.Fixtures.Entries())
				})
				if err != nil {
					return err
				}
			}

			n := app.Fixtures.Entries()
			return app.OK(map[string]any{"dir": app.Config.FixturesDir, "entries": n},
				output.WithSummary(fmt.Sprintf("%s fixture URLs", app.Locale.FormatCount(int64(n)))),
			)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload whenever the manifest changes")

	return cmd
}

func newFixturesLookupCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "lookup <url>",
		Short: "Show which fixture answers a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if err := requireFixtures(app); err != nil {
				return err
			}

			m, ok := request.ParseMethod(method)
			if !ok {
				return output.ErrUsage(fmt.Sprintf("unknown method %q", method))
			}
			name, err := app.Fixtures.Lookup(args[0], string(m))
			if err != nil {
				return err
			}
			return app.OK(map[string]any{"url": args[0], "method": m, "fixture": name},
				output.WithSummary(fmt.Sprintf("%s %s -> %s", m, args[0], name)),
			)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")

	return cmd
}
