package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/credentials"
	"github.com/basecamp/netkit/internal/output"
)

// NewTokenCmd creates the token command for managing stored credentials.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored tokens",
		Long: `Manage the access and refresh tokens kept in the system keyring.

Tokens are filed under a credential key (--token-key, default "default").
NETKIT_TOKEN, when set, is stored as the access token by "token set -".`,
	}

	cmd.AddCommand(
		newTokenSetCmd(),
		newTokenGetCmd(),
		newTokenStatusCmd(),
		newTokenRefreshCmd(),
		newTokenRemoveCmd(),
		newTokenClearCmd(),
	)

	return cmd
}

func newTokenSetCmd() *cobra.Command {
	var refresh string

	cmd := &cobra.Command{
		Use:   "set <access-token | ->",
		Short: "Store an access token",
		Long:  `Store an access token, and optionally a refresh token. "-" reads the access token from NETKIT_TOKEN or, when unset, from stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			key := app.Auth.Key()

			access := args[0]
			if access == "-" {
				seeded, err := app.Auth.SeedFromEnv()
				if err != nil {
					return err
				}
				if !seeded {
					access, err = readLine(cmd.InOrStdin())
					if err != nil {
						return err
					}
					if err := app.Store.Set(credentials.Access, key, access); err != nil {
						return err
					}
				}
			} else if err := app.Store.Set(credentials.Access, key, access); err != nil {
				return err
			}

			if refresh != "" {
				if err := app.Store.Set(credentials.Refresh, key, refresh); err != nil {
					return err
				}
			}

			return app.OK(map[string]any{"key": key, "refresh_token": refresh != ""},
				output.WithSummary(fmt.Sprintf("Stored token for %q", key)),
			)
		},
	}

	cmd.Flags().StringVar(&refresh, "refresh", "", "Refresh token to store alongside")

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", output.ErrUsage("no token on stdin")
	}
	return line, nil
}

func newTokenGetCmd() *cobra.Command {
	var (
		reveal  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored access token",
		Long:  "Print the stored access token, masked unless --reveal is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			key := app.Auth.Key()

			kind := credentials.Access
			if refresh {
				kind = credentials.Refresh
			}
			token, ok := app.Store.Get(kind, key)
			if !ok {
				return output.ErrAuth(fmt.Sprintf("No %s stored for %q", kind, key))
			}
			if !reveal {
				token = maskToken(token)
			}
			return app.OK(token)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the token unmasked")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Print the refresh token instead")

	return cmd
}

func newTokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which tokens are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			key := app.Auth.Key()

			_, hasRefresh := app.Store.Get(credentials.Refresh, key)
			status := map[string]any{
				"key":           key,
				"authenticated": app.Auth.IsAuthenticated(),
				"refresh_token": hasRefresh,
				"token_url":     app.Config.TokenURL,
			}
			if last := app.Auth.LastRefresh(); !last.IsZero() {
				status["last_refresh"] = last
			}

			summary := fmt.Sprintf("Not authenticated for %q", key)
			if app.Auth.IsAuthenticated() {
				summary = fmt.Sprintf("Authenticated for %q", key)
			}
			return app.OK(status, output.WithSummary(summary))
		},
	}
}

func newTokenRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if err := app.Auth.RefreshToken(cmd.Context()); err != nil {
				return err
			}
			return app.OK(map[string]any{"key": app.Auth.Key(), "refreshed_at": app.Auth.LastRefresh()},
				output.WithSummary("Token refreshed"),
			)
		},
	}
}

func newTokenRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm",
		Aliases: []string{"logout"},
		Short:   "Remove the tokens for the current key",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if err := app.Auth.Logout(); err != nil {
				return err
			}
			return app.OK(map[string]any{"key": app.Auth.Key()},
				output.WithSummary(fmt.Sprintf("Removed tokens for %q", app.Auth.Key())),
			)
		},
	}
}

func newTokenClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if err := app.Store.RemoveAll(); err != nil {
				return err
			}
			return app.OK(nil, output.WithSummary("Removed all tokens"))
		},
	}
}
