package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/network"
	"github.com/basecamp/netkit/internal/output"
	"github.com/basecamp/netkit/internal/request"
)

// NewRequestCmd creates the request command, which runs one call through
// the authenticated pipeline.
func NewRequestCmd() *cobra.Command {
	var (
		method      string
		data        string
		headers     []string
		query       []string
		segments    []string
		noAuth      bool
		expired     bool
		tokenHeader string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "request <url>",
		Short: "Authenticated request",
		Long: `Send an authenticated request and print the decoded JSON response.

The stored access token for --token-key is attached as a bearer token (or
as the raw value of --token-header). A 401 triggers one token refresh and
one retry when a token endpoint is configured.`,
		Example: `  netkit request https://api.example.com/v1/items
  netkit request api.example.com/v1/items -X POST -d '{"name":"pen"}'
  netkit request https://api.example.com/v1 --path items --path 42 --query expand=all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			m, ok := request.ParseMethod(method)
			if !ok {
				return output.ErrUsageHint(fmt.Sprintf("unknown method %q", method), "Use GET, POST, PUT, PATCH or DELETE")
			}

			d, err := request.Parse(args[0])
			if err != nil {
				return output.ErrUsage(err.Error())
			}
			d.AccessTokenKey = app.Auth.Key()
			d.RequiresAccessToken = !noAuth
			d.TokenIsExpired = expired
			d.TokenHeader = tokenHeader
			d.Environment = environment

			opts := []network.CallOption{network.WithMethod(m)}
			if len(headers) > 0 {
				h, err := parseHeaders(headers)
				if err != nil {
					return err
				}
				opts = append(opts, network.WithHeaders(h))
			}
			if len(query) > 0 {
				q, err := parseQuery(query)
				if err != nil {
					return err
				}
				opts = append(opts, network.WithQuery(q))
			}
			if len(segments) > 0 {
				opts = append(opts, network.WithPath(segments...))
			}
			if data != "" {
				body, err := parseBody(data)
				if err != nil {
					return err
				}
				opts = append(opts, network.WithBody(body))
			}

			body, err := network.Request[json.RawMessage](cmd.Context(), app.Client, d, opts...).Get()
			if err != nil {
				return err
			}

			return app.OK(body,
				output.WithSummary(fmt.Sprintf("%s %s", m, d.URI())),
			)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body (sent for POST, PUT and PATCH)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `Extra header "Name: value" (repeatable)`)
	cmd.Flags().StringArrayVar(&query, "query", nil, "Query item key=value (repeatable)")
	cmd.Flags().StringArrayVar(&segments, "path", nil, "Path segment appended to the URL, escaped (repeatable)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Do not require or attach an access token")
	cmd.Flags().BoolVar(&expired, "expired", false, "Refresh the token before the first attempt")
	cmd.Flags().StringVar(&tokenHeader, "token-header", "", "Send the raw token in this header instead of Authorization")
	cmd.Flags().StringVar(&environment, "env-prefix", "", `Host prefix such as "staging."`)

	return cmd
}

// NewGetCmd creates the get command for unauthenticated JSON fetches.
func NewGetCmd() *cobra.Command {
	var headers []string

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Unauthenticated GET",
		Long:  "Fetch a URL without credentials and print the decoded JSON response.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			h, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			uri := args[0]
			if !strings.Contains(uri, "://") {
				d, err := request.Parse(uri)
				if err != nil {
					return output.ErrUsage(err.Error())
				}
				uri = d.URI()
			}

			body, err := network.Get[json.RawMessage](cmd.Context(), app.Client, uri, h).Get()
			if err != nil {
				return err
			}
			return app.OK(body, output.WithSummary("GET "+uri))
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, `Extra header "Name: value" (repeatable)`)

	return cmd
}
