package commands

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/basecamp/netkit/internal/appctx"
	"github.com/basecamp/netkit/internal/download"
	"github.com/basecamp/netkit/internal/output"
)

// NewFetchCmd creates the fetch command, which prints a URL's raw body.
func NewFetchCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch raw bytes",
		Long:  "Fetch a URL without credentials and write the body to stdout, or to --output.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			data, err := app.Client.FetchBytes(cmd.Context(), args[0]).Get()
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err := app.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil { //nolint:gosec // G306: user-chosen output file
				return fmt.Errorf("writing %s: %w", outFile, err)
			}
			size := int64(len(data))
			return app.OK(map[string]any{"path": outFile, "bytes": size},
				output.WithSummary(fmt.Sprintf("Fetched %s to %s", app.Locale.FormatBytes(size), outFile)),
			)
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the body to this file")

	return cmd
}

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a file",
		Long: `Download a URL into the download directory, named after the last path
segment. An existing file with that name is replaced. The file is only
written once the transfer completes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			var (
				dest string
				err  error
			)
			if progress {
				bar := newProgressBar(app)
				dest, err = app.Client.DownloadWithProgress(cmd.Context(), args[0], bar).Get()
				bar.finish()
			} else {
				dest, err = app.Client.Download(cmd.Context(), args[0]).Get()
			}
			if err != nil {
				return err
			}

			info, err := os.Stat(dest)
			if err != nil {
				return err
			}
			return app.OK(map[string]any{"path": dest, "bytes": info.Size()},
				output.WithSummary(fmt.Sprintf("Downloaded %s to %s", app.Locale.FormatBytes(info.Size()), dest)),
			)
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", false, "Report progress on stderr")

	return cmd
}

// progressBar prints whole-percent progress to stderr, once per change.
type progressBar struct {
	app *appctx.App

	mu      sync.Mutex
	last    int
	printed bool
}

var _ download.ProgressSink = (*progressBar)(nil)

func newProgressBar(app *appctx.App) *progressBar {
	return &progressBar{app: app, last: -1}
}

func (p *progressBar) Progress(fraction float64) {
	pct := int(fraction * 100)
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct == p.last {
		return
	}
	p.last = pct
	p.printed = true
	fmt.Fprintf(p.app.Stderr, "\rDownloading... %3d%%", pct)
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed {
		fmt.Fprintln(p.app.Stderr)
	}
}
