// Package commands implements the netkit subcommands.
package commands

import "github.com/spf13/cobra"

// All returns every top-level subcommand, in help order.
func All() []*cobra.Command {
	return []*cobra.Command{
		NewRequestCmd(),
		NewGetCmd(),
		NewFetchCmd(),
		NewDownloadCmd(),
		NewTokenCmd(),
		NewFixturesCmd(),
		NewCircuitCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	}
}
