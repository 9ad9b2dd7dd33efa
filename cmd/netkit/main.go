// Package main is the entry point for the netkit CLI.
package main

import "github.com/basecamp/netkit/internal/cli"

func main() {
	cli.Execute()
}
