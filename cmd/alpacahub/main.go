// Alpacahub is a discovery gateway for ASCOM Alpaca astronomy devices.
//
// It discovers Alpaca servers on the local network via UDP broadcast (and
// optionally mDNS), resolves their configured devices through the management
// API, and exposes everything behind one HTTP listener: a device registry
// REST API, a reverse proxy to the discovered servers, and a websocket
// stream of registry events.
//
// Usage:
//
//	alpacahub [command] [flags]
//
// Running without arguments starts the gateway server.
// See 'alpacahub --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openskies-io/alpacahub/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "alpacahub",
	Short: "ASCOM Alpaca Discovery Gateway",
	Long: `A discovery gateway and device registry for ASCOM Alpaca devices.

Discovers Alpaca servers on the local network, resolves their configured
devices, and serves a unified registry with a reverse proxy so clients can
reach every device through a single address.

If no command is specified, the gateway server starts.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the gateway when no subcommand provided
		return runServe(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("alpacahub %s (commit: %s)\n", version.Version, version.Commit)
	},
}
