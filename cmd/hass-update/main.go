// Hass-update reviews and installs Home Assistant updates from the terminal.
//
// It connects to a Home Assistant instance over the websocket API and works
// with update entities: listing them, showing release notes, and installing,
// skipping or un-skipping versions. Instances on the local network can be
// found with mDNS.
//
// Usage:
//
//	hass-update [command] [flags]
//
// Running without arguments launches the interactive interface.
// See 'hass-update --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hass-update",
	Short: "Home Assistant update manager",
	Long: `Review and install Home Assistant updates from the terminal.

Connects to Home Assistant over the websocket API using a long-lived access
token, and works with every update entity the instance exposes: core, OS,
add-ons, integrations and device firmware.

If no command is specified, the interactive interface will launch.`,
	Version: version.Version,
	Example: `  # Interactive interface
  export HASS_URL=http://homeassistant.local:8123
  export HASS_TOKEN=eyJhbGciOi...
  hass-update

  # List update entities
  hass-update list

  # Install with a backup first
  hass-update install update.home_assistant_core_update`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
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
		fmt.Fprintf(cmd.OutOrStdout(), "hass-update %s\n", version.Full())
	},
}
