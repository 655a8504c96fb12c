// Hass-update-demo runs a simulated Home Assistant instance.
//
// It serves update entities from built-in or YAML fixtures over the Home
// Assistant websocket API, simulates installs with progress, and can announce
// itself over mDNS so 'hass-update scan' finds it.
//
// Usage:
//
//	hass-update-demo server [flags]
//
// See 'hass-update-demo server --help' for available options.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/hassupdate/internal/logging"
	"github.com/muurk/hassupdate/internal/server"
	"github.com/muurk/hassupdate/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hass-update-demo",
	Short: "Simulated Home Assistant instance",
	Long: `A simulated Home Assistant instance for trying hass-update without a real
installation.

It speaks the Home Assistant websocket API for update entities: states,
service calls, release notes, state_changed subscriptions and translations.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Server command and flags
var (
	certPath     string
	keyPath      string
	host         string
	port         int
	token        string
	logLevel     string
	captureDir   string
	fixturesPath string
	installStep  time.Duration
	advertise    bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the simulated instance",
	Long: `Start the simulated Home Assistant instance.

Entities come from the built-in demo fixtures unless --fixtures names a YAML
file. Installs advance update_percentage every --install-step until the new
version is installed.

To capture websocket messages, use the --capture-dir flag to specify a
directory where one JSON Lines file per connection will be written.`,
	Example: `  # Start on the default port with the built-in entities
  hass-update-demo server --token demo

  # Connect to it
  hass-update --url http://localhost:8123 --token demo

  # Announce over mDNS and capture traffic
  hass-update-demo server --token demo --advertise --capture-dir ./captures

  # Serve your own entities over TLS
  hass-update-demo server --fixtures entities.yaml --cert cert.pem --key key.pem`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (serves plain HTTP if not provided)")
	serverCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file")
	serverCmd.Flags().StringVar(&host, "host", "", "Server hostname (empty = listen on all interfaces)")
	serverCmd.Flags().IntVar(&port, "port", 8123, "Server port")
	serverCmd.Flags().StringVar(&token, "token", "", "Accepted access token (empty = accept any token)")
	serverCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serverCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory to write message captures (disabled if not specified)")
	serverCmd.Flags().StringVar(&fixturesPath, "fixtures", "", "YAML fixtures file (built-in demo entities if not specified)")
	serverCmd.Flags().DurationVar(&installStep, "install-step", server.DefaultInstallStep, "Time between simulated install progress updates")
	serverCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the instance over mDNS as _home-assistant._tcp")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Validate: Either both cert and key are provided, or neither
	if (certPath != "") != (keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}

	if certPath != "" {
		if _, err := os.Stat(certPath); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", certPath)
		}
		if _, err := os.Stat(keyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", keyPath)
		}
	}

	if captureDir != "" {
		info, err := os.Stat(captureDir)
		if os.IsNotExist(err) {
			return fmt.Errorf("capture directory does not exist: %s", captureDir)
		}
		if err != nil {
			return fmt.Errorf("cannot access capture directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("capture path is not a directory: %s", captureDir)
		}
	}

	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	config := &server.Config{
		Host:         host,
		Port:         port,
		Token:        token,
		CertPath:     certPath,
		KeyPath:      keyPath,
		CaptureDir:   captureDir,
		FixturesPath: fixturesPath,
		InstallStep:  installStep,
		Advertise:    advertise,
	}

	srv, err := server.New(config)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hass-update-demo %s\n", version.Full())
	},
}
