// Package cli implements the stellar-desktop command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellar-vpn/stellar-desktop/internal/backend"
	"github.com/stellar-vpn/stellar-desktop/internal/logging"
)

var version = "dev"

// socketPath is the backend socket every subcommand talks to.
var socketPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stellar-desktop",
	Short: "Stellar VPN desktop client",
	Long: `Stellar VPN desktop client.

  Runs a system tray frontend for the Stellar VPN backend daemon, or drives
  a running backend headlessly:

    stellar-desktop run            start the tray client
    stellar-desktop status         print the current tunnel status
    stellar-desktop connect        bring the tunnel up
    stellar-desktop disconnect     tear the tunnel down`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupFromEnv()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", backend.DefaultSocketPath, "backend daemon socket path")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}

// dialBackend connects to the backend daemon, with a friendlier message when
// it is not running at all.
func dialBackend() (*backend.Client, error) {
	client, err := backend.DialPath(socketPath)
	if err != nil {
		if !backend.IsBackendAvailableAt(socketPath) {
			return nil, fmt.Errorf("backend daemon is not running (socket %s)", socketPath)
		}
		return nil, fmt.Errorf("failed to connect to backend daemon: %w", err)
	}
	return client, nil
}
