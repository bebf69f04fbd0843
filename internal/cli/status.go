package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current tunnel status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialBackend()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		payload, err := client.QueryStatus(ctx)
		if err != nil {
			return fmt.Errorf("status query failed: %w", err)
		}
		fmt.Println(payload)

		// Toggle states are informational; a backend without them still has
		// a useful status line.
		if killSwitch, err := client.KillSwitchQuery(ctx); err == nil {
			fmt.Printf("kill switch: %s\n", onOff(killSwitch))
		}
		if crashRecovery, err := client.CrashRecoveryQuery(ctx); err == nil {
			fmt.Printf("crash recovery: %s\n", onOff(crashRecovery))
		}

		return nil
	},
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
