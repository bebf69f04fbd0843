package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear the tunnel down",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialBackend()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Disconnect(ctx); err != nil {
			return fmt.Errorf("disconnect failed: %w", err)
		}

		fmt.Println("disconnected")
		return nil
	},
}
