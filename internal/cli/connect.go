package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellar-vpn/stellar-desktop/internal/keyring"
	"github.com/stellar-vpn/stellar-desktop/internal/prefs"
	"github.com/stellar-vpn/stellar-desktop/internal/session"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Bring the tunnel up",
	Long: `Bring the tunnel up using the persisted server selection and stored
credentials, and wait for the attempt to resolve.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := prefs.NewManager()
		if err != nil {
			return fmt.Errorf("failed to load preferences: %w", err)
		}

		client, err := dialBackend()
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		cfg := session.DefaultConfig()
		ctrl := session.NewController(cfg, client, store, keyring.NewSystemKeyring(), nil)

		client.OnStatus(ctrl.HandleStatusPayload)

		resolved := make(chan session.Snapshot, 1)
		ctrl.OnChange(func(snap session.Snapshot) {
			if snap.Status != session.StatusConnecting {
				select {
				case resolved <- snap:
				default:
				}
			}
		})

		if err := ctrl.ConnectNow(context.Background()); err != nil {
			return err
		}

		// The watchdog guarantees the attempt resolves within its budget;
		// the extra margin covers callback delivery.
		select {
		case snap := <-resolved:
			if snap.Status == session.StatusConnected {
				fmt.Println("connected")
				return nil
			}
			if snap.LastError != "" {
				return fmt.Errorf("connect failed: %s", snap.LastError)
			}
			return fmt.Errorf("connect failed")
		case <-time.After(cfg.WatchdogTimeout + 5*time.Second):
			return fmt.Errorf("timed out waiting for the attempt to resolve")
		}
	},
}
