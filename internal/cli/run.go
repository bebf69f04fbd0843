package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stellar-vpn/stellar-desktop/internal/keyring"
	"github.com/stellar-vpn/stellar-desktop/internal/prefs"
	"github.com/stellar-vpn/stellar-desktop/internal/session"
	"github.com/stellar-vpn/stellar-desktop/internal/ui"
)

var noAutoConnect bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the system tray client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTray()
	},
}

func init() {
	runCmd.Flags().BoolVar(&noAutoConnect, "no-auto-connect", false, "skip the startup auto-connect evaluation")
}

func runTray() error {
	store, err := prefs.NewManager()
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	client, err := dialBackend()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctrl := session.NewController(session.DefaultConfig(), client, store, keyring.NewSystemKeyring(), nil)

	client.OnStatus(ctrl.HandleStatusPayload)
	client.OnLogLine(ctrl.AppendLogLine)

	tray := ui.NewTrayIcon()
	if err := tray.OnConnect(func() {
		go func() {
			if err := ctrl.ConnectNow(context.Background()); err != nil {
				slog.Error("Connect failed", "error", err)
			}
		}()
	}); err != nil {
		return err
	}
	if err := tray.OnDisconnect(func() {
		go func() {
			if err := ctrl.Disconnect(context.Background()); err != nil {
				slog.Error("Disconnect failed", "error", err)
			}
		}()
	}); err != nil {
		return err
	}
	if err := tray.OnQuit(func() {
		tray.Quit()
	}); err != nil {
		return err
	}

	ctrl.OnChange(tray.SetSnapshot)
	if sel := store.Preferences().SelectedServer; sel != nil {
		tray.SetServerName(sel.Name)
	}

	// Adopt a tunnel that survived a client restart, then let the policy
	// decide whether to bring one up.
	ctrl.Reconcile(context.Background())
	ctrl.EvaluateAutoConnect(context.Background(), noAutoConnect)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("Shutting down", "signal", sig)
		tray.Quit()
	}()

	return tray.Run()
}
