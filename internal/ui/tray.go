// Package ui provides the system tray presence for stellar-desktop.
package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/systray"

	"github.com/stellar-vpn/stellar-desktop/internal/session"
)

var (
	// ErrTrayAlreadyRunning is returned when attempting to modify callbacks after Run() has been called.
	ErrTrayAlreadyRunning = errors.New("cannot modify callbacks after TrayIcon.Run() is called")
	// ErrTrayRunTwice is returned when Run() is called more than once.
	ErrTrayRunTwice = errors.New("TrayIcon.Run() called twice")
	// ErrTrayMissingCallbacks is returned when Run() is called without all required callbacks set.
	ErrTrayMissingCallbacks = errors.New("all callbacks (OnConnect, OnDisconnect, OnQuit) must be set before calling Run()")
)

// TrayIcon manages the system tray icon and menu. It renders session snapshots
// pushed through SetSnapshot and translates menu clicks into the registered
// connect and disconnect callbacks; it never talks to the backend itself.
type TrayIcon struct {
	mu sync.RWMutex

	snapshot   session.Snapshot
	serverName string

	menuStatus     *systray.MenuItem
	menuConnect    *systray.MenuItem
	menuDisconnect *systray.MenuItem
	menuQuit       *systray.MenuItem

	// Callbacks - must be set before Run() is called
	onConnect    func()
	onDisconnect func()
	onQuit       func()

	done chan struct{}

	running   bool
	closeOnce sync.Once
}

// NewTrayIcon creates a new system tray icon manager.
func NewTrayIcon() *TrayIcon {
	return &TrayIcon{
		snapshot: session.Snapshot{Status: session.StatusDisconnected},
		done:     make(chan struct{}),
	}
}

// OnConnect registers a callback for when Connect is clicked in the tray.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnConnect(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onConnect = callback
	return nil
}

// OnDisconnect registers a callback for when Disconnect is clicked in the tray.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnDisconnect(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onDisconnect = callback
	return nil
}

// OnQuit registers a callback for when Quit is clicked in the tray.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnQuit(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onQuit = callback
	return nil
}

// SetSnapshot updates the tray icon and menu from a session snapshot.
func (t *TrayIcon) SetSnapshot(snap session.Snapshot) {
	t.mu.Lock()
	t.snapshot = snap
	t.mu.Unlock()
	t.updateIcon()
	t.updateMenu()
}

// SetServerName sets the selected server name for display in the tray.
func (t *TrayIcon) SetServerName(name string) {
	t.mu.Lock()
	t.serverName = name
	t.mu.Unlock()
	t.updateMenu()
}

// Run starts the system tray icon. This should be called in a goroutine as it
// blocks until the tray is closed. All callbacks (OnConnect, OnDisconnect,
// OnQuit) must be registered before calling Run().
// Returns ErrTrayMissingCallbacks if any callback is not set.
// Returns ErrTrayRunTwice if called more than once.
func (t *TrayIcon) Run() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrTrayRunTwice
	}

	if t.onConnect == nil || t.onDisconnect == nil || t.onQuit == nil {
		t.mu.Unlock()
		return ErrTrayMissingCallbacks
	}

	t.running = true
	t.mu.Unlock()

	systray.Run(t.onReady, t.onExit)
	return nil
}

// Quit closes the system tray icon and terminates the click handler goroutine.
// Safe to call multiple times.
func (t *TrayIcon) Quit() {
	t.closeOnce.Do(func() {
		close(t.done)
		systray.Quit()
	})
}

// onReady is called when the tray is ready to be configured.
func (t *TrayIcon) onReady() {
	systray.SetIcon(iconDisconnectedPNG)
	systray.SetTitle("Stellar VPN")
	systray.SetTooltip("Stellar VPN - Disconnected")

	t.menuStatus = systray.AddMenuItem("Status: Disconnected", "Current connection status")
	t.menuStatus.Disable()

	systray.AddSeparator()

	t.menuConnect = systray.AddMenuItem("Connect", "Connect to VPN")
	t.menuDisconnect = systray.AddMenuItem("Disconnect", "Disconnect from VPN")
	t.menuDisconnect.Disable()

	systray.AddSeparator()

	t.menuQuit = systray.AddMenuItem("Quit", "Quit the application")

	go t.handleMenuClicks()

	slog.Info("System tray initialized")
}

// onExit is called when the tray is being closed.
func (t *TrayIcon) onExit() {
	slog.Info("System tray closed")
}

// handleMenuClicks processes menu item clicks.
func (t *TrayIcon) handleMenuClicks() {
	for {
		select {
		case <-t.done:
			return
		case _, ok := <-t.menuConnect.ClickedCh:
			if !ok {
				return
			}
			if t.onConnect != nil {
				t.onConnect()
			}
		case _, ok := <-t.menuDisconnect.ClickedCh:
			if !ok {
				return
			}
			if t.onDisconnect != nil {
				t.onDisconnect()
			}
		case _, ok := <-t.menuQuit.ClickedCh:
			if !ok {
				return
			}
			if t.onQuit != nil {
				t.onQuit()
			}
		}
	}
}

// updateIcon updates the tray icon based on the current snapshot.
func (t *TrayIcon) updateIcon() {
	if t.menuStatus == nil {
		return // Not initialized yet
	}

	t.mu.RLock()
	snap := t.snapshot
	serverName := t.serverName
	t.mu.RUnlock()

	var icon []byte
	var tooltip string

	switch {
	case snap.Status == session.StatusConnected:
		icon = iconConnectedPNG
		tooltip = "Stellar VPN - Connected"
		if serverName != "" {
			tooltip = fmt.Sprintf("Stellar VPN - Connected to %s", serverName)
		}
	case snap.Status == session.StatusConnecting:
		icon = iconConnectingPNG
		tooltip = "Stellar VPN - Connecting..."
	case snap.LastError != "":
		icon = iconErrorPNG
		tooltip = fmt.Sprintf("Stellar VPN - %s", snap.LastError)
	default:
		icon = iconDisconnectedPNG
		tooltip = "Stellar VPN - Disconnected"
	}

	systray.SetIcon(icon)
	systray.SetTooltip(tooltip)
}

// updateMenu updates the menu items based on the current snapshot.
func (t *TrayIcon) updateMenu() {
	if t.menuStatus == nil {
		return // Not initialized yet
	}

	t.mu.RLock()
	snap := t.snapshot
	serverName := t.serverName
	t.mu.RUnlock()

	var statusText string
	switch {
	case snap.Status == session.StatusConnected:
		statusText = "Status: Connected"
		if serverName != "" {
			statusText = fmt.Sprintf("Status: Connected to %s", serverName)
		}
	case snap.Status == session.StatusConnecting:
		statusText = "Status: Connecting..."
	case snap.LastError != "":
		statusText = fmt.Sprintf("Status: %s", snap.LastError)
	default:
		statusText = "Status: Disconnected"
	}
	t.menuStatus.SetTitle(statusText)

	if serverName != "" && snap.Status == session.StatusDisconnected {
		t.menuConnect.SetTitle(fmt.Sprintf("Connect (%s)", serverName))
	} else {
		t.menuConnect.SetTitle("Connect")
	}

	if snap.Status == session.StatusDisconnected {
		t.menuConnect.Enable()
	} else {
		t.menuConnect.Disable()
	}

	if snap.Status == session.StatusDisconnected {
		t.menuDisconnect.Disable()
	} else {
		t.menuDisconnect.Enable()
	}
}
