// Package main provides the entry point for the stellar-desktop application.
// stellar-desktop is the desktop client for the Stellar VPN service: a system
// tray frontend driving the privileged backend daemon over its unix socket.
package main

import (
	"github.com/stellar-vpn/stellar-desktop/internal/cli"
)

func main() {
	cli.Execute()
}
