// Package session implements the VPN session controller: the single owner of
// the connection status that decides when to start or stop the tunnel,
// reconciles pushed and polled backend status through one reducer, and
// enforces the manual override policy.
package session

import (
	"strings"

	"github.com/stellar-vpn/stellar-desktop/internal/backend/protocol"
)

// Status represents the client-side view of the tunnel state.
type Status string

const (
	// StatusDisconnected indicates no active tunnel.
	StatusDisconnected Status = "disconnected"
	// StatusConnecting indicates a connect attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusConnected indicates the tunnel is up.
	StatusConnected Status = "connected"
)

// IsConnected returns true if the status represents an active tunnel.
func (s Status) IsConnected() bool {
	return s == StatusConnected
}

// Snapshot is the observable session state. LastError is sticky: it persists
// until the next Connected transition or an explicit clear.
type Snapshot struct {
	Status    Status
	LastError string
}

// ReduceStatus maps a backend status payload onto a Status. Pushed events and
// polled results use the same vocabulary and must go through this one
// function. An "error:<reason>" payload maps to Disconnected with the reason
// extracted. ok is false for payloads outside the vocabulary.
func ReduceStatus(payload string) (status Status, errReason string, ok bool) {
	switch payload {
	case protocol.StatusDisconnected:
		return StatusDisconnected, "", true
	case protocol.StatusConnecting:
		return StatusConnecting, "", true
	case protocol.StatusConnected:
		return StatusConnected, "", true
	}

	if strings.HasPrefix(payload, protocol.StatusErrorPrefix) {
		reason := strings.TrimSpace(strings.TrimPrefix(payload, protocol.StatusErrorPrefix))
		if reason == "" {
			reason = "backend reported an error"
		}
		return StatusDisconnected, reason, true
	}

	return "", "", false
}
