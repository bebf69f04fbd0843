package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// eligibleInput returns an input that passes every guard.
func eligibleInput() PolicyInput {
	return PolicyInput{
		AutoConnectEnabled: true,
		ManualDisabled:     false,
		HasConnectedOnce:   true,
		Subscription:       SubscriptionSnapshot{DaysRemaining: 30},
		Status:             StatusDisconnected,
		SelectedLocator:    "https://cdn.stellar.example/stellar-switzerland.ovpn",
	}
}

func TestDecideAutoConnect_Attempts(t *testing.T) {
	locator, attempt := DecideAutoConnect(eligibleInput())

	assert.True(t, attempt)
	assert.Equal(t, "https://cdn.stellar.example/stellar-switzerland.ovpn", locator)
}

func TestDecideAutoConnect_Guards(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PolicyInput)
	}{
		{"skip requested", func(in *PolicyInput) { in.SkipRequested = true }},
		{"auto-connect disabled", func(in *PolicyInput) { in.AutoConnectEnabled = false }},
		{"manual override latched", func(in *PolicyInput) { in.ManualDisabled = true }},
		{"never connected", func(in *PolicyInput) { in.HasConnectedOnce = false }},
		{"subscription expired", func(in *PolicyInput) { in.Subscription.Expired = true }},
		{"already connecting", func(in *PolicyInput) { in.Status = StatusConnecting }},
		{"already connected", func(in *PolicyInput) { in.Status = StatusConnected }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := eligibleInput()
			tt.mutate(&in)

			_, attempt := DecideAutoConnect(in)
			assert.False(t, attempt)
		})
	}
}

func TestDecideAutoConnect_DefaultLocatorFallback(t *testing.T) {
	in := eligibleInput()
	in.SelectedLocator = ""

	locator, attempt := DecideAutoConnect(in)

	assert.True(t, attempt)
	assert.Equal(t, DefaultConfigLocator, locator)
}
