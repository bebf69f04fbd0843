package session

// DefaultConfigLocator is the server configuration used when no server has
// been selected yet.
const DefaultConfigLocator = "https://stellarvpnserverstorage.blob.core.windows.net/openvpn/stellar-switzerland.ovpn"

// SubscriptionSnapshot is the account subsystem's read-only view of the
// subscription, consumed by the auto-connect policy and manual-connect gating.
type SubscriptionSnapshot struct {
	DaysRemaining int
	Expired       bool
}

// PolicyInput carries everything the auto-connect decision depends on.
type PolicyInput struct {
	// SkipRequested is true while an explicit "skip auto-connect" intent is
	// active for the current navigation.
	SkipRequested bool
	// AutoConnectEnabled mirrors the persisted preference.
	AutoConnectEnabled bool
	// ManualDisabled mirrors the persisted manual override latch.
	ManualDisabled bool
	// HasConnectedOnce mirrors the persisted first-connection marker.
	HasConnectedOnce bool
	// Subscription is the current subscription snapshot.
	Subscription SubscriptionSnapshot
	// Status is the current connection status.
	Status Status
	// SelectedLocator is the persisted selection's locator, empty if none.
	SelectedLocator string
}

// DecideAutoConnect is the auto-reconnect policy: a pure function returning
// the locator to connect with and whether to attempt at all. An attempt is
// made only when every guard passes; the locator falls back to
// DefaultConfigLocator when nothing is selected.
func DecideAutoConnect(in PolicyInput) (locator string, attempt bool) {
	if in.SkipRequested {
		return "", false
	}
	if !in.AutoConnectEnabled {
		return "", false
	}
	if in.ManualDisabled {
		return "", false
	}
	if !in.HasConnectedOnce {
		return "", false
	}
	if in.Subscription.Expired {
		return "", false
	}
	if in.Status != StatusDisconnected {
		return "", false
	}

	locator = in.SelectedLocator
	if locator == "" {
		locator = DefaultConfigLocator
	}
	return locator, true
}
